package byteio

import (
	"bufio"
	"io"
)

// Reader is an io.Reader that also supports reading single bytes.
type Reader interface {
	io.Reader
	io.ByteReader
}

// NewReader returns a Reader from r; if r already implements, it is simply
// returned. Otherwise a bufio.Reader provides byte reading around the given
// reader. If r implements Name() string, so does the returned Reader.
func NewReader(r io.Reader) Reader {
	if impl, ok := r.(Reader); ok {
		return impl
	}
	br := byteReader{r, bufio.NewReader(r)}
	if impl, ok := r.(interface{ Name() string }); ok {
		return namedByteReader{br, impl.Name()}
	}
	return br
}

type byteReader struct {
	io.Reader
	io.ByteReader
}

type namedByteReader struct {
	Reader
	name string
}

func (nr namedByteReader) Name() string { return nr.name }
