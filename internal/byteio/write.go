package byteio

import "io"

// WriteByte writes a single byte to the given writer, using its ByteWriter
// implementation when it has one.
func WriteByte(w io.Writer, b byte) error {
	if bw, ok := w.(io.ByteWriter); ok {
		return bw.WriteByte(b)
	}
	_, err := w.Write([]byte{b})
	return err
}
