package mem

import (
	"encoding/binary"
	"fmt"
)

// Base is the first address an Arena hands out, leaving 0 and the low range
// invalid so that a zero value on the stack never names a live allocation.
const Base = 0x1000

// Arena owns a set of byte buffers keyed by synthetic 64-bit base addresses.
// Program code sees only the addresses; every load and store translates back
// through an interval lookup over the live allocations. Bases are handed out
// in increasing order with an 8-byte guard gap, so an address one past the
// end of a buffer never falls inside its neighbor.
type Arena struct {
	bases []int64
	bufs  [][]byte
	next  int64
}

// AddrError indicates a load or store through an address that falls outside
// every live allocation.
type AddrError struct {
	Addr int64
	Op   string
}

func (ae AddrError) Error() string {
	return fmt.Sprintf("invalid %v at address %v", ae.Op, ae.Addr)
}

// Alloc reserves a fresh buffer of the given size and returns its base
// address. Size must not be negative; a zero size still yields a live
// allocation with no bytes. The buffer contents are zeroed, which is
// stricter than the unspecified contents callers are promised.
func (ar *Arena) Alloc(size int64) int64 {
	if ar.next == 0 {
		ar.next = Base
	}
	addr := ar.next
	ar.next += (size+7)&^7 + 8
	ar.bases = append(ar.bases, addr)
	ar.bufs = append(ar.bufs, make([]byte, size))
	return addr
}

// Free releases the allocation based exactly at addr, reporting whether one
// was live there. Interior addresses do not free.
func (ar *Arena) Free(addr int64) bool {
	i := ar.findAlloc(addr)
	if i < 0 || ar.bases[i] != addr {
		return false
	}
	ar.bases = append(ar.bases[:i], ar.bases[i+1:]...)
	ar.bufs = append(ar.bufs[:i], ar.bufs[i+1:]...)
	return true
}

// Live returns the number of live allocations.
func (ar *Arena) Live() int { return len(ar.bases) }

// Bases returns the live base addresses in increasing order; the slice
// aliases arena state and is only valid until the next Alloc or Free.
func (ar *Arena) Bases() []int64 { return ar.bases }

// Size returns the length of the allocation based at addr, or -1.
func (ar *Arena) Size(addr int64) int64 {
	if i := ar.findAlloc(addr); i >= 0 && ar.bases[i] == addr {
		return int64(len(ar.bufs[i]))
	}
	return -1
}

// Load reads an 8-byte little-endian value at addr.
func (ar *Arena) Load(addr int64) (int64, error) {
	p, err := ar.slice(addr, 8, "load")
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(p)), nil
}

// Stor writes val as 8 little-endian bytes at addr.
func (ar *Arena) Stor(addr, val int64) error {
	p, err := ar.slice(addr, 8, "store")
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(p, uint64(val))
	return nil
}

// LoadByte reads the single byte at addr.
func (ar *Arena) LoadByte(addr int64) (byte, error) {
	p, err := ar.slice(addr, 1, "load")
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// StorByte writes a single byte at addr.
func (ar *Arena) StorByte(addr int64, b byte) error {
	p, err := ar.slice(addr, 1, "store")
	if err != nil {
		return err
	}
	p[0] = b
	return nil
}

// Copy writes the given bytes starting at addr.
func (ar *Arena) Copy(addr int64, data []byte) error {
	p, err := ar.slice(addr, int64(len(data)), "store")
	if err != nil {
		return err
	}
	copy(p, data)
	return nil
}

func (ar *Arena) slice(addr, n int64, op string) ([]byte, error) {
	i := ar.findAlloc(addr)
	if i >= 0 {
		buf := ar.bufs[i]
		if off := addr - ar.bases[i]; off+n <= int64(len(buf)) {
			return buf[off : off+n], nil
		}
	}
	return nil, AddrError{addr, op}
}

// findAlloc returns the index of the last allocation based at or below addr,
// or -1 when addr precedes every base.
func (ar *Arena) findAlloc(addr int64) int {
	i, j := 0, len(ar.bases)
	for i < j {
		h := int(uint(i+j) >> 1)
		if ar.bases[h] <= addr {
			i = h + 1
		} else {
			j = h
		}
	}
	return i - 1
}
