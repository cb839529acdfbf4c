// Package circbuf implements a byte ring buffer. It backs the kernel
// log (klog) here; with no sockets or other user-copy consumers in this
// tree, it is a plain in-memory buffer rather than one backed by a
// borrowed physical page.
package circbuf

import "defs"

/// Circbuf_t implements a simple circular buffer used by a single
/// consumer. It is not safe for concurrent use; callers (klog) take
/// their own lock around it.
type Circbuf_t struct {
	Buf   []uint8 /// underlying buffer backing memory
	bufsz int     /// buffer capacity in bytes
	head  int     /// write position
	tail  int     /// read position
}

/// Bufsz returns the configured buffer size.
func (cb *Circbuf_t) Bufsz() int {
	return cb.bufsz
}

/// Cb_init allocates a bufsz-byte backing array.
func (cb *Circbuf_t) Cb_init(sz int) {
	if sz <= 0 {
		panic("bad circbuf size")
	}
	cb.Buf = make([]uint8, sz)
	cb.bufsz = sz
	cb.head, cb.tail = 0, 0
}

/// Full returns true when the buffer cannot accept more data.
func (cb *Circbuf_t) Full() bool {
	return cb.head-cb.tail == cb.bufsz
}

/// Empty reports whether the buffer contains any data.
func (cb *Circbuf_t) Empty() bool {
	return cb.head == cb.tail
}

/// Left returns the remaining capacity in bytes.
func (cb *Circbuf_t) Left() int {
	return cb.bufsz - (cb.head - cb.tail)
}

/// Used returns the current number of bytes in the buffer.
func (cb *Circbuf_t) Used() int {
	return cb.head - cb.tail
}

/// Write copies as much of src into the buffer as fits, returning the
/// number of bytes copied.
func (cb *Circbuf_t) Write(src []uint8) int {
	n := 0
	for n < len(src) && !cb.Full() {
		hi := cb.head % cb.bufsz
		cb.Buf[hi] = src[n]
		cb.head++
		n++
	}
	return n
}

/// Read copies as much buffered data into dst as fits, returning the
/// number of bytes copied.
func (cb *Circbuf_t) Read(dst []uint8) int {
	n := 0
	for n < len(dst) && !cb.Empty() {
		ti := cb.tail % cb.bufsz
		dst[n] = cb.Buf[ti]
		cb.tail++
		n++
	}
	return n
}

/// Rawwrite exposes a slice for writing directly to the buffer,
/// returning up to two slices when the region wraps.
func (cb *Circbuf_t) Rawwrite(offset, sz int) ([]uint8, []uint8) {
	if cb.Buf == nil {
		panic("circbuf not initialized")
	}
	if cb.Left() < sz {
		panic("bad size")
	}
	if sz == 0 {
		return nil, nil
	}
	oi := (cb.head + offset) % cb.bufsz
	oe := (cb.head + offset + sz) % cb.bufsz
	hi := cb.head % cb.bufsz
	ti := cb.tail % cb.bufsz
	var r1, r2 []uint8
	if ti <= hi {
		if (oi >= ti && oi < hi) || (oe > ti && oe <= hi) {
			panic("intersects with unread data")
		}
		r1 = cb.Buf[oi:]
		if len(r1) > sz {
			r1 = r1[:sz]
		} else {
			r2 = cb.Buf[:oe]
		}
	} else {
		if !(oi >= hi && oi < ti && oe > hi && oe <= ti) {
			panic("intersects with unread data")
		}
		r1 = cb.Buf[oi:oe]
	}
	return r1, r2
}

/// Advhead advances the head index, making previously written bytes
/// readable.
func (cb *Circbuf_t) Advhead(sz int) {
	if cb.Full() || cb.Left() < sz {
		panic("advancing full cb")
	}
	cb.head += sz
}

/// Rawread returns slices referencing the buffer starting at offset, two
/// slices when the data wraps.
func (cb *Circbuf_t) Rawread(offset int) ([]uint8, []uint8) {
	if cb.Buf == nil {
		panic("circbuf not initialized")
	}
	oi := (cb.tail + offset) % cb.bufsz
	hi := cb.head % cb.bufsz
	ti := cb.tail % cb.bufsz
	var r1, r2 []uint8
	if ti < hi {
		if oi >= hi || oi < ti {
			panic("outside unread data")
		}
		r1 = cb.Buf[oi:hi]
	} else {
		tlen := len(cb.Buf[ti:])
		if tlen > offset {
			r1 = cb.Buf[oi:]
			r2 = cb.Buf[:hi]
		} else {
			roff := offset - tlen
			r1 = cb.Buf[roff:hi]
		}
	}
	return r1, r2
}

/// Advtail advances the tail index after data has been consumed.
func (cb *Circbuf_t) Advtail(sz int) {
	if sz != 0 && (cb.Empty() || cb.Used() < sz) {
		panic("advancing empty cb")
	}
	cb.tail += sz
}

/// ErrTooBig is returned when a single log line exceeds the buffer's
/// capacity outright.
const ErrTooBig defs.Err_t = -defs.E2BIG
