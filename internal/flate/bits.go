package flate

// bitReader reads LSB-first bit fields from a byte slice.
type bitReader struct {
	src []byte
	pos int // next unread byte
	b   uint32
	n   uint // valid bits in b
}

func (r *bitReader) moreBits() error {
	if r.pos >= len(r.src) {
		return ErrCorrupt
	}
	r.b |= uint32(r.src[r.pos]) << r.n
	r.pos++
	r.n += 8
	return nil
}

func (r *bitReader) readBits(n uint) (uint32, error) {
	for r.n < n {
		if err := r.moreBits(); err != nil {
			return 0, err
		}
	}
	v := r.b & (1<<n - 1)
	r.b >>= n
	r.n -= n
	return v, nil
}

// alignByte discards bits up to the next byte boundary.
func (r *bitReader) alignByte() {
	r.b = 0
	r.n = 0
}

// bitWriter packs LSB-first bit fields into a growing byte slice.
type bitWriter struct {
	out []byte
	b   uint64
	n   uint
}

func (w *bitWriter) writeBits(v uint32, n uint) {
	w.b |= uint64(v) << w.n
	w.n += n
	for w.n >= 8 {
		w.out = append(w.out, byte(w.b))
		w.b >>= 8
		w.n -= 8
	}
}

// alignByte pads the current byte with zero bits.
func (w *bitWriter) alignByte() {
	if w.n > 0 {
		w.out = append(w.out, byte(w.b))
		w.b = 0
		w.n = 0
	}
}

// writeBytes appends raw bytes; the writer must be byte-aligned.
func (w *bitWriter) writeBytes(p []byte) {
	w.out = append(w.out, p...)
}
