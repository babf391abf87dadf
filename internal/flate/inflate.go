package flate

import (
	"math/bits"
	"sync"
)

// Decode inflates the DEFLATE stream src into dst, which must provide
// enough capacity for the complete output. The filled slice is returned.
//
// Decode fails with ErrCorrupt when src is not a valid stream or a
// back-reference points before the start of emitted output, and with
// ErrBufTooSmall when output would exceed cap(dst).
func Decode(dst, src []byte) ([]byte, error) {
	d := decoder{
		r:   bitReader{src: src},
		out: dst[:0],
	}
	if err := d.decode(); err != nil {
		return nil, err
	}
	return d.out, nil
}

type decoder struct {
	r   bitReader
	out []byte

	h1, h2   hdecoder
	lens     [maxNumLit + maxNumDist]int
	codeLens [numClCodes]int
}

func (d *decoder) decode() error {
	for {
		hdr, err := d.r.readBits(3)
		if err != nil {
			return err
		}
		final := hdr&1 == 1
		switch hdr >> 1 {
		case 0:
			err = d.storedBlock()
		case 1:
			err = d.huffmanBlock(fixedLitDecoder(), nil)
		case 2:
			if err = d.readDynamicHeader(); err != nil {
				break
			}
			err = d.huffmanBlock(&d.h1, &d.h2)
		default:
			err = ErrCorrupt
		}
		if err != nil {
			return err
		}
		if final {
			return nil
		}
	}
}

// storedBlock copies a raw block after validating the ones-complement
// length pair.
func (d *decoder) storedBlock() error {
	d.r.alignByte()
	if d.r.pos+4 > len(d.r.src) {
		return ErrCorrupt
	}
	n := int(d.r.src[d.r.pos]) | int(d.r.src[d.r.pos+1])<<8
	nn := int(d.r.src[d.r.pos+2]) | int(d.r.src[d.r.pos+3])<<8
	d.r.pos += 4
	if uint16(nn) != ^uint16(n) {
		return ErrCorrupt
	}
	if d.r.pos+n > len(d.r.src) {
		return ErrCorrupt
	}
	if len(d.out)+n > cap(d.out) {
		return ErrBufTooSmall
	}
	d.out = append(d.out, d.r.src[d.r.pos:d.r.pos+n]...)
	d.r.pos += n
	return nil
}

// readDynamicHeader parses the code-length-code table and rebuilds the
// literal/length and distance decoders for a dynamic block.
func (d *decoder) readDynamicHeader() error {
	v, err := d.r.readBits(5 + 5 + 4)
	if err != nil {
		return err
	}
	nlit := int(v&0x1F) + 257
	ndist := int(v>>5&0x1F) + 1
	nclen := int(v>>10&0xF) + 4
	if nlit > maxNumLit || ndist > maxNumDist {
		return ErrCorrupt
	}

	for i := 0; i < nclen; i++ {
		b, err := d.r.readBits(3)
		if err != nil {
			return err
		}
		d.codeLens[codeOrder[i]] = int(b)
	}
	for i := nclen; i < numClCodes; i++ {
		d.codeLens[codeOrder[i]] = 0
	}
	if !d.h1.init(d.codeLens[:]) {
		return ErrCorrupt
	}

	for i, n := 0, nlit+ndist; i < n; {
		x, err := d.huffSym(&d.h1)
		if err != nil {
			return err
		}
		if x < 16 {
			d.lens[i] = x
			i++
			continue
		}
		var rep int
		var nb uint
		var b int
		switch x {
		case 16:
			if i == 0 {
				return ErrCorrupt
			}
			rep, nb, b = 3, 2, d.lens[i-1]
		case 17:
			rep, nb, b = 3, 3, 0
		case 18:
			rep, nb, b = 11, 7, 0
		default:
			return ErrCorrupt
		}
		extra, err := d.r.readBits(nb)
		if err != nil {
			return err
		}
		rep += int(extra)
		if i+rep > n {
			return ErrCorrupt
		}
		for j := 0; j < rep; j++ {
			d.lens[i] = b
			i++
		}
	}

	if !d.h1.init(d.lens[:nlit]) || !d.h2.init(d.lens[nlit:nlit+ndist]) {
		return ErrCorrupt
	}
	return nil
}

// huffmanBlock decodes literals and back-references until the end-of-block
// symbol. hd is nil for fixed blocks, which use 5-bit distance codes.
func (d *decoder) huffmanBlock(hl, hd *hdecoder) error {
	for {
		v, err := d.huffSym(hl)
		if err != nil {
			return err
		}
		if v < endBlockSym {
			if len(d.out) >= cap(d.out) {
				return ErrBufTooSmall
			}
			d.out = append(d.out, byte(v))
			continue
		}
		if v == endBlockSym {
			return nil
		}

		// Length code 257-285.
		var length int
		var nb uint
		switch {
		case v < 265:
			length = v - (257 - 3)
			nb = 0
		case v < 269:
			length = v*2 - (265*2 - 11)
			nb = 1
		case v < 273:
			length = v*4 - (269*4 - 19)
			nb = 2
		case v < 277:
			length = v*8 - (273*8 - 35)
			nb = 3
		case v < 281:
			length = v*16 - (277*16 - 67)
			nb = 4
		case v < 285:
			length = v*32 - (281*32 - 131)
			nb = 5
		case v < maxNumLit:
			length = maxMatchLen
			nb = 0
		default:
			return ErrCorrupt
		}
		if nb > 0 {
			extra, err := d.r.readBits(nb)
			if err != nil {
				return err
			}
			length += int(extra)
		}

		var dist int
		if hd == nil {
			b, err := d.r.readBits(5)
			if err != nil {
				return err
			}
			dist = int(bits.Reverse8(uint8(b << 3)))
		} else {
			if dist, err = d.huffSym(hd); err != nil {
				return err
			}
		}

		switch {
		case dist < 4:
			dist++
		case dist < maxNumDist:
			nb := uint(dist-2) >> 1
			extra := (dist & 1) << nb
			eb, err := d.r.readBits(nb)
			if err != nil {
				return err
			}
			extra |= int(eb)
			dist = 1<<(nb+1) + 1 + extra
		default:
			return ErrCorrupt
		}

		if dist > len(d.out) {
			return ErrCorrupt
		}
		if len(d.out)+length > cap(d.out) {
			return ErrBufTooSmall
		}
		from := len(d.out) - dist
		for i := 0; i < length; i++ {
			d.out = append(d.out, d.out[from+i])
		}
	}
}

// huffSym decodes one symbol using the two-level lookup table.
func (d *decoder) huffSym(h *hdecoder) (int, error) {
	n := uint(h.min)
	for {
		for d.r.n < n {
			if err := d.r.moreBits(); err != nil {
				return 0, err
			}
		}
		chunk := h.chunks[d.r.b&(huffmanNumChunks-1)]
		n = uint(chunk & huffmanCountMask)
		if n > huffmanChunkBits {
			chunk = h.links[chunk>>huffmanValueShift][(d.r.b>>huffmanChunkBits)&h.linkMask]
			n = uint(chunk & huffmanCountMask)
		}
		if n <= d.r.n {
			if n == 0 {
				return 0, ErrCorrupt
			}
			d.r.b >>= n
			d.r.n -= n
			return int(chunk >> huffmanValueShift), nil
		}
	}
}

var (
	fixedLitOnce sync.Once
	fixedLit     hdecoder
)

// fixedLitDecoder builds the decoder for the fixed literal/length alphabet
// once; the table is immutable afterwards.
func fixedLitDecoder() *hdecoder {
	fixedLitOnce.Do(func() {
		lengths := fixedLitLengths()
		ints := make([]int, len(lengths))
		for i, n := range lengths {
			ints[i] = int(n)
		}
		fixedLit.init(ints)
	})
	return &fixedLit
}
