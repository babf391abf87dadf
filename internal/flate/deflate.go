package flate

import (
	"encoding/binary"
	"math/bits"
)

// Encode appends a complete raw DEFLATE stream for src to dst and returns
// the extended slice. Level 0 emits stored blocks only; levels 1-9 search
// the LZ77 window progressively deeper.
func Encode(dst, src []byte, level int) ([]byte, error) {
	if level < NoCompression || level > BestCompression {
		return nil, ErrInvalidLevel
	}
	w := bitWriter{out: dst}
	if level == NoCompression || len(src) == 0 {
		storeAll(&w, src)
		return w.out, nil
	}
	c := newCompressor(level)
	c.encode(&w, src)
	w.alignByte()
	return w.out, nil
}

// storeAll frames src into stored blocks, including the empty final block
// for zero-length input.
func storeAll(w *bitWriter, src []byte) {
	for first := true; first || len(src) > 0; first = false {
		n := len(src)
		if n > maxStoredLen {
			n = maxStoredLen
		}
		writeStoredBlock(w, src[:n], n == len(src))
		src = src[n:]
	}
}

func writeStoredBlock(w *bitWriter, block []byte, final bool) {
	var finalBit uint32
	if final {
		finalBit = 1
	}
	w.writeBits(finalBit, 1)
	w.writeBits(0, 2)
	w.alignByte()
	n := uint16(len(block))
	w.writeBytes([]byte{byte(n), byte(n >> 8), byte(^n), byte(^n >> 8)})
	w.writeBytes(block)
}

// token packs one literal or one back-reference.
type token uint32

const tokenMatch token = 1 << 31

func matchToken(length, dist int) token {
	return tokenMatch | token(length-minMatchLen)<<16 | token(dist)
}

func (t token) isMatch() bool { return t&tokenMatch != 0 }

func (t token) match() (length, dist int) {
	return int(t>>16&0xFF) + minMatchLen, int(t & 0xFFFF)
}

// levelParams tune the hash-chain search per compression level.
type levelParams struct {
	chain int // maximum chain positions examined per match attempt
	nice  int // stop searching once a match this long is found
}

var levels = [10]levelParams{
	{},           // 0: stored, handled separately
	{8, 16},      // 1
	{16, 32},     // 2
	{32, 64},     // 3
	{64, 96},     // 4
	{128, 128},   // 5
	{256, 160},   // 6
	{512, 192},   // 7
	{1024, 258},  // 8
	{4096, 258},  // 9
}

const (
	hashBits = 15
	hashSize = 1 << hashBits

	maxTokens = 1 << 14
)

type compressor struct {
	params levelParams
	src    []byte

	head [hashSize]int32
	prev [windowSize]int32

	tokens     []token
	blockStart int
}

func newCompressor(level int) *compressor {
	c := &compressor{
		params: levels[level],
		tokens: make([]token, 0, maxTokens),
	}
	for i := range c.head {
		c.head[i] = -1
	}
	return c
}

func hash4At(src []byte, pos int) uint32 {
	u := binary.LittleEndian.Uint32(src[pos:])
	return u * 2654435761 >> (32 - hashBits)
}

func (c *compressor) insert(pos int) {
	if pos+4 > len(c.src) {
		return
	}
	h := hash4At(c.src, pos)
	c.prev[pos&windowMask] = c.head[h]
	c.head[h] = int32(pos)
}

func (c *compressor) encode(w *bitWriter, src []byte) {
	c.src = src
	pos := 0
	for pos < len(src) {
		length, dist := 0, 0
		// findMatch hashes 4 bytes at pos; the unhashed short tail is
		// emitted as literals.
		if pos+4 <= len(src) {
			length, dist = c.findMatch(pos)
		}
		if length >= minMatchLen {
			c.tokens = append(c.tokens, matchToken(length, dist))
			for i := pos; i < pos+length; i++ {
				c.insert(i)
			}
			pos += length
		} else {
			c.tokens = append(c.tokens, token(src[pos]))
			c.insert(pos)
			pos++
		}
		if len(c.tokens) >= maxTokens || pos-c.blockStart >= maxBlockInput {
			c.flushBlock(w, pos, false)
		}
	}
	c.flushBlock(w, pos, true)
}

// findMatch walks the hash chain at pos looking for the longest previous
// occurrence within the window.
func (c *compressor) findMatch(pos int) (length, dist int) {
	src := c.src
	maxLen := len(src) - pos
	if maxLen > maxMatchLen {
		maxLen = maxMatchLen
	}

	nice := c.params.nice
	if nice > maxLen {
		nice = maxLen
	}
	limit := pos - windowSize

	best := minMatchLen - 1
	bestDist := 0
	chain := c.params.chain
	for cand := int(c.head[hash4At(src, pos)]); cand >= 0 && cand > limit && chain > 0; chain-- {
		if best >= maxLen {
			break
		}
		if src[cand+best] == src[pos+best] {
			n := matchLen(src[cand:], src[pos:], maxLen)
			if n > best {
				best, bestDist = n, pos-cand
				if n >= nice {
					break
				}
			}
		}
		next := int(c.prev[cand&windowMask])
		if next >= cand {
			break
		}
		cand = next
	}
	if best >= minMatchLen {
		return best, bestDist
	}
	return 0, 0
}

func matchLen(a, b []byte, max int) int {
	n := 0
	for n < max && a[n] == b[n] {
		n++
	}
	return n
}

// flushBlock frames the pending tokens into whichever of stored, fixed or
// dynamic Huffman encoding costs the fewest bits.
func (c *compressor) flushBlock(w *bitWriter, pos int, final bool) {
	input := c.src[c.blockStart:pos]
	c.blockStart = pos

	if len(c.tokens) == 0 {
		if final {
			writeStoredBlock(w, nil, true)
		}
		return
	}

	var litFreq [maxNumLit]int
	var distFreq [maxNumDist]int
	extraBits := 0
	for _, t := range c.tokens {
		if !t.isMatch() {
			litFreq[t&0xFF]++
			continue
		}
		length, dist := t.match()
		lc := lengthCodeTable[length-minMatchLen]
		litFreq[257+int(lc)]++
		extraBits += int(lengthExtra[lc])
		dc := distanceCode(dist)
		distFreq[dc]++
		extraBits += int(distExtra[dc])
	}
	litFreq[endBlockSym]++

	// Fixed-table cost.
	fixedLitLen := fixedLitLengths()
	fixedBits := 3 + extraBits
	for s, f := range litFreq {
		fixedBits += f * int(fixedLitLen[s])
	}
	for _, f := range distFreq {
		fixedBits += f * 5
	}

	// Dynamic-table cost.
	litLens := buildCodeLengths(litFreq[:], maxCodeBits)
	distLens := buildCodeLengths(distFreq[:], maxCodeBits)
	numLit := 257
	for i := maxNumLit - 1; i >= 257; i-- {
		if litLens[i] != 0 {
			numLit = i + 1
			break
		}
	}
	numDist := 1
	for i := maxNumDist - 1; i >= 1; i-- {
		if distLens[i] != 0 {
			numDist = i + 1
			break
		}
	}
	allLens := make([]uint8, 0, numLit+numDist)
	allLens = append(allLens, litLens[:numLit]...)
	allLens = append(allLens, distLens[:numDist]...)
	clTokens := rleCodeLengths(allLens)

	var clFreq [numClCodes]int
	for _, t := range clTokens {
		clFreq[t.sym]++
	}
	clLens := buildCodeLengths(clFreq[:], maxClBits)
	hclen := numClCodes
	for hclen > 4 && clLens[codeOrder[hclen-1]] == 0 {
		hclen--
	}

	dynBits := 3 + 14 + 3*hclen + extraBits
	for _, t := range clTokens {
		dynBits += int(clLens[t.sym]) + int(t.ebits)
	}
	for s, f := range litFreq {
		dynBits += f * int(litLens[s])
	}
	for s, f := range distFreq {
		dynBits += f * int(distLens[s])
	}

	// Stored cost, with worst-case byte alignment.
	storedBits := 3 + 7 + (4+len(input))*8

	var finalBit uint32
	if final {
		finalBit = 1
	}
	switch {
	case storedBits <= fixedBits && storedBits <= dynBits:
		writeStoredBlock(w, input, final)
	case fixedBits <= dynBits:
		w.writeBits(finalBit, 1)
		w.writeBits(1, 2)
		c.emitTokens(w, canonicalCodes(fixedLitLen), fixedLitLen, canonicalCodes(fixedDistLengths()), fixedDistLengths())
	default:
		w.writeBits(finalBit, 1)
		w.writeBits(2, 2)
		w.writeBits(uint32(numLit-257), 5)
		w.writeBits(uint32(numDist-1), 5)
		w.writeBits(uint32(hclen-4), 4)
		for i := 0; i < hclen; i++ {
			w.writeBits(uint32(clLens[codeOrder[i]]), 3)
		}
		clCodes := canonicalCodes(clLens)
		for _, t := range clTokens {
			w.writeBits(uint32(clCodes[t.sym]), uint(clLens[t.sym]))
			if t.ebits > 0 {
				w.writeBits(uint32(t.extra), uint(t.ebits))
			}
		}
		c.emitTokens(w, canonicalCodes(litLens), litLens, canonicalCodes(distLens), distLens)
	}

	c.tokens = c.tokens[:0]
}

func (c *compressor) emitTokens(w *bitWriter, litCodes []uint16, litLens []uint8, distCodes []uint16, distLens []uint8) {
	for _, t := range c.tokens {
		if !t.isMatch() {
			v := t & 0xFF
			w.writeBits(uint32(litCodes[v]), uint(litLens[v]))
			continue
		}
		length, dist := t.match()
		lc := int(lengthCodeTable[length-minMatchLen])
		sym := 257 + lc
		w.writeBits(uint32(litCodes[sym]), uint(litLens[sym]))
		if lengthExtra[lc] > 0 {
			w.writeBits(uint32(length-lengthBase[lc]), lengthExtra[lc])
		}
		dc := distanceCode(dist)
		w.writeBits(uint32(distCodes[dc]), uint(distLens[dc]))
		if distExtra[dc] > 0 {
			w.writeBits(uint32(dist-distBase[dc]), distExtra[dc])
		}
	}
	w.writeBits(uint32(litCodes[endBlockSym]), uint(litLens[endBlockSym]))
}

// distanceCode maps a distance 1-32768 to its code 0-29.
func distanceCode(d int) int {
	d--
	if d < 4 {
		return d
	}
	nb := bits.Len32(uint32(d)) - 2
	return nb<<1 + (d>>uint(nb))&1 + 2
}

// clToken is one symbol of the run-length-encoded code length sequence.
type clToken struct {
	sym   uint8
	extra uint8
	ebits uint8
}

// rleCodeLengths compresses a code length sequence with the 16/17/18
// repeat codes of the dynamic block header.
func rleCodeLengths(lengths []uint8) []clToken {
	out := make([]clToken, 0, len(lengths))
	for i := 0; i < len(lengths); {
		v := lengths[i]
		j := i + 1
		for j < len(lengths) && lengths[j] == v {
			j++
		}
		run := j - i
		if v == 0 {
			for run >= 11 {
				n := run
				if n > 138 {
					n = 138
				}
				out = append(out, clToken{sym: 18, extra: uint8(n - 11), ebits: 7})
				run -= n
			}
			if run >= 3 {
				out = append(out, clToken{sym: 17, extra: uint8(run - 3), ebits: 3})
				run = 0
			}
			for ; run > 0; run-- {
				out = append(out, clToken{sym: 0})
			}
		} else {
			out = append(out, clToken{sym: v})
			run--
			for run >= 3 {
				n := run
				if n > 6 {
					n = 6
				}
				out = append(out, clToken{sym: 16, extra: uint8(n - 3), ebits: 2})
				run -= n
			}
			for ; run > 0; run-- {
				out = append(out, clToken{sym: v})
			}
		}
		i = j
	}
	return out
}
