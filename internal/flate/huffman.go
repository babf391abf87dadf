package flate

import (
	"math/bits"
	"sort"
)

// Decoder-side tables.
//
// hdecoder is a two-level lookup table for canonical Huffman codes: a
// direct chunk table for codes up to huffmanChunkBits bits and linked
// overflow tables for longer codes. Each chunk packs the symbol value and
// the code width.
const (
	huffmanChunkBits  = 9
	huffmanNumChunks  = 1 << huffmanChunkBits
	huffmanCountMask  = 15
	huffmanValueShift = 4
)

type hdecoder struct {
	min      int
	chunks   [huffmanNumChunks]uint32
	links    [][]uint32
	linkMask uint32
}

// init builds the decoding tables for the given code lengths. It returns
// false when the lengths do not describe a valid prefix code (incomplete
// codes are accepted only in the degenerate empty and single-code forms).
func (h *hdecoder) init(lengths []int) bool {
	if h.min != 0 {
		*h = hdecoder{}
	}

	var count [maxCodeLen]int
	var min, max int
	for _, n := range lengths {
		if n == 0 {
			continue
		}
		if min == 0 || n < min {
			min = n
		}
		if n > max {
			max = n
		}
		count[n]++
	}
	if max == 0 {
		return true
	}

	code := 0
	var nextcode [maxCodeLen]int
	for i := min; i <= max; i++ {
		code <<= 1
		nextcode[i] = code
		code += count[i]
	}
	if code != 1<<uint(max) && !(code == 1 && max == 1) {
		return false
	}

	h.min = min
	if max > huffmanChunkBits {
		numLinks := 1 << (uint(max) - huffmanChunkBits)
		h.linkMask = uint32(numLinks - 1)

		link := nextcode[huffmanChunkBits+1] >> 1
		h.links = make([][]uint32, huffmanNumChunks-link)
		for j := uint(link); j < huffmanNumChunks; j++ {
			reverse := int(bits.Reverse16(uint16(j)))
			reverse >>= uint(16 - huffmanChunkBits)
			off := j - uint(link)
			h.chunks[reverse] = uint32(off<<huffmanValueShift | (huffmanChunkBits + 1))
			h.links[off] = make([]uint32, numLinks)
		}
	}

	for i, n := range lengths {
		if n == 0 {
			continue
		}
		code := nextcode[n]
		nextcode[n]++
		chunk := uint32(i<<huffmanValueShift | n)
		reverse := int(bits.Reverse16(uint16(code)))
		reverse >>= uint(16 - n)
		if n <= huffmanChunkBits {
			for off := reverse; off < len(h.chunks); off += 1 << uint(n) {
				h.chunks[off] = chunk
			}
		} else {
			j := reverse & (huffmanNumChunks - 1)
			value := h.chunks[j] >> huffmanValueShift
			linktab := h.links[value]
			reverse >>= huffmanChunkBits
			for off := reverse; off < len(linktab); off += 1 << uint(n-huffmanChunkBits) {
				linktab[off] = chunk
			}
		}
	}

	return true
}

// Encoder-side construction.

// buildCodeLengths assigns length-limited canonical code lengths for the
// given symbol frequencies. Construction follows the classic two-phase
// approach: minimum-redundancy lengths from the sorted frequencies, then a
// Kraft-sum repair pass that demotes over-long codes to maxBits.
func buildCodeLengths(freq []int, maxBits int) []uint8 {
	lengths := make([]uint8, len(freq))

	type symFreq struct {
		sym  int
		freq int
	}
	syms := make([]symFreq, 0, len(freq))
	for s, f := range freq {
		if f > 0 {
			syms = append(syms, symFreq{s, f})
		}
	}
	switch len(syms) {
	case 0:
		return lengths
	case 1:
		lengths[syms[0].sym] = 1
		return lengths
	}

	sort.Slice(syms, func(i, j int) bool {
		if syms[i].freq != syms[j].freq {
			return syms[i].freq < syms[j].freq
		}
		return syms[i].sym < syms[j].sym
	})

	// In-place minimum-redundancy calculation (Moffat-Katajainen) over the
	// ascending frequencies; afterwards a[i] holds the code depth.
	a := make([]int, len(syms))
	for i, s := range syms {
		a[i] = s.freq
	}
	minimumRedundancy(a)

	// Count codes per depth, clamping to maxBits, then repair the Kraft sum.
	numCodes := make([]int, maxBits+1)
	for _, depth := range a {
		if depth > maxBits {
			depth = maxBits
		}
		numCodes[depth]++
	}
	total := 0
	for i := maxBits; i > 0; i-- {
		total += numCodes[i] << uint(maxBits-i)
	}
	for total > 1<<uint(maxBits) {
		numCodes[maxBits]--
		for i := maxBits - 1; i > 0; i-- {
			if numCodes[i] > 0 {
				numCodes[i]--
				numCodes[i+1] += 2
				break
			}
		}
		total--
	}

	// Hand the longest codes to the rarest symbols; syms is sorted by
	// ascending frequency.
	j := 0
	for depth := maxBits; depth >= 1; depth-- {
		for n := numCodes[depth]; n > 0; n-- {
			lengths[syms[j].sym] = uint8(depth)
			j++
		}
	}
	return lengths
}

// minimumRedundancy computes Huffman code depths in place. a must be sorted
// ascending and hold at least two entries.
func minimumRedundancy(a []int) {
	n := len(a)

	// Phase 1: build internal node weights, storing parent indices.
	a[0] += a[1]
	root, leaf := 0, 2
	for next := 1; next < n-1; next++ {
		if leaf >= n || a[root] < a[leaf] {
			a[next] = a[root]
			a[root] = next
			root++
		} else {
			a[next] = a[leaf]
			leaf++
		}
		if leaf >= n || (root < next && a[root] < a[leaf]) {
			a[next] += a[root]
			a[root] = next
			root++
		} else {
			a[next] += a[leaf]
			leaf++
		}
	}

	// Phase 2: convert parent pointers to internal node depths.
	a[n-2] = 0
	for next := n - 3; next >= 0; next-- {
		a[next] = a[a[next]] + 1
	}

	// Phase 3: assign leaf depths from internal depths.
	avail, used, depth := 1, 0, 0
	next, rootIdx := n-1, n-2
	for avail > 0 {
		for rootIdx >= 0 && a[rootIdx] == depth {
			used++
			rootIdx--
		}
		for avail > used {
			a[next] = depth
			next--
			avail--
		}
		avail = 2 * used
		depth++
		used = 0
	}
}

// canonicalCodes derives the canonical codes for the given lengths, stored
// bit-reversed so they can be emitted with the LSB-first bit writer.
func canonicalCodes(lengths []uint8) []uint16 {
	var count [maxCodeLen]int
	var min, max int
	for _, n := range lengths {
		if n == 0 {
			continue
		}
		if min == 0 || int(n) < min {
			min = int(n)
		}
		if int(n) > max {
			max = int(n)
		}
		count[n]++
	}

	code := 0
	var nextcode [maxCodeLen]int
	for i := min; i <= max; i++ {
		code <<= 1
		nextcode[i] = code
		code += count[i]
	}

	codes := make([]uint16, len(lengths))
	for s, n := range lengths {
		if n == 0 {
			continue
		}
		c := nextcode[n]
		nextcode[n]++
		codes[s] = bits.Reverse16(uint16(c)) >> (16 - n)
	}
	return codes
}

// fixedLitLengths returns the code lengths of the fixed literal/length
// alphabet (RFC 1951 §3.2.6).
func fixedLitLengths() []uint8 {
	lengths := make([]uint8, 288)
	for i := 0; i < 144; i++ {
		lengths[i] = 8
	}
	for i := 144; i < 256; i++ {
		lengths[i] = 9
	}
	for i := 256; i < 280; i++ {
		lengths[i] = 7
	}
	for i := 280; i < 288; i++ {
		lengths[i] = 8
	}
	return lengths
}

// fixedDistLengths returns the code lengths of the fixed distance alphabet.
func fixedDistLengths() []uint8 {
	lengths := make([]uint8, maxNumDist)
	for i := range lengths {
		lengths[i] = 5
	}
	return lengths
}
