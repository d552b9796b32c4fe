//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package otext

import (
	"encoding/binary"
)

// block implements a 128-bit value, used as a GF(2^128) element in
// the consistency check.
type block struct {
	D0 uint64
	D1 uint64
}

func (b *block) xor(o block) {
	b.D0 ^= o.D0
	b.D1 ^= o.D1
}

func (b *block) setBit(i int) {
	if i < 64 {
		b.D0 |= 1 << i
	} else {
		b.D1 |= 1 << (i - 64)
	}
}

func (b block) bit(i int) uint {
	if i < 64 {
		return uint(b.D0>>i) & 1
	}
	return uint(b.D1>>(i-64)) & 1
}

func (b block) bytes(buf []byte) []byte {
	buf = binary.BigEndian.AppendUint64(buf, b.D0)
	return binary.BigEndian.AppendUint64(buf, b.D1)
}

func blockFromBytes(data []byte) block {
	return block{
		D0: binary.BigEndian.Uint64(data[0:8]),
		D1: binary.BigEndian.Uint64(data[8:16]),
	}
}

// mul128 computes the carry-less product of a and b. It returns the
// 256-bit result as two 128-bit blocks.
func mul128(a, b block) (lo, hi block) {
	a0, a1 := a.D0, a.D1
	b0, b1 := b.D0, b.D1

	p00lo, p00hi := clmul64(a0, b0)
	p01lo, p01hi := clmul64(a0, b1)
	p10lo, p10hi := clmul64(a1, b0)
	p11lo, p11hi := clmul64(a1, b1)

	midLo := p01lo ^ p10lo
	midHi := p01hi ^ p10hi

	lo.D0 = p00lo
	lo.D1 = p00hi ^ midLo

	hi.D0 = midHi ^ p11lo
	hi.D1 = p11hi

	return
}

func clmul64(a, b uint64) (lo, hi uint64) {
	for i := 0; i < 64; i++ {
		if (b>>i)&1 != 0 {
			if i == 0 {
				lo ^= a
			} else {
				lo ^= a << i
				hi ^= a >> (64 - i)
			}
		}
	}
	return
}
