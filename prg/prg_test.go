//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package prg

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/markkurossi/mascot/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDRBGDeterministic(t *testing.T) {
	d0 := NewDRBG([]byte("seed"))
	d1 := NewDRBG([]byte("seed"))
	d2 := NewDRBG([]byte("other seed"))

	a := d0.Bytes(1000)
	assert.Equal(t, a, d1.Bytes(1000))
	assert.NotEqual(t, a, d2.Bytes(1000))

	// Stream continues.
	assert.NotEqual(t, a[:100], d0.Bytes(100))
}

func TestFork(t *testing.T) {
	d0 := NewDRBG([]byte("seed"))
	d1 := NewDRBG([]byte("seed"))

	f0a := d0.Fork("peer")
	f0b := d0.Fork("peer")
	f1a := d1.Fork("peer")

	a := f0a.Bytes(64)
	assert.Equal(t, a, f1a.Bytes(64))
	assert.NotEqual(t, a, f0b.Bytes(64))

	// Forking does not consume the parent stream.
	assert.Equal(t, d0.Bytes(64), d1.Bytes(64))
	assert.NotEqual(t, a, NewDRBG([]byte("seed")).Fork("other").Bytes(64))
}

func TestBits(t *testing.T) {
	d := NewDRBG([]byte("bits"))
	bits := d.Bits(1000)
	require.Len(t, bits, 1000)

	var ones int
	for _, b := range bits {
		if b {
			ones++
		}
	}
	assert.Greater(t, ones, 400)
	assert.Less(t, ones, 600)
}

func TestExpand(t *testing.T) {
	p := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127),
		big.NewInt(1))
	f := field.MustNew(p)

	seed := bytes.Repeat([]byte{0x42}, 32)
	e0 := Expand(f, seed, 100)
	e1 := Expand(f, seed, 100)
	require.Len(t, e0, 100)
	for i := range e0 {
		assert.True(t, e0[i].Equal(e1[i]))
		assert.True(t, e0[i].Big().Cmp(p) < 0)
	}
	e2 := Expand(f, []byte("another seed"), 1)
	assert.False(t, e0[0].Equal(e2[0]))

	// Prefix property.
	e3 := Expand(f, seed, 10)
	for i := range e3 {
		assert.True(t, e0[i].Equal(e3[i]))
	}
}
