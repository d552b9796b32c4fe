//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package prg implements the deterministic random bit generators and
// the seed expanders of the preprocessing engine. All generators are
// ChaCha20 key streams keyed with blake3 derived keys.
package prg

import (
	"encoding/binary"
	"io"

	"github.com/markkurossi/mascot/field"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20"
)

// Key derivation contexts.
const (
	ctxSeed   = "mascot 2025 drbg seed"
	ctxFork   = "mascot 2025 drbg fork"
	ctxExpand = "mascot 2025 prg expand"
)

// SeedLen is the DRBG seed length in bytes.
const SeedLen = 32

// DRBG implements a deterministic random bit generator. A DRBG is
// owned by one goroutine; use Fork to derive independent generators
// for concurrent tasks.
type DRBG struct {
	key    [32]byte
	cipher *chacha20.Cipher
	forks  uint64
}

// NewDRBG creates a new DRBG from the seed.
func NewDRBG(seed []byte) *DRBG {
	var key [32]byte
	blake3.DeriveKey(ctxSeed, seed, key[:])
	return newDRBG(key)
}

// NewDRBGFromReader creates a new DRBG seeded with SeedLen bytes read
// from r.
func NewDRBGFromReader(r io.Reader) (*DRBG, error) {
	var seed [SeedLen]byte
	if _, err := io.ReadFull(r, seed[:]); err != nil {
		return nil, err
	}
	return NewDRBG(seed[:]), nil
}

func newDRBG(key [32]byte) *DRBG {
	return &DRBG{
		key:    key,
		cipher: newCipher(key[:]),
	}
}

func newCipher(key []byte) *chacha20.Cipher {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce[:])
	if err != nil {
		panic(err)
	}
	return c
}

// Read implements io.Reader. It never fails.
func (d *DRBG) Read(p []byte) (int, error) {
	clear(p)
	d.cipher.XORKeyStream(p, p)
	return len(p), nil
}

// Fork derives a new independent DRBG. The derived generator depends
// on this generator's seed, the label, and the number of earlier
// forks.
func (d *DRBG) Fork(label string) *DRBG {
	material := make([]byte, 0, len(d.key)+8+len(label))
	material = append(material, d.key[:]...)
	material = binary.BigEndian.AppendUint64(material, d.forks)
	material = append(material, label...)
	d.forks++

	var key [32]byte
	blake3.DeriveKey(ctxFork, material, key[:])
	return newDRBG(key)
}

// Bytes returns n random bytes.
func (d *DRBG) Bytes(n int) []byte {
	result := make([]byte, n)
	d.Read(result)
	return result
}

// Bits returns n random bits.
func (d *DRBG) Bits(n int) []bool {
	buf := d.Bytes((n + 7) / 8)
	result := make([]bool, n)
	for i := range result {
		result[i] = (buf[i/8]>>(i%8))&1 == 1
	}
	return result
}

// Uint64 returns a random uint64 value.
func (d *DRBG) Uint64() uint64 {
	var buf [8]byte
	d.Read(buf[:])
	return binary.BigEndian.Uint64(buf[:])
}

// Element returns a uniformly random field element.
func (d *DRBG) Element(f field.Field) field.Element {
	e, err := f.Random(d)
	if err != nil {
		panic(err)
	}
	return e
}

// Elements returns n uniformly random field elements.
func (d *DRBG) Elements(f field.Field, n int) []field.Element {
	result := make([]field.Element, n)
	for i := range result {
		result[i] = d.Element(f)
	}
	return result
}

// Expander expands a seed into a stream of uniformly random field
// elements.
type Expander struct {
	f      field.Field
	cipher *chacha20.Cipher
}

// NewExpander creates an expander for the seed.
func NewExpander(f field.Field, seed []byte) *Expander {
	var key [32]byte
	blake3.DeriveKey(ctxExpand, seed, key[:])
	return &Expander{
		f:      f,
		cipher: newCipher(key[:]),
	}
}

// Read implements io.Reader.
func (e *Expander) Read(p []byte) (int, error) {
	clear(p)
	e.cipher.XORKeyStream(p, p)
	return len(p), nil
}

// Next returns the next field element from the stream.
func (e *Expander) Next() field.Element {
	v, err := e.f.Random(e)
	if err != nil {
		panic(err)
	}
	return v
}

// Expand expands the seed into n field elements.
func Expand(f field.Field, seed []byte, n int) []field.Element {
	e := NewExpander(f, seed)
	result := make([]field.Element, n)
	for i := range result {
		result[i] = e.Next()
	}
	return result
}
