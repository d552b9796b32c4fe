//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package ot

import (
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"math/big"

	"github.com/gtank/ristretto255"
	"github.com/markkurossi/mascot/mpcerr"
)

// Group defines the prime order group operations for the base OT.
// Group elements and scalars are handled in their wire encodings.
// Operations on malformed encodings return protocol errors.
type Group interface {
	// Name returns the group name.
	Name() string

	// ElementLen returns the length of the encoded group elements.
	ElementLen() int

	// RandomScalar returns a random non-zero scalar.
	RandomScalar(r io.Reader) ([]byte, error)

	// BaseMul returns g^k.
	BaseMul(k []byte) []byte

	// Mul returns p^k.
	Mul(p, k []byte) ([]byte, error)

	// Add returns p·q.
	Add(p, q []byte) ([]byte, error)

	// Sub returns p·q^-1.
	Sub(p, q []byte) ([]byte, error)
}

// GroupFor returns the group providing the computational security
// level.
func GroupFor(bits int) (Group, error) {
	switch bits {
	case 128:
		return P256(), nil
	case 192:
		return P384(), nil
	case 256:
		return P521(), nil
	default:
		return nil, mpcerr.Usagef("unsupported computational security: %d",
			bits)
	}
}

// GroupByName returns the group by its name.
func GroupByName(name string) (Group, error) {
	for _, g := range []Group{P256(), P384(), P521(), Ristretto255()} {
		if g.Name() == name {
			return g, nil
		}
	}
	return nil, mpcerr.Usagef("unknown group: %s", name)
}

// NIST implements the Group interface with NIST elliptic curves.
type NIST struct {
	curve elliptic.Curve
}

// P256 returns the NIST P-256 group.
func P256() *NIST {
	return &NIST{
		curve: elliptic.P256(),
	}
}

// P384 returns the NIST P-384 group.
func P384() *NIST {
	return &NIST{
		curve: elliptic.P384(),
	}
}

// P521 returns the NIST P-521 group.
func P521() *NIST {
	return &NIST{
		curve: elliptic.P521(),
	}
}

// Name implements Group.Name.
func (g *NIST) Name() string {
	return g.curve.Params().Name
}

// ElementLen implements Group.ElementLen.
func (g *NIST) ElementLen() int {
	return 1 + 2*((g.curve.Params().BitSize+7)/8)
}

// RandomScalar implements Group.RandomScalar.
func (g *NIST) RandomScalar(r io.Reader) ([]byte, error) {
	n := g.curve.Params().N
	for {
		k, err := rand.Int(r, n)
		if err != nil {
			return nil, err
		}
		if k.Sign() != 0 {
			return k.Bytes(), nil
		}
	}
}

// BaseMul implements Group.BaseMul.
func (g *NIST) BaseMul(k []byte) []byte {
	x, y := g.curve.ScalarBaseMult(k)
	return elliptic.Marshal(g.curve, x, y)
}

func (g *NIST) decode(p []byte) (x, y *big.Int, err error) {
	if len(p) != g.ElementLen() {
		return nil, nil, mpcerr.Protocolf("%s: invalid point length %d",
			g.Name(), len(p))
	}
	x, y = elliptic.Unmarshal(g.curve, p)
	if x == nil {
		return nil, nil, mpcerr.Protocolf("%s: point not on curve", g.Name())
	}
	return x, y, nil
}

// Mul implements Group.Mul.
func (g *NIST) Mul(p, k []byte) ([]byte, error) {
	x, y, err := g.decode(p)
	if err != nil {
		return nil, err
	}
	x, y = g.curve.ScalarMult(x, y, k)
	return elliptic.Marshal(g.curve, x, y), nil
}

// Add implements Group.Add.
func (g *NIST) Add(p, q []byte) ([]byte, error) {
	px, py, err := g.decode(p)
	if err != nil {
		return nil, err
	}
	qx, qy, err := g.decode(q)
	if err != nil {
		return nil, err
	}
	x, y := g.curve.Add(px, py, qx, qy)
	return elliptic.Marshal(g.curve, x, y), nil
}

// Sub implements Group.Sub.
func (g *NIST) Sub(p, q []byte) ([]byte, error) {
	px, py, err := g.decode(p)
	if err != nil {
		return nil, err
	}
	qx, qy, err := g.decode(q)
	if err != nil {
		return nil, err
	}
	// q^-1 = {x,-y}
	qy.Sub(g.curve.Params().P, qy)
	x, y := g.curve.Add(px, py, qx, qy)
	return elliptic.Marshal(g.curve, x, y), nil
}

// R255 implements the Group interface with the ristretto255 prime
// order group.
type R255 struct{}

// Ristretto255 returns the ristretto255 group.
func Ristretto255() *R255 {
	return &R255{}
}

// Name implements Group.Name.
func (g *R255) Name() string {
	return "ristretto255"
}

// ElementLen implements Group.ElementLen.
func (g *R255) ElementLen() int {
	return 32
}

// RandomScalar implements Group.RandomScalar.
func (g *R255) RandomScalar(r io.Reader) ([]byte, error) {
	var buf [64]byte
	zero := ristretto255.NewScalar()
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		s := ristretto255.NewScalar().FromUniformBytes(buf[:])
		if s.Equal(zero) == 0 {
			return s.Encode(nil), nil
		}
	}
}

func (g *R255) element(p []byte) (*ristretto255.Element, error) {
	e := ristretto255.NewElement()
	if err := e.Decode(p); err != nil {
		return nil, mpcerr.Protocolf("ristretto255: %v", err)
	}
	return e, nil
}

func (g *R255) scalar(k []byte) *ristretto255.Scalar {
	s := ristretto255.NewScalar()
	if err := s.Decode(k); err != nil {
		panic(err)
	}
	return s
}

// BaseMul implements Group.BaseMul.
func (g *R255) BaseMul(k []byte) []byte {
	return ristretto255.NewElement().ScalarBaseMult(g.scalar(k)).Encode(nil)
}

// Mul implements Group.Mul.
func (g *R255) Mul(p, k []byte) ([]byte, error) {
	e, err := g.element(p)
	if err != nil {
		return nil, err
	}
	return e.ScalarMult(g.scalar(k), e).Encode(nil), nil
}

// Add implements Group.Add.
func (g *R255) Add(p, q []byte) ([]byte, error) {
	pe, err := g.element(p)
	if err != nil {
		return nil, err
	}
	qe, err := g.element(q)
	if err != nil {
		return nil, err
	}
	return pe.Add(pe, qe).Encode(nil), nil
}

// Sub implements Group.Sub.
func (g *R255) Sub(p, q []byte) ([]byte, error) {
	pe, err := g.element(p)
	if err != nil {
		return nil, err
	}
	qe, err := g.element(q)
	if err != nil {
		return nil, err
	}
	return pe.Subtract(pe, qe).Encode(nil), nil
}
