//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package spdz implements authenticated additive secret sharing. Each
// party holds a share of a value and a share of the value's MAC
// value·α, where α is the global MAC key. The MAC key is additively
// shared between the parties and never opened.
package spdz

import (
	"github.com/markkurossi/mascot/field"
)

// Element is a party's authenticated share of a secret value.
type Element struct {
	Share field.Element
	Mac   field.Element
}

func (e Element) String() string {
	return e.Share.String() + "/" + e.Mac.String()
}

// Add returns e+o.
func (e Element) Add(f field.Field, o Element) Element {
	return Element{
		Share: f.Add(e.Share, o.Share),
		Mac:   f.Add(e.Mac, o.Mac),
	}
}

// Sub returns e-o.
func (e Element) Sub(f field.Field, o Element) Element {
	return Element{
		Share: f.Sub(e.Share, o.Share),
		Mac:   f.Sub(e.Mac, o.Mac),
	}
}

// Neg returns -e.
func (e Element) Neg(f field.Field) Element {
	return Element{
		Share: f.Neg(e.Share),
		Mac:   f.Neg(e.Mac),
	}
}

// MulConst returns c·e for the public constant c.
func (e Element) MulConst(f field.Field, c field.Element) Element {
	return Element{
		Share: f.Mul(e.Share, c),
		Mac:   f.Mul(e.Mac, c),
	}
}

// AddConst returns e+c for the public constant c. Party 0 adds the
// constant to its share and every party adds its share of c·α to its
// MAC share.
func (e Element) AddConst(f field.Field, c field.Element, partyID int,
	keyShare field.Element) Element {

	share := e.Share
	if partyID == 0 {
		share = f.Add(share, c)
	}
	return Element{
		Share: share,
		Mac:   f.Add(e.Mac, f.Mul(c, keyShare)),
	}
}

// Triple is a party's share of an authenticated multiplication triple
// (a, b, c) with c = a·b.
type Triple struct {
	A Element
	B Element
	C Element
}

// InputMask is an authenticated random value whose plaintext is known
// to exactly one party. Value is nil for all other parties.
type InputMask struct {
	Mask  Element
	Value *field.Element
}
