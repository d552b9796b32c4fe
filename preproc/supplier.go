//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package preproc implements the suppliers of authenticated
// preprocessing material for the online phase. A Supplier hands out
// triples, random bits, random elements, input masks, and
// exponentiation pipes one at a time and refills its buffers in
// batches. Callers never observe batch boundaries.
//
// All parties must request material in the same order: each refill is
// a protocol run between all parties.
package preproc

import (
	"context"

	"github.com/markkurossi/mascot/field"
	"github.com/markkurossi/mascot/spdz"
)

// Supplier supplies authenticated preprocessing material.
type Supplier interface {
	// NextTriple returns the next multiplication triple.
	NextTriple(ctx context.Context) (spdz.Triple, error)

	// NextBit returns the next random bit.
	NextBit(ctx context.Context) (spdz.Element, error)

	// NextRandomElement returns the next random element.
	NextRandomElement(ctx context.Context) (spdz.Element, error)

	// NextInputMask returns the next input mask of the party
	// toward. The mask value is set only for the party toward.
	NextInputMask(ctx context.Context, toward int) (spdz.InputMask, error)

	// NextExpPipe returns an exponentiation pipe [r⁻¹, r, r², ...,
	// r^(length-1)] for a random non-zero r. The length must be at
	// least 2; zero selects the default pipe length.
	NextExpPipe(ctx context.Context, length int) ([]spdz.Element, error)

	// MacKeyShare returns this party's MAC key share.
	MacKeyShare() field.Element

	// Field returns the field of the supplied elements.
	Field() field.Field
}
