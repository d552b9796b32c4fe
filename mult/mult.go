//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package mult implements OT-based multiplication of private field
// elements between two parties. The right-holder's factor is
// decomposed into bits and each bit selects one random OT instance.
// The left-holder sends one correction per bit so that the two
// parties end up with additive shares of the product.
//
// The left factors are vectors: each right factor r is multiplied
// with all elements of the vector left[r], and each OT seed is
// expanded into one pad per vector element. This lets one OT
// instance serve a whole vector of products.
package mult

import (
	"context"

	"github.com/markkurossi/mascot/field"
	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/ot"
	"github.com/markkurossi/mascot/otext"
	"github.com/markkurossi/mascot/prg"
)

// MultiplyLeft runs the left-holder side of the multiplication with
// the OT extension sender ext. The vector left[r] is multiplied with
// the peer's r-th right factor. The function returns the
// left-holder's product shares result[r][l].
func MultiplyLeft(ctx context.Context, io ot.IO, ext *otext.Sender,
	f field.Field, left [][]field.Element) ([][]field.Element, error) {

	width, err := vectorWidth(left)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, mpcerr.FromContext(ctx, err)
	}
	k := f.Bits()

	seeds, err := ext.Extend(io, len(left)*k)
	if err != nil {
		return nil, err
	}

	pows := make([]field.Element, k)
	for bit := range pows {
		pows[bit] = f.Pow2(bit)
	}

	result := make([][]field.Element, len(left))
	corrections := make([]field.Element, 0, len(left)*k*width)

	for r, x := range left {
		share := make([]field.Element, width)
		for l := range share {
			share[l] = f.Zero()
		}
		for bit := 0; bit < k; bit++ {
			s := seeds[r*k+bit]
			q0 := prg.Expand(f, s.S0, width)
			q1 := prg.Expand(f, s.S1, width)
			for l := 0; l < width; l++ {
				// d = x·2^k + q0 - q1
				d := f.Add(f.Mul(x[l], pows[bit]), f.Sub(q0[l], q1[l]))
				corrections = append(corrections, d)
				share[l] = f.Sub(share[l], q0[l])
			}
		}
		result[r] = share
	}

	if err := io.SendData(field.EncodeVector(f, corrections)); err != nil {
		return nil, err
	}
	if err := io.Flush(); err != nil {
		return nil, err
	}
	return result, nil
}

// MultiplyRight runs the right-holder side of the multiplication with
// the OT extension receiver ext. Each right factor is multiplied with
// a vector of width elements of the peer. The function returns the
// right-holder's product shares result[r][l].
func MultiplyRight(ctx context.Context, io ot.IO, ext *otext.Receiver,
	f field.Field, right []field.Element, width int) (
	[][]field.Element, error) {

	if width <= 0 {
		return nil, mpcerr.Usagef("invalid vector width %d", width)
	}
	if err := ctx.Err(); err != nil {
		return nil, mpcerr.FromContext(ctx, err)
	}
	k := f.Bits()

	choices := make([]bool, 0, len(right)*k)
	for _, y := range right {
		choices = append(choices, f.ToBits(y, k)...)
	}
	seeds, err := ext.Extend(io, choices)
	if err != nil {
		return nil, err
	}

	data, err := io.ReceiveData()
	if err != nil {
		return nil, err
	}
	corrections, err := field.DecodeVector(f, data, len(right)*k*width)
	if err != nil {
		return nil, err
	}

	result := make([][]field.Element, len(right))
	for r := range right {
		share := make([]field.Element, width)
		for l := range share {
			share[l] = f.Zero()
		}
		for bit := 0; bit < k; bit++ {
			idx := r*k + bit
			q := prg.Expand(f, seeds[idx], width)
			for l := 0; l < width; l++ {
				share[l] = f.Add(share[l], q[l])
				if choices[idx] {
					share[l] = f.Add(share[l], corrections[idx*width+l])
				}
			}
		}
		result[r] = share
	}
	return result, nil
}

func vectorWidth(left [][]field.Element) (int, error) {
	if len(left) == 0 {
		return 0, nil
	}
	width := len(left[0])
	if width == 0 {
		return 0, mpcerr.Usagef("empty left vector")
	}
	for r, v := range left {
		if len(v) != width {
			return 0, mpcerr.Usagef("left vector %d: length %d != %d",
				r, len(v), width)
		}
	}
	return width, nil
}
