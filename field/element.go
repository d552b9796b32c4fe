//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package field

import (
	"math/big"

	"github.com/markkurossi/mascot/mpcerr"
)

// Element implements an immutable field element. The zero value is
// the element 0. Elements are created by the Field implementations
// which keep the value in canonical form.
type Element struct {
	v *big.Int
}

var zero = new(big.Int)

func (e Element) big() *big.Int {
	if e.v == nil {
		return zero
	}
	return e.v
}

// Big returns the element value as a new big.Int.
func (e Element) Big() *big.Int {
	return new(big.Int).Set(e.big())
}

// IsZero tests if the element is 0.
func (e Element) IsZero() bool {
	return e.big().Sign() == 0
}

// Equal tests if the elements are equal.
func (e Element) Equal(o Element) bool {
	return e.big().Cmp(o.big()) == 0
}

// Bit returns the bit i of the element value.
func (e Element) Bit(i int) uint {
	return e.big().Bit(i)
}

func (e Element) String() string {
	return e.big().String()
}

// Sum returns the sum of the elements.
func Sum(f Field, elems ...Element) Element {
	result := f.Zero()
	for _, e := range elems {
		result = f.Add(result, e)
	}
	return result
}

// EncodeVector encodes the elements into a byte slice.
func EncodeVector(f Field, elems []Element) []byte {
	l := f.ByteLen()
	result := make([]byte, len(elems)*l)
	for i, e := range elems {
		e.big().FillBytes(result[i*l : (i+1)*l])
	}
	return result
}

// DecodeVector decodes count elements from data. It returns a
// protocol error if the data does not hold count canonical elements.
func DecodeVector(f Field, data []byte, count int) ([]Element, error) {
	l := f.ByteLen()
	if len(data) != count*l {
		return nil, mpcerr.Protocolf("invalid vector length %d, expected %d",
			len(data), count*l)
	}
	result := make([]Element, count)
	for i := 0; i < count; i++ {
		e, err := f.SetBytes(data[i*l : (i+1)*l])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}
