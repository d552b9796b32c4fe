//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package preproc

import (
	"context"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/markkurossi/mascot/env"
	"github.com/markkurossi/mascot/field"
	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/prg"
	"github.com/markkurossi/mascot/spdz"
)

var _ Supplier = &DummySupplier{}

// DealerSetup defines a trusted dealer shared by all parties.
type DealerSetup struct {
	Seed       []byte `cbor:"1,keyasint"`
	NumParties int    `cbor:"2,keyasint"`
	Modulus    []byte `cbor:"3,keyasint"`
}

// Marshal encodes the setup.
func (setup *DealerSetup) Marshal() ([]byte, error) {
	return cbor.Marshal(setup)
}

// UnmarshalDealerSetup decodes a dealer setup.
func UnmarshalDealerSetup(data []byte) (*DealerSetup, error) {
	setup := new(DealerSetup)
	if err := cbor.Unmarshal(data, setup); err != nil {
		return nil, mpcerr.Usagef("invalid dealer setup: %v", err)
	}
	return setup, nil
}

// DummySupplier simulates a trusted dealer. All parties run the
// dealer from the same seed and keep only their own shares. The
// supplier is insecure and intended for testing the online phase
// without running the preprocessing protocols.
type DummySupplier struct {
	id     int
	n      int
	f      field.Field
	dealer *prg.DRBG
	keys   []field.Element
	alpha  field.Element
}

// NewDummySupplier creates a dummy supplier for the party id.
func NewDummySupplier(setup *DealerSetup, id int) (*DummySupplier, error) {
	if setup.NumParties < 2 {
		return nil, mpcerr.Usagef("invalid number of parties: %d",
			setup.NumParties)
	}
	if id < 0 || id >= setup.NumParties {
		return nil, mpcerr.Usagef("invalid party ID %d", id)
	}
	f, err := field.New(new(big.Int).SetBytes(setup.Modulus))
	if err != nil {
		return nil, err
	}
	dealer := prg.NewDRBG(setup.Seed)
	keys := dealer.Elements(f, setup.NumParties)

	return &DummySupplier{
		id:     id,
		n:      setup.NumParties,
		f:      f,
		dealer: dealer,
		keys:   keys,
		alpha:  field.Sum(f, keys...),
	}, nil
}

// share shares the value and returns this party's share.
func (s *DummySupplier) share(v field.Element) spdz.Element {
	var result spdz.Element
	shareSum := s.f.Zero()
	macSum := s.f.Zero()
	for i := 0; i < s.n; i++ {
		var share, mac field.Element
		if i+1 < s.n {
			share = s.dealer.Element(s.f)
			mac = s.dealer.Element(s.f)
			shareSum = s.f.Add(shareSum, share)
			macSum = s.f.Add(macSum, mac)
		} else {
			share = s.f.Sub(v, shareSum)
			mac = s.f.Sub(s.f.Mul(v, s.alpha), macSum)
		}
		if i == s.id {
			result = spdz.Element{
				Share: share,
				Mac:   mac,
			}
		}
	}
	return result
}

// Field implements Supplier.Field.
func (s *DummySupplier) Field() field.Field {
	return s.f
}

// MacKeyShare implements Supplier.MacKeyShare.
func (s *DummySupplier) MacKeyShare() field.Element {
	return s.keys[s.id]
}

// NextTriple implements Supplier.NextTriple.
func (s *DummySupplier) NextTriple(ctx context.Context) (spdz.Triple, error) {
	a := s.dealer.Element(s.f)
	b := s.dealer.Element(s.f)
	return spdz.Triple{
		A: s.share(a),
		B: s.share(b),
		C: s.share(s.f.Mul(a, b)),
	}, nil
}

// NextBit implements Supplier.NextBit.
func (s *DummySupplier) NextBit(ctx context.Context) (spdz.Element, error) {
	bit := s.f.Zero()
	if s.dealer.Bits(1)[0] {
		bit = s.f.One()
	}
	return s.share(bit), nil
}

// NextRandomElement implements Supplier.NextRandomElement.
func (s *DummySupplier) NextRandomElement(ctx context.Context) (
	spdz.Element, error) {
	return s.share(s.dealer.Element(s.f)), nil
}

// NextInputMask implements Supplier.NextInputMask.
func (s *DummySupplier) NextInputMask(ctx context.Context, toward int) (
	spdz.InputMask, error) {

	if toward < 0 || toward >= s.n {
		return spdz.InputMask{}, mpcerr.Usagef("invalid party %d", toward)
	}
	v := s.dealer.Element(s.f)
	mask := spdz.InputMask{
		Mask: s.share(v),
	}
	if toward == s.id {
		mask.Value = &v
	}
	return mask, nil
}

// NextExpPipe implements Supplier.NextExpPipe.
func (s *DummySupplier) NextExpPipe(ctx context.Context, length int) (
	[]spdz.Element, error) {

	if length == 0 {
		length = env.DefaultExpPipeLength
	}
	if length < 2 {
		return nil, mpcerr.Usagef("exp pipe length %d < 2", length)
	}
	var r field.Element
	for r.IsZero() {
		r = s.dealer.Element(s.f)
	}
	rInv, err := s.f.Inv(r)
	if err != nil {
		return nil, err
	}
	result := make([]spdz.Element, length)
	result[0] = s.share(rInv)
	pow := r
	for i := 1; i < length; i++ {
		result[i] = s.share(pow)
		pow = s.f.Mul(pow, r)
	}
	return result, nil
}
