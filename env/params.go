//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package env

import (
	"bytes"
	"math/big"

	"github.com/markkurossi/mascot/mpcerr"
)

// Default parameter values.
const (
	DefaultComputationalBits = 128
	DefaultStatisticalBits   = 40
	DefaultPRGSeedBits       = 256
	DefaultRandomBatch       = 1024
	DefaultBitBatch          = 256
	DefaultExpPipeLength     = 200
	MaxStatisticalBits       = 64
	MaxParties               = 1024
)

// Params define the session parameters. They are fixed at session
// construction and never mutated afterwards.
type Params struct {
	// ID is this party's identifier in [0, NumParties).
	ID int

	// NumParties is the number of parties.
	NumParties int

	// Modulus is the prime field modulus.
	Modulus *big.Int

	// MacKeyShare is this party's share of the global MAC key. If
	// nil, the share is sampled from the party's DRBG.
	MacKeyShare *big.Int

	// ComputationalBits selects the base OT group and the default OT
	// extension width: 128, 192, or 256.
	ComputationalBits int

	// StatisticalBits is the statistical security parameter, at most
	// MaxStatisticalBits.
	StatisticalBits int

	// PRGSeedBits is the bit length of the random OT seeds.
	PRGSeedBits int

	// OTBatchSize is the number of base OTs the OT extension is
	// built from. The zero value selects ComputationalBits.
	OTBatchSize int

	// TripleBatch is the minimum number of triples created per
	// generation run.
	TripleBatch int

	// RandomBatch is the number of random elements created per
	// generation run.
	RandomBatch int

	// BitBatch is the number of random bits created per generation
	// run.
	BitBatch int

	// ExpPipeLength is the exponentiation pipe length used when a
	// pipe is requested with length 0.
	ExpPipeLength int
}

// NewParams creates parameters with default values for party id of
// numParties over the prime modulus.
func NewParams(id, numParties int, modulus *big.Int) *Params {
	return &Params{
		ID:                id,
		NumParties:        numParties,
		Modulus:           modulus,
		ComputationalBits: DefaultComputationalBits,
		StatisticalBits:   DefaultStatisticalBits,
		PRGSeedBits:       DefaultPRGSeedBits,
		RandomBatch:       DefaultRandomBatch,
		BitBatch:          DefaultBitBatch,
		ExpPipeLength:     DefaultExpPipeLength,
	}
}

// Validate checks the parameters. All errors are usage errors.
func (p *Params) Validate() error {
	if p.NumParties < 2 || p.NumParties > MaxParties {
		return mpcerr.Usagef("invalid number of parties: %d", p.NumParties)
	}
	if p.ID < 0 || p.ID >= p.NumParties {
		return mpcerr.Usagef("invalid party ID %d for %d parties",
			p.ID, p.NumParties)
	}
	if p.Modulus == nil || p.Modulus.Sign() <= 0 {
		return mpcerr.Usagef("modulus not set")
	}
	if p.MacKeyShare != nil &&
		(p.MacKeyShare.Sign() < 0 || p.MacKeyShare.Cmp(p.Modulus) >= 0) {
		return mpcerr.Usagef("MAC key share out of range")
	}
	switch p.ComputationalBits {
	case 128, 192, 256:
	default:
		return mpcerr.Usagef("unsupported computational security: %d",
			p.ComputationalBits)
	}
	if p.StatisticalBits < 1 || p.StatisticalBits > MaxStatisticalBits {
		return mpcerr.Usagef("unsupported statistical security: %d",
			p.StatisticalBits)
	}
	if p.PRGSeedBits < 128 || p.PRGSeedBits%8 != 0 {
		return mpcerr.Usagef("invalid PRG seed bits: %d", p.PRGSeedBits)
	}
	if p.OTBatchSize != 0 &&
		(p.OTBatchSize < 128 || p.OTBatchSize%128 != 0) {
		return mpcerr.Usagef("invalid OT batch size: %d", p.OTBatchSize)
	}
	if p.TripleBatch < 0 || p.RandomBatch < 0 || p.BitBatch < 0 {
		return mpcerr.Usagef("negative batch size")
	}
	if p.ExpPipeLength != 0 && p.ExpPipeLength < 2 {
		return mpcerr.Usagef("exp pipe length %d < 2", p.ExpPipeLength)
	}
	return nil
}

// Kappa returns the number of base OTs for the OT extension.
func (p *Params) Kappa() int {
	if p.OTBatchSize > 0 {
		return p.OTBatchSize
	}
	if p.ComputationalBits%128 != 0 {
		return (p.ComputationalBits/128 + 1) * 128
	}
	return p.ComputationalBits
}

// BatchSize returns the configured batch size or def if unset.
func BatchSize(value, def int) int {
	if value > 0 {
		return value
	}
	return def
}

// Public returns the parameters all parties must agree on.
func (p *Params) Public() *PublicParams {
	return &PublicParams{
		NumParties:        p.NumParties,
		Modulus:           p.Modulus.Bytes(),
		ComputationalBits: p.ComputationalBits,
		StatisticalBits:   p.StatisticalBits,
		PRGSeedBits:       p.PRGSeedBits,
		Kappa:             p.Kappa(),
		TripleBatch:       p.TripleBatch,
		RandomBatch:       p.RandomBatch,
		BitBatch:          p.BitBatch,
		ExpPipeLength:     p.ExpPipeLength,
	}
}

// PublicParams define the public session parameters. They are
// exchanged in the session handshake.
type PublicParams struct {
	NumParties        int    `cbor:"1,keyasint"`
	Modulus           []byte `cbor:"2,keyasint"`
	ComputationalBits int    `cbor:"3,keyasint"`
	StatisticalBits   int    `cbor:"4,keyasint"`
	PRGSeedBits       int    `cbor:"5,keyasint"`
	Kappa             int    `cbor:"6,keyasint"`
	TripleBatch       int    `cbor:"7,keyasint"`
	RandomBatch       int    `cbor:"8,keyasint"`
	BitBatch          int    `cbor:"9,keyasint"`
	ExpPipeLength     int    `cbor:"10,keyasint"`
}

// Equal tests if the public parameters are equal.
func (pp *PublicParams) Equal(o *PublicParams) bool {
	return pp.NumParties == o.NumParties &&
		bytes.Equal(pp.Modulus, o.Modulus) &&
		pp.ComputationalBits == o.ComputationalBits &&
		pp.StatisticalBits == o.StatisticalBits &&
		pp.PRGSeedBits == o.PRGSeedBits &&
		pp.Kappa == o.Kappa &&
		pp.TripleBatch == o.TripleBatch &&
		pp.RandomBatch == o.RandomBatch &&
		pp.BitBatch == o.BitBatch &&
		pp.ExpPipeLength == o.ExpPipeLength
}
