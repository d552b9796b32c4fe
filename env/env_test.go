//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package env

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-logr/logr"
	"github.com/markkurossi/mascot/mpcerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var p127 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127),
	big.NewInt(1))

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, rand.Reader, cfg.GetRandom())
	assert.Equal(t, DefaultTimeout, cfg.GetTimeout())
	assert.Equal(t, logr.Discard(), cfg.GetLogger())
}

func TestValidate(t *testing.T) {
	require.NoError(t, NewParams(0, 2, p127).Validate())

	tests := []func(p *Params){
		func(p *Params) { p.NumParties = 1 },
		func(p *Params) { p.ID = 2 },
		func(p *Params) { p.ID = -1 },
		func(p *Params) { p.Modulus = nil },
		func(p *Params) { p.MacKeyShare = p127 },
		func(p *Params) { p.ComputationalBits = 100 },
		func(p *Params) { p.StatisticalBits = 0 },
		func(p *Params) { p.StatisticalBits = MaxStatisticalBits + 1 },
		func(p *Params) { p.PRGSeedBits = 64 },
		func(p *Params) { p.OTBatchSize = 200 },
		func(p *Params) { p.BitBatch = -1 },
		func(p *Params) { p.ExpPipeLength = 1 },
	}
	for idx, modify := range tests {
		p := NewParams(0, 2, p127)
		modify(p)
		err := p.Validate()
		assert.True(t, errors.Is(err, mpcerr.ErrUsage), "test %d: %v", idx, err)
	}
}

func TestKappa(t *testing.T) {
	p := NewParams(0, 2, p127)
	assert.Equal(t, 128, p.Kappa())

	p.ComputationalBits = 192
	assert.Equal(t, 256, p.Kappa())

	p.OTBatchSize = 384
	assert.Equal(t, 384, p.Kappa())
}

func TestPublic(t *testing.T) {
	p0 := NewParams(0, 3, p127)
	p1 := NewParams(1, 3, p127)
	p1.MacKeyShare = big.NewInt(42)

	data, err := cbor.Marshal(p0.Public())
	require.NoError(t, err)

	var decoded PublicParams
	require.NoError(t, cbor.Unmarshal(data, &decoded))
	assert.True(t, p1.Public().Equal(&decoded))

	p1.StatisticalBits = 64
	assert.False(t, p1.Public().Equal(&decoded))
}

func TestBatchSize(t *testing.T) {
	assert.Equal(t, 10, BatchSize(0, 10))
	assert.Equal(t, 5, BatchSize(5, 10))
}
