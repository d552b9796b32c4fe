//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package preproc

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mascot/env"
	"github.com/markkurossi/mascot/field"
	"github.com/markkurossi/mascot/mascot"
	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/p2p"
	"github.com/markkurossi/mascot/spdz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var p127 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127),
	big.NewInt(1))

// output collects one party's supplied material.
type output struct {
	triple  spdz.Triple
	randoms []spdz.Element
	bits    []spdz.Element
	masks   []spdz.InputMask
	pipe    []spdz.Element
	defPipe []spdz.Element
	usage   []error
}

const numBits = 20

func consume(ctx context.Context, s Supplier) (*output, error) {
	out := new(output)
	var err error

	out.triple, err = s.NextTriple(ctx)
	if err != nil {
		return nil, err
	}
	for i := 0; i < 2; i++ {
		r, err := s.NextRandomElement(ctx)
		if err != nil {
			return nil, err
		}
		out.randoms = append(out.randoms, r)
	}
	for i := 0; i < numBits; i++ {
		b, err := s.NextBit(ctx)
		if err != nil {
			return nil, err
		}
		out.bits = append(out.bits, b)
	}
	for i := 0; i < 2; i++ {
		m, err := s.NextInputMask(ctx, 1)
		if err != nil {
			return nil, err
		}
		out.masks = append(out.masks, m)
	}
	out.pipe, err = s.NextExpPipe(ctx, 5)
	if err != nil {
		return nil, err
	}
	out.defPipe, err = s.NextExpPipe(ctx, 0)
	if err != nil {
		return nil, err
	}

	_, err = s.NextExpPipe(ctx, 1)
	out.usage = append(out.usage, err)
	_, err = s.NextInputMask(ctx, 5)
	out.usage = append(out.usage, err)

	return out, nil
}

type checker struct {
	t       *testing.T
	f       field.Field
	alpha   field.Element
	pipeLen int
}

func newChecker(t *testing.T, suppliers []Supplier, pipeLen int) *checker {
	f := suppliers[0].Field()
	var alpha field.Element
	for _, s := range suppliers {
		alpha = f.Add(alpha, s.MacKeyShare())
	}
	return &checker{
		t:       t,
		f:       f,
		alpha:   alpha,
		pipeLen: pipeLen,
	}
}

func (c *checker) open(shares ...spdz.Element) field.Element {
	var value, mac field.Element
	for _, s := range shares {
		value = c.f.Add(value, s.Share)
		mac = c.f.Add(mac, s.Mac)
	}
	assert.True(c.t, mac.Equal(c.f.Mul(value, c.alpha)), "MAC mismatch")
	return value
}

func (c *checker) verify(outs []*output) {
	f := c.f
	collect := func(get func(o *output) spdz.Element) field.Element {
		var shares []spdz.Element
		for _, o := range outs {
			shares = append(shares, get(o))
		}
		return c.open(shares...)
	}

	a := collect(func(o *output) spdz.Element { return o.triple.A })
	b := collect(func(o *output) spdz.Element { return o.triple.B })
	cv := collect(func(o *output) spdz.Element { return o.triple.C })
	assert.True(c.t, cv.Equal(f.Mul(a, b)))

	r0 := collect(func(o *output) spdz.Element { return o.randoms[0] })
	r1 := collect(func(o *output) spdz.Element { return o.randoms[1] })
	assert.False(c.t, r0.Equal(r1))

	var ones int
	for i := 0; i < numBits; i++ {
		bit := collect(func(o *output) spdz.Element { return o.bits[i] })
		if bit.Equal(f.One()) {
			ones++
		} else {
			assert.True(c.t, bit.IsZero(), "bit %d: %v", i, bit)
		}
	}
	assert.Greater(c.t, ones, 0)
	assert.Less(c.t, ones, numBits)

	for i := range outs[0].masks {
		v := collect(func(o *output) spdz.Element { return o.masks[i].Mask })
		for p, o := range outs {
			if p == 1 {
				require.NotNil(c.t, o.masks[i].Value)
				assert.True(c.t, v.Equal(*o.masks[i].Value))
			} else {
				assert.Nil(c.t, o.masks[i].Value)
			}
		}
	}

	c.verifyPipe(outs, 5, func(o *output) []spdz.Element { return o.pipe })
	c.verifyPipe(outs, c.pipeLen,
		func(o *output) []spdz.Element { return o.defPipe })

	for _, o := range outs {
		for _, err := range o.usage {
			assert.True(c.t, errors.Is(err, mpcerr.ErrUsage), "%v", err)
		}
	}
}

func (c *checker) verifyPipe(outs []*output, length int,
	get func(o *output) []spdz.Element) {

	f := c.f
	entry := func(i int) field.Element {
		var shares []spdz.Element
		for _, o := range outs {
			require.Len(c.t, get(o), length)
			shares = append(shares, get(o)[i])
		}
		return c.open(shares...)
	}
	rInv := entry(0)
	r := entry(1)
	assert.True(c.t, f.Mul(r, rInv).Equal(f.One()))
	pow := r
	for i := 2; i < length; i++ {
		pow = f.Mul(pow, r)
		assert.True(c.t, entry(i).Equal(pow), "r^%d", i)
	}
}

func run(t *testing.T, suppliers []Supplier) []*output {
	outs := make([]*output, len(suppliers))
	var g errgroup.Group
	for i := range suppliers {
		idx := i
		g.Go(func() error {
			var err error
			outs[idx], err = consume(context.Background(), suppliers[idx])
			return err
		})
	}
	require.NoError(t, g.Wait())
	return outs
}

func TestMascotSupplier(t *testing.T) {
	const n = 2
	meshes := p2p.PipeMesh(n)
	defer func() {
		for _, m := range meshes {
			m.Close()
		}
	}()

	suppliers := make([]Supplier, n)
	mascots := make([]*MascotSupplier, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		id := i
		g.Go(func() error {
			params := env.NewParams(id, n, p127)
			params.BitBatch = 16
			params.RandomBatch = 32
			params.ExpPipeLength = 7
			cfg := &env.Config{
				Seed: []byte(fmt.Sprintf("party %d", id)),
			}
			session, err := mascot.NewSession(context.Background(),
				meshes[id], params, cfg)
			if err != nil {
				return err
			}
			mascots[id] = NewMascotSupplier(session, cfg)
			suppliers[id] = mascots[id]
			return nil
		})
	}
	require.NoError(t, g.Wait())

	outs := run(t, suppliers)
	newChecker(t, suppliers, 7).verify(outs)

	var buf bytes.Buffer
	mascots[0].Timing().Print(&buf, meshes[0].Stats())
	assert.Contains(t, buf.String(), "Triples")
	assert.Contains(t, buf.String(), "Bits")
}

func TestDummySupplier(t *testing.T) {
	const n = 3
	setup := &DealerSetup{
		Seed:       []byte("dealer"),
		NumParties: n,
		Modulus:    p127.Bytes(),
	}
	data, err := setup.Marshal()
	require.NoError(t, err)

	suppliers := make([]Supplier, n)
	for i := 0; i < n; i++ {
		s, err := UnmarshalDealerSetup(data)
		require.NoError(t, err)
		suppliers[i], err = NewDummySupplier(s, i)
		require.NoError(t, err)
	}
	outs := run(t, suppliers)
	newChecker(t, suppliers, env.DefaultExpPipeLength).verify(outs)

	_, err = NewDummySupplier(setup, n)
	assert.True(t, errors.Is(err, mpcerr.ErrUsage))
	_, err = UnmarshalDealerSetup([]byte{0xff})
	assert.True(t, errors.Is(err, mpcerr.ErrUsage))
}

func TestFileSize(t *testing.T) {
	assert.Equal(t, "12B", FileSize(12).String())
	assert.Equal(t, "2kB", FileSize(2500).String())
	assert.Equal(t, "3MB", FileSize(3000001).String())
}

func TestTimingEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTiming().Print(&buf, p2p.IOStats{})
	assert.Empty(t, buf.String())
}
