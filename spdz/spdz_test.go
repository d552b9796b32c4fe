//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package spdz

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mascot/cointoss"
	"github.com/markkurossi/mascot/field"
	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/p2p"
	"github.com/markkurossi/mascot/prg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var p127 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127),
	big.NewInt(1))

// dealer creates authenticated shares for n parties.
type dealer struct {
	f     field.Field
	rand  *prg.DRBG
	keys  []field.Element
	alpha field.Element
}

func newDealer(n int) *dealer {
	f := field.MustNew(p127)
	rand := prg.NewDRBG([]byte("dealer"))
	keys := rand.Elements(f, n)
	return &dealer{
		f:     f,
		rand:  rand,
		keys:  keys,
		alpha: field.Sum(f, keys...),
	}
}

func (d *dealer) share(v field.Element) []Element {
	n := len(d.keys)
	shares := d.rand.Elements(d.f, n)
	macs := d.rand.Elements(d.f, n)
	shares[n-1] = d.f.Sub(v, field.Sum(d.f, shares[:n-1]...))
	macs[n-1] = d.f.Sub(d.f.Mul(v, d.alpha), field.Sum(d.f, macs[:n-1]...))

	result := make([]Element, n)
	for i := range result {
		result[i] = Element{
			Share: shares[i],
			Mac:   macs[i],
		}
	}
	return result
}

func (d *dealer) open(t *testing.T, shares []Element) field.Element {
	var value, mac field.Element
	for _, s := range shares {
		value = d.f.Add(value, s.Share)
		mac = d.f.Add(mac, s.Mac)
	}
	assert.True(t, mac.Equal(d.f.Mul(value, d.alpha)), "MAC mismatch")
	return value
}

func run(t *testing.T, n int, fn func(o *Opener) error) []error {
	d := newDealer(n)
	meshes := p2p.PipeMesh(n)
	defer func() {
		for _, m := range meshes {
			m.Close()
		}
	}()
	errs := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		id := i
		g.Go(func() error {
			var rounds cointoss.Counter
			o := NewOpener(meshes[id], d.f, d.keys[id],
				prg.NewDRBG([]byte(fmt.Sprintf("party %d", id))), &rounds)
			errs[id] = fn(o)
			return nil
		})
	}
	g.Wait()
	return errs
}

func TestLinear(t *testing.T) {
	d := newDealer(3)
	f := d.f
	x := f.FromInt64(17)
	y := f.FromInt64(-5)
	c := f.FromInt64(3)

	xs := d.share(x)
	ys := d.share(y)

	var sum, diff, neg, scaled, shifted []Element
	for i := range xs {
		sum = append(sum, xs[i].Add(f, ys[i]))
		diff = append(diff, xs[i].Sub(f, ys[i]))
		neg = append(neg, xs[i].Neg(f))
		scaled = append(scaled, xs[i].MulConst(f, c))
		shifted = append(shifted, xs[i].AddConst(f, c, i, d.keys[i]))
	}
	assert.True(t, d.open(t, sum).Equal(f.FromInt64(12)))
	assert.True(t, d.open(t, diff).Equal(f.FromInt64(22)))
	assert.True(t, d.open(t, neg).Equal(f.FromInt64(-17)))
	assert.True(t, d.open(t, scaled).Equal(f.FromInt64(51)))
	assert.True(t, d.open(t, shifted).Equal(f.FromInt64(20)))
}

func TestOpenCheck(t *testing.T) {
	const n = 3
	d := newDealer(n)
	values := d.rand.Elements(d.f, 10)
	shares := make([][]Element, n)
	for _, v := range values {
		for i, s := range d.share(v) {
			shares[i] = append(shares[i], s)
		}
	}
	opened := make([][]field.Element, n)

	errs := run(t, n, func(o *Opener) error {
		var err error
		opened[o.ID()], err = o.Open(context.Background(), shares[o.ID()])
		if err != nil {
			return err
		}
		if o.Pending() != len(values) {
			return fmt.Errorf("pending %d", o.Pending())
		}
		return o.Check(context.Background())
	})
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		for j, v := range values {
			assert.True(t, v.Equal(opened[i][j]))
		}
	}
}

func TestCheckFail(t *testing.T) {
	const n = 3
	d := newDealer(n)
	shares := d.share(d.f.FromInt64(42))

	// Party 1 adds an error to its share.
	shares[1].Share = d.f.Add(shares[1].Share, d.f.One())

	errs := run(t, n, func(o *Opener) error {
		values, err := o.Open(context.Background(),
			[]Element{shares[o.ID()]})
		if err != nil {
			return err
		}
		if !values[0].Equal(d.f.FromInt64(43)) {
			return fmt.Errorf("unexpected value %v", values[0])
		}
		return o.Check(context.Background())
	})
	for i := 0; i < n; i++ {
		assert.True(t, errors.Is(errs[i], mpcerr.ErrProtocol), "%v", errs[i])
	}
}

func TestOpenTo(t *testing.T) {
	const n = 3
	d := newDealer(n)
	v := d.f.FromInt64(1234)
	shares := d.share(v)
	results := make([][]field.Element, n)

	errs := run(t, n, func(o *Opener) error {
		var err error
		results[o.ID()], err = o.OpenTo(context.Background(),
			[]Element{shares[o.ID()]}, 2)
		return err
	})
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}
	assert.Nil(t, results[0])
	assert.Nil(t, results[1])
	require.Len(t, results[2], 1)
	assert.True(t, v.Equal(results[2][0]))
}

func TestMul(t *testing.T) {
	const n = 3
	const count = 5
	d := newDealer(n)
	f := d.f

	xv := d.rand.Elements(f, count)
	yv := d.rand.Elements(f, count)

	xs := make([][]Element, n)
	ys := make([][]Element, n)
	ts := make([][]Triple, n)
	for k := 0; k < count; k++ {
		a := d.rand.Element(f)
		b := d.rand.Element(f)
		as := d.share(a)
		bs := d.share(b)
		cs := d.share(f.Mul(a, b))
		xsh := d.share(xv[k])
		ysh := d.share(yv[k])
		for i := 0; i < n; i++ {
			xs[i] = append(xs[i], xsh[i])
			ys[i] = append(ys[i], ysh[i])
			ts[i] = append(ts[i], Triple{A: as[i], B: bs[i], C: cs[i]})
		}
	}
	products := make([][]Element, n)

	errs := run(t, n, func(o *Opener) error {
		var err error
		id := o.ID()
		products[id], err = Mul(context.Background(), o, xs[id], ys[id],
			ts[id])
		if err != nil {
			return err
		}
		return o.Check(context.Background())
	})
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}
	for k := 0; k < count; k++ {
		var shares []Element
		for i := 0; i < n; i++ {
			shares = append(shares, products[i][k])
		}
		assert.True(t, d.open(t, shares).Equal(f.Mul(xv[k], yv[k])))
	}

	_, err := Mul(context.Background(), nil, xs[0], ys[0][1:], ts[0])
	assert.True(t, errors.Is(err, mpcerr.ErrUsage))
}
