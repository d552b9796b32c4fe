//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package mult

import (
	"context"
	"math/big"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mascot/field"
	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/ot"
	"github.com/markkurossi/mascot/otext"
	"github.com/markkurossi/mascot/p2p"
	"github.com/markkurossi/mascot/prg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type pair struct {
	lconn    *p2p.Conn
	rconn    *p2p.Conn
	sender   *otext.Sender
	receiver *otext.Receiver
}

func newPair(t *testing.T) *pair {
	p := new(pair)
	p.lconn, p.rconn = p2p.Pipe()
	t.Cleanup(func() {
		p.lconn.Close()
		p.rconn.Close()
	})
	lrand := prg.NewDRBG([]byte("left"))
	rrand := prg.NewDRBG([]byte("right"))

	var g errgroup.Group
	g.Go(func() error {
		var err error
		p.sender, err = otext.NewSender(p.lconn,
			ot.NewCO(ot.Ristretto255(), lrand), 128, 32, lrand)
		return err
	})
	g.Go(func() error {
		var err error
		p.receiver, err = otext.NewReceiver(p.rconn,
			ot.NewCO(ot.Ristretto255(), rrand), 128, 32, rrand)
		return err
	})
	require.NoError(t, g.Wait())
	return p
}

func (p *pair) multiply(t *testing.T, f field.Field, left [][]field.Element,
	right []field.Element, width int) ([][]field.Element, [][]field.Element) {

	ctx := context.Background()
	var ls, rs [][]field.Element
	var g errgroup.Group
	g.Go(func() error {
		var err error
		ls, err = MultiplyLeft(ctx, p.lconn, p.sender, f, left)
		return err
	})
	g.Go(func() error {
		var err error
		rs, err = MultiplyRight(ctx, p.rconn, p.receiver, f, right, width)
		return err
	})
	require.NoError(t, g.Wait())
	return ls, rs
}

func testFields(t *testing.T) []field.Field {
	m127, err := field.New(new(big.Int).Sub(
		new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1)))
	require.NoError(t, err)
	p64, err := field.New(new(big.Int).Sub(
		new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(59)))
	require.NoError(t, err)
	return []field.Field{m127, p64, field.MustNew(big.NewInt(31))}
}

func TestMultiply(t *testing.T) {
	p := newPair(t)
	rand := prg.NewDRBG([]byte("factors"))

	for _, f := range testFields(t) {
		for _, width := range []int{1, 3} {
			const count = 20
			left := make([][]field.Element, count)
			for r := range left {
				left[r] = rand.Elements(f, width)
			}
			right := rand.Elements(f, count)
			right[0] = f.Zero()
			right[1] = f.NewElement(new(big.Int).Sub(f.Modulus(),
				big.NewInt(1)))

			ls, rs := p.multiply(t, f, left, right, width)
			require.Len(t, ls, count)
			require.Len(t, rs, count)

			for r := 0; r < count; r++ {
				for l := 0; l < width; l++ {
					expected := f.Mul(left[r][l], right[r])
					assert.True(t, expected.Equal(f.Add(ls[r][l], rs[r][l])),
						"product %d/%d", r, l)
				}
			}
		}
	}
}

func TestMultiplyEmpty(t *testing.T) {
	p := newPair(t)
	f := testFields(t)[0]

	ls, rs := p.multiply(t, f, nil, nil, 1)
	assert.Empty(t, ls)
	assert.Empty(t, rs)
}

func TestMultiplyUsage(t *testing.T) {
	f := testFields(t)[0]
	ctx := context.Background()

	_, err := MultiplyLeft(ctx, nil, nil, f, [][]field.Element{
		{f.One(), f.One()},
		{f.One()},
	})
	assert.True(t, errors.Is(err, mpcerr.ErrUsage))

	_, err = MultiplyLeft(ctx, nil, nil, f, [][]field.Element{{}})
	assert.True(t, errors.Is(err, mpcerr.ErrUsage))

	_, err = MultiplyRight(ctx, nil, nil, f, []field.Element{f.One()}, 0)
	assert.True(t, errors.Is(err, mpcerr.ErrUsage))
}

func TestMultiplyCountMismatch(t *testing.T) {
	p := newPair(t)
	f := testFields(t)[2]
	ctx := context.Background()

	var lerr error
	var g errgroup.Group
	g.Go(func() error {
		_, lerr = MultiplyLeft(ctx, p.lconn, p.sender, f,
			[][]field.Element{{f.One()}, {f.One()}})
		if lerr != nil {
			p.lconn.Abort()
		}
		return nil
	})
	g.Go(func() error {
		MultiplyRight(ctx, p.rconn, p.receiver, f,
			[]field.Element{f.One()}, 1)
		return nil
	})
	g.Wait()
	assert.True(t, errors.Is(lerr, mpcerr.ErrProtocol), "%v", lerr)
}
