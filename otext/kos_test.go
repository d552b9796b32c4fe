//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package otext

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/ot"
	"github.com/markkurossi/mascot/p2p"
	"github.com/markkurossi/mascot/prg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func setup(t *testing.T, kappa int) (*Sender, *Receiver, *p2p.Conn,
	*p2p.Conn) {

	sconn, rconn := p2p.Pipe()
	t.Cleanup(func() {
		sconn.Close()
		rconn.Close()
	})
	sRand := prg.NewDRBG([]byte("sender"))
	rRand := prg.NewDRBG([]byte("receiver"))

	var sender *Sender
	var receiver *Receiver
	var g errgroup.Group
	g.Go(func() error {
		var err error
		sender, err = NewSender(sconn, ot.NewCO(ot.Ristretto255(), sRand),
			kappa, 32, sRand)
		return err
	})
	g.Go(func() error {
		var err error
		receiver, err = NewReceiver(rconn, ot.NewCO(ot.Ristretto255(), rRand),
			kappa, 32, rRand)
		return err
	})
	require.NoError(t, g.Wait())

	return sender, receiver, sconn, rconn
}

func extend(t *testing.T, sender *Sender, receiver *Receiver,
	sconn, rconn *p2p.Conn, choices []bool) ([]Seeds, [][]byte) {

	var sseeds []Seeds
	var rseeds [][]byte
	var g errgroup.Group
	g.Go(func() error {
		var err error
		sseeds, err = sender.Extend(sconn, len(choices))
		return err
	})
	g.Go(func() error {
		var err error
		rseeds, err = receiver.Extend(rconn, choices)
		return err
	})
	require.NoError(t, g.Wait())
	require.Len(t, sseeds, len(choices))
	require.Len(t, rseeds, len(choices))

	return sseeds, rseeds
}

func verify(t *testing.T, sseeds []Seeds, rseeds [][]byte, choices []bool) {
	for i, c := range choices {
		assert.Len(t, rseeds[i], 32)
		assert.False(t, bytes.Equal(sseeds[i].S0, sseeds[i].S1))
		if c {
			assert.Equal(t, sseeds[i].S1, rseeds[i], "OT %d", i)
		} else {
			assert.Equal(t, sseeds[i].S0, rseeds[i], "OT %d", i)
		}
	}
}

func TestExtend(t *testing.T) {
	for _, kappa := range []int{128, 256} {
		sender, receiver, sconn, rconn := setup(t, kappa)

		for _, n := range []int{0, 1, 7, 1000} {
			choices := prg.NewDRBG([]byte("choices")).Bits(n)
			sseeds, rseeds := extend(t, sender, receiver, sconn, rconn,
				choices)
			verify(t, sseeds, rseeds, choices)
		}
		assert.Equal(t, sender.Count(), receiver.Count())
	}
}

func TestExtendChunks(t *testing.T) {
	sender, receiver, sconn, rconn := setup(t, 128)

	choices := prg.NewDRBG([]byte("chunks")).Bits(chunkRows + 17)
	sseeds, rseeds := extend(t, sender, receiver, sconn, rconn, choices)
	verify(t, sseeds, rseeds, choices)
}

func TestExtendNoReuse(t *testing.T) {
	sender, receiver, sconn, rconn := setup(t, 128)

	choices := prg.NewDRBG([]byte("reuse")).Bits(64)
	s1, r1 := extend(t, sender, receiver, sconn, rconn, choices)
	s2, r2 := extend(t, sender, receiver, sconn, rconn, choices)

	for i := range choices {
		assert.False(t, bytes.Equal(s1[i].S0, s2[i].S0))
		assert.False(t, bytes.Equal(s1[i].S1, s2[i].S1))
		assert.False(t, bytes.Equal(r1[i], r2[i]))
	}
}

func TestExtendRandom(t *testing.T) {
	sender, receiver, sconn, rconn := setup(t, 128)

	var sseeds []Seeds
	var choices []bool
	var rseeds [][]byte
	var g errgroup.Group
	g.Go(func() error {
		var err error
		sseeds, err = sender.Extend(sconn, 300)
		return err
	})
	g.Go(func() error {
		var err error
		choices, rseeds, err = receiver.ExtendRandom(rconn, 300)
		return err
	})
	require.NoError(t, g.Wait())
	verify(t, sseeds, rseeds, choices)
}

func TestConsistencyCheck(t *testing.T) {
	sender, receiver, sconn, rconn := setup(t, 128)

	// Use inconsistent choice bit in one column where the sender's
	// Δ bit is set.
	col := -1
	for j, bit := range sender.delta {
		if bit {
			col = j
			break
		}
	}
	require.GreaterOrEqual(t, col, 0)
	rowBytes := chunkSize(100, 128) / 8

	tampered := &flipIO{
		IO:   rconn,
		size: 128 * rowBytes,
		ofs:  col*rowBytes + 3,
	}
	var serr error
	var g errgroup.Group
	g.Go(func() error {
		_, serr = sender.Extend(sconn, 100)
		if serr != nil {
			rconn.Abort()
		}
		return nil
	})
	g.Go(func() error {
		receiver.Extend(tampered, make([]bool, 100))
		return nil
	})
	g.Wait()
	assert.True(t, tampered.done)
	assert.True(t, errors.Is(serr, mpcerr.ErrProtocol), "%v", serr)
}

// flipIO flips the low bit at ofs of the first data frame of size
// bytes.
type flipIO struct {
	ot.IO
	size int
	ofs  int
	done bool
}

func (f *flipIO) SendData(val []byte) error {
	if !f.done && len(val) == f.size {
		val = bytes.Clone(val)
		val[f.ofs] ^= 0x01
		f.done = true
	}
	return f.IO.SendData(val)
}

func TestCountMismatch(t *testing.T) {
	sender, receiver, sconn, rconn := setup(t, 128)

	var serr error
	var g errgroup.Group
	g.Go(func() error {
		_, serr = sender.Extend(sconn, 10)
		if serr != nil {
			sconn.Abort()
		}
		return nil
	})
	g.Go(func() error {
		receiver.Extend(rconn, make([]bool, 11))
		return nil
	})
	g.Wait()
	assert.True(t, errors.Is(serr, mpcerr.ErrProtocol))
}

func TestValidate(t *testing.T) {
	_, err := NewSender(nil, nil, 100, 32, prg.NewDRBG(nil))
	assert.True(t, errors.Is(err, mpcerr.ErrUsage))
	_, err = NewReceiver(nil, nil, 128, 8, prg.NewDRBG(nil))
	assert.True(t, errors.Is(err, mpcerr.ErrUsage))
}
