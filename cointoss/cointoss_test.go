//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package cointoss

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/p2p"
	"github.com/markkurossi/mascot/prg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func jointSeeds(t *testing.T, n, bits int, round uint64) [][]byte {
	meshes := p2p.PipeMesh(n)
	defer func() {
		for _, m := range meshes {
			m.Close()
		}
	}()

	seeds := make([][]byte, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		id := i
		g.Go(func() error {
			rand := prg.NewDRBG([]byte(fmt.Sprintf("party %d", id)))
			seed, err := GenerateJointSeed(context.Background(), meshes[id],
				bits, rand, round)
			seeds[id] = seed
			return err
		})
	}
	require.NoError(t, g.Wait())
	return seeds
}

func TestJointSeed(t *testing.T) {
	for _, n := range []int{2, 3, 5} {
		seeds := jointSeeds(t, n, 256, 1)
		for i := 1; i < n; i++ {
			assert.Equal(t, seeds[0], seeds[i])
		}
		assert.Len(t, seeds[0], 32)
	}
}

func TestJointSeedDeterministic(t *testing.T) {
	s1 := jointSeeds(t, 3, 128, 7)
	s2 := jointSeeds(t, 3, 128, 7)
	assert.Equal(t, s1[0], s2[0])

	s3 := jointSeeds(t, 2, 128, 7)
	assert.Equal(t, s3[0], s3[1])
	assert.NotEqual(t, s1[0], s3[0])
}

func TestJointSeedBits(t *testing.T) {
	seeds := jointSeeds(t, 2, 12, 1)
	require.Len(t, seeds[0], 2)
	assert.Equal(t, byte(0), seeds[0][1]&0xf0)
}

func TestCommit(t *testing.T) {
	rand := prg.NewDRBG([]byte("commit"))
	c, o := Commit(1, 2, []byte("value"), rand)

	assert.True(t, Verify(1, 2, c, o))
	assert.False(t, Verify(0, 2, c, o))
	assert.False(t, Verify(1, 3, c, o))
	assert.False(t, Verify(1, 2, c, Opening{
		Nonce: o.Nonce,
		Value: []byte("valuf"),
	}))
	assert.False(t, Verify(1, 2, c, Opening{
		Nonce: o.Nonce[1:],
		Value: o.Value,
	}))

	po, err := ParseOpening(o.Bytes())
	require.NoError(t, err)
	assert.True(t, Verify(1, 2, c, po))

	_, err = ParseOpening(make([]byte, NonceLen-1))
	assert.True(t, errors.Is(err, mpcerr.ErrProtocol))
}

func TestEquivocation(t *testing.T) {
	meshes := p2p.PipeMesh(3)
	defer func() {
		for _, m := range meshes {
			m.Close()
		}
	}()
	ctx := context.Background()

	errs := make([]error, 3)
	var g errgroup.Group
	for i := 0; i < 3; i++ {
		id := i
		g.Go(func() error {
			rand := prg.NewDRBG([]byte(fmt.Sprintf("party %d", id)))
			if id != 1 {
				_, errs[id] = GenerateJointSeed(ctx, meshes[id], 128, rand, 1)
				return nil
			}
			// Party 1 opens a different value than it committed to.
			c, o := Commit(id, 1, rand.Bytes(16), rand)
			if _, err := meshes[id].Broadcast(ctx, c[:]); err != nil {
				return err
			}
			o.Value = rand.Bytes(16)
			_, err := meshes[id].Broadcast(ctx, o.Bytes())
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.True(t, errors.Is(errs[0], mpcerr.ErrProtocol), "%v", errs[0])
	assert.True(t, errors.Is(errs[2], mpcerr.ErrProtocol), "%v", errs[2])
}

func TestInvalidLength(t *testing.T) {
	_, err := GenerateJointSeed(context.Background(), nil, 0,
		prg.NewDRBG(nil), 0)
	assert.True(t, errors.Is(err, mpcerr.ErrUsage))
}
