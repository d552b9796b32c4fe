//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package spdz

import (
	"context"

	"github.com/markkurossi/mascot/cointoss"
	"github.com/markkurossi/mascot/field"
	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/p2p"
	"github.com/markkurossi/mascot/prg"
)

// Opener opens authenticated elements. The opened values are recorded
// and their MACs are verified in batches with Check. A value must not
// be used for anything that depends on its integrity before Check
// returns successfully.
type Opener struct {
	mesh    *p2p.Mesh
	f       field.Field
	key     field.Element
	rand    *prg.DRBG
	rounds  *cointoss.Counter
	values  []field.Element
	pending []Element
}

// NewOpener creates a new opener for the mesh. The keyShare is this
// party's share of the MAC key. The rounds counter provides the
// coin-tossing round identifiers.
func NewOpener(mesh *p2p.Mesh, f field.Field, keyShare field.Element,
	rand *prg.DRBG, rounds *cointoss.Counter) *Opener {

	return &Opener{
		mesh:   mesh,
		f:      f,
		key:    keyShare,
		rand:   rand,
		rounds: rounds,
	}
}

// ID returns this party's ID.
func (o *Opener) ID() int {
	return o.mesh.ID
}

// Field returns the field of the opened values.
func (o *Opener) Field() field.Field {
	return o.f
}

// KeyShare returns this party's MAC key share.
func (o *Opener) KeyShare() field.Element {
	return o.key
}

// Pending returns the number of opened values waiting for the MAC
// check.
func (o *Opener) Pending() int {
	return len(o.pending)
}

// Open opens the elements to all parties in one round and returns
// their values.
func (o *Opener) Open(ctx context.Context, elems []Element) (
	[]field.Element, error) {

	if len(elems) == 0 {
		return nil, nil
	}
	shares := make([]field.Element, len(elems))
	for i, e := range elems {
		shares[i] = e.Share
	}
	msgs, err := o.mesh.Broadcast(ctx, field.EncodeVector(o.f, shares))
	if err != nil {
		return nil, err
	}
	values := shares
	for _, msg := range msgs {
		peer, err := field.DecodeVector(o.f, msg, len(elems))
		if err != nil {
			return nil, err
		}
		for i := range values {
			values[i] = o.f.Add(values[i], peer[i])
		}
	}
	o.values = append(o.values, values...)
	o.pending = append(o.pending, elems...)

	return values, nil
}

// Check verifies the MACs of all values opened since the last check.
// The values are combined with jointly random coefficients and each
// party commits to its share of the combined MAC difference before
// opening it. The differences must sum to zero. A failed check is a
// protocol error.
func (o *Opener) Check(ctx context.Context) error {
	if len(o.pending) == 0 {
		return nil
	}
	values := o.values
	pending := o.pending
	o.values = nil
	o.pending = nil

	seed, err := cointoss.GenerateJointSeed(ctx, o.mesh, 256, o.rand,
		o.rounds.Next())
	if err != nil {
		return err
	}
	coeffs := prg.NewExpander(o.f, seed)

	y := o.f.Zero()
	m := o.f.Zero()
	for i, v := range values {
		r := coeffs.Next()
		y = o.f.Add(y, o.f.Mul(r, v))
		m = o.f.Add(m, o.f.Mul(r, pending[i].Mac))
	}
	sigma := o.f.Sub(m, o.f.Mul(o.key, y))

	peers, err := cointoss.CommitAndOpen(ctx, o.mesh, o.f.Bytes(sigma),
		o.rand, o.rounds.Next())
	if err != nil {
		return err
	}
	sum := sigma
	for peer, data := range peers {
		s, err := o.f.SetBytes(data)
		if err != nil {
			return mpcerr.Protocolf("party %d: invalid MAC check share: %v",
				peer, err)
		}
		sum = o.f.Add(sum, s)
	}
	if !sum.IsZero() {
		return mpcerr.Protocolf("MAC check failed for %d values", len(values))
	}
	return nil
}

// OpenTo opens the elements privately to the party owner. The owner
// receives the values; the other parties receive nil. The MACs are
// not verified.
func (o *Opener) OpenTo(ctx context.Context, elems []Element, owner int) (
	[]field.Element, error) {

	if owner < 0 || owner >= o.mesh.N {
		return nil, mpcerr.Usagef("invalid owner %d", owner)
	}
	shares := make([]field.Element, len(elems))
	for i, e := range elems {
		shares[i] = e.Share
	}
	if owner != o.mesh.ID {
		_, err := o.mesh.Exchange(ctx, map[int][]byte{
			owner: field.EncodeVector(o.f, shares),
		}, nil)
		return nil, err
	}
	msgs, err := o.mesh.Exchange(ctx, nil, o.mesh.PeerIDs())
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		peer, err := field.DecodeVector(o.f, msg, len(elems))
		if err != nil {
			return nil, err
		}
		for i := range shares {
			shares[i] = o.f.Add(shares[i], peer[i])
		}
	}
	return shares, nil
}

// Mul multiplies x[i] and y[i] with the triples t[i] with Beaver's
// method. The masked differences are opened in one round and
// recorded for the next Check.
func Mul(ctx context.Context, o *Opener, x, y []Element, t []Triple) (
	[]Element, error) {

	if len(x) != len(y) || len(x) != len(t) {
		return nil, mpcerr.Usagef("Mul: vector lengths %d, %d, %d",
			len(x), len(y), len(t))
	}
	f := o.f
	masked := make([]Element, 0, 2*len(x))
	for i := range x {
		masked = append(masked, x[i].Sub(f, t[i].A))
		masked = append(masked, y[i].Sub(f, t[i].B))
	}
	opened, err := o.Open(ctx, masked)
	if err != nil {
		return nil, err
	}
	result := make([]Element, len(x))
	for i := range x {
		// z = c + ε·b + δ·a + ε·δ
		eps := opened[2*i]
		delta := opened[2*i+1]
		z := t[i].C.
			Add(f, t[i].B.MulConst(f, eps)).
			Add(f, t[i].A.MulConst(f, delta))
		result[i] = z.AddConst(f, f.Mul(eps, delta), o.mesh.ID, o.key)
	}
	return result, nil
}
