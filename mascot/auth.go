//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package mascot

import (
	"context"

	"github.com/markkurossi/mascot/cointoss"
	"github.com/markkurossi/mascot/field"
	"github.com/markkurossi/mascot/prg"
	"github.com/markkurossi/mascot/spdz"
)

// Authenticate authenticates this party's additive shares of secret
// values. All parties must call Authenticate with the same number of
// values. The MAC shares are computed with OT-based multiplication of
// the values against every peer's MAC key share and verified with a
// masked random linear combination.
func (s *Session) Authenticate(ctx context.Context, values []field.Element) (
	[]spdz.Element, error) {

	s.m.Lock()
	defer s.m.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	ctx, cancel := s.context(ctx)
	defer cancel()

	result, err := s.authenticate(ctx, values, s.multiply)
	return result, s.fail(err)
}

// RandomElements creates n authenticated random elements.
func (s *Session) RandomElements(ctx context.Context, n int) (
	[]spdz.Element, error) {

	s.m.Lock()
	defer s.m.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	ctx, cancel := s.context(ctx)
	defer cancel()

	result, err := s.authenticate(ctx, s.rand.Elements(s.f, n), s.multiply)
	if err != nil {
		return nil, s.fail(err)
	}
	s.log.V(1).Info("random elements", "count", n)
	return result, nil
}

func (s *Session) authenticate(ctx context.Context, values []field.Element,
	mul multiplier) ([]spdz.Element, error) {

	if len(values) == 0 {
		return nil, nil
	}
	f := s.f

	// The extra random value masks the linear combination.
	vector := make([]field.Element, 0, len(values)+1)
	vector = append(vector, values...)
	vector = append(vector, s.rand.Element(f))

	cross, err := mul(ctx, [][]field.Element{vector},
		[]field.Element{s.key}, len(vector))
	if err != nil {
		return nil, err
	}
	elems := make([]spdz.Element, len(vector))
	for i, v := range vector {
		elems[i] = spdz.Element{
			Share: v,
			Mac:   f.Add(f.Mul(v, s.key), cross[0][i]),
		}
	}

	seed, err := cointoss.GenerateJointSeed(ctx, s.mesh, 256, s.rand,
		s.rounds.Next())
	if err != nil {
		return nil, err
	}
	coeffs := prg.NewExpander(f, seed)
	combined := elems[len(values)]
	for _, e := range elems[:len(values)] {
		combined = combined.Add(f, e.MulConst(f, coeffs.Next()))
	}
	if _, err := s.opener.Open(ctx, []spdz.Element{combined}); err != nil {
		return nil, err
	}
	if err := s.opener.Check(ctx); err != nil {
		return nil, err
	}
	return elems[:len(values)], nil
}
