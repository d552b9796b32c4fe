//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package mascot

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/markkurossi/mascot/cointoss"
	"github.com/markkurossi/mascot/field"
	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/prg"
	"github.com/markkurossi/mascot/spdz"
	"github.com/zeebo/blake3"
)

const (
	combineDomain   = "mascot 2025 combine"
	sacrificeDomain = "mascot 2025 sacrifice"
)

// Triples creates at least atLeast authenticated multiplication
// triples. The number of triples is rounded up to the batch size
// table of the session's statistical security parameter. Requests
// exceeding the table are usage errors and do not affect the
// session.
func (s *Session) Triples(ctx context.Context, atLeast int) (
	[]spdz.Triple, error) {

	s.m.Lock()
	defer s.m.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	n, err := TriplesToCreate(max(atLeast, s.params.TripleBatch),
		s.params.StatisticalBits)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.context(ctx)
	defer cancel()

	start := time.Now()
	result, err := s.generate(ctx, s.sample(n), s.multiply)
	if err != nil {
		return nil, s.fail(err)
	}
	s.log.Info("triples", "batch", s.batches, "count", n,
		"elapsed", time.Since(start))
	return result, nil
}

// combineCount returns the number of candidate b factors per triple.
// A peer can learn bits of the candidates by selective failure; the
// combined b keeps bits+ssp bits of entropy as long as
// (tau-1)·bits >= 2·ssp.
func combineCount(bits, ssp int) int {
	return max(3, 1+(2*ssp+bits-1)/bits)
}

// candidates holds this party's factors of one triple batch. Triple
// i has the candidate b factors b[i*tau:(i+1)*tau].
type candidates struct {
	tau  int
	a    []field.Element
	ahat []field.Element
	b    []field.Element
}

func (s *Session) sample(n int) *candidates {
	tau := combineCount(s.f.Bits(), s.params.StatisticalBits)
	return &candidates{
		tau:  tau,
		a:    s.rand.Elements(s.f, n),
		ahat: s.rand.Elements(s.f, n),
		b:    s.rand.Elements(s.f, n*tau),
	}
}

// generate creates one triple batch from the candidates. Each triple
// (a, b, c) is created with a companion triple (â, b, ĉ) sharing the
// factor b:
//
//  1. Multiply: compute a·b_j and â·b_j for all candidates b_j.
//  2. Combine: b = Σ r_j·b_j with coin-tossed r_j, and c and ĉ
//     likewise.
//  3. Authenticate a, â, b, c, and ĉ.
//  4. Sacrifice: open ρ = r·a - â and check that r·c - ĉ - ρ·b opens
//     to zero.
func (s *Session) generate(ctx context.Context, cand *candidates,
	mul multiplier) ([]spdz.Triple, error) {

	f := s.f
	n := len(cand.a)

	// A failed batch consumes its counter value.
	s.batches++
	batch := s.batches

	left := make([][]field.Element, len(cand.b))
	for i := range left {
		t := i / cand.tau
		left[i] = []field.Element{cand.a[t], cand.ahat[t]}
	}
	cross, err := mul(ctx, left, cand.b, 2)
	if err != nil {
		return nil, err
	}
	s.log.V(1).Info("cross terms done", "batch", batch, "tau", cand.tau)

	b, c, chat, err := s.combine(ctx, batch, cand, cross)
	if err != nil {
		return nil, err
	}

	values := make([]field.Element, 0, 5*n)
	values = append(values, cand.a...)
	values = append(values, cand.ahat...)
	values = append(values, b...)
	values = append(values, c...)
	values = append(values, chat...)

	elems, err := s.authenticate(ctx, values, mul)
	if err != nil {
		return nil, err
	}
	A := elems[0:n]
	Ahat := elems[n : 2*n]
	B := elems[2*n : 3*n]
	C := elems[3*n : 4*n]
	Chat := elems[4*n : 5*n]
	s.log.V(1).Info("authentication done", "batch", batch)

	// Sacrifice.
	coeffs, err := s.coefficients(ctx, sacrificeDomain, batch, n)
	if err != nil {
		return nil, err
	}
	rho := make([]spdz.Element, n)
	for i := range rho {
		rho[i] = A[i].MulConst(f, coeffs[i]).Sub(f, Ahat[i])
	}
	rhoValues, err := s.opener.Open(ctx, rho)
	if err != nil {
		return nil, err
	}
	z := make([]spdz.Element, n)
	for i := range z {
		z[i] = C[i].MulConst(f, coeffs[i]).
			Sub(f, Chat[i]).
			Sub(f, B[i].MulConst(f, rhoValues[i]))
	}
	zValues, err := s.opener.Open(ctx, z)
	if err != nil {
		return nil, err
	}
	for i, v := range zValues {
		if !v.IsZero() {
			return nil, mpcerr.Protocolf("sacrifice check failed: batch %d, triple %d",
				batch, i)
		}
	}
	if err := s.opener.Check(ctx); err != nil {
		return nil, err
	}

	result := make([]spdz.Triple, n)
	for i := range result {
		result[i] = spdz.Triple{
			A: A[i],
			B: B[i],
			C: C[i],
		}
	}
	return result, nil
}

// combine combines the candidate products of each triple into one
// b, c, and ĉ with public random coefficients. The coefficients are
// tossed after the multiplication so no peer can choose its
// corrections based on them.
func (s *Session) combine(ctx context.Context, batch uint64,
	cand *candidates, cross [][]field.Element) (
	b, c, chat []field.Element, err error) {

	f := s.f
	coeffs, err := s.coefficients(ctx, combineDomain, batch, len(cand.b))
	if err != nil {
		return nil, nil, nil, err
	}
	n := len(cand.a)
	b = make([]field.Element, n)
	c = make([]field.Element, n)
	chat = make([]field.Element, n)

	for i := 0; i < n; i++ {
		b[i], c[i], chat[i] = f.Zero(), f.Zero(), f.Zero()
		for j := 0; j < cand.tau; j++ {
			idx := i*cand.tau + j
			r := coeffs[idx]
			bj := cand.b[idx]
			cj := f.Add(f.Mul(cand.a[i], bj), cross[idx][0])
			chatj := f.Add(f.Mul(cand.ahat[i], bj), cross[idx][1])

			b[i] = f.Add(b[i], f.Mul(r, bj))
			c[i] = f.Add(c[i], f.Mul(r, cj))
			chat[i] = f.Add(chat[i], f.Mul(r, chatj))
		}
	}
	return b, c, chat, nil
}

// coefficients derives n public coefficients for the batch from the
// joint seed, the domain, and a fresh coin toss.
func (s *Session) coefficients(ctx context.Context, domain string,
	batch uint64, n int) ([]field.Element, error) {

	fresh, err := cointoss.GenerateJointSeed(ctx, s.mesh, 256, s.rand,
		s.rounds.Next())
	if err != nil {
		return nil, err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], batch)

	h := blake3.New()
	h.Write([]byte(domain))
	h.Write(s.jointSeed)
	h.Write(buf[:])
	h.Write(fresh)

	return prg.Expand(s.f, h.Sum(nil), n), nil
}
