//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package preproc

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/markkurossi/mascot/env"
	"github.com/markkurossi/mascot/field"
	"github.com/markkurossi/mascot/mascot"
	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/spdz"
)

var _ Supplier = &MascotSupplier{}

// MascotSupplier supplies preprocessing material from a MASCOT
// session. It is safe for concurrent use but all parties must make
// the same sequence of calls.
type MascotSupplier struct {
	m       sync.Mutex
	session *mascot.Session
	f       field.Field
	log     logr.Logger
	timing  *Timing
	triples []spdz.Triple
	randoms []spdz.Element
	bits    []spdz.Element
	masks   map[int][]spdz.InputMask
}

// NewMascotSupplier creates a new supplier for the session.
func NewMascotSupplier(session *mascot.Session, cfg *env.Config) *MascotSupplier {
	return &MascotSupplier{
		session: session,
		f:       session.Field(),
		log:     cfg.GetLogger().WithName("preproc"),
		timing:  NewTiming(),
		masks:   make(map[int][]spdz.InputMask),
	}
}

// Timing returns the supplier's timing samples.
func (s *MascotSupplier) Timing() *Timing {
	s.m.Lock()
	defer s.m.Unlock()
	return s.timing
}

// Field implements Supplier.Field.
func (s *MascotSupplier) Field() field.Field {
	return s.f
}

// MacKeyShare implements Supplier.MacKeyShare.
func (s *MascotSupplier) MacKeyShare() field.Element {
	return s.session.MacKeyShare()
}

// NextTriple implements Supplier.NextTriple.
func (s *MascotSupplier) NextTriple(ctx context.Context) (spdz.Triple, error) {
	s.m.Lock()
	defer s.m.Unlock()

	t, err := s.nextTriples(ctx, 1)
	if err != nil {
		return spdz.Triple{}, err
	}
	return t[0], nil
}

// NextRandomElement implements Supplier.NextRandomElement.
func (s *MascotSupplier) NextRandomElement(ctx context.Context) (
	spdz.Element, error) {

	s.m.Lock()
	defer s.m.Unlock()

	r, err := s.nextRandoms(ctx, 1)
	if err != nil {
		return spdz.Element{}, err
	}
	return r[0], nil
}

// NextBit implements Supplier.NextBit.
func (s *MascotSupplier) NextBit(ctx context.Context) (spdz.Element, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if err := s.session.Err(); err != nil {
		return spdz.Element{}, err
	}
	for len(s.bits) == 0 {
		if err := s.refillBits(ctx); err != nil {
			return spdz.Element{}, err
		}
	}
	b := s.bits[0]
	s.bits = s.bits[1:]
	return b, nil
}

// NextInputMask implements Supplier.NextInputMask.
func (s *MascotSupplier) NextInputMask(ctx context.Context, toward int) (
	spdz.InputMask, error) {

	if toward < 0 || toward >= s.session.NumParties() {
		return spdz.InputMask{}, mpcerr.Usagef("invalid party %d", toward)
	}
	s.m.Lock()
	defer s.m.Unlock()

	if err := s.session.Err(); err != nil {
		return spdz.InputMask{}, err
	}
	if len(s.masks[toward]) == 0 {
		if err := s.refillMasks(ctx, toward); err != nil {
			return spdz.InputMask{}, err
		}
	}
	m := s.masks[toward][0]
	s.masks[toward] = s.masks[toward][1:]
	return m, nil
}

// NextExpPipe implements Supplier.NextExpPipe.
func (s *MascotSupplier) NextExpPipe(ctx context.Context, length int) (
	[]spdz.Element, error) {

	if length == 0 {
		length = env.BatchSize(s.session.Params().ExpPipeLength,
			env.DefaultExpPipeLength)
	}
	if length < 2 {
		return nil, mpcerr.Usagef("exp pipe length %d < 2", length)
	}
	s.m.Lock()
	defer s.m.Unlock()

	if err := s.session.Err(); err != nil {
		return nil, err
	}
	result, err := s.expPipe(ctx, length)
	if err != nil {
		return nil, s.session.Fail(err)
	}
	s.timing.Sample("Exp pipe", length, s.session.Stats().Sum())
	return result, nil
}

func (s *MascotSupplier) nextTriples(ctx context.Context, n int) (
	[]spdz.Triple, error) {

	for len(s.triples) < n {
		batch, err := s.session.Triples(ctx, n-len(s.triples))
		if err != nil {
			return nil, err
		}
		s.triples = append(s.triples, batch...)
		s.timing.Sample("Triples", len(batch), s.session.Stats().Sum())
	}
	result := s.triples[:n]
	s.triples = s.triples[n:]
	return result, nil
}

func (s *MascotSupplier) nextRandoms(ctx context.Context, n int) (
	[]spdz.Element, error) {

	for len(s.randoms) < n {
		count := max(n-len(s.randoms),
			env.BatchSize(s.session.Params().RandomBatch,
				env.DefaultRandomBatch))
		batch, err := s.session.RandomElements(ctx, count)
		if err != nil {
			return nil, err
		}
		s.randoms = append(s.randoms, batch...)
		s.timing.Sample("Random", len(batch), s.session.Stats().Sum())
	}
	result := s.randoms[:n]
	s.randoms = s.randoms[n:]
	return result, nil
}

// refillBits creates random bits as b = (r/√(r²) + 1)/2 for random r.
// The value r/√(r²) is ±1 with equal probability. Candidates with
// r = 0 are discarded.
func (s *MascotSupplier) refillBits(ctx context.Context) error {
	count := env.BatchSize(s.session.Params().BitBatch, env.DefaultBitBatch)

	r, err := s.nextRandoms(ctx, count)
	if err != nil {
		return err
	}
	triples, err := s.nextTriples(ctx, count)
	if err != nil {
		return err
	}
	sample := s.timing.Sample("Bits", 0, 0)

	bits, err := s.squareRootBits(ctx, r, triples, sample)
	if err != nil {
		return s.session.Fail(err)
	}
	sample.Count = len(bits)
	sample.End = time.Now()
	sample.Xfer = s.session.Stats().Sum()

	s.bits = append(s.bits, bits...)
	s.log.V(1).Info("bits", "count", len(bits))
	return nil
}

func (s *MascotSupplier) squareRootBits(ctx context.Context, r []spdz.Element,
	triples []spdz.Triple, sample *Sample) ([]spdz.Element, error) {

	f := s.f
	opener := s.session.Opener()

	squares, err := spdz.Mul(ctx, opener, r, r, triples)
	if err != nil {
		return nil, err
	}
	values, err := opener.Open(ctx, squares)
	if err != nil {
		return nil, err
	}
	if err := opener.Check(ctx); err != nil {
		return nil, err
	}
	sample.SubSample("Square", time.Now())

	twoInv, err := f.Inv(f.FromInt64(2))
	if err != nil {
		return nil, err
	}
	var result []spdz.Element
	for i, v := range values {
		if v.IsZero() {
			continue
		}
		root, err := f.Sqrt(v)
		if err != nil {
			return nil, mpcerr.Protocolf("opened square has no root: %v", err)
		}
		inv, err := f.Inv(root)
		if err != nil {
			return nil, err
		}
		b := r[i].MulConst(f, inv).
			AddConst(f, f.One(), s.session.ID(), s.session.MacKeyShare()).
			MulConst(f, twoInv)
		result = append(result, b)
	}
	sample.SubSample("Roots", time.Now())

	return result, nil
}

func (s *MascotSupplier) refillMasks(ctx context.Context, toward int) error {
	count := env.BatchSize(s.session.Params().RandomBatch,
		env.DefaultRandomBatch)
	elems, err := s.nextRandoms(ctx, count)
	if err != nil {
		return err
	}
	values, err := s.session.Opener().OpenTo(ctx, elems, toward)
	if err != nil {
		return s.session.Fail(err)
	}
	masks := make([]spdz.InputMask, len(elems))
	for i, e := range elems {
		masks[i].Mask = e
		if values != nil {
			v := values[i]
			masks[i].Value = &v
		}
	}
	s.masks[toward] = append(s.masks[toward], masks...)
	s.timing.Sample("Input masks", len(masks), s.session.Stats().Sum())
	return nil
}

// expPipe creates [r⁻¹, r, r², ..., r^(length-1)]. The inverse is
// computed by opening t = r·s for a random s and setting r⁻¹ = s·t⁻¹.
func (s *MascotSupplier) expPipe(ctx context.Context, length int) (
	[]spdz.Element, error) {

	f := s.f
	opener := s.session.Opener()

	var r, rInv spdz.Element
	for {
		rs, err := s.nextRandoms(ctx, 2)
		if err != nil {
			return nil, err
		}
		t, err := s.nextTriples(ctx, 1)
		if err != nil {
			return nil, err
		}
		prod, err := spdz.Mul(ctx, opener, rs[:1], rs[1:], t)
		if err != nil {
			return nil, err
		}
		v, err := opener.Open(ctx, prod)
		if err != nil {
			return nil, err
		}
		if v[0].IsZero() {
			continue
		}
		vInv, err := f.Inv(v[0])
		if err != nil {
			return nil, err
		}
		r = rs[0]
		rInv = rs[1].MulConst(f, vInv)
		break
	}

	result := make([]spdz.Element, length)
	result[0] = rInv
	result[1] = r
	for i := 2; i < length; i++ {
		t, err := s.nextTriples(ctx, 1)
		if err != nil {
			return nil, err
		}
		p, err := spdz.Mul(ctx, opener, result[i-1:i], []spdz.Element{r}, t)
		if err != nil {
			return nil, err
		}
		result[i] = p[0]
	}
	if err := opener.Check(ctx); err != nil {
		return nil, err
	}
	return result, nil
}
