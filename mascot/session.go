//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package mascot implements MASCOT-style generation of authenticated
// multiplication triples and random elements. A Session is created
// once per mesh. It agrees on the session parameters, runs the seed
// OTs between every ordered pair of parties, and coin-tosses the
// joint seed. After that, the session produces authenticated material
// in batches. Each batch is an independent protocol run.
//
// A protocol or transport error poisons the session: all later calls
// return the same error and the application must create a new
// session.
package mascot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-logr/logr"
	"github.com/markkurossi/mascot/cointoss"
	"github.com/markkurossi/mascot/env"
	"github.com/markkurossi/mascot/field"
	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/mult"
	"github.com/markkurossi/mascot/ot"
	"github.com/markkurossi/mascot/otext"
	"github.com/markkurossi/mascot/p2p"
	"github.com/markkurossi/mascot/prg"
	"github.com/markkurossi/mascot/spdz"
	"github.com/markkurossi/text/superscript"
)

// Session implements one party's triple generation session.
type Session struct {
	m         sync.Mutex
	mesh      *p2p.Mesh
	params    *env.Params
	f         field.Field
	log       logr.Logger
	timeout   time.Duration
	rand      *prg.DRBG
	key       field.Element
	senders   map[int]*otext.Sender
	receivers map[int]*otext.Receiver
	jointSeed []byte
	rounds    cointoss.Counter
	batches   uint64
	opener    *spdz.Opener
	err       error
}

// NewSession creates a new session over the mesh. The function
// blocks until all parties have joined the session.
func NewSession(ctx context.Context, mesh *p2p.Mesh, params *env.Params,
	cfg *env.Config) (*Session, error) {

	if err := params.Validate(); err != nil {
		return nil, err
	}
	if mesh.ID != params.ID || mesh.N != params.NumParties {
		return nil, mpcerr.Usagef("mesh P%d/%d does not match parameters P%d/%d",
			mesh.ID, mesh.N, params.ID, params.NumParties)
	}
	f, err := field.New(params.Modulus)
	if err != nil {
		return nil, err
	}
	group, err := ot.GroupFor(params.ComputationalBits)
	if err != nil {
		return nil, err
	}

	var rand *prg.DRBG
	if len(cfg.Seed) > 0 {
		rand = prg.NewDRBG(cfg.Seed)
	} else {
		rand, err = prg.NewDRBGFromReader(cfg.GetRandom())
		if err != nil {
			return nil, mpcerr.Transport(err)
		}
	}

	s := &Session{
		mesh:   mesh,
		params: params,
		f:      f,
		log: cfg.GetLogger().WithName("mascot").
			WithValues("party", party(params.ID)),
		timeout:   cfg.GetTimeout(),
		rand:      rand,
		senders:   make(map[int]*otext.Sender),
		receivers: make(map[int]*otext.Receiver),
	}
	if params.MacKeyShare != nil {
		s.key = f.NewElement(params.MacKeyShare)
	} else {
		s.key = rand.Element(f)
	}

	ctx, cancel := s.context(ctx)
	defer cancel()

	if err := s.handshake(ctx); err != nil {
		return nil, err
	}
	if err := s.seedOTs(ctx, group); err != nil {
		return nil, err
	}
	s.jointSeed, err = cointoss.GenerateJointSeed(ctx, mesh,
		params.PRGSeedBits, rand, s.rounds.Next())
	if err != nil {
		return nil, err
	}
	s.opener = spdz.NewOpener(mesh, f, s.key, rand.Fork("opener"), &s.rounds)

	s.log.Info("session ready", "parties", params.NumParties,
		"bits", f.Bits(), "kappa", params.Kappa(), "group", group.Name())

	return s, nil
}

func party(id int) string {
	return "P" + superscript.Itoa(id)
}

// context bounds one protocol run with the session timeout.
func (s *Session) context(ctx context.Context) (
	context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// handshake verifies that all parties run with the same public
// parameters.
func (s *Session) handshake(ctx context.Context) error {
	data, err := cbor.Marshal(s.params.Public())
	if err != nil {
		return errors.Wrap(err, "encode parameters")
	}
	msgs, err := s.mesh.Broadcast(ctx, data)
	if err != nil {
		return err
	}
	ours := s.params.Public()
	for peer, msg := range msgs {
		var theirs env.PublicParams
		if err := cbor.Unmarshal(msg, &theirs); err != nil {
			return mpcerr.Protocolf("%s: invalid parameters: %v",
				party(peer), err)
		}
		if !ours.Equal(&theirs) {
			return mpcerr.Protocolf("%s: parameter mismatch: %+v != %+v",
				party(peer), theirs, *ours)
		}
	}
	s.log.V(1).Info("handshake done")
	return nil
}

// seedOTs creates the OT extension instances for every ordered pair
// of parties. Within a pair the party with the lower ID creates its
// sender first.
func (s *Session) seedOTs(ctx context.Context, group ot.Group) error {
	type forks struct {
		sender   *prg.DRBG
		receiver *prg.DRBG
	}
	rands := make(map[int]forks)
	for _, peer := range s.mesh.PeerIDs() {
		rands[peer] = forks{
			sender:   s.rand.Fork(fmt.Sprintf("otext sender %d", peer)),
			receiver: s.rand.Fork(fmt.Sprintf("otext receiver %d", peer)),
		}
	}
	kappa := s.params.Kappa()
	seedLen := s.params.PRGSeedBits / 8

	var mu sync.Mutex
	return s.mesh.Parallel(ctx, func(peer int, conn *p2p.Conn) error {
		r := rands[peer]
		newSender := func() (*otext.Sender, error) {
			return otext.NewSender(conn, ot.NewCO(group, r.sender), kappa,
				seedLen, r.sender)
		}
		newReceiver := func() (*otext.Receiver, error) {
			return otext.NewReceiver(conn, ot.NewCO(group, r.receiver), kappa,
				seedLen, r.receiver)
		}
		var sender *otext.Sender
		var receiver *otext.Receiver
		var err error
		if s.mesh.ID < peer {
			if sender, err = newSender(); err != nil {
				return err
			}
			receiver, err = newReceiver()
		} else {
			if receiver, err = newReceiver(); err != nil {
				return err
			}
			sender, err = newSender()
		}
		if err != nil {
			return err
		}
		mu.Lock()
		s.senders[peer] = sender
		s.receivers[peer] = receiver
		mu.Unlock()

		s.log.V(1).Info("seed OTs done",
			"pair", party(s.mesh.ID)+"→"+party(peer), "kappa", kappa)
		return nil
	})
}

// ID returns this party's ID.
func (s *Session) ID() int {
	return s.mesh.ID
}

// NumParties returns the number of parties in the session.
func (s *Session) NumParties() int {
	return s.mesh.N
}

// Params returns the session parameters.
func (s *Session) Params() *env.Params {
	return s.params
}

// Field returns the session field.
func (s *Session) Field() field.Field {
	return s.f
}

// MacKeyShare returns this party's MAC key share.
func (s *Session) MacKeyShare() field.Element {
	return s.key
}

// Opener returns the session's opener. The opener shares the
// session's round counter.
func (s *Session) Opener() *spdz.Opener {
	return s.opener
}

// Stats returns the session's I/O statistics.
func (s *Session) Stats() p2p.IOStats {
	return s.mesh.Stats()
}

// Err returns the error that poisoned the session, or nil.
func (s *Session) Err() error {
	s.m.Lock()
	defer s.m.Unlock()
	return s.err
}

// Fail records err for the session. Protocol and transport errors
// poison the session and abort all peer connections. The function
// returns err.
func (s *Session) Fail(err error) error {
	s.m.Lock()
	defer s.m.Unlock()
	return s.fail(err)
}

func (s *Session) fail(err error) error {
	if err == nil || !mpcerr.IsFatal(err) {
		return err
	}
	if s.err == nil {
		s.err = err
		s.log.Error(err, "session failed")
		s.mesh.Abort()
	}
	return s.err
}

// multiplier computes this party's share of the cross terms of
// vector left factors and scalar right factors with all peers.
type multiplier func(ctx context.Context, left [][]field.Element,
	right []field.Element, width int) ([][]field.Element, error)

// multiply runs OT-based multiplication with every peer in both
// roles. The vector left[r] is multiplied with every peer's right
// factor r and every peer's left[r] is multiplied with right[r]. The
// function returns this party's share of the sum of all cross terms.
func (s *Session) multiply(ctx context.Context, left [][]field.Element,
	right []field.Element, width int) ([][]field.Element, error) {

	if len(left) != len(right) {
		return nil, mpcerr.Usagef("multiply: %d left rows, %d right factors",
			len(left), len(right))
	}
	result := make([][]field.Element, len(right))
	for r := range result {
		result[r] = make([]field.Element, width)
	}

	var mu sync.Mutex
	err := s.mesh.Parallel(ctx, func(peer int, conn *p2p.Conn) error {
		l, r, err := s.multiplyPeer(ctx, conn, peer, left, right, width)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if err := addShares(s.f, result, l); err != nil {
			return err
		}
		return addShares(s.f, result, r)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// multiplyPeer runs both multiplication roles with peer over io. The
// party with the lower ID is the left-holder first. The function
// returns the left-holder and right-holder shares.
func (s *Session) multiplyPeer(ctx context.Context, io ot.IO, peer int,
	left [][]field.Element, right []field.Element, width int) (
	l, r [][]field.Element, err error) {

	runLeft := func() error {
		l, err = mult.MultiplyLeft(ctx, io, s.senders[peer], s.f, left)
		return err
	}
	runRight := func() error {
		r, err = mult.MultiplyRight(ctx, io, s.receivers[peer], s.f, right,
			width)
		return err
	}
	first, second := runRight, runLeft
	if s.mesh.ID < peer {
		first, second = runLeft, runRight
	}
	if err = first(); err != nil {
		return nil, nil, err
	}
	if err = second(); err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

// addShares adds the shares to result.
func addShares(f field.Field, result, shares [][]field.Element) error {
	if len(shares) != len(result) {
		return mpcerr.Protocolf("multiply: got %d shares, expected %d",
			len(shares), len(result))
	}
	for r, row := range shares {
		for i, v := range row {
			result[r][i] = f.Add(result[r][i], v)
		}
	}
	return nil
}
