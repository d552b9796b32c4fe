//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package cointoss implements commit-then-open coin-tossing between
// all parties of a mesh. Each party commits to a random contribution,
// all commitments are exchanged before any opening, and the joint
// value is the XOR of all contributions. The result is unbiased as
// long as one party is honest.
package cointoss

import (
	"context"
	"crypto/subtle"
	"encoding/binary"
	"sync/atomic"

	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/p2p"
	"github.com/markkurossi/mascot/prg"
	"github.com/zeebo/blake3"
)

const (
	domain = "mascot 2025 commitment"

	// NonceLen is the commitment nonce length in bytes.
	NonceLen = 32

	// CommitmentLen is the commitment length in bytes.
	CommitmentLen = 32
)

// Commitment binds a party to a value for a protocol round.
type Commitment [CommitmentLen]byte

// Opening opens a commitment.
type Opening struct {
	Nonce []byte
	Value []byte
}

// Bytes encodes the opening.
func (o Opening) Bytes() []byte {
	result := make([]byte, 0, len(o.Nonce)+len(o.Value))
	result = append(result, o.Nonce...)
	return append(result, o.Value...)
}

// ParseOpening decodes an opening.
func ParseOpening(data []byte) (Opening, error) {
	if len(data) < NonceLen {
		return Opening{}, mpcerr.Protocolf("truncated opening: %d bytes",
			len(data))
	}
	return Opening{
		Nonce: data[:NonceLen],
		Value: data[NonceLen:],
	}, nil
}

func hash(sender int, round uint64, nonce, value []byte) Commitment {
	var hdr [12]byte
	binary.BigEndian.PutUint32(hdr[0:], uint32(sender))
	binary.BigEndian.PutUint64(hdr[4:], round)

	h := blake3.New()
	h.Write([]byte(domain))
	h.Write(hdr[:])
	h.Write(nonce)
	h.Write(value)

	var c Commitment
	copy(c[:], h.Sum(nil))
	return c
}

// Commit commits party sender to value in the round.
func Commit(sender int, round uint64, value []byte, rand *prg.DRBG) (
	Commitment, Opening) {

	o := Opening{
		Nonce: rand.Bytes(NonceLen),
		Value: value,
	}
	return hash(sender, round, o.Nonce, o.Value), o
}

// Verify verifies that the opening o opens the commitment c of the
// party sender in the round.
func Verify(sender int, round uint64, c Commitment, o Opening) bool {
	if len(o.Nonce) != NonceLen {
		return false
	}
	h := hash(sender, round, o.Nonce, o.Value)
	return subtle.ConstantTimeCompare(h[:], c[:]) == 1
}

// CommitAndOpen runs two rounds over the mesh. In the first round
// all parties exchange commitments to their values. In the second
// round they exchange the openings. The function verifies all
// openings and returns the peers' values. An invalid opening is a
// protocol error.
func CommitAndOpen(ctx context.Context, mesh *p2p.Mesh, value []byte,
	rand *prg.DRBG, round uint64) (map[int][]byte, error) {

	c, o := Commit(mesh.ID, round, value, rand)

	msgs, err := mesh.Broadcast(ctx, c[:])
	if err != nil {
		return nil, err
	}
	commitments := make(map[int]Commitment)
	for peer, msg := range msgs {
		if len(msg) != CommitmentLen {
			return nil, mpcerr.Protocolf("invalid commitment length %d from %d",
				len(msg), peer)
		}
		var pc Commitment
		copy(pc[:], msg)
		commitments[peer] = pc
	}

	msgs, err = mesh.Broadcast(ctx, o.Bytes())
	if err != nil {
		return nil, err
	}
	result := make(map[int][]byte)
	for peer, msg := range msgs {
		po, err := ParseOpening(msg)
		if err != nil {
			return nil, err
		}
		if !Verify(peer, round, commitments[peer], po) {
			return nil, mpcerr.Protocolf("party %d: commitment mismatch in round %d",
				peer, round)
		}
		result[peer] = po.Value
	}
	return result, nil
}

// GenerateJointSeed generates a joint random seed of bitLength bits.
// All parties obtain the same seed. The seed is deterministic given
// the parties' DRBG states.
func GenerateJointSeed(ctx context.Context, mesh *p2p.Mesh, bitLength int,
	rand *prg.DRBG, round uint64) ([]byte, error) {

	if bitLength <= 0 {
		return nil, mpcerr.Usagef("invalid seed length %d", bitLength)
	}
	n := (bitLength + 7) / 8
	seed := rand.Bytes(n)
	if bitLength%8 != 0 {
		seed[n-1] &= byte(1<<(bitLength%8)) - 1
	}

	values, err := CommitAndOpen(ctx, mesh, seed, rand, round)
	if err != nil {
		return nil, err
	}
	result := make([]byte, n)
	copy(result, seed)
	for peer, v := range values {
		if len(v) != n {
			return nil, mpcerr.Protocolf("party %d: invalid seed length %d",
				peer, len(v))
		}
		for i := range result {
			result[i] ^= v[i]
		}
	}
	return result, nil
}

// Counter issues session-scoped round identifiers. All parties must
// draw identifiers in the same order.
type Counter struct {
	next atomic.Uint64
}

// Next returns the next round identifier.
func (c *Counter) Next() uint64 {
	return c.next.Add(1)
}
