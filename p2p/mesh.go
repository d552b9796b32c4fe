//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"context"
	"sort"
	"sync"

	"github.com/markkurossi/mascot/mpcerr"
	"golang.org/x/sync/errgroup"
)

// Mesh implements one party's connections to all other parties of a
// session. The protocol rounds over a Mesh are barriers: a round
// completes only when all its messages are sent and all expected
// messages are received.
type Mesh struct {
	ID    int
	N     int
	Peers map[int]*Conn

	m        sync.Mutex
	firstErr error
}

// NewMesh creates a mesh for party id of n parties with the peer
// connections.
func NewMesh(id, n int, peers map[int]*Conn) (*Mesh, error) {
	if id < 0 || id >= n {
		return nil, mpcerr.Usagef("invalid party ID %d for %d parties", id, n)
	}
	if len(peers) != n-1 {
		return nil, mpcerr.Usagef("expected %d peers, got %d",
			n-1, len(peers))
	}
	for peer := range peers {
		if peer < 0 || peer >= n || peer == id {
			return nil, mpcerr.Usagef("invalid peer ID %d", peer)
		}
	}
	return &Mesh{
		ID:    id,
		N:     n,
		Peers: peers,
	}, nil
}

// PeerIDs returns the peer IDs in ascending order.
func (m *Mesh) PeerIDs() []int {
	var result []int
	for id := range m.Peers {
		result = append(result, id)
	}
	sort.Ints(result)
	return result
}

// Err returns the first error that aborted the mesh, or nil.
func (m *Mesh) Err() error {
	m.m.Lock()
	defer m.m.Unlock()
	return m.firstErr
}

// fail records the first failure and aborts all connections.
func (m *Mesh) fail(err error) error {
	m.m.Lock()
	if m.firstErr == nil {
		m.firstErr = err
	}
	m.m.Unlock()
	m.Abort()
	return err
}

// Abort aborts all peer connections. Blocked operations return
// errors.
func (m *Mesh) Abort() {
	for _, conn := range m.Peers {
		conn.Abort()
	}
}

// Close closes all peer connections.
func (m *Mesh) Close() error {
	var result error
	for _, id := range m.PeerIDs() {
		if err := m.Peers[id].Close(); err != nil && result == nil {
			result = err
		}
	}
	return result
}

// Stats returns the combined I/O statistics of all peers.
func (m *Mesh) Stats() IOStats {
	result := NewIOStats()
	for _, conn := range m.Peers {
		result = result.Add(conn.Stats)
	}
	return result
}

// Parallel runs fn for each peer in its own goroutine and waits for
// all of them to complete. If any fn fails or the context is done,
// the mesh is aborted and the first error is returned as a transport
// error unless it already carries an error kind.
func (m *Mesh) Parallel(ctx context.Context,
	fn func(peer int, conn *Conn) error) error {

	if err := m.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		m.fail(mpcerr.FromContext(ctx, ctx.Err()))
	})
	defer stop()

	var g errgroup.Group
	for _, id := range m.PeerIDs() {
		peer := id
		conn := m.Peers[id]
		g.Go(func() error {
			err := fn(peer, conn)
			if err != nil {
				return m.fail(mpcerr.FromContext(ctx, err))
			}
			return nil
		})
	}
	if g.Wait() != nil {
		return m.Err()
	}
	return nil
}

// Exchange runs one communication round. It sends out[peer] to each
// peer in out and receives one message from each peer in in. The
// sends and receives run concurrently per peer. The function returns
// when all messages are flushed and received.
func (m *Mesh) Exchange(ctx context.Context, out map[int][]byte,
	in []int) (map[int][]byte, error) {

	var mu sync.Mutex
	result := make(map[int][]byte)

	receive := make(map[int]bool)
	for _, id := range in {
		receive[id] = true
	}

	err := m.Parallel(ctx, func(peer int, conn *Conn) error {
		var g errgroup.Group
		msg, ok := out[peer]
		if ok {
			g.Go(func() error {
				if err := conn.SendData(msg); err != nil {
					return err
				}
				return conn.Flush()
			})
		}
		if receive[peer] {
			g.Go(func() error {
				data, err := conn.ReceiveData()
				if err != nil {
					return err
				}
				mu.Lock()
				result[peer] = data
				mu.Unlock()
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Broadcast sends msg to all peers and receives one message from
// each peer.
func (m *Mesh) Broadcast(ctx context.Context, msg []byte) (
	map[int][]byte, error) {

	out := make(map[int][]byte)
	for id := range m.Peers {
		out[id] = msg
	}
	return m.Exchange(ctx, out, m.PeerIDs())
}
