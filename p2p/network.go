//
// Copyright (c) 2020-2025 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/markkurossi/mascot/mpcerr"
)

// Network implements a TCP peer-to-peer network. Party i listens on
// its own address, dials all parties with smaller IDs, and accepts
// connections from parties with larger IDs.
type Network struct {
	ID       int
	N        int
	m        sync.Mutex
	Peers    map[int]*Conn
	joined   chan struct{}
	addr     string
	listener net.Listener
	log      logr.Logger
}

// NewNetwork creates a new peer-to-peer network for party id of n
// parties, listening at addr.
func NewNetwork(addr string, id, n int, log logr.Logger) (*Network, error) {
	if id < 0 || id >= n {
		return nil, mpcerr.Usagef("invalid party ID %d for %d parties", id, n)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, mpcerr.Transport(err)
	}
	nw := &Network{
		ID:       id,
		N:        n,
		Peers:    make(map[int]*Conn),
		joined:   make(chan struct{}, n),
		addr:     addr,
		listener: listener,
		log:      log.WithName("network").WithValues("party", id),
	}
	go nw.acceptLoop()
	return nw, nil
}

// Connect creates the full TCP mesh for party id. The addrs list
// holds the listening addresses of all parties, indexed by party ID.
func Connect(ctx context.Context, id int, addrs []string, log logr.Logger) (
	*Mesh, error) {

	if id < 0 || id >= len(addrs) {
		return nil, mpcerr.Usagef("invalid party ID %d for %d addresses",
			id, len(addrs))
	}
	nw, err := NewNetwork(addrs[id], id, len(addrs), log)
	if err != nil {
		return nil, err
	}
	defer nw.Close()

	for peer := 0; peer < id; peer++ {
		if err := nw.AddPeer(ctx, addrs[peer], peer); err != nil {
			nw.closePeers()
			return nil, err
		}
	}
	if err := nw.Wait(ctx); err != nil {
		nw.closePeers()
		return nil, err
	}
	nw.m.Lock()
	peers := make(map[int]*Conn)
	for peer, conn := range nw.Peers {
		peers[peer] = conn
	}
	nw.m.Unlock()

	return NewMesh(id, nw.N, peers)
}

// Close closes the network listener.
func (nw *Network) Close() error {
	return nw.listener.Close()
}

func (nw *Network) closePeers() {
	nw.m.Lock()
	defer nw.m.Unlock()
	for _, conn := range nw.Peers {
		conn.Abort()
		conn.Close()
	}
}

// AddPeer connects to the peer id at addr. It retries until the
// connection succeeds or the context is done.
func (nw *Network) AddPeer(ctx context.Context, addr string, id int) error {
	var dialer net.Dialer
	for {
		nw.log.V(1).Info("connecting", "peer", id, "addr", addr)
		nc, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return mpcerr.FromContext(ctx, err)
			}
			delay := time.Second
			nw.log.V(1).Info("connect failed, retrying", "peer", id,
				"delay", delay, "error", err.Error())
			select {
			case <-ctx.Done():
				return mpcerr.FromContext(ctx, err)
			case <-time.After(delay):
			}
			continue
		}
		nw.log.Info("connected", "peer", id, "addr", addr)
		conn := NewConn(nc)

		if err := conn.SendUint32(nw.ID); err != nil {
			conn.Close()
			return mpcerr.Transport(err)
		}
		if err := conn.Flush(); err != nil {
			conn.Close()
			return mpcerr.Transport(err)
		}
		return nw.newPeer(conn, id)
	}
}

// Wait waits until all parties with larger IDs have connected.
func (nw *Network) Wait(ctx context.Context) error {
	for count := 0; count < nw.N-1-nw.ID; count++ {
		select {
		case <-ctx.Done():
			return mpcerr.FromContext(ctx, ctx.Err())
		case <-nw.joined:
		}
	}
	return nil
}

// Stats returns the I/O stats from the network.
func (nw *Network) Stats() IOStats {
	nw.m.Lock()
	defer nw.m.Unlock()

	result := NewIOStats()
	for _, conn := range nw.Peers {
		result = result.Add(conn.Stats)
	}
	return result
}

func (nw *Network) acceptLoop() {
	for {
		nc, err := nw.listener.Accept()
		if err != nil {
			nw.log.V(1).Info("accept loop done", "error", err.Error())
			return
		}
		conn := NewConn(nc)

		// Read peer ID.
		id, err := conn.ReceiveUint32()
		if err != nil {
			nw.log.Error(err, "failed to read peer ID")
			conn.Close()
			continue
		}
		if id <= nw.ID || id >= nw.N {
			nw.log.Info("rejecting peer", "peer", id)
			conn.Close()
			continue
		}
		if err := nw.newPeer(conn, id); err != nil {
			nw.log.Error(err, "inbound connection error")
			continue
		}
		nw.joined <- struct{}{}
	}
}

func (nw *Network) newPeer(conn *Conn, id int) error {
	nw.m.Lock()
	defer nw.m.Unlock()

	_, ok := nw.Peers[id]
	if ok {
		conn.Close()
		return mpcerr.Protocolf("peer %d already connected", id)
	}
	nw.Peers[id] = conn
	return nil
}
