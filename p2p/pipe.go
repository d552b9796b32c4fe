//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"io"

	"github.com/cockroachdb/errors"
)

// Pipe creates a connected pair of in-memory connections. Anything
// sent to one endpoint can be received from the other. The pipes are
// synchronous: a write blocks until the peer reads the data.
func Pipe() (*Conn, *Conn) {
	r0, w1 := io.Pipe()
	r1, w0 := io.Pipe()

	return NewConn(&pipe{r: r0, w: w0}), NewConn(&pipe{r: r1, w: w1})
}

// PipeMesh creates a fully connected mesh of in-memory pipes for n
// parties. The mesh of party i is at index i.
func PipeMesh(n int) []*Mesh {
	result := make([]*Mesh, n)
	for i := range result {
		result[i] = &Mesh{
			ID:    i,
			N:     n,
			Peers: make(map[int]*Conn),
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			result[i].Peers[j], result[j].Peers[i] = Pipe()
		}
	}
	return result
}

type pipe struct {
	r *io.PipeReader
	w *io.PipeWriter
}

// Close closes both directions of the pipe. Blocked reads and writes
// of the peer fail with io.ErrClosedPipe.
func (p *pipe) Close() error {
	return errors.CombineErrors(p.r.Close(), p.w.Close())
}

func (p *pipe) Read(data []byte) (int, error) {
	return p.r.Read(data)
}

func (p *pipe) Write(data []byte) (int, error) {
	return p.w.Write(data)
}
