//
// Copyright (c) 2019-2025 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"

	"github.com/markkurossi/mascot/mpcerr"
)

const (
	numBuffers   = 3
	writeBufSize = 64 * 1024
	readBufSize  = 1024 * 1024

	// MaxMessageSize defines the maximum size of a data frame.
	MaxMessageSize = 256 * 1024 * 1024
)

// Conn implements a protocol connection. A Conn can be used by one
// sending and one receiving goroutine concurrently.
type Conn struct {
	conn      io.ReadWriter
	WriteBuf  []byte
	WritePos  int
	ReadBuf   []byte
	ReadStart int
	ReadEnd   int
	Stats     IOStats

	fromWriter chan []byte
	toWriter   chan []byte
	writerErr  error
	closeOnce  sync.Once
	closeErr   error
}

// IOStats implements I/O statistics.
type IOStats struct {
	Sent    *atomic.Uint64
	Recvd   *atomic.Uint64
	Flushed *atomic.Uint64
}

// NewIOStats creates a new I/O statistics object.
func NewIOStats() IOStats {
	return IOStats{
		Sent:    new(atomic.Uint64),
		Recvd:   new(atomic.Uint64),
		Flushed: new(atomic.Uint64),
	}
}

// Add adds the argument stats to this IOStats and returns the sum.
func (stats IOStats) Add(o IOStats) IOStats {
	result := NewIOStats()
	if stats.Sent != nil {
		result.Sent.Store(stats.Sent.Load())
		result.Recvd.Store(stats.Recvd.Load())
		result.Flushed.Store(stats.Flushed.Load())
	}
	result.Sent.Add(o.Sent.Load())
	result.Recvd.Add(o.Recvd.Load())
	result.Flushed.Add(o.Flushed.Load())
	return result
}

// Sum returns sum of sent and received bytes.
func (stats IOStats) Sum() uint64 {
	if stats.Sent == nil {
		return 0
	}
	return stats.Sent.Load() + stats.Recvd.Load()
}

// NewConn creates a new connection around the argument connection.
func NewConn(conn io.ReadWriter) *Conn {
	c := &Conn{
		conn:       conn,
		ReadBuf:    make([]byte, readBufSize),
		fromWriter: make(chan []byte, numBuffers),
		toWriter:   make(chan []byte, numBuffers),
		Stats:      NewIOStats(),
	}

	go c.writer()

	c.WriteBuf = <-c.fromWriter

	return c
}

func (c *Conn) writer() {
	for i := 0; i < numBuffers; i++ {
		c.fromWriter <- make([]byte, writeBufSize)
	}

	for buf := range c.toWriter {
		if c.writerErr == nil {
			_, err := c.conn.Write(buf)
			if err != nil {
				c.writerErr = err
			}
		}
		c.fromWriter <- buf[0:cap(buf)]
	}
	close(c.fromWriter)
}

// Flush flushed any pending data in the connection.
func (c *Conn) Flush() error {
	if c.WritePos > 0 {
		c.Stats.Sent.Add(uint64(c.WritePos))
		c.toWriter <- c.WriteBuf[0:c.WritePos]

		next := <-c.fromWriter
		if c.writerErr != nil {
			return c.writerErr
		}

		c.WriteBuf = next
		c.WritePos = 0
		c.Stats.Flushed.Add(1)
	}
	return nil
}

// fill fills the input buffer from the connection. Any unused data in
// the buffer is moved to the beginning of the buffer.
func (c *Conn) fill(n int) error {
	if c.ReadStart < c.ReadEnd {
		copy(c.ReadBuf[0:], c.ReadBuf[c.ReadStart:c.ReadEnd])
		c.ReadEnd -= c.ReadStart
		c.ReadStart = 0
	} else {
		c.ReadStart = 0
		c.ReadEnd = 0
	}
	for c.ReadStart+n > c.ReadEnd {
		got, err := c.conn.Read(c.ReadBuf[c.ReadEnd:])
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		c.Stats.Recvd.Add(uint64(got))
		c.ReadEnd += got
	}
	return nil
}

// Close flushes any pending data and closes the connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		err := c.Flush()

		// Wait that flush completes.
		close(c.toWriter)
		for range c.fromWriter {
		}
		if err == nil {
			err = c.writerErr
		}
		closer, ok := c.conn.(io.Closer)
		if ok {
			cerr := closer.Close()
			if err == nil {
				err = cerr
			}
		}
		c.closeErr = err
	})
	return c.closeErr
}

// Abort closes the underlying connection without flushing pending
// data. All blocked and future I/O operations fail. Abort can be
// called from any goroutine. The connection must still be closed with
// Close.
func (c *Conn) Abort() error {
	closer, ok := c.conn.(io.Closer)
	if ok {
		return closer.Close()
	}
	return nil
}

// SendUint32 sends an uint32 value in network byte order.
func (c *Conn) SendUint32(val int) error {
	if c.WritePos+4 > len(c.WriteBuf) {
		if err := c.Flush(); err != nil {
			return err
		}
	}
	binary.BigEndian.PutUint32(c.WriteBuf[c.WritePos:], uint32(val))
	c.WritePos += 4
	return nil
}

// SendData sends binary data. Data longer than the write buffer is
// sent in buffer-sized chunks.
func (c *Conn) SendData(val []byte) error {
	if len(val) > MaxMessageSize {
		return mpcerr.Usagef("message too long: %d > %d",
			len(val), MaxMessageSize)
	}
	err := c.SendUint32(len(val))
	if err != nil {
		return err
	}
	for len(val) > 0 {
		if c.WritePos >= len(c.WriteBuf) {
			if err := c.Flush(); err != nil {
				return err
			}
		}
		n := copy(c.WriteBuf[c.WritePos:], val)
		c.WritePos += n
		val = val[n:]
	}
	return nil
}

// ReceiveUint32 receives an uint32 value.
func (c *Conn) ReceiveUint32() (int, error) {
	if c.ReadStart+4 > c.ReadEnd {
		if err := c.fill(4); err != nil {
			return 0, err
		}
	}
	val := binary.BigEndian.Uint32(c.ReadBuf[c.ReadStart:])
	c.ReadStart += 4
	return int(val), nil
}

// ReceiveData receives binary data.
func (c *Conn) ReceiveData() ([]byte, error) {
	l, err := c.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	if l > MaxMessageSize {
		return nil, mpcerr.Protocolf("message too long: %d > %d",
			l, MaxMessageSize)
	}
	result := make([]byte, l)
	var ofs int
	for ofs < l {
		if c.ReadStart >= c.ReadEnd {
			if err := c.fill(1); err != nil {
				return nil, err
			}
		}
		n := copy(result[ofs:], c.ReadBuf[c.ReadStart:c.ReadEnd])
		c.ReadStart += n
		ofs += n
	}
	return result, nil
}
