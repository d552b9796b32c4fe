//
// io.go
//
// Copyright (c) 2023-2025 Markku Rossi
//
// All rights reserved.

package ot

// IO is the pairwise channel the OT protocols run over. Base OTs, OT
// extension, and OT multiplication use one IO per ordered pair of
// parties; p2p.Conn implements it. Messages are framed and buffered
// until Flush.
type IO interface {
	SendData(val []byte) error
	SendUint32(val int) error
	Flush() error

	// ReceiveData returns the next frame. Frames over the
	// connection's size limit are protocol errors.
	ReceiveData() ([]byte, error)
	ReceiveUint32() (int, error)
}
