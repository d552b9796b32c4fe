//
// ot.go
//
// Copyright (c) 2023-2025 Markku Rossi
//
// All rights reserved.

// Package ot implements base 1-out-of-2 oblivious transfer.
package ot

// Pair holds the sender's two messages of one OT instance. Both
// messages must have the same length.
type Pair struct {
	M0 []byte
	M1 []byte
}

// OT defines the base 1-out-of-2 Oblivious Transfer protocol. The
// sender uses the Send function to send a []Pair array. The receiver
// calls Receive with a []bool array of choice bits and receives one
// message of each pair. The sender learns nothing about the choices
// and the receiver learns nothing about the messages it did not
// choose. The higher level protocol must ensure the []Pair and []bool
// array lengths match; a mismatch is detected as a protocol error.
type OT interface {
	// Send sends the message pairs with OT.
	Send(io IO, pairs []Pair) error

	// Receive receives the messages based on the choice bits.
	Receive(io IO, choices []bool) ([][]byte, error)
}
