//
// co.go
//
// Copyright (c) 2019-2025 Markku Rossi
//
// All rights reserved.
//
// Chou Orlandi OT - The Simplest Protocol for Oblivious Transfer.
//  - https://eprint.iacr.org/2015/267.pdf

package ot

import (
	"encoding/binary"
	"io"

	"github.com/markkurossi/mascot/mpcerr"
	"github.com/zeebo/blake3"
)

var (
	bo    = binary.BigEndian
	_  OT = &CO{}
)

const coDomain = "mascot 2025 co ot"

// CO implements the Chou Orlandi OT as the OT interface. The instance
// runs a batch of OTs with one sender key A:
//
//	S -> R: n, A = g^a
//	R -> S: B_i = g^b_i · A^c_i
//	S -> R: e0_i = m0_i ⊕ H(i, A, B_i, B_i^a)
//	        e1_i = m1_i ⊕ H(i, A, B_i, (B_i/A)^a)
//
// The receiver decrypts e_c with H(i, A, B_i, A^b_i).
type CO struct {
	group Group
	rand  io.Reader
}

// NewCO creates a new CO OT over the group. The rand provides the
// sender and receiver secrets.
func NewCO(group Group, rand io.Reader) *CO {
	return &CO{
		group: group,
		rand:  rand,
	}
}

// Group returns the OT group.
func (co *CO) Group() Group {
	return co.group
}

// Send sends the message pairs with OT.
func (co *CO) Send(io IO, pairs []Pair) error {
	for idx, pair := range pairs {
		if len(pair.M0) != len(pair.M1) {
			return mpcerr.Usagef("OT pair %d: message lengths differ: %d != %d",
				idx, len(pair.M0), len(pair.M1))
		}
	}
	elLen := co.group.ElementLen()

	// a <- Zp
	a, err := co.group.RandomScalar(co.rand)
	if err != nil {
		return err
	}
	// A = G^a
	A := co.group.BaseMul(a)

	if err := io.SendUint32(len(pairs)); err != nil {
		return err
	}
	if err := io.SendData(A); err != nil {
		return err
	}
	if err := io.Flush(); err != nil {
		return err
	}

	data, err := io.ReceiveData()
	if err != nil {
		return err
	}
	if len(data) != len(pairs)*elLen {
		return mpcerr.Protocolf("CO: invalid choice vector length %d",
			len(data))
	}

	for i, pair := range pairs {
		B := data[i*elLen : (i+1)*elLen]

		Ba, err := co.group.Mul(B, a)
		if err != nil {
			return err
		}
		BA, err := co.group.Sub(B, A)
		if err != nil {
			return err
		}
		BAa, err := co.group.Mul(BA, a)
		if err != nil {
			return err
		}
		e0 := make([]byte, len(pair.M0))
		kdf(uint64(i), A, B, Ba, e0)
		xor(e0, pair.M0)

		e1 := make([]byte, len(pair.M1))
		kdf(uint64(i), A, B, BAa, e1)
		xor(e1, pair.M1)

		if err := io.SendData(e0); err != nil {
			return err
		}
		if err := io.SendData(e1); err != nil {
			return err
		}
	}
	return io.Flush()
}

// Receive receives the messages based on the choice bits.
func (co *CO) Receive(io IO, choices []bool) ([][]byte, error) {
	elLen := co.group.ElementLen()

	n, err := io.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	if n != len(choices) {
		return nil, mpcerr.Protocolf("CO: sender has %d pairs, expected %d",
			n, len(choices))
	}
	A, err := io.ReceiveData()
	if err != nil {
		return nil, err
	}
	if len(A) != elLen {
		return nil, mpcerr.Protocolf("CO: invalid sender key length %d",
			len(A))
	}

	Bs := make([]byte, 0, len(choices)*elLen)
	keys := make([][]byte, len(choices))

	for i, c := range choices {
		// b <- Zp
		b, err := co.group.RandomScalar(co.rand)
		if err != nil {
			return nil, err
		}
		B := co.group.BaseMul(b)
		if c {
			B, err = co.group.Add(B, A)
			if err != nil {
				return nil, err
			}
		}
		Bs = append(Bs, B...)

		keys[i], err = co.group.Mul(A, b)
		if err != nil {
			return nil, err
		}
	}
	if err := io.SendData(Bs); err != nil {
		return nil, err
	}
	if err := io.Flush(); err != nil {
		return nil, err
	}

	result := make([][]byte, len(choices))
	for i, c := range choices {
		e0, err := io.ReceiveData()
		if err != nil {
			return nil, err
		}
		e1, err := io.ReceiveData()
		if err != nil {
			return nil, err
		}
		if len(e0) != len(e1) {
			return nil, mpcerr.Protocolf("CO: OT %d: ciphertext lengths differ",
				i)
		}
		e := e0
		if c {
			e = e1
		}
		m := make([]byte, len(e))
		kdf(uint64(i), A, Bs[i*elLen:(i+1)*elLen], keys[i], m)
		xor(m, e)
		result[i] = m
	}
	return result, nil
}

// kdf derives the pad for the OT id from the Diffie-Hellman output
// and writes it into out.
func kdf(id uint64, A, B, key []byte, out []byte) {
	h := blake3.New()
	h.WriteString(coDomain)

	var tmp [8]byte
	bo.PutUint64(tmp[:], id)
	h.Write(tmp[:])
	h.Write(A)
	h.Write(B)
	h.Write(key)

	h.Digest().Read(out)
}

// xor sets dst to dst XOR src.
func xor(dst, src []byte) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] ^= src[i]
	}
}
