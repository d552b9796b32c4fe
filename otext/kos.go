//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//
// IKNP OT Extension:
//
// Extending oblivious transfers efficiently
//  - https://www.iacr.org/archive/crypto2003/27290145/27290145.pdf
//
// Actively Secure OT Extension with Optimal Overhead
//  - https://eprint.iacr.org/2015/546.pdf

// Package otext implements actively secure random OT extension. The
// extension is built from kappa base OTs that are run once per
// ordered pair of parties. Each Extend call produces fresh random OT
// instances; the instances are numbered with a monotonic counter so
// that no instance is ever produced twice.
package otext

import (
	"encoding/binary"
	"sync"

	"github.com/markkurossi/mascot/mpcerr"
	"github.com/markkurossi/mascot/ot"
	"github.com/markkurossi/mascot/prg"
	"github.com/zeebo/blake3"
)

const (
	// The maximum number of OTs extended in one chunk. Must be
	// multiple of 8.
	chunkRows = 64 * 1024

	// Statistical security of the consistency check in addition to
	// the kappa extra rows.
	checkRows = 64

	baseKeyLen = 32
	chiSeedLen = 32
	hashDomain = "mascot 2025 kos"
)

// Seeds holds the sender's seed pair of one random OT instance.
type Seeds struct {
	S0 []byte
	S1 []byte
}

func validate(kappa, seedLen int) error {
	if kappa <= 0 || kappa%128 != 0 {
		return mpcerr.Usagef("invalid OT extension width %d", kappa)
	}
	if seedLen < 16 {
		return mpcerr.Usagef("invalid seed length %d", seedLen)
	}
	return nil
}

// Sender implements the random OT extension sender. The sender is
// the base OT receiver with secret choices Δ.
type Sender struct {
	m       sync.Mutex
	kappa   int
	seedLen int
	delta   []bool
	deltaB  []block
	g       []*prg.DRBG
	rand    *prg.DRBG
	count   uint64
	h       *crh
}

// NewSender creates a new OT extension sender and runs the base OTs
// with the peer.
func NewSender(io ot.IO, base ot.OT, kappa, seedLen int, rand *prg.DRBG) (
	*Sender, error) {

	if err := validate(kappa, seedLen); err != nil {
		return nil, err
	}
	s := &Sender{
		kappa:   kappa,
		seedLen: seedLen,
		delta:   rand.Bits(kappa),
		deltaB:  make([]block, kappa/128),
		g:       make([]*prg.DRBG, kappa),
		rand:    rand,
		h:       newCRH(),
	}
	for j, bit := range s.delta {
		if bit {
			s.deltaB[j/128].setBit(j % 128)
		}
	}

	keys, err := base.Receive(io, s.delta)
	if err != nil {
		return nil, err
	}
	for j, key := range keys {
		if len(key) != baseKeyLen {
			return nil, mpcerr.Protocolf("invalid base OT key length %d",
				len(key))
		}
		s.g[j] = prg.NewDRBG(key)
	}
	return s, nil
}

// Count returns the number of OT instances consumed so far,
// including the consistency check rows.
func (s *Sender) Count() uint64 {
	s.m.Lock()
	defer s.m.Unlock()
	return s.count
}

// Extend extends n random OT instances. The function returns the
// sender's seed pairs.
func (s *Sender) Extend(io ot.IO, n int) ([]Seeds, error) {
	if n < 0 {
		return nil, mpcerr.Usagef("negative OT count %d", n)
	}
	s.m.Lock()
	defer s.m.Unlock()

	result := make([]Seeds, 0, n)
	for ofs := 0; ofs < n; {
		count := n - ofs
		if count > chunkRows {
			count = chunkRows
		}
		seeds, err := s.extendChunk(io, count)
		if err != nil {
			return nil, err
		}
		result = append(result, seeds...)
		ofs += count
	}
	return result, nil
}

func (s *Sender) extendChunk(io ot.IO, n int) ([]Seeds, error) {
	rows := chunkSize(n, s.kappa)
	rowBytes := rows / 8

	count, err := io.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	if count != n {
		return nil, mpcerr.Protocolf("OT extension: peer extends %d, expected %d",
			count, n)
	}
	u, err := io.ReceiveData()
	if err != nil {
		return nil, err
	}
	if len(u) != s.kappa*rowBytes {
		return nil, mpcerr.Protocolf("OT extension: invalid matrix size %d",
			len(u))
	}

	// Q_j = G(k_Δj) ⊕ Δ_j·u_j
	cols := make([]byte, s.kappa*rowBytes)
	for j := 0; j < s.kappa; j++ {
		col := cols[j*rowBytes : (j+1)*rowBytes]
		s.g[j].Read(col)
		if s.delta[j] {
			xorBytes(col, u[j*rowBytes:(j+1)*rowBytes])
		}
	}
	q := transpose(cols, s.kappa, rows)

	// Consistency check.
	chiSeed := s.rand.Bytes(chiSeedLen)
	if err := io.SendData(chiSeed); err != nil {
		return nil, err
	}
	if err := io.Flush(); err != nil {
		return nil, err
	}
	data, err := io.ReceiveData()
	if err != nil {
		return nil, err
	}
	w := s.kappa / 128
	if len(data) != 16+32*w {
		return nil, mpcerr.Protocolf("OT extension: invalid check length %d",
			len(data))
	}
	x := blockFromBytes(data[0:16])
	chi := chiBlocks(chiSeed, rows)

	for b := 0; b < w; b++ {
		q0, q1 := innerProduct(chi, q, w, b)
		r0, r1 := mul128(x, s.deltaB[b])
		q0.xor(r0)
		q1.xor(r1)

		t0 := blockFromBytes(data[16+b*32:])
		t1 := blockFromBytes(data[16+b*32+16:])
		if q0 != t0 || q1 != t1 {
			return nil, mpcerr.Protocolf("OT extension consistency check failed")
		}
	}

	result := make([]Seeds, n)
	row1 := make([]block, w)
	for i := 0; i < n; i++ {
		row0 := q[i*w : (i+1)*w]
		for b := 0; b < w; b++ {
			row1[b] = row0[b]
			row1[b].xor(s.deltaB[b])
		}
		index := s.count + uint64(i)
		result[i].S0 = s.h.hash(index, row0, s.seedLen)
		result[i].S1 = s.h.hash(index, row1, s.seedLen)
	}
	s.count += uint64(rows)

	return result, nil
}

// Receiver implements the random OT extension receiver. The receiver
// is the base OT sender.
type Receiver struct {
	m       sync.Mutex
	kappa   int
	seedLen int
	g0      []*prg.DRBG
	g1      []*prg.DRBG
	rand    *prg.DRBG
	count   uint64
	h       *crh
}

// NewReceiver creates a new OT extension receiver and runs the base
// OTs with the peer.
func NewReceiver(io ot.IO, base ot.OT, kappa, seedLen int, rand *prg.DRBG) (
	*Receiver, error) {

	if err := validate(kappa, seedLen); err != nil {
		return nil, err
	}
	r := &Receiver{
		kappa:   kappa,
		seedLen: seedLen,
		g0:      make([]*prg.DRBG, kappa),
		g1:      make([]*prg.DRBG, kappa),
		rand:    rand,
		h:       newCRH(),
	}
	pairs := make([]ot.Pair, kappa)
	for j := range pairs {
		pairs[j].M0 = rand.Bytes(baseKeyLen)
		pairs[j].M1 = rand.Bytes(baseKeyLen)
		r.g0[j] = prg.NewDRBG(pairs[j].M0)
		r.g1[j] = prg.NewDRBG(pairs[j].M1)
	}
	if err := base.Send(io, pairs); err != nil {
		return nil, err
	}
	return r, nil
}

// Count returns the number of OT instances consumed so far,
// including the consistency check rows.
func (r *Receiver) Count() uint64 {
	r.m.Lock()
	defer r.m.Unlock()
	return r.count
}

// ExtendRandom extends n random OT instances with random choice
// bits. It returns the choice bits and the chosen seeds.
func (r *Receiver) ExtendRandom(io ot.IO, n int) ([]bool, [][]byte, error) {
	if n < 0 {
		return nil, nil, mpcerr.Usagef("negative OT count %d", n)
	}
	choices := r.rand.Bits(n)
	seeds, err := r.Extend(io, choices)
	if err != nil {
		return nil, nil, err
	}
	return choices, seeds, nil
}

// Extend extends random OT instances with the choice bits. It
// returns the seeds s_choice.
func (r *Receiver) Extend(io ot.IO, choices []bool) ([][]byte, error) {
	r.m.Lock()
	defer r.m.Unlock()

	result := make([][]byte, 0, len(choices))
	for ofs := 0; ofs < len(choices); {
		count := len(choices) - ofs
		if count > chunkRows {
			count = chunkRows
		}
		seeds, err := r.extendChunk(io, choices[ofs:ofs+count])
		if err != nil {
			return nil, err
		}
		result = append(result, seeds...)
		ofs += count
	}
	return result, nil
}

func (r *Receiver) extendChunk(io ot.IO, choices []bool) ([][]byte, error) {
	n := len(choices)
	rows := chunkSize(n, r.kappa)
	rowBytes := rows / 8

	// Pad choices with random bits.
	x := make([]bool, rows)
	copy(x, choices)
	copy(x[n:], r.rand.Bits(rows-n))

	xbuf := make([]byte, rowBytes)
	for i, bit := range x {
		if bit {
			xbuf[i/8] |= 1 << (i % 8)
		}
	}

	// t_j = G(k0_j), u_j = t_j ⊕ G(k1_j) ⊕ x
	cols := make([]byte, r.kappa*rowBytes)
	u := make([]byte, r.kappa*rowBytes)
	for j := 0; j < r.kappa; j++ {
		t := cols[j*rowBytes : (j+1)*rowBytes]
		uj := u[j*rowBytes : (j+1)*rowBytes]
		r.g0[j].Read(t)
		r.g1[j].Read(uj)
		xorBytes(uj, t)
		xorBytes(uj, xbuf)
	}
	if err := io.SendUint32(n); err != nil {
		return nil, err
	}
	if err := io.SendData(u); err != nil {
		return nil, err
	}
	if err := io.Flush(); err != nil {
		return nil, err
	}
	t := transpose(cols, r.kappa, rows)

	// Consistency check.
	chiSeed, err := io.ReceiveData()
	if err != nil {
		return nil, err
	}
	if len(chiSeed) != chiSeedLen {
		return nil, mpcerr.Protocolf("OT extension: invalid seed length %d",
			len(chiSeed))
	}
	chi := chiBlocks(chiSeed, rows)

	var xsum block
	for i, bit := range x {
		if bit {
			xsum.xor(chi[i])
		}
	}
	w := r.kappa / 128
	check := xsum.bytes(make([]byte, 0, 16+32*w))
	for b := 0; b < w; b++ {
		t0, t1 := innerProduct(chi, t, w, b)
		check = t0.bytes(check)
		check = t1.bytes(check)
	}
	if err := io.SendData(check); err != nil {
		return nil, err
	}
	if err := io.Flush(); err != nil {
		return nil, err
	}

	result := make([][]byte, n)
	for i := 0; i < n; i++ {
		result[i] = r.h.hash(r.count+uint64(i), t[i*w:(i+1)*w], r.seedLen)
	}
	r.count += uint64(rows)

	return result, nil
}

// chunkSize returns the number of extended rows for n OTs: n rounded
// up to a full byte plus the consistency check rows.
func chunkSize(n, kappa int) int {
	return (n+7)/8*8 + kappa + checkRows
}

// transpose converts the kappa column-major bit vectors of rows bits
// into rows row-major vectors of kappa/128 blocks.
func transpose(cols []byte, kappa, rows int) []block {
	w := kappa / 128
	rowBytes := rows / 8
	result := make([]block, rows*w)

	for j := 0; j < kappa; j++ {
		col := cols[j*rowBytes : (j+1)*rowBytes]
		b := j / 128
		bit := j % 128
		for i, v := range col {
			if v == 0 {
				continue
			}
			for k := 0; k < 8; k++ {
				if (v>>k)&1 == 1 {
					result[(i*8+k)*w+b].setBit(bit)
				}
			}
		}
	}
	return result
}

// chiBlocks expands the seed into the check coefficients.
func chiBlocks(seed []byte, n int) []block {
	d := prg.NewDRBG(seed)
	buf := d.Bytes(n * 16)
	result := make([]block, n)
	for i := range result {
		result[i] = blockFromBytes(buf[i*16:])
	}
	return result
}

// innerProduct computes the unreduced GF(2^128) inner product of chi
// and the block column b of the row matrix m.
func innerProduct(chi, m []block, w, b int) (r0, r1 block) {
	for i := range chi {
		lo, hi := mul128(chi[i], m[i*w+b])
		r0.xor(lo)
		r1.xor(hi)
	}
	return
}

func xorBytes(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// crh implements the correlation robust hash of the OT rows.
type crh struct {
	h   *blake3.Hasher
	buf []byte
}

func newCRH() *crh {
	return &crh{
		h: blake3.New(),
	}
}

func (c *crh) hash(index uint64, row []block, seedLen int) []byte {
	c.buf = c.buf[:0]
	c.buf = append(c.buf, hashDomain...)
	c.buf = binary.BigEndian.AppendUint64(c.buf, index)
	for _, b := range row {
		c.buf = b.bytes(c.buf)
	}
	c.h.Reset()
	c.h.Write(c.buf)

	result := make([]byte, seedLen)
	c.h.Digest().Read(result)
	return result
}
