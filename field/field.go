//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package field implements prime field arithmetic. The Field
// capability interface has a generic big integer implementation and
// a Mersenne prime implementation with a faster reduction. New
// selects the implementation from the modulus shape.
package field

import (
	"io"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mascot/mpcerr"
)

// Field arithmetic errors.
var (
	ErrDivisionByZero = errors.Mark(errors.New("division by zero"),
		mpcerr.ErrUsage)
	ErrNoSquareRoot = errors.Mark(errors.New("no square root"),
		mpcerr.ErrUsage)
)

var (
	bigOne   = big.NewInt(1)
	bigTwo   = big.NewInt(2)
	bigThree = big.NewInt(3)
	bigFour  = big.NewInt(4)
)

// Field defines the arithmetic of a prime field. All operations
// return new elements in canonical form.
type Field interface {
	// Modulus returns the field modulus. The caller must not modify
	// the returned value.
	Modulus() *big.Int

	// Bits returns the bit length K of the modulus.
	Bits() int

	// ByteLen returns the length of the fixed-width byte encoding.
	ByteLen() int

	// NewElement creates an element from the integer v. Negative
	// values are folded into [0,p).
	NewElement(v *big.Int) Element

	// FromInt64 creates an element from the integer v.
	FromInt64(v int64) Element

	Zero() Element
	One() Element
	Add(x, y Element) Element
	Sub(x, y Element) Element
	Neg(x Element) Element
	Mul(x, y Element) Element

	// Inv returns the multiplicative inverse of x. It fails with
	// ErrDivisionByZero if x is zero.
	Inv(x Element) (Element, error)

	// Sqrt returns a square root of x. It fails with ErrNoSquareRoot
	// if x is not a quadratic residue.
	Sqrt(x Element) (Element, error)

	// Pow2 returns 2^k.
	Pow2(k int) Element

	// ToBits returns the width least significant bits of x, least
	// significant bit first.
	ToBits(x Element, width int) []bool

	// FromBits creates an element from the bit vector, least
	// significant bit first.
	FromBits(bits []bool) Element

	// Bytes returns the fixed-width big-endian encoding of x.
	Bytes(x Element) []byte

	// SetBytes decodes a fixed-width big-endian encoding. Wrong
	// lengths and non-canonical values are protocol errors.
	SetBytes(data []byte) (Element, error)

	// Random returns a uniformly random element read from r.
	Random(r io.Reader) (Element, error)
}

// New creates a field for the prime modulus p. Mersenne primes
// select the MersenneField implementation.
func New(p *big.Int) (Field, error) {
	if p == nil || p.Cmp(bigThree) < 0 {
		return nil, mpcerr.Usagef("modulus must be at least 3")
	}
	if p.Bit(0) == 0 || !p.ProbablyPrime(20) {
		return nil, mpcerr.Usagef("modulus %v is not an odd prime", p)
	}
	k := p.BitLen()
	if new(big.Int).Add(p, bigOne).BitLen() == k+1 &&
		new(big.Int).Add(p, bigOne).TrailingZeroBits() == uint(k) {
		return NewMersenneField(k)
	}
	return NewBigField(p)
}

// MustNew creates a field for the prime modulus p and panics on
// error.
func MustNew(p *big.Int) Field {
	f, err := New(p)
	if err != nil {
		panic(err)
	}
	return f
}

type reducer interface {
	reduce(v *big.Int) *big.Int
}

// prime implements the operations shared by the field variants.
type prime struct {
	p       *big.Int
	k       int
	byteLen int
	sqrtExp *big.Int
	r       reducer
}

func newPrime(p *big.Int, r reducer) prime {
	result := prime{
		p:       new(big.Int).Set(p),
		k:       p.BitLen(),
		byteLen: (p.BitLen() + 7) / 8,
		r:       r,
	}
	if new(big.Int).Mod(p, bigFour).Cmp(bigThree) == 0 {
		result.sqrtExp = new(big.Int).Add(p, bigOne)
		result.sqrtExp.Rsh(result.sqrtExp, 2)
	}
	return result
}

func (f *prime) Modulus() *big.Int {
	return f.p
}

func (f *prime) Bits() int {
	return f.k
}

func (f *prime) ByteLen() int {
	return f.byteLen
}

func (f *prime) canonical(v *big.Int) *big.Int {
	if v.Sign() < 0 {
		r := f.r.reduce(new(big.Int).Neg(v))
		if r.Sign() == 0 {
			return r
		}
		return r.Sub(f.p, r)
	}
	return f.r.reduce(v)
}

func (f *prime) NewElement(v *big.Int) Element {
	return Element{
		v: f.canonical(new(big.Int).Set(v)),
	}
}

func (f *prime) FromInt64(v int64) Element {
	return Element{
		v: f.canonical(big.NewInt(v)),
	}
}

func (f *prime) Zero() Element {
	return Element{
		v: new(big.Int),
	}
}

func (f *prime) One() Element {
	return Element{
		v: big.NewInt(1),
	}
}

func (f *prime) Add(x, y Element) Element {
	v := new(big.Int).Add(x.big(), y.big())
	if v.Cmp(f.p) >= 0 {
		v.Sub(v, f.p)
	}
	return Element{
		v: v,
	}
}

func (f *prime) Sub(x, y Element) Element {
	v := new(big.Int).Sub(x.big(), y.big())
	if v.Sign() < 0 {
		v.Add(v, f.p)
	}
	return Element{
		v: v,
	}
}

func (f *prime) Neg(x Element) Element {
	if x.IsZero() {
		return f.Zero()
	}
	return Element{
		v: new(big.Int).Sub(f.p, x.big()),
	}
}

func (f *prime) Mul(x, y Element) Element {
	return Element{
		v: f.r.reduce(new(big.Int).Mul(x.big(), y.big())),
	}
}

func (f *prime) Inv(x Element) (Element, error) {
	if x.IsZero() {
		return Element{}, ErrDivisionByZero
	}
	return Element{
		v: new(big.Int).ModInverse(x.big(), f.p),
	}, nil
}

func (f *prime) Sqrt(x Element) (Element, error) {
	if x.IsZero() {
		return f.Zero(), nil
	}
	var root *big.Int
	if f.sqrtExp != nil {
		root = new(big.Int).Exp(x.big(), f.sqrtExp, f.p)
	} else {
		root = new(big.Int).ModSqrt(x.big(), f.p)
		if root == nil {
			return Element{}, ErrNoSquareRoot
		}
	}
	check := f.r.reduce(new(big.Int).Mul(root, root))
	if check.Cmp(x.big()) != 0 {
		return Element{}, ErrNoSquareRoot
	}
	return Element{
		v: root,
	}, nil
}

func (f *prime) Pow2(k int) Element {
	return Element{
		v: f.r.reduce(new(big.Int).Lsh(bigOne, uint(k))),
	}
}

func (f *prime) ToBits(x Element, width int) []bool {
	v := x.big()
	result := make([]bool, width)
	for i := 0; i < width; i++ {
		result[i] = v.Bit(i) == 1
	}
	return result
}

func (f *prime) FromBits(bits []bool) Element {
	v := new(big.Int)
	for i, bit := range bits {
		if bit {
			v.SetBit(v, i, 1)
		}
	}
	return Element{
		v: f.r.reduce(v),
	}
}

func (f *prime) Bytes(x Element) []byte {
	return x.big().FillBytes(make([]byte, f.byteLen))
}

func (f *prime) SetBytes(data []byte) (Element, error) {
	if len(data) != f.byteLen {
		return Element{}, mpcerr.Protocolf("invalid element length %d",
			len(data))
	}
	v := new(big.Int).SetBytes(data)
	if v.Cmp(f.p) >= 0 {
		return Element{}, mpcerr.Protocolf("non-canonical element")
	}
	return Element{
		v: v,
	}, nil
}

func (f *prime) Random(r io.Reader) (Element, error) {
	buf := make([]byte, f.byteLen)
	excess := uint(f.byteLen*8 - f.k)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return Element{}, err
		}
		buf[0] &= byte(0xff >> excess)
		v := new(big.Int).SetBytes(buf)
		if v.Cmp(f.p) < 0 {
			return Element{
				v: v,
			}, nil
		}
	}
}

// BigField implements the Field interface for a generic prime
// modulus.
type BigField struct {
	prime
}

// NewBigField creates a new BigField for the prime modulus p.
func NewBigField(p *big.Int) (*BigField, error) {
	if p == nil || p.Cmp(bigThree) < 0 || p.Bit(0) == 0 {
		return nil, mpcerr.Usagef("invalid modulus %v", p)
	}
	f := new(BigField)
	f.prime = newPrime(p, f)
	return f, nil
}

func (f *BigField) reduce(v *big.Int) *big.Int {
	if v.Sign() >= 0 && v.Cmp(f.p) < 0 {
		return v
	}
	return v.Mod(v, f.p)
}

// MersenneField implements the Field interface for Mersenne prime
// modulus 2^k-1.
type MersenneField struct {
	prime
}

// NewMersenneField creates a new MersenneField for the modulus 2^k-1.
func NewMersenneField(k int) (*MersenneField, error) {
	if k < 2 {
		return nil, mpcerr.Usagef("invalid Mersenne exponent %d", k)
	}
	p := new(big.Int).Lsh(bigOne, uint(k))
	p.Sub(p, bigOne)

	f := new(MersenneField)
	f.prime = newPrime(p, f)
	return f, nil
}

// reduce folds v into [0,p) with the identity 2^k = 1 (mod p). The
// argument v must be non-negative.
func (f *MersenneField) reduce(v *big.Int) *big.Int {
	var hi big.Int
	for v.BitLen() > f.k {
		hi.Rsh(v, uint(f.k))
		v.And(v, f.p)
		v.Add(v, &hi)
	}
	if v.Cmp(f.p) >= 0 {
		v.Sub(v, f.p)
	}
	return v
}
