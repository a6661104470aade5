// Package secagg provides an additively homomorphic stand-in for secure
// aggregation. Vectors are masked with pads derived from ephemeral ECDH
// agreements; Add and Scale operate on ciphertexts only, and the algebra
// decrypt(add(enc(a), enc(b))) == a+b, decrypt(scale(enc(a), k)) == k*a
// holds to floating-point tolerance. The scheme is a protocol placeholder,
// not a vetted cryptosystem: a hardened backend can replace it behind the
// Scheme interface without touching the coordinator.
package secagg

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/aixprotocol/aix/pkg/errors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

const (
	padScale = 1 << 20
	padInfo  = "aix-secagg-pad"
)

type KeyPair struct {
	Private *ecdh.PrivateKey
	Public  *ecdh.PublicKey
}

// maskTerm is one linear masking contribution: coeff times the pad derived
// from the ephemeral agreement with the recipient key.
type maskTerm struct {
	ephemeralPub []byte
	seed         []byte
	coeff        float64
}

// Ciphertext is a masked vector. Fields are unexported so callers cannot
// reach the masked values and combine plaintexts around the scheme.
type Ciphertext struct {
	values []float64
	terms  []maskTerm
}

// Len reports the vector length without revealing contents.
func (c *Ciphertext) Len() int {
	return len(c.values)
}

// Scheme is the pluggable combination primitive used by the coordinator.
type Scheme interface {
	GenerateKeyPair() (KeyPair, error)
	Encrypt(vec []float64, pub *ecdh.PublicKey) (*Ciphertext, error)
	Decrypt(ct *Ciphertext, priv *ecdh.PrivateKey) ([]float64, error)
	Add(a, b *Ciphertext) (*Ciphertext, error)
	Scale(ct *Ciphertext, k float64) *Ciphertext
	WeightedSum(cts []*Ciphertext, weights []float64) (*Ciphertext, error)
}

type maskedScheme struct{}

func NewScheme() Scheme {
	return maskedScheme{}
}

func (maskedScheme) GenerateKeyPair() (KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate key: %w", err)
	}

	return KeyPair{Private: priv, Public: priv.PublicKey()}, nil
}

func (maskedScheme) Encrypt(vec []float64, pub *ecdh.PublicKey) (*Ciphertext, error) {
	eph, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}

	shared, err := eph.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("ECDH: %w", err)
	}

	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}

	pad, err := derivePad(shared, seed, len(vec))
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(vec))
	for i := range vec {
		values[i] = vec[i] + pad[i]
	}

	return &Ciphertext{
		values: values,
		terms: []maskTerm{{
			ephemeralPub: eph.PublicKey().Bytes(),
			seed:         seed,
			coeff:        1,
		}},
	}, nil
}

func (maskedScheme) Decrypt(ct *Ciphertext, priv *ecdh.PrivateKey) ([]float64, error) {
	if ct == nil {
		return nil, errors.ErrInvalidData
	}

	out := make([]float64, len(ct.values))
	copy(out, ct.values)

	for _, term := range ct.terms {
		ephPub, err := ecdh.P256().NewPublicKey(term.ephemeralPub)
		if err != nil {
			return nil, fmt.Errorf("parse ephemeral key: %w", err)
		}

		shared, err := priv.ECDH(ephPub)
		if err != nil {
			return nil, fmt.Errorf("ECDH: %w", err)
		}

		pad, err := derivePad(shared, term.seed, len(out))
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] -= term.coeff * pad[i]
		}
	}

	return out, nil
}

func (maskedScheme) Add(a, b *Ciphertext) (*Ciphertext, error) {
	if a == nil || b == nil || len(a.values) != len(b.values) {
		return nil, errors.ErrInvalidData
	}

	values := make([]float64, len(a.values))
	for i := range values {
		values[i] = a.values[i] + b.values[i]
	}

	terms := make([]maskTerm, 0, len(a.terms)+len(b.terms))
	terms = append(terms, a.terms...)
	terms = append(terms, b.terms...)

	return &Ciphertext{values: values, terms: terms}, nil
}

func (maskedScheme) Scale(ct *Ciphertext, k float64) *Ciphertext {
	values := make([]float64, len(ct.values))
	for i := range values {
		values[i] = ct.values[i] * k
	}

	terms := make([]maskTerm, len(ct.terms))
	for i, term := range ct.terms {
		terms[i] = maskTerm{
			ephemeralPub: term.ephemeralPub,
			seed:         term.seed,
			coeff:        term.coeff * k,
		}
	}

	return &Ciphertext{values: values, terms: terms}
}

func (s maskedScheme) WeightedSum(cts []*Ciphertext, weights []float64) (*Ciphertext, error) {
	if len(cts) == 0 || len(cts) != len(weights) {
		return nil, errors.ErrInvalidData
	}

	acc := s.Scale(cts[0], weights[0])
	for i := 1; i < len(cts); i++ {
		next, err := s.Add(acc, s.Scale(cts[i], weights[i]))
		if err != nil {
			return nil, err
		}
		acc = next
	}

	return acc, nil
}

// derivePad expands a deterministic pad from the shared secret and seed.
// The same (secret, seed, n) always yields the same pad, which is what lets
// Decrypt remove scaled mask contributions exactly.
func derivePad(secret, seed []byte, n int) ([]float64, error) {
	r := hkdf.New(sha3.New256, secret, seed, []byte(padInfo))

	buf := make([]byte, 8)
	pad := make([]float64, n)
	for i := range pad {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("expand pad: %w", err)
		}
		u := binary.BigEndian.Uint64(buf)
		pad[i] = (float64(u)/float64(^uint64(0)) - 0.5) * padScale
	}

	return pad, nil
}
