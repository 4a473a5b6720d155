package relic

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
)

// DHParams are the finite-field Diffie-Hellman group parameters a server
// advertises in its ServerKeyExchange message.
type DHParams struct {
	P *big.Int // prime modulus
	G *big.Int // generator
}

// DHPrivate is one side's key pair for a DH exchange.
type DHPrivate struct {
	params DHParams
	x      *big.Int // private exponent
	y      *big.Int // public value, g^x mod p
}

func (priv *DHPrivate) Params() DHParams { return priv.params }

// Public returns the value sent to the peer.
func (priv *DHPrivate) Public() *big.Int { return priv.y }

// Private returns the raw private exponent.
func (priv *DHPrivate) Private() *big.Int { return priv.x }

var (
	errBadDHParams = errors.New("relic: DH parameters out of range")
	errEmptySecret = errors.New("relic: DH shared secret stripped to zero length")
	errBadDHPublic = errors.New("relic: peer DH public value out of range")
)

// GenerateKeyPair samples a private exponent in [1, p-2] from random and
// derives the matching public value. It fails only if the random source
// fails.
func GenerateKeyPair(random io.Reader, params DHParams) (*DHPrivate, error) {
	if params.P == nil || params.G == nil || params.P.BitLen() < 2 {
		return nil, errBadDHParams
	}
	limit := new(big.Int).Sub(params.P, big.NewInt(2))
	x, err := rand.Int(random, limit)
	if err != nil {
		return nil, err
	}
	x.Add(x, big.NewInt(1))
	y := new(big.Int).Exp(params.G, x, params.P)
	return &DHPrivate{params: params, x: x, y: y}, nil
}

// ComputeSharedSecret derives the DH shared value and strips every leading
// zero byte from its big-endian encoding, as the pre-1.3 premaster-secret
// rule demands. A secret that strips away entirely is refused rather than
// silently handed to key derivation.
func ComputeSharedSecret(params DHParams, priv *DHPrivate, peerPublic *big.Int) ([]byte, error) {
	if peerPublic == nil || peerPublic.Sign() <= 0 || peerPublic.Cmp(params.P) >= 0 {
		return nil, errBadDHPublic
	}
	z := new(big.Int).Exp(peerPublic, priv.x, params.P)
	width := (params.P.BitLen() + 7) / 8
	secret := stripLeadingZeros(z.FillBytes(make([]byte, width)))
	if len(secret) == 0 {
		return nil, errEmptySecret
	}
	return secret, nil
}

func stripLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return b[i:]
}
