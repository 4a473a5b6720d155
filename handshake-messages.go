package relic

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
)

// HandshakeMessage is one framed handshake message: its type and raw body,
// exactly as carried inside Handshake records.
type HandshakeMessage struct {
	MsgType HandshakeType
	Body    []byte
}

// encodeHandshake frames a handshake body: one type byte and a 24-bit
// big-endian length.
func encodeHandshake(t HandshakeType, body []byte) []byte {
	out := make([]byte, handshakeHeaderLen+len(body))
	out[0] = byte(t)
	out[1] = byte(len(body) >> 16)
	out[2] = byte(len(body) >> 8)
	out[3] = byte(len(body))
	copy(out[4:], body)
	return out
}

// HandshakeMessageBody is a typed handshake message payload.
type HandshakeMessageBody interface {
	Type() HandshakeType
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// ToBody parses the raw body into its typed form.
func (hm *HandshakeMessage) ToBody() (HandshakeMessageBody, error) {
	var body HandshakeMessageBody
	switch hm.MsgType {
	case HandshakeTypeClientHello:
		body = new(ClientHelloBody)
	case HandshakeTypeServerHello:
		body = new(ServerHelloBody)
	case HandshakeTypeCertificate:
		body = new(CertificateBody)
	case HandshakeTypeServerKeyExchange:
		body = new(ServerKeyExchangeBody)
	case HandshakeTypeClientKeyExchange:
		body = new(ClientKeyExchangeBody)
	case HandshakeTypeFinished:
		body = new(FinishedBody)
	default:
		return nil, fmt.Errorf("relic: no typed body for handshake message %d: %w", hm.MsgType, AlertDecodeError)
	}
	if err := body.Unmarshal(hm.Body); err != nil {
		return nil, err
	}
	return body, nil
}

// struct {
//     ProtocolVersion client_version;
//     Random random;
//     SessionID session_id;
//     CipherSuite cipher_suites<2..2^16-2>;
//     CompressionMethod compression_methods<1..2^8-1>;
// } ClientHello;
type ClientHelloBody struct {
	Version            ProtocolVersion
	Random             [32]byte
	SessionID          []byte
	CipherSuites       []uint16
	CompressionMethods []byte
	// Extensions is the raw extensions block; its semantics belong to the
	// negotiation layer.
	Extensions []byte
}

func (ch *ClientHelloBody) Type() HandshakeType { return HandshakeTypeClientHello }

func (ch *ClientHelloBody) Marshal() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint16(uint16(ch.Version))
	b.AddBytes(ch.Random[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(ch.SessionID)
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, cs := range ch.CipherSuites {
			b.AddUint16(cs)
		}
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(ch.CompressionMethods)
	})
	b.AddBytes(ch.Extensions)
	return b.Bytes()
}

func (ch *ClientHelloBody) Unmarshal(data []byte) error {
	s := cryptobyte.String(data)
	var version uint16
	var sessionID, suites, compressions cryptobyte.String
	if !s.ReadUint16(&version) ||
		!s.CopyBytes(ch.Random[:]) ||
		!s.ReadUint8LengthPrefixed(&sessionID) ||
		!s.ReadUint16LengthPrefixed(&suites) ||
		len(suites)%2 != 0 ||
		!s.ReadUint8LengthPrefixed(&compressions) ||
		len(compressions) == 0 {
		return AlertDecodeError
	}
	ch.Version = ProtocolVersion(version)
	ch.SessionID = dup(sessionID)
	ch.CipherSuites = nil
	for !suites.Empty() {
		var cs uint16
		if !suites.ReadUint16(&cs) {
			return AlertDecodeError
		}
		ch.CipherSuites = append(ch.CipherSuites, cs)
	}
	ch.CompressionMethods = dup(compressions)
	ch.Extensions = dup(s)
	return nil
}

// struct {
//     ProtocolVersion server_version;
//     Random random;
//     SessionID session_id;
//     CipherSuite cipher_suite;
//     CompressionMethod compression_method;
// } ServerHello;
type ServerHelloBody struct {
	Version           ProtocolVersion
	Random            [32]byte
	SessionID         []byte
	CipherSuite       uint16
	CompressionMethod byte
	Extensions        []byte
}

func (sh *ServerHelloBody) Type() HandshakeType { return HandshakeTypeServerHello }

func (sh *ServerHelloBody) Marshal() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint16(uint16(sh.Version))
	b.AddBytes(sh.Random[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(sh.SessionID)
	})
	b.AddUint16(sh.CipherSuite)
	b.AddUint8(sh.CompressionMethod)
	b.AddBytes(sh.Extensions)
	return b.Bytes()
}

func (sh *ServerHelloBody) Unmarshal(data []byte) error {
	s := cryptobyte.String(data)
	var version uint16
	var sessionID cryptobyte.String
	if !s.ReadUint16(&version) ||
		!s.CopyBytes(sh.Random[:]) ||
		!s.ReadUint8LengthPrefixed(&sessionID) ||
		!s.ReadUint16(&sh.CipherSuite) ||
		!s.ReadUint8(&sh.CompressionMethod) {
		return AlertDecodeError
	}
	sh.Version = ProtocolVersion(version)
	sh.SessionID = dup(sessionID)
	sh.Extensions = dup(s)
	return nil
}

// CertificateBody carries the DER chain as opaque blobs; validation is the
// PKI layer's problem.
type CertificateBody struct {
	Chain [][]byte
}

func (c *CertificateBody) Type() HandshakeType { return HandshakeTypeCertificate }

func (c *CertificateBody) Marshal() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, cert := range c.Chain {
			cert := cert
			b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(cert)
			})
		}
	})
	return b.Bytes()
}

func (c *CertificateBody) Unmarshal(data []byte) error {
	s := cryptobyte.String(data)
	var list cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&list) || !s.Empty() {
		return AlertDecodeError
	}
	c.Chain = nil
	for !list.Empty() {
		var cert cryptobyte.String
		if !list.ReadUint24LengthPrefixed(&cert) {
			return AlertDecodeError
		}
		c.Chain = append(c.Chain, dup(cert))
	}
	return nil
}

// struct {
//     opaque dh_p<1..2^16-1>;
//     opaque dh_g<1..2^16-1>;
//     opaque dh_Ys<1..2^16-1>;
// } ServerDHParams;
type ServerKeyExchangeBody struct {
	P      []byte
	G      []byte
	Public []byte
	// Signature is the raw trailing signature block, opaque here.
	Signature []byte
}

func (skx *ServerKeyExchangeBody) Type() HandshakeType { return HandshakeTypeServerKeyExchange }

// NewServerKeyExchange wires a generated key pair into wire form.
func NewServerKeyExchange(priv *DHPrivate) *ServerKeyExchangeBody {
	params := priv.Params()
	return &ServerKeyExchangeBody{
		P:      params.P.Bytes(),
		G:      params.G.Bytes(),
		Public: priv.Public().Bytes(),
	}
}

// DH returns the carried group parameters and the server public value.
func (skx *ServerKeyExchangeBody) DH() (DHParams, *big.Int) {
	params := DHParams{
		P: new(big.Int).SetBytes(skx.P),
		G: new(big.Int).SetBytes(skx.G),
	}
	return params, new(big.Int).SetBytes(skx.Public)
}

func (skx *ServerKeyExchangeBody) Marshal() ([]byte, error) {
	var b cryptobyte.Builder
	for _, field := range [][]byte{skx.P, skx.G, skx.Public} {
		field := field
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(field)
		})
	}
	b.AddBytes(skx.Signature)
	return b.Bytes()
}

func (skx *ServerKeyExchangeBody) Unmarshal(data []byte) error {
	s := cryptobyte.String(data)
	var p, g, public cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&p) ||
		!s.ReadUint16LengthPrefixed(&g) ||
		!s.ReadUint16LengthPrefixed(&public) {
		return AlertDecodeError
	}
	skx.P = dup(p)
	skx.G = dup(g)
	skx.Public = dup(public)
	skx.Signature = dup(s)
	return nil
}

// ClientKeyExchangeBody carries either a premaster secret to be protected
// under the peer's public key (RSA key transport) or the client's DH
// public value. The record encoder resolves which while serializing; after
// decoding only the opaque exchange bytes are available.
type ClientKeyExchangeBody struct {
	PreMaster []byte // consumed at encode time, never hits the wire as-is
	DHPublic  []byte // used instead when the suite is DHE
	Exchange  []byte // raw body as observed on the wire
}

func (ckx *ClientKeyExchangeBody) Type() HandshakeType { return HandshakeTypeClientKeyExchange }

func (ckx *ClientKeyExchangeBody) Marshal() ([]byte, error) {
	// Building the wire form needs connection state (version, key
	// transport); the encoder owns that path. Re-serializing a decoded body
	// is the only thing Marshal can do alone.
	if ckx.Exchange == nil {
		return nil, AlertInternalError
	}
	return dup(ckx.Exchange), nil
}

func (ckx *ClientKeyExchangeBody) Unmarshal(data []byte) error {
	ckx.Exchange = dup(data)
	return nil
}

// FinishedBody is the verify_data blob; its length is fixed by the
// negotiated PRF, so the body is the whole message.
type FinishedBody struct {
	VerifyData []byte
}

func (f *FinishedBody) Type() HandshakeType { return HandshakeTypeFinished }

func (f *FinishedBody) Marshal() ([]byte, error) {
	return dup(f.VerifyData), nil
}

func (f *FinishedBody) Unmarshal(data []byte) error {
	if len(data) == 0 {
		return AlertDecodeError
	}
	f.VerifyData = dup(data)
	return nil
}
