package relic

import (
	"fmt"
)

// ProtocolVersion is the two-byte version field carried in record and hello
// headers.
type ProtocolVersion uint16

const (
	VersionSSL30 ProtocolVersion = 0x0300
	VersionTLS10 ProtocolVersion = 0x0301
	VersionTLS11 ProtocolVersion = 0x0302
	VersionTLS12 ProtocolVersion = 0x0303
)

func (v ProtocolVersion) String() string {
	switch v {
	case VersionSSL30:
		return "SSL3.0"
	case VersionTLS10:
		return "TLS1.0"
	case VersionTLS11:
		return "TLS1.1"
	case VersionTLS12:
		return "TLS1.2"
	}
	return fmt.Sprintf("ProtocolVersion(%04x)", uint16(v))
}

// explicitIV reports whether block-cipher records of this version carry a
// per-record IV instead of chaining from the previous ciphertext.
func (v ProtocolVersion) explicitIV() bool {
	return v >= VersionTLS11
}

// enum {...} ContentType;
type RecordType byte

const (
	RecordTypeChangeCipherSpec RecordType = 20
	RecordTypeAlert            RecordType = 21
	RecordTypeHandshake        RecordType = 22
	RecordTypeApplicationData  RecordType = 23

	// RecordTypeDeprecatedHandshake marks an SSLv2-compatible hello, which
	// the transport recognizes by its high-bit length byte rather than a
	// real content type octet.
	RecordTypeDeprecatedHandshake RecordType = 128
)

func (t RecordType) String() string {
	switch t {
	case RecordTypeChangeCipherSpec:
		return "ChangeCipherSpec"
	case RecordTypeAlert:
		return "Alert"
	case RecordTypeHandshake:
		return "Handshake"
	case RecordTypeApplicationData:
		return "ApplicationData"
	case RecordTypeDeprecatedHandshake:
		return "DeprecatedHandshake"
	}
	return fmt.Sprintf("RecordType(%d)", byte(t))
}

// enum {...} HandshakeType;
type HandshakeType byte

const (
	HandshakeTypeHelloRequest       HandshakeType = 0
	HandshakeTypeClientHello        HandshakeType = 1
	HandshakeTypeServerHello        HandshakeType = 2
	HandshakeTypeCertificate        HandshakeType = 11
	HandshakeTypeServerKeyExchange  HandshakeType = 12
	HandshakeTypeCertificateRequest HandshakeType = 13
	HandshakeTypeServerHelloDone    HandshakeType = 14
	HandshakeTypeCertificateVerify  HandshakeType = 15
	HandshakeTypeClientKeyExchange  HandshakeType = 16
	HandshakeTypeFinished           HandshakeType = 20
)

const (
	recordHeaderLen    = 5
	handshakeHeaderLen = 4

	// maxFragmentLen bounds the plaintext of a single record. Ciphertext may
	// exceed it by the cipher expansion (IV, MAC, padding).
	maxFragmentLen    = 1 << 14
	maxCipherOverhead = 2048
)

type marshaler interface {
	Marshal() ([]byte, error)
}

type unmarshaler interface {
	Unmarshal([]byte) error
}

func dup(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func decodeUint(data []byte, size int) (uint64, int) {
	if len(data) < size {
		return 0, 0
	}
	var out uint64
	for i := 0; i < size; i++ {
		out = out<<8 | uint64(data[i])
	}
	return out, size
}

// assert marks conditions that negotiation must have established before the
// record layer runs. A failure is a programming error, not a peer-triggered
// protocol condition, and fails loudly.
func assertTrue(b bool) {
	if !b {
		panic("assertion failed")
	}
}
