package relic

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/cryptobyte"
)

// Resumable framing for length-prefixed protocol units. Handshake messages
// are not 1:1 with records: a record may carry a partial message, several
// messages, or the middle of one. Whatever a record leaves unfinished stays
// in the reader until the next record's bytes arrive — this is the
// connection's single continuation slot.

type framing interface {
	parse(buffer []byte) (headerReady bool, headerLen, bodyLen int)
}

type lastNBytesFraming struct {
	headerSize int
	lengthSize int
}

func (lnb lastNBytesFraming) parse(buffer []byte) (headerReady bool, headerLen, bodyLen int) {
	headerReady = len(buffer) >= lnb.headerSize
	if !headerReady {
		return
	}
	headerLen = lnb.headerSize
	val, _ := decodeUint(buffer[lnb.headerSize-lnb.lengthSize:], lnb.lengthSize)
	bodyLen = int(val)
	return
}

var handshakeFraming = lastNBytesFraming{handshakeHeaderLen, 3}

type frameReader struct {
	details   framing
	remainder []byte
}

func newFrameReader(d framing) *frameReader {
	return &frameReader{details: d, remainder: make([]byte, 0)}
}

func (f *frameReader) ready() bool {
	headerReady, headerLen, bodyLen := f.details.parse(f.remainder)
	return headerReady && len(f.remainder) >= headerLen+bodyLen
}

func (f *frameReader) addChunk(in []byte) {
	logf(logTypeHandshake, "frame reader: appending %d bytes", len(in))
	f.remainder = append(f.remainder, in...)
}

func (f *frameReader) next() ([]byte, []byte, error) {
	headerReady, headerLen, bodyLen := f.details.parse(f.remainder)
	if !headerReady || len(f.remainder) < headerLen+bodyLen {
		logf(logTypeVerbose, "frame reader: read would have blocked")
		return nil, nil, AlertWouldBlock
	}

	header, body := make([]byte, headerLen), make([]byte, bodyLen)
	copy(header, f.remainder[:headerLen])
	copy(body, f.remainder[headerLen:headerLen+bodyLen])
	f.remainder = f.remainder[headerLen+bodyLen:]
	return header, body, nil
}

// transcript accumulates handshake bytes for Finished verification.
// Versions before TLS 1.2 use the MD5 + SHA-1 pair, TLS 1.2 a single
// SHA-256.
type transcript struct {
	md5 hash.Hash // nil for TLS 1.2
	sha hash.Hash
}

func newTranscript(v ProtocolVersion) *transcript {
	if v >= VersionTLS12 {
		return &transcript{sha: sha256.New()}
	}
	return &transcript{md5: md5.New(), sha: sha1.New()}
}

func (t *transcript) Write(b []byte) {
	if t.md5 != nil {
		t.md5.Write(b)
	}
	t.sha.Write(b)
}

func (t *transcript) Sum() []byte {
	var out []byte
	if t.md5 != nil {
		out = t.md5.Sum(nil)
	}
	return t.sha.Sum(out)
}

// Canonical position of each message in a handshake flight. Used only for
// progress tracking on the transmit side.
var handshakeOrder = map[HandshakeType]int{
	HandshakeTypeClientHello:        1,
	HandshakeTypeServerHello:        2,
	HandshakeTypeCertificate:        3,
	HandshakeTypeServerKeyExchange:  4,
	HandshakeTypeCertificateRequest: 5,
	HandshakeTypeServerHelloDone:    6,
	HandshakeTypeClientKeyExchange:  7,
	HandshakeTypeCertificateVerify:  8,
	HandshakeTypeFinished:           9,
}

// hsTracker follows handshake progress on the transmit side. A repeated or
// backwards step is reported to the caller, who logs it but keeps going —
// peers in the wild misorder optional messages, and the other side will
// reject the handshake if it actually matters.
type hsTracker struct {
	highest int
	seen    map[HandshakeType]bool
}

func (t *hsTracker) advance(mt HandshakeType) bool {
	if mt == HandshakeTypeHelloRequest {
		return true
	}
	ord, known := handshakeOrder[mt]
	if !known {
		return true
	}
	if t.seen == nil {
		t.seen = make(map[HandshakeType]bool)
	}
	// Certificate legitimately appears once per side.
	ok := ord >= t.highest && (!t.seen[mt] || mt == HandshakeTypeCertificate)
	t.seen[mt] = true
	if ord > t.highest {
		t.highest = ord
	}
	return ok
}

// processHandshakeFragment feeds one record's bytes into the resumable
// parser and drains every complete message. A trailing partial message
// stays behind as the continuation for the next record on this connection.
func (c *ConnectionState) processHandshakeFragment(fragment []byte) ([]*HandshakeMessage, error) {
	c.hsIn.addChunk(fragment)
	var msgs []*HandshakeMessage
	for c.hsIn.ready() {
		header, body, err := c.hsIn.next()
		if err != nil {
			return nil, err
		}
		// every handshake byte enters the transcript exactly once, in
		// reception order
		c.rxTranscript.Write(header)
		c.rxTranscript.Write(body)
		hm := &HandshakeMessage{MsgType: HandshakeType(header[0]), Body: body}
		if err := c.captureReceived(hm); err != nil {
			return nil, err
		}
		msgs = append(msgs, hm)
	}
	return msgs, nil
}

// captureReceived lifts hello parameters from the peer's hello into
// connection state: negotiated version and the peer's random, both needed
// later for key derivation and transcript binding.
func (c *ConnectionState) captureReceived(hm *HandshakeMessage) error {
	switch hm.MsgType {
	case HandshakeTypeClientHello:
		if c.isClient {
			return nil
		}
		var ch ClientHelloBody
		if err := ch.Unmarshal(hm.Body); err != nil {
			return err
		}
		c.version = ch.Version
		c.clientRandom = dup(ch.Random[:])
	case HandshakeTypeServerHello:
		if !c.isClient {
			return nil
		}
		var sh ServerHelloBody
		if err := sh.Unmarshal(hm.Body); err != nil {
			return err
		}
		c.version = sh.Version
		c.serverRandom = dup(sh.Random[:])
	}
	return nil
}

// decodeDeprecatedHandshake handles the SSLv2-compatible ClientHello that
// legacy clients send before any cipher is active. It is a single message
// per record with no continuation, rewritten into the modern hello shape.
func decodeDeprecatedHandshake(data []byte) (*HandshakeMessage, error) {
	s := cryptobyte.String(data)
	var msgType uint8
	var version, csLen, sidLen, chLen uint16
	if !s.ReadUint8(&msgType) || msgType != uint8(HandshakeTypeClientHello) ||
		!s.ReadUint16(&version) ||
		!s.ReadUint16(&csLen) || csLen%3 != 0 ||
		!s.ReadUint16(&sidLen) ||
		!s.ReadUint16(&chLen) || chLen == 0 {
		return nil, AlertDecodeError
	}
	var specs, sid, challenge []byte
	if !s.ReadBytes(&specs, int(csLen)) ||
		!s.ReadBytes(&sid, int(sidLen)) ||
		!s.ReadBytes(&challenge, int(chLen)) ||
		!s.Empty() {
		return nil, AlertDecodeError
	}

	ch := &ClientHelloBody{
		Version:            ProtocolVersion(version),
		SessionID:          dup(sid),
		CompressionMethods: []byte{0},
	}
	// v2 cipher specs are three bytes; only the ones with a zero marker
	// byte name v3 suites
	for i := 0; i+3 <= len(specs); i += 3 {
		if specs[i] == 0 {
			ch.CipherSuites = append(ch.CipherSuites, uint16(specs[i+1])<<8|uint16(specs[i+2]))
		}
	}
	// the challenge right-aligns into the 32-byte random
	if len(challenge) > 32 {
		challenge = challenge[len(challenge)-32:]
	}
	copy(ch.Random[32-len(challenge):], challenge)

	body, err := ch.Marshal()
	if err != nil {
		return nil, err
	}
	return &HandshakeMessage{MsgType: HandshakeTypeClientHello, Body: body}, nil
}
