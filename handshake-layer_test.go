package relic

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameReaderWholeMessages(t *testing.T) {
	fr := newFrameReader(handshakeFraming)

	msg := encodeHandshake(HandshakeTypeClientHello, []byte("hello body"))
	fr.addChunk(msg)
	require.True(t, fr.ready())

	header, body, err := fr.next()
	require.NoError(t, err)
	assert.Equal(t, byte(HandshakeTypeClientHello), header[0])
	assert.Equal(t, []byte("hello body"), body)
	assert.False(t, fr.ready())
}

func TestFrameReaderSplitMessage(t *testing.T) {
	fr := newFrameReader(handshakeFraming)
	msg := encodeHandshake(HandshakeTypeCertificate, bytes.Repeat([]byte{0xcc}, 200))

	// feed it byte by byte, including a split inside the header
	for i := 0; i < len(msg)-1; i++ {
		fr.addChunk(msg[i : i+1])
		assert.False(t, fr.ready())
		_, _, err := fr.next()
		assert.Equal(t, AlertWouldBlock, err)
	}
	fr.addChunk(msg[len(msg)-1:])
	require.True(t, fr.ready())
	header, body, err := fr.next()
	require.NoError(t, err)
	assert.Equal(t, byte(HandshakeTypeCertificate), header[0])
	assert.Equal(t, 200, len(body))
}

func TestFrameReaderCoalescedMessages(t *testing.T) {
	fr := newFrameReader(handshakeFraming)
	chunk := append(encodeHandshake(HandshakeTypeServerHello, []byte("one")),
		encodeHandshake(HandshakeTypeServerHelloDone, nil)...)
	fr.addChunk(chunk)

	_, body, err := fr.next()
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), body)

	header, body, err := fr.next()
	require.NoError(t, err)
	assert.Equal(t, byte(HandshakeTypeServerHelloDone), header[0])
	assert.Empty(t, body)

	_, _, err = fr.next()
	assert.Equal(t, AlertWouldBlock, err)
}

func TestTranscriptVersions(t *testing.T) {
	data := []byte("handshake bytes")

	tr := newTranscript(VersionTLS12)
	tr.Write(data)
	want := sha256.Sum256(data)
	assert.Equal(t, want[:], tr.Sum())

	tr = newTranscript(VersionTLS10)
	tr.Write(data)
	m := md5.Sum(data)
	s := sha1.Sum(data)
	assert.Equal(t, append(m[:], s[:]...), tr.Sum())

	// Sum does not finalize; more writes keep accumulating
	tr = newTranscript(VersionTLS12)
	tr.Write(data[:5])
	_ = tr.Sum()
	tr.Write(data[5:])
	assert.Equal(t, want[:], tr.Sum())
}

func TestHSTracker(t *testing.T) {
	var tr hsTracker

	assert.True(t, tr.advance(HandshakeTypeClientHello))
	assert.True(t, tr.advance(HandshakeTypeServerHello))
	assert.True(t, tr.advance(HandshakeTypeCertificate))
	assert.True(t, tr.advance(HandshakeTypeServerKeyExchange))

	// backwards and duplicate steps are flagged
	assert.False(t, tr.advance(HandshakeTypeServerHello))
	assert.True(t, tr.advance(HandshakeTypeClientKeyExchange))
	assert.False(t, tr.advance(HandshakeTypeClientKeyExchange))

	// Certificate appears once per side
	assert.False(t, tr.advance(HandshakeTypeCertificate)) // backwards now
	assert.True(t, tr.advance(HandshakeTypeFinished))

	// HelloRequest and unknown types never trip the tracker
	assert.True(t, tr.advance(HandshakeTypeHelloRequest))
	assert.True(t, tr.advance(HandshakeType(99)))
}

func TestHSTrackerCertificateBothSides(t *testing.T) {
	var tr hsTracker
	assert.True(t, tr.advance(HandshakeTypeCertificate))
	assert.True(t, tr.advance(HandshakeTypeCertificate))
}

func TestClientHelloRoundtrip(t *testing.T) {
	ch := &ClientHelloBody{
		Version:            VersionTLS12,
		SessionID:          []byte{0x01, 0x02, 0x03},
		CipherSuites:       []uint16{0x002f, 0x0035, 0xc02f},
		CompressionMethods: []byte{0},
		Extensions:         []byte{0x00, 0x04, 0x00, 0x00, 0x00, 0x00},
	}
	copy(ch.Random[:], bytes.Repeat([]byte{0xaa}, 32))

	raw, err := ch.Marshal()
	require.NoError(t, err)

	var got ClientHelloBody
	require.NoError(t, got.Unmarshal(raw))
	assert.Equal(t, *ch, got)
}

func TestClientHelloUnmarshalRejects(t *testing.T) {
	ch := &ClientHelloBody{
		Version:            VersionTLS12,
		CipherSuites:       []uint16{0x002f},
		CompressionMethods: []byte{0},
	}
	raw, err := ch.Marshal()
	require.NoError(t, err)

	var got ClientHelloBody
	// truncated anywhere inside the fixed prefix
	assert.Equal(t, AlertDecodeError, got.Unmarshal(raw[:10]))
	assert.Equal(t, AlertDecodeError, got.Unmarshal(nil))
}

func TestServerHelloRoundtrip(t *testing.T) {
	sh := &ServerHelloBody{
		Version:           VersionTLS11,
		SessionID:         bytes.Repeat([]byte{0x07}, 32),
		CipherSuite:       0x0035,
		CompressionMethod: 0,
	}
	copy(sh.Random[:], bytes.Repeat([]byte{0xbb}, 32))

	raw, err := sh.Marshal()
	require.NoError(t, err)

	var got ServerHelloBody
	require.NoError(t, got.Unmarshal(raw))
	assert.Equal(t, *sh, got)
}

func TestCertificateRoundtrip(t *testing.T) {
	c := &CertificateBody{Chain: [][]byte{
		bytes.Repeat([]byte{0xde}, 300),
		bytes.Repeat([]byte{0xad}, 5),
	}}
	raw, err := c.Marshal()
	require.NoError(t, err)

	var got CertificateBody
	require.NoError(t, got.Unmarshal(raw))
	assert.Equal(t, c.Chain, got.Chain)

	// trailing garbage after the chain list
	assert.Equal(t, AlertDecodeError, got.Unmarshal(append(raw, 0x00)))
}

func TestServerKeyExchangeRoundtrip(t *testing.T) {
	skx := &ServerKeyExchangeBody{
		P:         testGroup.P.Bytes(),
		G:         testGroup.G.Bytes(),
		Public:    bytes.Repeat([]byte{0x42}, 128),
		Signature: bytes.Repeat([]byte{0x99}, 64),
	}
	raw, err := skx.Marshal()
	require.NoError(t, err)

	var got ServerKeyExchangeBody
	require.NoError(t, got.Unmarshal(raw))
	assert.Equal(t, *skx, got)

	params, public := got.DH()
	assert.Equal(t, 0, params.P.Cmp(testGroup.P))
	assert.Equal(t, 0, params.G.Cmp(testGroup.G))
	assert.Equal(t, skx.Public, public.Bytes())
}

func TestClientKeyExchangeMarshalNeedsExchange(t *testing.T) {
	ckx := &ClientKeyExchangeBody{PreMaster: []byte("premaster")}
	_, err := ckx.Marshal()
	assert.Equal(t, AlertInternalError, err)

	ckx.Exchange = []byte{0x00, 0x02, 0xaa, 0xbb}
	raw, err := ckx.Marshal()
	require.NoError(t, err)
	assert.Equal(t, ckx.Exchange, raw)
}

func TestFinishedUnmarshal(t *testing.T) {
	var f FinishedBody
	assert.Equal(t, AlertDecodeError, f.Unmarshal(nil))
	require.NoError(t, f.Unmarshal(bytes.Repeat([]byte{0x12}, 12)))
	assert.Equal(t, 12, len(f.VerifyData))
}

func TestToBody(t *testing.T) {
	ch := &ClientHelloBody{Version: VersionTLS12, CipherSuites: []uint16{0x002f}, CompressionMethods: []byte{0}}
	raw, err := ch.Marshal()
	require.NoError(t, err)

	hm := &HandshakeMessage{MsgType: HandshakeTypeClientHello, Body: raw}
	body, err := hm.ToBody()
	require.NoError(t, err)
	got, ok := body.(*ClientHelloBody)
	require.True(t, ok)
	assert.Equal(t, VersionTLS12, got.Version)

	hm = &HandshakeMessage{MsgType: HandshakeTypeHelloRequest, Body: nil}
	_, err = hm.ToBody()
	assert.Error(t, err)
}

func TestDecodeDeprecatedHandshake(t *testing.T) {
	// SSLv2 CLIENT-HELLO: type, version, spec/sid/challenge lengths, then
	// the three fields
	challenge := bytes.Repeat([]byte{0xc7}, 16)
	var v2 []byte
	v2 = append(v2, 0x01)       // CLIENT-HELLO
	v2 = append(v2, 0x03, 0x01) // TLS 1.0
	v2 = append(v2, 0x00, 0x06) // cipher specs: two 3-byte entries
	v2 = append(v2, 0x00, 0x00) // no session id
	v2 = append(v2, 0x00, 0x10) // 16-byte challenge
	v2 = append(v2, 0x00, 0x00, 0x2f)
	v2 = append(v2, 0x07, 0x00, 0xc0) // v2-only spec, dropped
	v2 = append(v2, challenge...)

	hm, err := decodeDeprecatedHandshake(v2)
	require.NoError(t, err)
	assert.Equal(t, HandshakeTypeClientHello, hm.MsgType)

	var ch ClientHelloBody
	require.NoError(t, ch.Unmarshal(hm.Body))
	assert.Equal(t, VersionTLS10, ch.Version)
	assert.Equal(t, []uint16{0x002f}, ch.CipherSuites)
	assert.Equal(t, []byte{0}, ch.CompressionMethods)
	// challenge right-aligns into the 32-byte random
	assert.Equal(t, make([]byte, 16), ch.Random[:16])
	assert.Equal(t, challenge, ch.Random[16:])
}

func TestDecodeDeprecatedHandshakeRejects(t *testing.T) {
	cases := map[string][]byte{
		"empty":          nil,
		"not a hello":    {0x02, 0x03, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0xff},
		"ragged specs":   {0x01, 0x03, 0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01, 0xaa, 0xbb, 0xff},
		"zero challenge": {0x01, 0x03, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		"trailing bytes": {0x01, 0x03, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0xff, 0xee},
	}
	for name, data := range cases {
		_, err := decodeDeprecatedHandshake(data)
		assert.Equal(t, AlertDecodeError, err, name)
	}
}

func TestProcessHandshakeFragmentContinuation(t *testing.T) {
	conn := NewConnectionState(false, VersionTLS12)

	ch := &ClientHelloBody{Version: VersionTLS12, CipherSuites: []uint16{0x002f}, CompressionMethods: []byte{0}}
	copy(ch.Random[:], bytes.Repeat([]byte{0xee}, 32))
	raw, err := ch.Marshal()
	require.NoError(t, err)
	msg := encodeHandshake(HandshakeTypeClientHello, raw)

	// first record carries half the message
	msgs, err := conn.processHandshakeFragment(msg[:len(msg)/2])
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = conn.processHandshakeFragment(msg[len(msg)/2:])
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, HandshakeTypeClientHello, msgs[0].MsgType)

	// hello capture happened as a side effect
	assert.Equal(t, VersionTLS12, conn.Version())
	assert.Equal(t, bytes.Repeat([]byte{0xee}, 32), conn.ClientRandom())

	// transcript saw every byte exactly once
	want := newTranscript(VersionTLS12)
	want.Write(msg)
	assert.Equal(t, want.Sum(), conn.RxTranscript())
}
