package relic

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Header is the fixed five-byte record header.
type Header struct {
	Type    RecordType
	Version ProtocolVersion
	Length  uint16
}

func (h Header) Marshal() []byte {
	out := make([]byte, recordHeaderLen)
	out[0] = byte(h.Type)
	binary.BigEndian.PutUint16(out[1:3], uint16(h.Version))
	binary.BigEndian.PutUint16(out[3:5], h.Length)
	return out
}

// ParseHeader reads a record header and bounds-checks the declared length.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < recordHeaderLen {
		return Header{}, AlertDecodeError
	}
	h := Header{
		Type:    RecordType(data[0]),
		Version: ProtocolVersion(binary.BigEndian.Uint16(data[1:3])),
		Length:  binary.BigEndian.Uint16(data[3:5]),
	}
	if int(h.Length) > maxFragmentLen+maxCipherOverhead {
		return Header{}, AlertRecordOverflow
	}
	return h, nil
}

// TLSPlaintext is a record whose fragment is logical content bytes.
// TLSCiphertext is the same frame with an opaque protected fragment. The
// two stages never mix: seal is the only way from plaintext to ciphertext,
// open the only way back.
type TLSPlaintext struct {
	contentType RecordType
	version     ProtocolVersion
	fragment    []byte
}

type TLSCiphertext struct {
	contentType RecordType
	version     ProtocolVersion
	fragment    []byte
}

func (pt *TLSPlaintext) header() Header {
	return Header{Type: pt.contentType, Version: pt.version, Length: uint16(len(pt.fragment))}
}

func (ct *TLSCiphertext) header() Header {
	return Header{Type: ct.contentType, Version: ct.version, Length: uint16(len(ct.fragment))}
}

// Packet is a logical outbound unit handed to the encoder.
type Packet interface {
	isPacket()
}

type HandshakePacket struct {
	Bodies []HandshakeMessageBody
}

type AlertPacket struct {
	Alert Alert
}

type ChangeCipherSpecPacket struct{}

type AppDataPacket struct {
	Data []byte
}

func (*HandshakePacket) isPacket()        {}
func (*AlertPacket) isPacket()            {}
func (*ChangeCipherSpecPacket) isPacket() {}
func (*AppDataPacket) isPacket()          {}

// DecodedRecord is the decoder's type-tagged output.
type DecodedRecord interface {
	isDecodedRecord()
}

type AppDataRecord struct {
	Data []byte
}

type AlertRecord struct {
	Alerts []Alert
}

type ChangeCipherSpecRecord struct{}

type HandshakeRecord struct {
	Messages []*HandshakeMessage
}

func (*AppDataRecord) isDecodedRecord()          {}
func (*AlertRecord) isDecodedRecord()            {}
func (*ChangeCipherSpecRecord) isDecodedRecord() {}
func (*HandshakeRecord) isDecodedRecord()        {}

// EncodePacket turns one logical packet into wire bytes: encoded header
// followed by the possibly-encrypted fragment. Tx-side connection state
// advances as a side effect; only the encoder touches it.
func (c *ConnectionState) EncodePacket(pkt Packet) ([]byte, error) {
	// 1. trackers, before any bytes exist
	switch p := pkt.(type) {
	case *HandshakePacket:
		for _, body := range p.Bodies {
			if !c.tracker.advance(body.Type()) {
				logf(logTypeHandshake, "handshake message %d out of sequence, sending anyway", body.Type())
			}
			if fin, ok := body.(*FinishedBody); ok {
				c.verifyData = dup(fin.VerifyData)
			}
		}
	case *ChangeCipherSpecPacket:
		if c.cipherSpecSent {
			logf(logTypeRecord, "duplicate ChangeCipherSpec send")
		}
		c.cipherSpecSent = true
	}

	// 2. serialize the logical content
	content, typ, err := c.serializePacket(pkt)
	if err != nil {
		return nil, err
	}
	pt := &TLSPlaintext{contentType: typ, version: c.version, fragment: content}

	// 3. handshake bytes enter the tx transcript before encryption
	if typ == RecordTypeHandshake {
		c.txTranscript.Write(content)
	}

	// 4. protect under the current tx cipher
	ct := &TLSCiphertext{contentType: typ, version: c.version, fragment: pt.fragment}
	if c.tx.encrypted {
		ct.fragment, err = c.tx.seal(c.version, typ, pt.fragment, c.rand())
		if err != nil {
			return nil, err
		}
	}
	if len(ct.fragment) > maxFragmentLen+maxCipherOverhead {
		return nil, AlertRecordOverflow
	}

	// 5. encode-then-switch: the ChangeCipherSpec record itself went out
	// under the old cipher; everything after it uses the pending one
	if _, ok := pkt.(*ChangeCipherSpecPacket); ok {
		if err := c.switchTxCipher(); err != nil {
			return nil, err
		}
	}

	// 6. emit
	logf(logTypeRecord, "encode %s v=%s len=%d", ct.contentType, ct.version, len(ct.fragment))
	return append(ct.header().Marshal(), ct.fragment...), nil
}

func (c *ConnectionState) serializePacket(pkt Packet) ([]byte, RecordType, error) {
	switch p := pkt.(type) {
	case *ChangeCipherSpecPacket:
		return []byte{1}, RecordTypeChangeCipherSpec, nil
	case *AlertPacket:
		return []byte{alertLevel(p.Alert), byte(p.Alert)}, RecordTypeAlert, nil
	case *AppDataPacket:
		return p.Data, RecordTypeApplicationData, nil
	case *HandshakePacket:
		var out []byte
		for _, body := range p.Bodies {
			raw, err := c.marshalHandshake(body)
			if err != nil {
				return nil, 0, err
			}
			out = append(out, raw...)
		}
		return out, RecordTypeHandshake, nil
	}
	assertTrue(false)
	return nil, 0, AlertInternalError
}

// marshalHandshake frames one message, applying the encode-time side
// effects: hello parameter capture and premaster handling.
func (c *ConnectionState) marshalHandshake(body HandshakeMessageBody) ([]byte, error) {
	var raw []byte
	var err error
	if ckx, ok := body.(*ClientKeyExchangeBody); ok && ckx.Exchange == nil {
		raw, err = c.marshalClientKeyExchange(ckx)
	} else {
		raw, err = body.Marshal()
	}
	if err != nil {
		return nil, err
	}

	switch b := body.(type) {
	case *ClientHelloBody:
		if c.isClient {
			c.version = b.Version
			c.clientRandom = dup(b.Random[:])
		}
	case *ServerHelloBody:
		if !c.isClient {
			c.version = b.Version
			c.serverRandom = dup(b.Random[:])
		}
	}

	return encodeHandshake(body.Type(), raw), nil
}

// marshalClientKeyExchange captures the premaster secret and protects it
// under the peer's public key. A key-transport failure kills the
// connection; an empty ciphertext never goes out on the wire.
func (c *ConnectionState) marshalClientKeyExchange(ckx *ClientKeyExchangeBody) ([]byte, error) {
	if ckx.DHPublic != nil {
		body := make([]byte, 2+len(ckx.DHPublic))
		binary.BigEndian.PutUint16(body, uint16(len(ckx.DHPublic)))
		copy(body[2:], ckx.DHPublic)
		return body, nil
	}

	c.SetMasterSecret(ckx.PreMaster)
	assertTrue(c.KeyTransport != nil)
	enc, err := c.KeyTransport.Encrypt(c.rand(), ckx.PreMaster)
	if err != nil {
		return nil, fmt.Errorf("relic: premaster key transport: %w", err)
	}
	if len(enc) == 0 {
		return nil, errors.New("relic: premaster key transport returned empty ciphertext")
	}
	if c.version >= VersionTLS10 {
		// TLS frames the encrypted blob with an explicit length; SSL 3.0
		// did not
		body := make([]byte, 2+len(enc))
		binary.BigEndian.PutUint16(body, uint16(len(enc)))
		copy(body[2:], enc)
		return body, nil
	}
	return enc, nil
}

// switchTxCipher flips the transmit direction onto the pending cipher.
// Client connections trigger the key schedule first so it can stage fresh
// material.
func (c *ConnectionState) switchTxCipher() error {
	if c.isClient && c.DeriveKeys != nil {
		if err := c.DeriveKeys(); err != nil {
			return err
		}
	}
	c.pendingMu.Lock()
	spec, state := c.pendingSpec, c.pendingTx
	c.pendingTx = nil
	c.pendingMu.Unlock()
	// negotiation must have staged a cipher before we announce one
	assertTrue(spec != nil && state != nil)
	c.tx = halfConn{encrypted: true, spec: spec, state: state}
	logf(logTypeRecord, "tx cipher now %s", spec.Name)
	return nil
}

// DecodeRecord decrypts, verifies and dispatches one record the transport
// has already delimited into (header, raw content). Rx-side state advances
// as a side effect, so records must arrive here in wire order.
func (c *ConnectionState) DecodeRecord(hdr Header, raw []byte) (DecodedRecord, error) {
	if c.RecordHook != nil {
		c.RecordHook(hdr, raw)
	}
	logf(logTypeRecord, "decode %s v=%s len=%d", hdr.Type, hdr.Version, len(raw))

	if int(hdr.Length) != len(raw) {
		return nil, AlertDecodeError
	}

	ct := &TLSCiphertext{contentType: hdr.Type, version: hdr.Version, fragment: raw}
	pt := &TLSPlaintext{contentType: hdr.Type, version: hdr.Version, fragment: ct.fragment}
	if c.rx.encrypted {
		var err error
		pt.fragment, err = c.rx.open(hdr.Version, hdr.Type, ct.fragment)
		if err != nil {
			return nil, err
		}
	}

	limit := maxFragmentLen
	if hdr.Type == RecordTypeApplicationData {
		limit += c.AppDataOverhead
	}
	if len(pt.fragment) > limit {
		return nil, AlertRecordOverflow
	}

	switch hdr.Type {
	case RecordTypeApplicationData:
		return &AppDataRecord{Data: pt.fragment}, nil

	case RecordTypeAlert:
		alerts, err := decodeAlerts(pt.fragment)
		if err != nil {
			return nil, err
		}
		return &AlertRecord{Alerts: alerts}, nil

	case RecordTypeChangeCipherSpec:
		if len(pt.fragment) != 1 || pt.fragment[0] != 1 {
			return nil, AlertDecodeError
		}
		if err := c.switchRxCipher(); err != nil {
			return nil, err
		}
		return &ChangeCipherSpecRecord{}, nil

	case RecordTypeHandshake:
		msgs, err := c.processHandshakeFragment(pt.fragment)
		if err != nil {
			return nil, err
		}
		return &HandshakeRecord{Messages: msgs}, nil

	case RecordTypeDeprecatedHandshake:
		hm, err := decodeDeprecatedHandshake(pt.fragment)
		if err != nil {
			return nil, err
		}
		c.rxTranscript.Write(encodeHandshake(hm.MsgType, hm.Body))
		if err := c.captureReceived(hm); err != nil {
			return nil, err
		}
		return &HandshakeRecord{Messages: []*HandshakeMessage{hm}}, nil
	}

	return nil, AlertDecodeError
}

// switchRxCipher atomically promotes the pending rx cipher. The install is
// the one rx-path mutation that races with the handshake layer staging new
// material, hence the mutex.
func (c *ConnectionState) switchRxCipher() error {
	c.pendingMu.Lock()
	spec, state := c.pendingSpec, c.pendingRx
	c.pendingRx = nil
	c.pendingMu.Unlock()
	if spec == nil || state == nil {
		// the peer announced a cipher nobody negotiated
		return AlertUnexpectedMessage
	}
	c.rx = halfConn{encrypted: true, spec: spec, state: state}
	logf(logTypeRecord, "rx cipher now %s", spec.Name)
	return nil
}

// decodeAlerts reads the one-or-more (level, description) pairs of an
// alert record.
func decodeAlerts(data []byte) ([]Alert, error) {
	if len(data) == 0 || len(data)%2 != 0 {
		return nil, AlertDecodeError
	}
	var out []Alert
	for i := 0; i < len(data); i += 2 {
		if data[i] != AlertLevelWarning && data[i] != AlertLevelError {
			return nil, AlertDecodeError
		}
		out = append(out, Alert(data[i+1]))
	}
	return out, nil
}
