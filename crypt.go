package relic

import (
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"hash"
	"io"
)

// BulkKind selects the record-protection transform of a cipher suite.
type BulkKind int

const (
	BulkNull BulkKind = iota
	BulkStream
	BulkBlock
)

// BulkCipher is a tagged description of the bulk transform. The constructor
// fields relevant to the kind are set; the rest stay nil. Holding
// constructors rather than live cipher objects keeps CipherSpec immutable
// and shareable between connections.
type BulkCipher struct {
	Kind BulkKind

	// Stream kind
	NewStream func(key []byte) (cipher.Stream, error)

	// Block kind
	NewBlock  func(key []byte) (cipher.Block, error)
	BlockSize int
	IVSize    int

	KeySize int
}

// KeyExchange is the key exchange family of a suite, as far as the record
// layer cares: it decides how a ClientKeyExchange body is built.
type KeyExchange int

const (
	KeyExchangeRSA KeyExchange = iota
	KeyExchangeDHE
)

// CipherSpec describes a negotiated cipher suite to the record layer.
// Immutable; staged as "pending" by the handshake and promoted to active
// when a ChangeCipherSpec is processed on a direction.
type CipherSpec struct {
	Name        string
	Bulk        BulkCipher
	NewMAC      func(version ProtocolVersion, key []byte) hash.Hash
	MACKeySize  int
	MACSize     int
	KeyExchange KeyExchange
}

// CryptState is the mutable per-direction cipher state: the key material
// plus whatever the bulk cipher carries from record to record — the
// chaining IV for implicit-IV block ciphers, the keystream position for
// stream ciphers, and the MAC sequence number.
type CryptState struct {
	key    []byte
	macKey []byte
	iv     []byte
	block  cipher.Block  // lazily built for block suites
	stream cipher.Stream // lazily built for stream suites, then carried
	seq    uint64
}

// NewCryptState captures freshly derived key material for one direction.
// For implicit-IV versions iv seeds the CBC chain; stream suites leave it
// empty and initialize their state from the key on first use.
func NewCryptState(key, macKey, iv []byte) *CryptState {
	return &CryptState{key: dup(key), macKey: dup(macKey), iv: dup(iv)}
}

// halfConn is one direction of a connection: whether it is encrypted yet,
// and under which cipher. encrypted flips to true only as a direct effect
// of a ChangeCipherSpec processed on this direction.
type halfConn struct {
	encrypted bool
	spec      *CipherSpec
	state     *CryptState
}

// recordMAC computes the record MAC over the sequence number, the header
// fields and the content. SSL 3.0 predates the version field in the MAC
// input.
func recordMAC(mac hash.Hash, version ProtocolVersion, seq uint64, typ RecordType, content []byte) []byte {
	var hdr [13]byte
	binary.BigEndian.PutUint64(hdr[:8], seq)
	hdr[8] = byte(typ)
	n := 9
	if version != VersionSSL30 {
		binary.BigEndian.PutUint16(hdr[9:11], uint16(version))
		n = 11
	}
	binary.BigEndian.PutUint16(hdr[n:n+2], uint16(len(content)))
	mac.Write(hdr[:n+2])
	mac.Write(content)
	return mac.Sum(nil)
}

// seal MAC-protects and encrypts one record's content, returning the wire
// fragment. Mutates the CryptState: sequence number, chained IV, stream
// position.
func (hc *halfConn) seal(version ProtocolVersion, typ RecordType, content []byte, random io.Reader) ([]byte, error) {
	spec, st := hc.spec, hc.state
	assertTrue(spec != nil && st != nil)

	buf := dup(content)
	if buf == nil {
		buf = []byte{}
	}
	if spec.NewMAC != nil {
		mac := spec.NewMAC(version, st.macKey)
		buf = append(buf, recordMAC(mac, version, st.seq, typ, content)...)
	}

	switch spec.Bulk.Kind {
	case BulkNull:
		// passthrough

	case BulkStream:
		if st.stream == nil {
			s, err := spec.Bulk.NewStream(st.key)
			if err != nil {
				return nil, err
			}
			st.stream = s
		}
		st.stream.XORKeyStream(buf, buf)

	case BulkBlock:
		buf = addPadding(buf, spec.Bulk.BlockSize)
		if st.block == nil {
			b, err := spec.Bulk.NewBlock(st.key)
			if err != nil {
				return nil, err
			}
			st.block = b
		}
		var iv []byte
		if version.explicitIV() {
			iv = make([]byte, spec.Bulk.IVSize)
			if _, err := io.ReadFull(random, iv); err != nil {
				return nil, err
			}
		} else {
			iv = st.iv
		}
		cipher.NewCBCEncrypter(st.block, iv).CryptBlocks(buf, buf)
		if version.explicitIV() {
			buf = append(iv, buf...)
		} else {
			// next record chains from this ciphertext's tail
			st.iv = dup(buf[len(buf)-spec.Bulk.IVSize:])
		}
	}

	st.seq++
	return buf, nil
}

// open reverses seal. Every verification failure — wrong MAC, bad padding,
// impossible lengths — collapses into the one bad_record_mac error so a
// peer cannot tell which check tripped.
func (hc *halfConn) open(version ProtocolVersion, typ RecordType, fragment []byte) ([]byte, error) {
	spec, st := hc.spec, hc.state
	assertTrue(spec != nil && st != nil)

	buf := dup(fragment)
	switch spec.Bulk.Kind {
	case BulkNull:
		// passthrough

	case BulkStream:
		if st.stream == nil {
			s, err := spec.Bulk.NewStream(st.key)
			if err != nil {
				return nil, err
			}
			st.stream = s
		}
		st.stream.XORKeyStream(buf, buf)

	case BulkBlock:
		var iv []byte
		if version.explicitIV() {
			if len(buf) < spec.Bulk.IVSize {
				return nil, AlertBadRecordMAC
			}
			iv, buf = buf[:spec.Bulk.IVSize], buf[spec.Bulk.IVSize:]
		} else {
			iv = st.iv
		}
		bs := spec.Bulk.BlockSize
		if len(buf) == 0 || len(buf)%bs != 0 {
			return nil, AlertBadRecordMAC
		}
		tail := dup(buf[len(buf)-spec.Bulk.IVSize:])
		if st.block == nil {
			b, err := spec.Bulk.NewBlock(st.key)
			if err != nil {
				return nil, err
			}
			st.block = b
		}
		cipher.NewCBCDecrypter(st.block, iv).CryptBlocks(buf, buf)
		if !version.explicitIV() {
			st.iv = tail
		}
		var ok bool
		buf, ok = removePadding(buf)
		if !ok {
			return nil, AlertBadRecordMAC
		}
	}

	if spec.NewMAC != nil {
		if len(buf) < spec.MACSize {
			return nil, AlertBadRecordMAC
		}
		content, got := buf[:len(buf)-spec.MACSize], buf[len(buf)-spec.MACSize:]
		mac := spec.NewMAC(version, st.macKey)
		want := recordMAC(mac, version, st.seq, typ, content)
		if subtle.ConstantTimeCompare(got, want) != 1 {
			return nil, AlertBadRecordMAC
		}
		buf = content
	}

	st.seq++
	return buf, nil
}

// addPadding appends TLS block padding: pad bytes each valued pad-1, where
// pad brings the length to a block boundary. pad is never zero, so aligned
// content gains a full block.
func addPadding(buf []byte, blockSize int) []byte {
	pad := blockSize - len(buf)%blockSize
	for i := 0; i < pad; i++ {
		buf = append(buf, byte(pad-1))
	}
	return buf
}

// removePadding strips and checks TLS padding without branching on the pad
// byte values.
func removePadding(buf []byte) ([]byte, bool) {
	if len(buf) == 0 {
		return nil, false
	}
	pad := int(buf[len(buf)-1]) + 1
	if pad > len(buf) {
		return nil, false
	}
	var bad byte
	for _, b := range buf[len(buf)-pad:] {
		bad |= b ^ byte(pad-1)
	}
	if bad != 0 {
		return nil, false
	}
	return buf[:len(buf)-pad], true
}
