package relic

import (
	"bytes"
	"hash"
)

// ssl30MAC is the keyed-pad MAC SSL 3.0 used before HMAC existed. It
// satisfies hash.Hash so the record layer treats it like any other MAC.
type ssl30MAC struct {
	inner hash.Hash
	key   []byte
	pad1  []byte
	pad2  []byte
}

var (
	ssl30Pad1 = bytes.Repeat([]byte{0x36}, 48)
	ssl30Pad2 = bytes.Repeat([]byte{0x5c}, 48)
)

func newSSL30MAC(h func() hash.Hash, key []byte) hash.Hash {
	m := &ssl30MAC{inner: h(), key: dup(key)}
	padLen := 48 // MD5
	if m.inner.Size() == 20 {
		padLen = 40 // SHA-1
	}
	m.pad1 = ssl30Pad1[:padLen]
	m.pad2 = ssl30Pad2[:padLen]
	m.Reset()
	return m
}

func (m *ssl30MAC) Reset() {
	m.inner.Reset()
	m.inner.Write(m.key)
	m.inner.Write(m.pad1)
}

func (m *ssl30MAC) Write(b []byte) (int, error) {
	return m.inner.Write(b)
}

func (m *ssl30MAC) Sum(b []byte) []byte {
	innerSum := m.inner.Sum(nil)
	m.inner.Reset()
	m.inner.Write(m.key)
	m.inner.Write(m.pad2)
	m.inner.Write(innerSum)
	return m.inner.Sum(b)
}

func (m *ssl30MAC) Size() int { return m.inner.Size() }

func (m *ssl30MAC) BlockSize() int { return m.inner.BlockSize() }
