package relic

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rc4"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// versionedMAC builds HMAC for TLS versions and the keyed-pad construction
// for SSL 3.0, both over the same base hash.
func versionedMAC(h func() hash.Hash) func(ProtocolVersion, []byte) hash.Hash {
	return func(v ProtocolVersion, key []byte) hash.Hash {
		if v == VersionSSL30 {
			return newSSL30MAC(h, key)
		}
		return hmac.New(h, key)
	}
}

func newRC4Stream(key []byte) (cipher.Stream, error) {
	return rc4.NewCipher(key)
}

func newAESBlock(key []byte) (cipher.Block, error) {
	return aes.NewCipher(key)
}

func newDES3Block(key []byte) (cipher.Block, error) {
	return des.NewTripleDESCipher(key)
}

// The suite table covers the classic pre-1.3 shapes: null, stream and CBC
// block ciphers with MD5/SHA-1/SHA-256 record MACs.
var (
	NullNull = &CipherSpec{
		Name: "NULL_NULL",
		Bulk: BulkCipher{Kind: BulkNull},
	}

	NullSHA = &CipherSpec{
		Name:       "NULL_SHA",
		Bulk:       BulkCipher{Kind: BulkNull},
		NewMAC:     versionedMAC(sha1.New),
		MACKeySize: 20,
		MACSize:    20,
	}

	RC4128MD5 = &CipherSpec{
		Name:        "RC4_128_MD5",
		Bulk:        BulkCipher{Kind: BulkStream, NewStream: newRC4Stream, KeySize: 16},
		NewMAC:      versionedMAC(md5.New),
		MACKeySize:  16,
		MACSize:     16,
		KeyExchange: KeyExchangeRSA,
	}

	RC4128SHA = &CipherSpec{
		Name:        "RC4_128_SHA",
		Bulk:        BulkCipher{Kind: BulkStream, NewStream: newRC4Stream, KeySize: 16},
		NewMAC:      versionedMAC(sha1.New),
		MACKeySize:  20,
		MACSize:     20,
		KeyExchange: KeyExchangeRSA,
	}

	DESEDECBCSHA = &CipherSpec{
		Name:        "DES_EDE_CBC_SHA",
		Bulk:        BulkCipher{Kind: BulkBlock, NewBlock: newDES3Block, BlockSize: 8, IVSize: 8, KeySize: 24},
		NewMAC:      versionedMAC(sha1.New),
		MACKeySize:  20,
		MACSize:     20,
		KeyExchange: KeyExchangeDHE,
	}

	AES128CBCSHA = &CipherSpec{
		Name:        "AES_128_CBC_SHA",
		Bulk:        BulkCipher{Kind: BulkBlock, NewBlock: newAESBlock, BlockSize: 16, IVSize: 16, KeySize: 16},
		NewMAC:      versionedMAC(sha1.New),
		MACKeySize:  20,
		MACSize:     20,
		KeyExchange: KeyExchangeRSA,
	}

	AES256CBCSHA256 = &CipherSpec{
		Name:        "AES_256_CBC_SHA256",
		Bulk:        BulkCipher{Kind: BulkBlock, NewBlock: newAESBlock, BlockSize: 16, IVSize: 16, KeySize: 32},
		NewMAC:      versionedMAC(sha256.New),
		MACKeySize:  32,
		MACSize:     32,
		KeyExchange: KeyExchangeDHE,
	}
)
