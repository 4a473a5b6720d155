package relic

import (
	"crypto/rand"
	"io"
	"sync"
)

// KeyTransport encrypts the premaster secret under the peer's public key
// during ClientKeyExchange. The asymmetric primitive behind it (RSA, or
// anything else the certificate carries) is the caller's.
type KeyTransport interface {
	Encrypt(random io.Reader, plaintext []byte) ([]byte, error)
}

// RecordHook observes every received record before decryption, for
// diagnostics. A nil hook changes nothing.
type RecordHook func(hdr Header, raw []byte)

// ConnectionState is all per-connection cryptographic state shared by the
// record encoder and decoder. Tx-side fields are mutated only by
// EncodePacket, rx-side fields only by DecodeRecord; the pending-cipher
// slot is the single point both sides and the handshake layer touch, and
// the only one behind a mutex.
type ConnectionState struct {
	isClient bool
	version  ProtocolVersion

	clientRandom []byte
	serverRandom []byte
	masterSecret []byte // write-once

	tx halfConn
	rx halfConn

	// staged by SetPending, installed per direction on ChangeCipherSpec
	pendingMu   sync.Mutex
	pendingSpec *CipherSpec
	pendingTx   *CryptState
	pendingRx   *CryptState

	txTranscript *transcript
	rxTranscript *transcript

	// continuation for handshake messages split across records
	hsIn *frameReader

	tracker        hsTracker
	cipherSpecSent bool
	verifyData     []byte // from the last Finished we sent

	// Injected collaborators. Rand feeds explicit IVs; DeriveKeys, when
	// set, runs on the client right before the tx cipher switch so the key
	// schedule can stage fresh material.
	Rand         io.Reader
	KeyTransport KeyTransport
	RecordHook   RecordHook
	DeriveKeys   func() error

	// AppDataOverhead widens the decode size limit for application-data
	// records only.
	AppDataOverhead int
}

// NewConnectionState builds the crypto state for one connection, starting
// with the null cipher on both directions.
func NewConnectionState(isClient bool, version ProtocolVersion) *ConnectionState {
	return &ConnectionState{
		isClient:     isClient,
		version:      version,
		txTranscript: newTranscript(version),
		rxTranscript: newTranscript(version),
		hsIn:         newFrameReader(handshakeFraming),
		Rand:         rand.Reader,
	}
}

// SetPending stages the negotiated cipher and per-direction key material.
// Nothing changes on the wire until a ChangeCipherSpec is processed on a
// direction; re-staging before that replaces the previous pending state.
func (c *ConnectionState) SetPending(spec *CipherSpec, tx, rx *CryptState) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pendingSpec = spec
	c.pendingTx = tx
	c.pendingRx = rx
}

// SetMasterSecret records the master secret. The first write wins; later
// writes are dropped.
func (c *ConnectionState) SetMasterSecret(secret []byte) {
	if c.masterSecret != nil {
		logf(logTypeHandshake, "ignoring attempt to overwrite master secret")
		return
	}
	c.masterSecret = dup(secret)
}

func (c *ConnectionState) MasterSecret() []byte { return dup(c.masterSecret) }

func (c *ConnectionState) Version() ProtocolVersion { return c.version }

func (c *ConnectionState) ClientRandom() []byte { return dup(c.clientRandom) }

func (c *ConnectionState) ServerRandom() []byte { return dup(c.serverRandom) }

// VerifyData returns the verify_data captured from the last Finished
// message this side sent.
func (c *ConnectionState) VerifyData() []byte { return dup(c.verifyData) }

// TxTranscript returns the running digest over every handshake byte sent.
func (c *ConnectionState) TxTranscript() []byte { return c.txTranscript.Sum() }

// RxTranscript returns the running digest over every handshake byte
// received.
func (c *ConnectionState) RxTranscript() []byte { return c.rxTranscript.Sum() }

func (c *ConnectionState) rand() io.Reader {
	if c.Rand != nil {
		return c.Rand
	}
	return rand.Reader
}
