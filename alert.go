package relic

import "fmt"

// Alert is a TLS alert description. It doubles as the error type for
// protocol failures so that every failed decode or verification maps
// directly onto the alert that should go back to the peer.
type Alert uint8

const (
	AlertLevelWarning = 1
	AlertLevelError   = 2
)

const (
	AlertCloseNotify          Alert = 0
	AlertUnexpectedMessage    Alert = 10
	AlertBadRecordMAC         Alert = 20
	AlertRecordOverflow       Alert = 22
	AlertHandshakeFailure     Alert = 40
	AlertBadCertificate       Alert = 42
	AlertIllegalParameter     Alert = 47
	AlertDecodeError          Alert = 50
	AlertDecryptError         Alert = 51
	AlertProtocolVersion      Alert = 70
	AlertInsufficientSecurity Alert = 71
	AlertInternalError        Alert = 80
	AlertNoRenegotiation      Alert = 100

	// Internal pseudo-alerts, never sent on the wire.
	AlertWouldBlock Alert = 254
	AlertNoAlert    Alert = 255
)

var alertText = map[Alert]string{
	AlertCloseNotify:          "close notify",
	AlertUnexpectedMessage:    "unexpected message",
	AlertBadRecordMAC:         "bad record MAC",
	AlertRecordOverflow:       "record overflow",
	AlertHandshakeFailure:     "handshake failure",
	AlertBadCertificate:       "bad certificate",
	AlertIllegalParameter:     "illegal parameter",
	AlertDecodeError:          "error decoding message",
	AlertDecryptError:         "error decrypting message",
	AlertProtocolVersion:      "protocol version not supported",
	AlertInsufficientSecurity: "insufficient security level",
	AlertInternalError:        "internal error",
	AlertNoRenegotiation:      "no renegotiation",
	AlertWouldBlock:           "would have blocked",
	AlertNoAlert:              "no alert",
}

func (a Alert) String() string {
	s, ok := alertText[a]
	if ok {
		return "alert(" + s + ")"
	}
	return fmt.Sprintf("alert(%d)", uint8(a))
}

func (a Alert) Error() string {
	return a.String()
}

// alertLevel picks the wire level for an outgoing alert. Only close_notify
// and no_renegotiation are warnings; everything else tears the connection
// down.
func alertLevel(a Alert) byte {
	switch a {
	case AlertCloseNotify, AlertNoRenegotiation:
		return AlertLevelWarning
	}
	return AlertLevelError
}
