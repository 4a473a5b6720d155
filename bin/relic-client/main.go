package main

import (
	"bytes"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"net"

	"github.com/relic-tls/relic"
)

var addr string

func main() {
	flag.StringVar(&addr, "addr", "localhost:4430", "server address")
	flag.Parse()

	raw, err := net.Dial("tcp", addr)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer raw.Close()

	conn := relic.NewConnectionState(true, relic.VersionTLS12)
	rd := relic.NewRecordReader(raw, conn)
	wr := relic.NewRecordWriter(raw, conn)

	ch := &relic.ClientHelloBody{
		Version:            relic.VersionTLS12,
		CipherSuites:       []uint16{0x002f},
		CompressionMethods: []byte{0},
	}
	if _, err := rand.Read(ch.Random[:]); err != nil {
		log.Fatalf("random: %v", err)
	}
	if err := wr.WritePacket(&relic.HandshakePacket{
		Bodies: []relic.HandshakeMessageBody{ch},
	}); err != nil {
		log.Fatalf("ClientHello: %v", err)
	}

	if _, err := rd.ReadContent(); err != nil {
		log.Fatalf("ServerHello: %v", err)
	}

	// Mirror the demo key material the server uses; the pending cipher must
	// be staged before the server's ChangeCipherSpec arrives.
	key := bytes.Repeat([]byte{0x42}, 16)
	macKey := bytes.Repeat([]byte{0x69}, 20)
	conn.SetPending(relic.AES128CBCSHA,
		relic.NewCryptState(key, macKey, nil),
		relic.NewCryptState(key, macKey, nil))

	content, err := rd.ReadContent()
	if err != nil {
		log.Fatalf("read: %v", err)
	}
	if _, ok := content.(*relic.ChangeCipherSpecRecord); ok {
		log.Printf("server switched ciphers")
	}

	if err := wr.WritePacket(&relic.ChangeCipherSpecPacket{}); err != nil {
		log.Fatalf("ChangeCipherSpec: %v", err)
	}

	msg := []byte("ping over the record layer")
	if err := wr.WritePacket(&relic.AppDataPacket{Data: msg}); err != nil {
		log.Fatalf("write: %v", err)
	}
	content, err = rd.ReadContent()
	if err != nil {
		log.Fatalf("read echo: %v", err)
	}
	if rec, ok := content.(*relic.AppDataRecord); ok {
		fmt.Printf("echoed back: %q\n", rec.Data)
	}

	wr.WritePacket(&relic.AlertPacket{Alert: relic.AlertCloseNotify})
}
