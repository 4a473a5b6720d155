package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"net"

	"github.com/relic-tls/relic"
)

var port string

// Demo key material shared with relic-client. A real deployment derives
// these from the handshake; the demo only exercises record framing.
func demoStates() (*relic.CryptState, *relic.CryptState) {
	key := bytes.Repeat([]byte{0x42}, 16)
	macKey := bytes.Repeat([]byte{0x69}, 20)
	return relic.NewCryptState(key, macKey, nil), relic.NewCryptState(key, macKey, nil)
}

func serve(raw net.Conn) {
	defer raw.Close()

	conn := relic.NewConnectionState(false, relic.VersionTLS12)
	rd := relic.NewRecordReader(raw, conn)
	wr := relic.NewRecordWriter(raw, conn)

	for {
		content, err := rd.ReadContent()
		if err != nil {
			log.Printf("connection done: %v", err)
			return
		}

		switch rec := content.(type) {
		case *relic.HandshakeRecord:
			for _, hm := range rec.Messages {
				if hm.MsgType != relic.HandshakeTypeClientHello {
					continue
				}
				sh := &relic.ServerHelloBody{
					Version:     conn.Version(),
					CipherSuite: 0x002f,
				}
				copy(sh.Random[:], bytes.Repeat([]byte{0x5a}, 32))
				err := wr.WritePacket(&relic.HandshakePacket{
					Bodies: []relic.HandshakeMessageBody{sh},
				})
				if err != nil {
					log.Printf("ServerHello failed: %v", err)
					return
				}
				tx, rx := demoStates()
				conn.SetPending(relic.AES128CBCSHA, tx, rx)
				if err := wr.WritePacket(&relic.ChangeCipherSpecPacket{}); err != nil {
					log.Printf("ChangeCipherSpec failed: %v", err)
					return
				}
			}

		case *relic.AppDataRecord:
			fmt.Printf("received %d bytes, echoing\n", len(rec.Data))
			if err := wr.WritePacket(&relic.AppDataPacket{Data: rec.Data}); err != nil {
				log.Printf("echo failed: %v", err)
				return
			}

		case *relic.AlertRecord:
			log.Printf("peer alerts: %v", rec.Alerts)
			return
		}
	}
}

func main() {
	flag.StringVar(&port, "port", "4430", "port")
	flag.Parse()

	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("listening on :%s", port)
	for {
		raw, err := ln.Accept()
		if err != nil {
			log.Fatalf("accept: %v", err)
		}
		go serve(raw)
	}
}
