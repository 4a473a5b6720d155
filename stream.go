package relic

import (
	"io"
)

// RecordReader delimits records from a byte stream and hands the core
// exactly what DecodeRecord wants: a parsed header and the raw fragment.
// The transport concern stops here; the core never sees the io.Reader.
type RecordReader struct {
	r    io.Reader
	conn *ConnectionState
}

func NewRecordReader(r io.Reader, conn *ConnectionState) *RecordReader {
	return &RecordReader{r: r, conn: conn}
}

// ReadRecord reads one delimited record without decoding it.
func (rr *RecordReader) ReadRecord() (Header, []byte, error) {
	var hdr [recordHeaderLen]byte
	if _, err := io.ReadFull(rr.r, hdr[:]); err != nil {
		return Header{}, nil, err
	}
	h, err := ParseHeader(hdr[:])
	if err != nil {
		return Header{}, nil, err
	}
	raw := make([]byte, h.Length)
	if _, err := io.ReadFull(rr.r, raw); err != nil {
		return Header{}, nil, err
	}
	return h, raw, nil
}

// ReadContent reads and decodes the next record.
func (rr *RecordReader) ReadContent() (DecodedRecord, error) {
	h, raw, err := rr.ReadRecord()
	if err != nil {
		return nil, err
	}
	return rr.conn.DecodeRecord(h, raw)
}

// RecordWriter encodes packets and sends them to a byte stream.
type RecordWriter struct {
	w    io.Writer
	conn *ConnectionState
}

func NewRecordWriter(w io.Writer, conn *ConnectionState) *RecordWriter {
	return &RecordWriter{w: w, conn: conn}
}

// WritePacket encodes one packet and writes the resulting record.
func (rw *RecordWriter) WritePacket(pkt Packet) error {
	encoded, err := rw.conn.EncodePacket(pkt)
	if err != nil {
		return err
	}
	_, err = rw.w.Write(encoded)
	return err
}
