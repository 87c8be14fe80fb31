// Package header implements the LFTP wire format: a fixed 12-byte segment
// header (sequence number, ack number, flags, advertised receive window)
// followed by up to MSS bytes of payload, all big-endian.
package header

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	seqNumOffset = 0
	ackNumOffset = 4
	flagsOffset  = 8
	rwndOffset   = 10
)

// Flags that may be set in an LFTP segment. Only three bits are defined;
// the remainder are reserved and must be zero.
const (
	FlagAck uint16 = 1 << 7
	FlagSyn uint16 = 1 << 6
	FlagFin uint16 = 1 << 5
)

const (
	// Size is the fixed length, in bytes, of an LFTP segment header.
	Size = 12

	// MSS is the maximum segment size: the largest payload, in bytes, a
	// single LFTP segment may carry.
	MSS = 1024
)

// ErrMalformedHeader is returned by Unpack when the input is shorter than
// the fixed header size.
var ErrMalformedHeader = errors.New("lftp: malformed header")

// LFTP is a segment header stored in wire byte order, followed by payload.
type LFTP []byte

// Pack encodes seq, ack, flags, rwnd and payload into a new segment.
func Pack(seq, ack uint32, flags uint16, rwnd uint16, payload []byte) LFTP {
	b := make(LFTP, Size+len(payload))
	binary.BigEndian.PutUint32(b[seqNumOffset:], seq)
	binary.BigEndian.PutUint32(b[ackNumOffset:], ack)
	binary.BigEndian.PutUint16(b[flagsOffset:], flags)
	binary.BigEndian.PutUint16(b[rwndOffset:], rwnd)
	copy(b[Size:], payload)
	return b
}

// Unpack parses a datagram into its header fields and payload. It fails with
// ErrMalformedHeader if the datagram is shorter than the fixed header size.
func Unpack(b []byte) (seq, ack uint32, ack_, syn, fin bool, rwnd uint16, payload []byte, err error) {
	if len(b) < Size {
		err = ErrMalformedHeader
		return
	}
	seq = binary.BigEndian.Uint32(b[seqNumOffset:])
	ackNum := binary.BigEndian.Uint32(b[ackNumOffset:])
	flags := binary.BigEndian.Uint16(b[flagsOffset:])
	rwnd = binary.BigEndian.Uint16(b[rwndOffset:])
	payload = b[Size:]
	return seq, ackNum, flags&FlagAck != 0, flags&FlagSyn != 0, flags&FlagFin != 0, rwnd, payload, nil
}

// SequenceNumber returns the header's sequence_number field.
func (b LFTP) SequenceNumber() uint32 {
	return binary.BigEndian.Uint32(b[seqNumOffset:])
}

// AckNumber returns the header's ack_number field.
func (b LFTP) AckNumber() uint32 {
	return binary.BigEndian.Uint32(b[ackNumOffset:])
}

// Flags returns the raw 16-bit flags field.
func (b LFTP) Flags() uint16 {
	return binary.BigEndian.Uint16(b[flagsOffset:])
}

// HasFlag reports whether the given flag bit is set.
func (b LFTP) HasFlag(flag uint16) bool {
	return b.Flags()&flag != 0
}

// ReceiveWindow returns the advertised receive_window field.
func (b LFTP) ReceiveWindow() uint16 {
	return binary.BigEndian.Uint16(b[rwndOffset:])
}

// Payload returns the bytes following the fixed header.
func (b LFTP) Payload() []byte {
	return b[Size:]
}
