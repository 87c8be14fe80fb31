package transport

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"os"

	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"

	"github.com/lftpnet/lftp/header"
	"github.com/lftpnet/lftp/seqnum"
)

// receiver holds the state necessary to accept datagrams from a single
// sender, reorder them and write the file to disk. A receiver instance is
// driven synchronously by the Listener's single datagram-read loop, so
// unlike sender it needs no internal mutex: only one goroutine ever calls
// receiveSegment for a given instance.
type receiver struct {
	cfg        Config
	outputPath string
	peer       *net.UDPAddr

	expectedSeqNum seqnum.Value
	buffer         []reorderEntry
	fileSize       int64
	firstPacket    bool
	finished       bool

	file *os.File
}

func newReceiver(cfg Config, peer *net.UDPAddr, outputPath string) *receiver {
	return &receiver{
		cfg:         cfg,
		outputPath:  outputPath,
		peer:        peer,
		firstPacket: true,
	}
}

// receiveSegment applies one inbound datagram to the receiver state machine
// and returns the ACK segment that must be sent back to peer, regardless of
// whether the datagram was accepted into the reorder buffer. A datagram with
// a malformed header or size payload, or a SYN whose output file cannot be
// created, yields an error and no ACK.
func (r *receiver) receiveSegment(ctx context.Context, datagram []byte) (ack header.LFTP, err error) {
	seqRaw, _, _, syn, fin, _, payload, err := header.Unpack(datagram)
	if err != nil {
		return nil, ErrMalformedHeader
	}
	seq := seqnum.Value(seqRaw)

	switch {
	case syn && !fin:
		f, openErr := os.Create(r.outputPath)
		if openErr != nil {
			return nil, errors.Wrap(ErrFilesystem, openErr.Error())
		}
		r.file = f
		r.expectedSeqNum = seq.Add(seqnum.Size(len(payload)))
		dlog.Infof(ctx, "receiving %s from %s", r.outputPath, r.peer)

	case len(r.buffer) < r.cfg.BufferSegments() && !seq.LessThan(r.expectedSeqNum):
		if r.firstPacket {
			r.firstPacket = false
			var size int64
			if jsonErr := json.Unmarshal(payload, &size); jsonErr != nil {
				return nil, ErrMalformedHeader
			}
			r.fileSize = size
			r.expectedSeqNum = seq.Add(seqnum.Size(len(payload)))
			dlog.Infof(ctx, "file size is %d bytes", size)
		} else {
			// payload aliases the caller's read buffer, which Listener.Serve
			// reuses for the next datagram; copy it before it can outlive
			// this call sitting in the reorder buffer.
			entry := reorderEntry{seqNum: seq, payload: append([]byte(nil), payload...), isFin: fin}
			buf, inserted := insertSorted(r.buffer, entry)
			r.buffer = buf
			if inserted {
				r.drain(ctx)
			}
		}
	}

	space := (r.cfg.BufferSegments() - len(r.buffer)) * r.cfg.MSS
	if space > math.MaxUint16 {
		// The window field is 16 bits wide: advertise the largest value it
		// can carry instead of letting 65536 or more wrap around.
		space = math.MaxUint16
	}
	rwnd := uint16(space)
	return header.Pack(0, uint32(r.expectedSeqNum), header.FlagAck, rwnd, nil), nil
}

// drain consumes every contiguous entry at the front of the reorder buffer,
// writing payloads to the output file and advancing expectedSeqNum, until
// the FIN is reached in order or the head is no longer contiguous.
func (r *receiver) drain(ctx context.Context) {
	for len(r.buffer) > 0 && r.buffer[0].seqNum == r.expectedSeqNum {
		head := r.buffer[0]
		r.buffer = r.buffer[1:]
		if head.isFin {
			if r.file != nil {
				r.file.Close()
			}
			r.finished = true
			dlog.Infof(ctx, "file received from %s", r.peer)
		} else if r.file != nil {
			if _, err := r.file.Write(head.payload); err != nil {
				dlog.Errorf(ctx, "writing %s: %v", r.outputPath, err)
			}
		}
		r.expectedSeqNum = r.expectedSeqNum.Add(seqnum.Size(len(head.payload)))
	}
}
