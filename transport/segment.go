package transport

import (
	"sort"
	"time"

	"github.com/lftpnet/lftp/header"
	"github.com/lftpnet/lftp/seqnum"
)

// sendEntry is one slot in the sender's send buffer: a packed segment
// together with its transmission bookkeeping (sequence number, raw bytes,
// whether it has been sent, and when). The timestamp is zero until the
// transmitter first sends the entry, is set at that moment for every entry,
// FIN included, and is refreshed on retransmission; unlike the reference
// implementation, FIN entries are therefore timestamped too.
type sendEntry struct {
	seqNum        seqnum.Value
	raw           header.LFTP
	sent          bool
	sendTimestamp time.Time
}

func (e *sendEntry) isSyn() bool {
	return e.raw.HasFlag(header.FlagSyn)
}

func (e *sendEntry) isFin() bool {
	return e.raw.HasFlag(header.FlagFin)
}

// reorderEntry is one slot in the receiver's reorder buffer: a segment's
// sequence number, payload, and whether it was the FIN.
type reorderEntry struct {
	seqNum  seqnum.Value
	payload []byte
	isFin   bool
}

// insertSorted inserts e into buf at its sorted position by seqNum,
// returning the new slice. If an entry with the same seqNum already
// exists, the insert is dropped as a duplicate and ok is false.
func insertSorted(buf []reorderEntry, e reorderEntry) (_ []reorderEntry, ok bool) {
	i := sort.Search(len(buf), func(i int) bool { return !buf[i].seqNum.LessThan(e.seqNum) })
	if i < len(buf) && buf[i].seqNum == e.seqNum {
		return buf, false
	}
	buf = append(buf, reorderEntry{})
	copy(buf[i+1:], buf[i:])
	buf[i] = e
	return buf, true
}
