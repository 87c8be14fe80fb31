package transport

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/lftpnet/lftp/buffer"
	"github.com/lftpnet/lftp/congestion"
	"github.com/lftpnet/lftp/header"
	"github.com/lftpnet/lftp/rtt"
	"github.com/lftpnet/lftp/seqnum"
)

// loopInterval is how often the producer and transmitter activities
// re-examine shared state. It stands in for the reference implementation's
// unthrottled busy loop: short enough that it does not add perceptible
// latency, long enough that it does not spin the CPU.
const loopInterval = 2 * time.Millisecond

// Rendezvous is an optional testing/demo hook. When supplied to SendFile,
// the sender signals Reached once acknowledged progress first reaches 50%
// of the file size. The send on Reached and the following wait on Resume
// happen in a goroutine of their own; the ack-receiver activity is not
// paused and keeps processing acknowledgements meanwhile.
type Rendezvous struct {
	Reached chan<- struct{}
	Resume  <-chan struct{}
}

// sender holds all mutable sender-side session state. A single mutex, mu,
// protects every field below and is held only for short critical sections:
// no disk read and no socket read ever happens while it is held. Segment
// sends (the transmitter's and retransmissions) are written to the socket
// with mu held.
type sender struct {
	cfg  Config
	conn *net.UDPConn

	mu sync.Mutex

	initialSeqNum  seqnum.Value
	sendBase       seqnum.Value
	nextByteSeqNum seqnum.Value
	buffer         []*sendEntry

	recvWindowSize uint16
	cc             *congestion.Machine
	estimator      *rtt.Estimator
	dupAckCount    int
	startTime      time.Time

	running bool
	failed  bool

	fileSize    int64
	progressPct int

	rendezvous      *Rendezvous
	rendezvousFired bool

	metrics *sessionMetrics

	file        *os.File
	producerEOF bool

	watchdogTimeouts int
	lastSendBase     seqnum.Value
}

// SendFile transmits the file at localPath to peer, returning once the FIN
// segment has been cumulatively acknowledged or failing with a wrapped
// ErrTransferFailed/ErrFilesystem.
func SendFile(ctx context.Context, cfg Config, peer *net.UDPAddr, localPath string, rv *Rendezvous, collector *Collector) error {
	sessionID := uuid.NewString()
	ctx = dlog.WithField(ctx, "session", sessionID)
	ctx = dlog.WithField(ctx, "role", "sender")

	f, err := os.Open(localPath)
	if err != nil {
		return pkgerrors.Wrap(ErrFilesystem, err.Error())
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return pkgerrors.Wrap(ErrFilesystem, err.Error())
	}

	conn, err := net.DialUDP("udp", nil, peer)
	if err != nil {
		f.Close()
		return pkgerrors.Wrap(ErrFilesystem, err.Error())
	}

	var metrics *sessionMetrics
	if collector != nil {
		metrics = collector.add(sessionID)
		defer collector.remove(sessionID)
	}

	s := &sender{
		cfg:       cfg,
		conn:      conn,
		cc:        congestion.New(),
		estimator: rtt.NewWithInitial(cfg.InitialRTO),
		running:   true,
		fileSize:  fi.Size(),
		rendezvous: rv,
		metrics:    metrics,
		file:       f,
	}

	s.initialSeqNum = randomInitialSeqNum()
	s.sendBase = s.initialSeqNum
	s.nextByteSeqNum = s.initialSeqNum
	s.lastSendBase = s.initialSeqNum
	s.startTime = time.Now()

	// The SYN segment is appended before any activity starts, exactly as
	// the reference FileSender appends it from its constructor.
	filename := filepath.Base(localPath)
	synPayload, err := json.Marshal(struct {
		Filename string `json:"filename"`
	}{Filename: filename})
	if err != nil {
		conn.Close()
		f.Close()
		return pkgerrors.Wrap(ErrFilesystem, err.Error())
	}
	s.appendLocked(header.FlagSyn, synPayload)

	dlog.Infof(ctx, "sending %s (%d bytes) to %s", filename, fi.Size(), peer)

	var wg sync.WaitGroup
	activities := []func(context.Context){s.producer, s.transmitter, s.ackReceiver, s.timeoutWatcher}
	wg.Add(len(activities))
	for _, activity := range activities {
		activity := activity
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					dlog.Errorf(ctx, "%+v", derror.PanicToError(r))
				}
			}()
			activity(ctx)
		}()
	}
	wg.Wait()

	s.mu.Lock()
	failed := s.failed
	s.mu.Unlock()
	if failed {
		return pkgerrors.Wrap(ErrTransferFailed, "session watchdog tripped before FIN was acknowledged")
	}
	dlog.Infof(ctx, "transfer of %s finished", filename)
	return nil
}

func randomInitialSeqNum() seqnum.Value {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return seqnum.Value(time.Now().UnixNano() & 0xFFFF)
	}
	return seqnum.Value(binary.BigEndian.Uint16(b[:]))
}

// appendLocked packs a segment with the given flags/payload at
// nextByteSeqNum and appends it to the send buffer. Callers must hold mu.
func (s *sender) appendLocked(flags uint16, payload []byte) {
	seq := s.nextByteSeqNum
	raw := header.Pack(uint32(seq), 0, flags, 0, payload)
	s.buffer = append(s.buffer, &sendEntry{seqNum: seq, raw: raw})
	s.nextByteSeqNum = s.nextByteSeqNum.Add(seqnum.Size(len(payload)))
}

// producer reads the file in MSS-sized chunks and appends segments to the
// send buffer while it has room. The first post-SYN segment carries the
// JSON-encoded file size; the final segment is a FIN carrying the 1-byte
// sentinel payload.
func (s *sender) producer(ctx context.Context) {
	first := true
	for {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		if s.producerEOF {
			s.mu.Unlock()
			return
		}
		if first {
			first = false
			sizePayload, err := json.Marshal(s.fileSize)
			if err == nil {
				s.appendLocked(0, sizePayload)
			}
			s.mu.Unlock()
			continue
		}
		if len(s.buffer) >= s.cfg.BufferSegments() {
			s.mu.Unlock()
			time.Sleep(loopInterval)
			continue
		}
		s.mu.Unlock()

		chunk := buffer.NewView(s.cfg.MSS)
		n, err := s.file.Read(chunk)
		if n > 0 {
			chunk.CapLength(n)
			s.mu.Lock()
			s.appendLocked(0, chunk)
			s.mu.Unlock()
		}
		if err == io.EOF || (err == nil && n == 0) {
			s.file.Close()
			s.mu.Lock()
			s.appendLocked(header.FlagFin, []byte{'0'})
			s.producerEOF = true
			s.mu.Unlock()
			return
		}
		if err != nil {
			dlog.Errorf(ctx, "reading %s: %v", s.file.Name(), err)
			s.file.Close()
			s.mu.Lock()
			s.appendLocked(header.FlagFin, []byte{'0'})
			s.producerEOF = true
			s.mu.Unlock()
			return
		}
	}
}

// transmitter scans the send buffer from the front and sends every segment
// whose offset from send_base fits within min(rwnd, cwnd), stopping at the
// first not-yet-sendable entry to preserve in-order transmission.
func (s *sender) transmitter(ctx context.Context) {
	for {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		limit := seqnum.Size(s.recvWindowSize)
		if cw := seqnum.Size(s.cc.Cwnd); cw < limit {
			limit = cw
		}
		for _, e := range s.buffer {
			if e.sent {
				continue
			}
			if s.sendBase.Size(e.seqNum) > limit {
				break
			}
			if err := s.writeSegment(e.raw); err != nil {
				dlog.Errorf(ctx, "send: %v", err)
				break
			}
			e.sendTimestamp = time.Now()
			e.sent = true
			s.startTime = time.Now()
		}
		s.reportMetricsLocked()
		s.mu.Unlock()
		time.Sleep(loopInterval)
	}
}

func (s *sender) writeSegment(seg header.LFTP) error {
	_, err := s.conn.Write(seg)
	return err
}

// ackReceiver blocks on datagram receipt and is the only activity that
// advances send_base.
func (s *sender) ackReceiver(ctx context.Context) {
	buf := make([]byte, header.Size+s.cfg.MSS)
	for {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if !running {
			return
		}

		s.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := s.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			dlog.Errorf(ctx, "recv: %v", err)
			continue
		}

		_, ack, _, _, _, rwnd, _, err := header.Unpack(buf[:n])
		if err != nil {
			dlog.Errorf(ctx, "dropping malformed datagram: %v", err)
			continue
		}

		s.mu.Lock()
		finished := s.handleAckLocked(ctx, ack, rwnd)
		s.mu.Unlock()

		if finished {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			s.conn.Close()
			return
		}
	}
}

// handleAckLocked applies one received ACK to the sender state. Callers
// must hold mu. It returns true once the session has fully completed (the
// FIN entry has been popped and the buffer is empty).
func (s *sender) handleAckLocked(ctx context.Context, ackRaw uint32, rwnd uint16) bool {
	ack := seqnum.Value(ackRaw)
	finished := false
	if ack == s.sendBase {
		s.dupAckCount++
		action := s.cc.Step(congestion.DupAck, s.dupAckCount)
		s.logCCTransition(ctx, action)
		if action == congestion.Retransmit {
			s.retransmitLocked(ctx)
		}
	} else if s.sendBase.LessThan(ack) {
		s.sendBase = ack
		s.dupAckCount = 0
		action := s.cc.Step(congestion.NewAck, 0)
		s.logCCTransition(ctx, action)

		for len(s.buffer) > 0 && s.buffer[0].seqNum.LessThan(s.sendBase) {
			entry := s.buffer[0]
			if !entry.sendTimestamp.IsZero() {
				s.estimator.Sample(time.Since(entry.sendTimestamp))
			}
			s.buffer = s.buffer[1:]
			if entry.isFin() && !entry.isSyn() && len(s.buffer) == 0 {
				finished = true
			}
		}
		s.reportProgressLocked(ctx)
	}
	s.recvWindowSize = rwnd
	s.startTime = time.Now()
	s.reportMetricsLocked()
	return finished
}

func (s *sender) logCCTransition(ctx context.Context, action congestion.Action) {
	dlog.Tracef(ctx, "cc state=%s cwnd=%d ssthresh=%d dupAcks=%d action=%v",
		s.cc.State, s.cc.Cwnd, s.cc.Ssthresh, s.dupAckCount, action)
}

func (s *sender) reportProgressLocked(ctx context.Context) {
	if s.fileSize <= 0 {
		return
	}
	granularity := s.cfg.ProgressGranularityPercent
	if granularity <= 0 {
		granularity = 5
	}
	acked := float64(s.initialSeqNum.Size(s.sendBase))
	for acked/float64(s.fileSize)*100 >= float64((s.progressPct+1)*granularity) {
		s.progressPct++
		dlog.Infof(ctx, "sent %d%% (EstimatedRTT=%s DeviationRTT=%s TimeoutInterval=%s)",
			s.progressPct*granularity, s.estimator.Estimated, s.estimator.Deviation, s.estimator.Timeout)
	}

	if s.rendezvous != nil && !s.rendezvousFired && acked/float64(s.fileSize) >= 0.5 {
		s.rendezvousFired = true
		reached, resume := s.rendezvous.Reached, s.rendezvous.Resume
		go func() {
			reached <- struct{}{}
			<-resume
		}()
	}
}

// retransmitLocked resends only the segment at send_base, refreshing its
// timestamp and resetting the timeout anchor.
func (s *sender) retransmitLocked(ctx context.Context) {
	for _, e := range s.buffer {
		if e.seqNum == s.sendBase {
			if err := s.writeSegment(e.raw); err != nil {
				dlog.Errorf(ctx, "retransmit: %v", err)
				return
			}
			e.sendTimestamp = time.Now()
			s.startTime = time.Now()
			dlog.Debugf(ctx, "retransmitting seq=%d", s.sendBase)
			return
		}
	}
}

// timeoutWatcher periodically compares wall-clock time against startTime
// and the current timeout interval, injecting a TIMEOUT event into the
// congestion FSM when exceeded. It also enforces the progress watchdog:
// after Config.WatchdogTimeouts consecutive timeouts with no advance of
// send_base, the session aborts.
func (s *sender) timeoutWatcher(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TimeoutPollInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		if time.Since(s.startTime) > s.estimator.Timeout {
			action := s.cc.Step(congestion.Timeout, 0)
			s.dupAckCount = 0
			s.logCCTransition(ctx, action)
			s.retransmitLocked(ctx)

			if s.sendBase == s.lastSendBase {
				s.watchdogTimeouts++
			} else {
				s.watchdogTimeouts = 0
				s.lastSendBase = s.sendBase
			}
			if s.watchdogTimeouts >= s.cfg.WatchdogTimeouts {
				dlog.Errorf(ctx, "giving up after %d consecutive unproductive timeouts", s.watchdogTimeouts)
				s.running = false
				s.failed = true
				s.mu.Unlock()
				s.conn.Close()
				return
			}
		}
		s.reportMetricsLocked()
		s.mu.Unlock()
	}
}

func (s *sender) reportMetricsLocked() {
	if s.metrics == nil {
		return
	}
	bytesAcked := uint64(s.initialSeqNum.Size(s.sendBase))
	s.metrics.update(s.cc.Cwnd, s.cc.Ssthresh,
		s.estimator.Estimated.Seconds(), s.estimator.Timeout.Seconds(),
		uint32(s.sendBase), bytesAcked, uint64(s.dupAckCount))
}
