// Package congestion implements the LFTP sender's congestion-control state
// machine as a pure transition function, independent of I/O, so it can be
// unit-tested without a socket in the loop.
//
// On three duplicate ACKs the machine transitions to CongestionAvoidance
// rather than FastRecovery, reproducing the reference implementation's
// behavior rather than RFC 5681's fast-recovery entry. This is a deliberate
// choice, not a bug: see the Open Questions entry in DESIGN.md.
package congestion

// State is the congestion-control FSM's current state.
type State int

const (
	SlowStart State = iota
	CongestionAvoidance
	FastRecovery
)

func (s State) String() string {
	switch s {
	case SlowStart:
		return "SLOW_START"
	case CongestionAvoidance:
		return "CONGESTION_AVOIDANCE"
	case FastRecovery:
		return "FAST_RECOVERY"
	default:
		return "UNKNOWN"
	}
}

// Event is a stimulus delivered to the FSM.
type Event int

const (
	// NewAck is a cumulative ACK that acknowledges new data.
	NewAck Event = iota
	// DupAck is an ACK equal to send_base; Step's dupCount argument carries
	// the running tally of consecutive duplicates, including this one.
	DupAck
	// Timeout fires when the retransmission timer expires.
	Timeout
)

// Action tells the caller what the transition requires it to do; the FSM
// itself never touches the network or the send buffer.
type Action int

const (
	NoAction Action = iota
	// Retransmit means: resend the segment at send_base.
	Retransmit
)

// MSS is the maximum segment size used by cwnd/ssthresh arithmetic. It is a
// package-level constant of 1024 bytes rather than a parameter; it does not
// follow transport.Config.MSS when that is overridden.
const MSS = 1024

// Machine holds the mutable congestion-control state: the current FSM
// state, the congestion window and the slow-start threshold, both in bytes.
type Machine struct {
	State           State
	Cwnd            uint32
	Ssthresh        uint32
	DuplicateAcks   int
}

// New returns a Machine initialized to SlowStart, cwnd = MSS,
// ssthresh = 65536.
func New() *Machine {
	return &Machine{
		State:    SlowStart,
		Cwnd:     MSS,
		Ssthresh: 65536,
	}
}

// Step applies event to the machine and returns the action the caller must
// perform. dupCount is only consulted for DupAck events and must be the
// running count of consecutive duplicate ACKs since the last new-data ACK,
// including the one that triggered this call.
func (m *Machine) Step(event Event, dupCount int) Action {
	action := NoAction

	switch event {
	case NewAck:
		m.DuplicateAcks = 0
		switch m.State {
		case SlowStart:
			m.Cwnd += MSS
		case CongestionAvoidance:
			m.Cwnd += MSS * MSS / m.Cwnd
		case FastRecovery:
			m.Cwnd = m.Ssthresh
			m.State = CongestionAvoidance
		}

	case DupAck:
		m.DuplicateAcks = dupCount
		if dupCount == 3 {
			switch m.State {
			case SlowStart, CongestionAvoidance:
				action = Retransmit
				m.Ssthresh = m.Cwnd / 2
				m.Cwnd = m.Ssthresh + 3
				m.State = CongestionAvoidance
			case FastRecovery:
				// no-op: already in recovery, keep waiting.
			}
		}

	case Timeout:
		m.DuplicateAcks = 0
		action = Retransmit
		m.Ssthresh = m.Cwnd / 2
		m.Cwnd = MSS
		m.State = SlowStart
	}

	if m.Cwnd < MSS {
		m.Cwnd = MSS
	}
	if m.Cwnd >= m.Ssthresh {
		m.State = CongestionAvoidance
	}

	return action
}
