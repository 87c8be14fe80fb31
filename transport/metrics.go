package transport

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// sessionMetrics mirrors the per-connection-labeled-gauge shape the
// corpus's TCP-info exporters use for kernel-reported socket stats, applied
// here to our own congestion-control state instead of getsockopt(TCP_INFO).
// One sessionMetrics is registered per live sender session, labeled by its
// session ID, and unregistered on teardown; receiver sessions register none.
type sessionMetrics struct {
	mu sync.Mutex

	sessionID string

	cwnd      uint64
	ssthresh  uint64
	estRTT    float64
	timeout   float64
	sendBase  uint64
	bytesAck  uint64
	dupAcks   uint64
}

var (
	cwndDesc = prometheus.NewDesc(
		"lftp_congestion_window_bytes", "Current congestion window.",
		[]string{"session"}, nil)
	ssthreshDesc = prometheus.NewDesc(
		"lftp_ssthresh_bytes", "Current slow-start threshold.",
		[]string{"session"}, nil)
	estRTTDesc = prometheus.NewDesc(
		"lftp_estimated_rtt_seconds", "Current EstimatedRTT.",
		[]string{"session"}, nil)
	timeoutDesc = prometheus.NewDesc(
		"lftp_timeout_interval_seconds", "Current TimeoutInterval.",
		[]string{"session"}, nil)
	sendBaseDesc = prometheus.NewDesc(
		"lftp_send_base", "Lowest unacknowledged byte offset.",
		[]string{"session"}, nil)
	bytesAckDesc = prometheus.NewDesc(
		"lftp_bytes_acked_total", "Cumulative bytes acknowledged.",
		[]string{"session"}, nil)
	dupAckDesc = prometheus.NewDesc(
		"lftp_duplicate_ack_total", "Cumulative duplicate ACKs observed.",
		[]string{"session"}, nil)
)

// Collector is a prometheus.Collector exposing every live LFTP sender
// session's congestion/RTT state. It is safe for concurrent Add/Remove from
// sender goroutines and concurrent Collect from the Prometheus scraper.
type Collector struct {
	mu       sync.Mutex
	sessions map[string]*sessionMetrics
}

// NewCollector returns an empty Collector ready to register with a
// prometheus.Registry.
func NewCollector() *Collector {
	return &Collector{sessions: make(map[string]*sessionMetrics)}
}

// Register registers the collector with the default Prometheus registry.
func (c *Collector) Register() error {
	return prometheus.Register(c)
}

func (c *Collector) add(sessionID string) *sessionMetrics {
	m := &sessionMetrics{sessionID: sessionID}
	c.mu.Lock()
	c.sessions[sessionID] = m
	c.mu.Unlock()
	return m
}

func (c *Collector) remove(sessionID string) {
	c.mu.Lock()
	delete(c.sessions, sessionID)
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- cwndDesc
	descs <- ssthreshDesc
	descs <- estRTTDesc
	descs <- timeoutDesc
	descs <- sendBaseDesc
	descs <- bytesAckDesc
	descs <- dupAckDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	snapshot := make([]*sessionMetrics, 0, len(c.sessions))
	for _, m := range c.sessions {
		snapshot = append(snapshot, m)
	}
	c.mu.Unlock()

	for _, m := range snapshot {
		m.mu.Lock()
		metrics <- prometheus.MustNewConstMetric(cwndDesc, prometheus.GaugeValue, float64(m.cwnd), m.sessionID)
		metrics <- prometheus.MustNewConstMetric(ssthreshDesc, prometheus.GaugeValue, float64(m.ssthresh), m.sessionID)
		metrics <- prometheus.MustNewConstMetric(estRTTDesc, prometheus.GaugeValue, m.estRTT, m.sessionID)
		metrics <- prometheus.MustNewConstMetric(timeoutDesc, prometheus.GaugeValue, m.timeout, m.sessionID)
		metrics <- prometheus.MustNewConstMetric(sendBaseDesc, prometheus.GaugeValue, float64(m.sendBase), m.sessionID)
		metrics <- prometheus.MustNewConstMetric(bytesAckDesc, prometheus.CounterValue, float64(m.bytesAck), m.sessionID)
		metrics <- prometheus.MustNewConstMetric(dupAckDesc, prometheus.CounterValue, float64(m.dupAcks), m.sessionID)
		m.mu.Unlock()
	}
}

func (m *sessionMetrics) update(cwnd, ssthresh uint32, estRTT, timeout float64, sendBase uint32, bytesAck uint64, dupAcks uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.cwnd = uint64(cwnd)
	m.ssthresh = uint64(ssthresh)
	m.estRTT = estRTT
	m.timeout = timeout
	m.sendBase = uint64(sendBase)
	m.bytesAck = bytesAck
	m.dupAcks = dupAcks
	m.mu.Unlock()
}
