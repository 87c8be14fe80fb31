package transport

import (
	"context"
	"net"
	"time"

	"github.com/datawire/dlib/dlog"

	"github.com/lftpnet/lftp/header"
)

// Listener multiplexes inbound datagrams by source address, driving one
// receiver instance per sender and retiring it once it reports finished.
type Listener struct {
	cfg        Config
	conn       *net.UDPConn
	outputPath string

	receivers map[string]*receiver
}

// NewListener binds a UDP socket on bindPort and returns a Listener ready to
// dispatch inbound transfers to outputPath.
func NewListener(cfg Config, bindPort int, outputPath string) (*Listener, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: bindPort})
	if err != nil {
		return nil, err
	}
	return &Listener{
		cfg:        cfg,
		conn:       conn,
		outputPath: outputPath,
		receivers:  make(map[string]*receiver),
	}, nil
}

// Addr returns the bound local address, useful when bindPort was 0.
func (l *Listener) Addr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// Close releases the underlying UDP socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Serve reads datagrams until ctx is cancelled or a finished hook returns
// true for a completed transfer, whichever the caller's onFinished callback
// decides. onFinished is invoked once for every receiver instance that
// reaches the finished state; returning true from it stops Serve.
func (l *Listener) Serve(ctx context.Context, onFinished func(peer *net.UDPAddr) bool) error {
	buf := make([]byte, header.Size+l.cfg.MSS)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		l.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, peer, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}

		key := peer.String()
		r, ok := l.receivers[key]
		if !ok {
			dlog.Infof(ctx, "accepted connection from %s", peer)
			r = newReceiver(l.cfg, peer, l.outputPath)
			l.receivers[key] = r
		}

		ack, err := r.receiveSegment(ctx, buf[:n])
		if err != nil {
			dlog.Errorf(ctx, "dropping datagram from %s: %v", peer, err)
			continue
		}
		if _, err := l.conn.WriteToUDP(ack, peer); err != nil {
			dlog.Errorf(ctx, "ack to %s: %v", peer, err)
		}

		if r.finished {
			delete(l.receivers, key)
			if onFinished != nil && onFinished(peer) {
				return nil
			}
		}
	}
}
