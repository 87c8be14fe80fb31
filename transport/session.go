package transport

import (
	"context"
	"net"

	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ReceiveFile binds bindPort, accepts a single transfer and writes it to
// outputPath, returning once the FIN segment has been consumed in order. It
// is the session-bootstrap counterpart to SendFile: the out-of-band
// rendezvous is expected to have already told the peer which port to send
// to.
func ReceiveFile(ctx context.Context, cfg Config, bindPort int, outputPath string) error {
	sessionID := uuid.NewString()
	ctx = dlog.WithField(ctx, "session", sessionID)
	ctx = dlog.WithField(ctx, "role", "receiver")

	l, err := NewListener(cfg, bindPort, outputPath)
	if err != nil {
		return errors.Wrap(ErrFilesystem, err.Error())
	}
	defer l.Close()

	dlog.Infof(ctx, "listening on %s", l.Addr())

	var finishedPeer *net.UDPAddr
	err = l.Serve(ctx, func(peer *net.UDPAddr) bool {
		finishedPeer = peer
		return true
	})
	if err != nil {
		return errors.Wrap(ErrTransferFailed, err.Error())
	}
	if finishedPeer == nil {
		return errors.Wrap(ErrTransferFailed, "listener stopped before any transfer finished")
	}
	return nil
}
