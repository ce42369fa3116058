package transport

import "time"

// runKeepalive is the §5 supplemented feature: a background ticker that
// pings the peer on KeepaliveTime and tears the transport down if the ACK
// doesn't arrive within KeepaliveTimeout. It exits as soon as t.ctx is
// cancelled (i.e. the transport is going away for any other reason).
func (t *Transport) runKeepalive() {
	if t.opts.KeepaliveTime <= 0 {
		return
	}
	ticker := time.NewTicker(t.opts.KeepaliveTime)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.sendKeepalivePing()
		}
	}
}

func (t *Transport) sendKeepalivePing() {
	timeout := t.opts.KeepaliveTimeout
	if timeout <= 0 {
		timeout = t.opts.KeepaliveTime
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	result := make(chan error, 1)
	t.Ping(func(_ time.Duration, err error) {
		result <- err
	})

	select {
	case err := <-result:
		if err != nil {
			t.logger.Warn().Err(err).Msg("keepalive ping failed")
		}
	case <-timer.C:
		t.logger.Warn().Msg("keepalive ping timed out")
		t.startGoAway(0, errConnectionClosed)
	case <-t.ctx.Done():
	}
}
