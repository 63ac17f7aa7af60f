package metrics

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// Pusher sends the registry to a Pushgateway. CLI commands are short-lived
// and have no scrape endpoint, so they push once when they finish.
type Pusher struct {
	pusher *push.Pusher
	logger *zap.Logger
}

// NewPusher returns nil when url is empty.
func NewPusher(url, job string, m *Metrics, logger *zap.Logger) *Pusher {
	if url == "" || m == nil {
		return nil
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	return &Pusher{
		pusher: push.New(url, job).Gatherer(m.Registry).Grouping("instance", instanceID),
		logger: logger.Named("metrics").With(zap.String("job", job), zap.String("instance", instanceID)),
	}
}

// Push is best-effort; failures are logged.
func (p *Pusher) Push() {
	if p == nil {
		return
	}
	if err := p.pusher.Push(); err != nil {
		p.logger.Warn("Failed to push metrics to Pushgateway", zap.Error(err))
		return
	}
	p.logger.Debug("Metrics pushed")
}
