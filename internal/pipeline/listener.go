package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"mueck/internal/infra"
)

// EventChannel is the NOTIFY channel fired by the slack_event insert trigger.
const EventChannel = "slack_event"

// Listen subscribes to EventChannel and signals the returned channel on every notification
// (coalesced). The listener closes when ctx ends.
func Listen(ctx context.Context, dsn string, logger *infra.Logger) (<-chan struct{}, error) {
	if logger == nil {
		nop := infra.NopLogger()
		logger = &nop
	}
	report := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn().Err(err).Int("event", int(ev)).Msg("listener: connection event")
		}
	}
	listener := pq.NewListener(dsn, 2*time.Second, time.Minute, report)
	if err := listener.Listen(EventChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", EventChannel, err)
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer listener.Close()
		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				// nil after a reconnect; events may have been missed, so wake anyway
				if n != nil {
					logger.Debug().Str("payload", n.Extra).Msg("listener: event notification")
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case <-ping.C:
				if err := listener.Ping(); err != nil {
					logger.Warn().Err(err).Msg("listener: ping failed")
				}
			}
		}
	}()
	return wake, nil
}
