package notify

import (
	"context"
	"strings"

	"github.com/factwatch/factwatch/internal/metrics"
	"github.com/factwatch/factwatch/internal/watch/event"
	"go.uber.org/zap"
)

// Notifier turns events into messages and hands them to a Deliverer.
type Notifier struct {
	config    Config
	deliverer Deliverer
	metrics   *metrics.Metrics
	log       *zap.Logger
}

type Params struct {
	// Config is the notification config
	Config Config

	// Deliverer publishes the messages
	Deliverer Deliverer

	// Metrics records delivery outcomes, may be nil
	Metrics *metrics.Metrics

	// Log is the logger to use for the notifier
	Log *zap.Logger
}

func NewNotifier(params Params) *Notifier {
	return &Notifier{
		config:    params.Config,
		deliverer: params.Deliverer,
		metrics:   params.Metrics,
		log:       params.Log.Named("notifier"),
	}
}

// Notify delivers a message for evt. Failures are logged and dropped,
// Notify never retries.
func (n *Notifier) Notify(ctx context.Context, evt event.Event) {
	log := n.log.With(
		zap.String("player", evt.Actor),
		zap.String("kind", string(evt.Kind)),
	)

	if n.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.config.Timeout)
		defer cancel()
	}

	err := n.deliverer.Deliver(ctx, n.config.Endpoint, n.config.Sender, n.Message(evt))

	n.metrics.ObserveDelivery(err)

	if err != nil {
		log.Error("notification failed", zap.Error(err))
		return
	}

	log.Info("notification sent")
}

// Message renders the message for evt.
func (n *Notifier) Message(evt event.Event) string {
	template := n.config.JoinMessage
	if evt.Kind == event.Leave {
		template = n.config.LeaveMessage
	}

	return strings.ReplaceAll(template, "{actor}", evt.Actor)
}
