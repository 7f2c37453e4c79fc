package bridge

import (
	"context"

	"go.uber.org/zap"

	"rfid-bridge/internal/config"
	"rfid-bridge/internal/models"
	"rfid-bridge/internal/util"
)

// AccessRecorder persists parsed scan outcomes.
type AccessRecorder interface {
	RecordAccess(ctx context.Context, ev models.AccessLogEvent) error
}

// CardAuthorizer applies device-announced card changes.
type CardAuthorizer interface {
	Authorize(ctx context.Context, tag, userName, accessPoint string) error
	Revoke(ctx context.Context, tag string) error
}

// SecurityRecorder validates and persists security event candidates.
type SecurityRecorder interface {
	Record(ctx context.Context, candidate models.SecurityEventCandidate) error
}

// HandlerFunc processes one inbound payload.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Dispatcher routes each inbound (topic, payload) pair to exactly one
// handler by exact topic match. Every invocation is an independent unit of
// work: a failing or panicking handler is logged and never affects other
// in-flight messages or the subscription itself.
type Dispatcher struct {
	routes map[string]HandlerFunc
	logger *zap.Logger
}

func NewDispatcher(topics config.TopicsConfig, access AccessRecorder, cards CardAuthorizer, security SecurityRecorder, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		routes: make(map[string]HandlerFunc),
		logger: logger,
	}

	d.routes[topics.AccessLog] = func(ctx context.Context, payload []byte) error {
		ev, err := ParseAccessLog(string(payload))
		if err != nil {
			return err
		}
		return access.RecordAccess(ctx, ev)
	}

	d.routes[topics.Admin] = func(ctx context.Context, payload []byte) error {
		cmd, ok := ParseAdminCommand(string(payload))
		if !ok {
			// The admin topic also carries our own outbound ADD/REMOVE
			// commands; anything that is not a CARD_ADDED/CARD_REMOVED
			// notification is not addressed to us.
			util.Debug("Ignoring non-notification admin payload",
				zap.ByteString("payload", payload))
			return nil
		}
		if cmd.Action == models.CardActionAdd {
			return cards.Authorize(ctx, cmd.Tag, "", models.AccessPointSystem)
		}
		return cards.Revoke(ctx, cmd.Tag)
	}

	d.routes[topics.Security] = func(ctx context.Context, payload []byte) error {
		candidate, err := ParseSecurityEvent(payload)
		if err != nil {
			return err
		}
		return security.Record(ctx, candidate)
	}

	return d
}

// Topics returns the topics the dispatcher has handlers for, in no
// particular order.
func (d *Dispatcher) Topics() []string {
	topics := make([]string, 0, len(d.routes))
	for topic := range d.routes {
		topics = append(topics, topic)
	}
	return topics
}

// Dispatch handles one message. Unrecognized topics are silently ignored;
// handler failures are logged and discarded.
func (d *Dispatcher) Dispatch(topic string, payload []byte) {
	handler, ok := d.routes[topic]
	if !ok {
		util.Debug("No handler for topic", zap.String("topic", topic))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic in message handler",
				zap.String("topic", topic),
				zap.Any("panic", r))
		}
	}()

	util.Debug("Dispatching message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)))

	if err := handler(context.Background(), payload); err != nil {
		d.logger.Error("Message handler failed",
			zap.String("topic", topic),
			zap.ByteString("payload", payload),
			zap.Error(err))
	}
}
