package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mediline/telecare-api/internal/dto"
)

const registryEventBuffer = 16

// RegistryEvents fans registry changes out to connected watchers. Session
// events go to every doctor-side watcher; call events go to watchers of the
// specific channel id. Events are bridged across nodes via Redis pub/sub and
// a NATS queue subscription so any node's watchers observe any node's writes.
type RegistryEvents interface {
	PublishSession(ctx context.Context, event dto.SessionEvent)
	PublishCall(ctx context.Context, event dto.CallEvent)
	SubscribeSessions() (<-chan dto.SessionEvent, func())
	SubscribeCall(channelID string) (<-chan dto.CallEvent, func())
	Start(ctx context.Context)
}

type registryEvents struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	nodeID      string

	mu           sync.RWMutex
	sessionSubs  map[chan dto.SessionEvent]struct{}
	callWatchers map[string]map[chan dto.CallEvent]struct{}
}

type registryEnvelope struct {
	Source  string            `json:"source"`
	Session *dto.SessionEvent `json:"session,omitempty"`
	Call    *dto.CallEvent    `json:"call,omitempty"`
	SentAt  time.Time         `json:"sent_at"`
}

// NewRegistryEvents constructs the registry event hub.
func NewRegistryEvents(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) RegistryEvents {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":registry"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".registry"
	}

	return &registryEvents{
		redis:        redisClient,
		redisStream:  stream,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "registry_events").Logger(),
		nodeID:       uuid.NewString(),
		sessionSubs:  make(map[chan dto.SessionEvent]struct{}),
		callWatchers: make(map[string]map[chan dto.CallEvent]struct{}),
	}
}

func (r *registryEvents) Start(ctx context.Context) {
	if r.redis != nil && r.redisStream != "" {
		go r.consumeRedis(ctx)
	}
	if r.nats != nil && r.natsSubject != "" {
		go r.consumeNATS(ctx)
	}
}

func (r *registryEvents) PublishSession(ctx context.Context, event dto.SessionEvent) {
	r.deliverSession(event)
	r.bridge(ctx, registryEnvelope{Source: r.nodeID, Session: &event, SentAt: time.Now().UTC()})
}

func (r *registryEvents) PublishCall(ctx context.Context, event dto.CallEvent) {
	r.deliverCall(event)
	r.bridge(ctx, registryEnvelope{Source: r.nodeID, Call: &event, SentAt: time.Now().UTC()})
}

func (r *registryEvents) SubscribeSessions() (<-chan dto.SessionEvent, func()) {
	ch := make(chan dto.SessionEvent, registryEventBuffer)

	r.mu.Lock()
	r.sessionSubs[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.sessionSubs[ch]; ok {
			delete(r.sessionSubs, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *registryEvents) SubscribeCall(channelID string) (<-chan dto.CallEvent, func()) {
	ch := make(chan dto.CallEvent, registryEventBuffer)

	r.mu.Lock()
	if _, ok := r.callWatchers[channelID]; !ok {
		r.callWatchers[channelID] = make(map[chan dto.CallEvent]struct{})
	}
	r.callWatchers[channelID][ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if watchers, ok := r.callWatchers[channelID]; ok {
			if _, subscribed := watchers[ch]; subscribed {
				delete(watchers, ch)
				close(ch)
			}
			if len(watchers) == 0 {
				delete(r.callWatchers, channelID)
			}
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *registryEvents) deliverSession(event dto.SessionEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for ch := range r.sessionSubs {
		select {
		case ch <- event:
		default:
			r.logger.Warn().Str("kind", event.Kind).Msg("dropping session event for slow watcher")
		}
	}
}

func (r *registryEvents) deliverCall(event dto.CallEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for ch := range r.callWatchers[event.ChannelID] {
		select {
		case ch <- event:
		default:
			r.logger.Warn().Str("channel_id", event.ChannelID).Msg("dropping call event for slow watcher")
		}
	}
}

func (r *registryEvents) bridge(ctx context.Context, envelope registryEnvelope) {
	if (r.redis == nil || r.redisStream == "") && (r.nats == nil || r.natsSubject == "") {
		return
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to marshal registry event")
		return
	}

	if r.redis != nil && r.redisStream != "" {
		if err := r.redis.Publish(ctx, r.redisStream, payload).Err(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to publish registry event to redis")
		}
	}

	if r.nats != nil && r.natsSubject != "" {
		if err := r.nats.Publish(r.natsSubject, payload); err != nil {
			r.logger.Warn().Err(err).Msg("failed to publish registry event to nats")
		}
	}
}

func (r *registryEvents) consumeRedis(ctx context.Context) {
	pubsub := r.redis.Subscribe(ctx, r.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Error().Err(err).Msg("registry redis subscription closed")
			return
		}
		r.handleEnvelope([]byte(msg.Payload))
	}
}

func (r *registryEvents) consumeNATS(ctx context.Context) {
	sub, err := r.nats.QueueSubscribe(r.natsSubject, "telecare-registry", func(msg *nats.Msg) {
		r.handleEnvelope(msg.Data)
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to subscribe to nats registry subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to drain registry nats subscription")
		}
	}()
}

func (r *registryEvents) handleEnvelope(data []byte) {
	var envelope registryEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		r.logger.Warn().Err(err).Msg("invalid registry event")
		return
	}

	if envelope.Source == r.nodeID {
		return
	}

	if envelope.Session != nil {
		r.deliverSession(*envelope.Session)
	}
	if envelope.Call != nil {
		r.deliverCall(*envelope.Call)
	}
}
