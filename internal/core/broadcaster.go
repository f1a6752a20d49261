package core

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/sickleconnect/server/internal/proto"
)

// Broadcaster pushes event envelopes to connected clients.
//
// Delivery is fire-and-forget: an envelope is serialized once per call and
// enqueued on each recipient's buffered channel; full or gone channels are
// skipped without aborting delivery to the rest. No acknowledgement, no
// retries, no queuing for offline identities.
type Broadcaster struct {
	registry *Registry
	log      *zerolog.Logger
}

// NewBroadcaster constructs a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, log: logger}
}

// BroadcastToAll delivers the envelope to every identified connection.
func (b *Broadcaster) BroadcastToAll(env proto.Envelope) {
	b.deliver(b.registry.All(), env)
}

// BroadcastToUsers delivers the envelope to the connections of the given
// identities. Offline identities are silently skipped.
func (b *Broadcaster) BroadcastToUsers(identities []string, env proto.Envelope) {
	b.deliver(b.registry.Subset(identities), env)
}

func (b *Broadcaster) deliver(clients []*Client, env proto.Envelope) {
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(env)
	if err != nil {
		b.log.Error().Err(err).Str("event", env.Type).Msg("marshal envelope")
		return
	}

	for _, c := range clients {
		if !c.Enqueue(payload) {
			b.log.Debug().
				Str("event", env.Type).
				Str("identity", c.Identity).
				Msg("dropped event for slow consumer")
		}
	}
}
