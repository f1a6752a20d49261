package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sickleconnect/server/internal/core"
	"github.com/sickleconnect/server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to the registry.
//
// The identity is taken from the userId query parameter as supplied; the
// realtime channel itself is not authenticated. A connection without an
// identity is tracked anonymously and never addressed by broadcasts.
type WSHandler struct {
	registry   *core.Registry
	broadcast  *core.Broadcaster
	sendBuffer int
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(registry *core.Registry, broadcast *core.Broadcaster, sendBuffer int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		registry:   registry,
		broadcast:  broadcast,
		sendBuffer: sendBuffer,
		log:        logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()
	identity := r.URL.Query().Get("userId")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(uuid.NewString(), identity, h.sendBuffer)
	h.registry.Register(client)
	defer h.registry.Unregister(client)

	h.log.Info().
		Str("conn_id", client.ID).
		Str("identity", identity).
		Msg("ws client connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	welcome := proto.Envelope{
		Type: proto.EventConnectionEstablished,
		Data: proto.ConnectionEstablishedData{Message: "Connected to SickleConnect"},
	}
	if err := wsjson.Write(ctx, conn, welcome); err != nil {
		h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("write welcome")
		return
	}

	if identity != "" {
		h.broadcast.BroadcastToAll(proto.Envelope{
			Type: proto.EventUserOnline,
			Data: proto.PresenceData{UserID: identity},
		})
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	h.registry.Unregister(client)
	// Only announce offline if no replacement connection took over.
	if identity != "" && !h.registry.IsOnline(identity) {
		h.broadcast.BroadcastToAll(proto.Envelope{
			Type: proto.EventUserOffline,
			Data: proto.PresenceData{UserID: identity},
		})
	}
	h.log.Info().Str("conn_id", client.ID).Str("identity", identity).Msg("ws client disconnected")

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop drains inbound frames. Clients do not speak to the server over
// this channel; reading keeps close and ping handling alive.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return err
		}
	}
}

// writeLoop pushes pre-serialized envelopes from the client's outbox.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case payload := <-client.Outbox():
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
