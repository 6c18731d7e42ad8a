package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/broadphase/featureflag"
	"github.com/aukilabs/broadphase/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// HeaderClientID is the request header a client uses to identify itself.
const HeaderClientID = "X-Broadphase-Client-ID"

// StreamHandler streams the snapshots of a world to a client and answers its
// neighbour queries.
type StreamHandler struct {
	// The streamed world.
	World *models.World

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	FeatureFlags featureflag.FeatureFlag

	conn     *websocket.Conn
	clientID string
	lastTick uint64
}

func (h *StreamHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	h.conn = conn
}

func (h *StreamHandler) HandleFrame(ctx context.Context, respond ResponseSender, s models.Snapshot) error {
	if h.FeatureFlags.IsSet(featureflag.FlagDisableTickStream) {
		return nil
	}

	// The initial snapshot can be queued after a frame of the same tick.
	if s.Tick != 0 && s.Tick <= h.lastTick {
		return nil
	}
	h.lastTick = s.Tick

	respond.Send(Msg{
		Type:     MsgTypeSnapshot,
		Snapshot: &s,
	})
	return nil
}

func (h *StreamHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		RequestID: msg.RequestID,
	})
	return nil
}

func (h *StreamHandler) HandleNeighbors(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.EntityID == 0 {
		respond.Send(ErrorMsg(msg.RequestID, errors.New("missing entity id").
			WithType(ErrTypeInvalidData).
			WithTag("msg_type", msg.TypeString())))
		return nil
	}

	neighbors, err := h.World.Neighbors(msg.EntityID)
	if err != nil {
		respond.Send(ErrorMsg(msg.RequestID, err))
		return nil
	}

	respond.Send(Msg{
		Type:      MsgTypeNeighborsResponse,
		RequestID: msg.RequestID,
		EntityID:  msg.EntityID,
		Neighbors: models.EntitiesToViews(neighbors),
	})
	return nil
}

func (h *StreamHandler) HandleDisconnect(_ error) {
}

func (h *StreamHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *StreamHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

func (h *StreamHandler) Close() {
}

func (h *StreamHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *StreamHandler) GetWorld() *models.World {
	return h.World
}

func (h *StreamHandler) GetClientID() string {
	return h.clientID
}
