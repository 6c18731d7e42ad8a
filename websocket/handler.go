package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/broadphase/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize  = 64
	frameChanSize = 4
)

// Handler represents a stream handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles the snapshot of a world tick.
	HandleFrame(ctx context.Context, respond ResponseSender, s models.Snapshot) error

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request for the neighbour candidates of an entity.
	HandleNeighbors(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender used to send messages.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	// The time a client is idle before being disconnected. Zero disables the
	// idle timeout.
	IdleTimeout() time.Duration

	// The world streamed to the client.
	GetWorld() *models.World

	// Get ClientID
	GetClientID() string
}

// Handle serves a client until it disconnects or the context is done.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The stream handler.
	Handler Handler

	sendChan       chan Msg
	recvChan       chan Msg
	frameChan      chan models.Snapshot
	sender         Sender
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.recvChan = make(chan Msg, sendChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	world := h.Handler.GetWorld()
	h.frameChan = make(chan models.Snapshot, frameChanSize)
	stopFrames := world.HandleFrame(h.queueFrame)
	defer stopFrames()

	var idleTimeout <-chan time.Time
	var idleTimer *time.Timer
	if d := h.Handler.IdleTimeout(); d > 0 {
		idleTimer = time.NewTimer(d)
		defer idleTimer.Stop()
		idleTimeout = idleTimer.C
	}

	responder := responseSender(h.send)

	if err := h.Handler.HandleFrame(ctx, responder, world.Snapshot()); err != nil {
		h.disconnect(errors.New("sending initial snapshot failed").Wrap(err))
	}

	for disconnected := false; !disconnected; {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())
			disconnected = true

		case <-idleTimeout:
			h.disconnect(errors.New("idle connection").WithTag("duration", h.Handler.IdleTimeout()))

		case s := <-h.frameChan:
			if err := h.Handler.HandleFrame(ctx, responder, s); err != nil {
				h.disconnect(errors.New("handling frame failed").Wrap(err))
			}

		case msg := <-h.recvChan:
			if idleTimer != nil {
				idleTimer.Stop()
				idleTimer.Reset(h.Handler.IdleTimeout())
			}

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			disconnected = true
		}
	}

	// Closing the connection in handleDisconnect unblocks the receiver.
	cancel()
	wg.Wait()
}

// queueFrame is called by the world ticking goroutine. Frames are dropped
// when the client is too slow to consume them.
func (h *handler) queueFrame(s models.Snapshot) {
	select {
	case h.frameChan <- s:
	default:
		instrumentDroppedFrame()
	}
}

// send queues a message for the sending goroutine. A snapshot that does not fit
// in the queue is dropped since the next tick supersedes it. Any other message
// that does not fit disconnects the client.
func (h *handler) send(msg Msg) {
	select {
	case h.sendChan <- msg:
	default:
		if msg.Type == MsgTypeSnapshot {
			instrumentDroppedFrame()
			return
		}

		h.disconnect(errors.New("send queue is full").
			WithTag("msg_type", msg.TypeString()).
			WithTag("size", sendChanSize))
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if errors.IsType(err, ErrTypeMsgDecode) {
				h.send(ErrorMsg(0, err))
				continue
			}
			if err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			select {
			case h.recvChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	switch msg.Type {
	case MsgTypePing:
		return h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypeNeighborsRequest:
		return h.Handler.HandleNeighbors(ctx, responder, msg)

	default:
		responder.Send(ErrorMsg(msg.RequestID, errors.New("unknown message type").
			WithType(ErrTypeUnknownMsg).
			WithTag("msg_type", msg.TypeString())))
		return nil
	}
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender func(Msg)

func (r responseSender) Send(msg Msg) {
	r(msg)
}
