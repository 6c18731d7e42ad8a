package websocket

import (
	"github.com/aukilabs/broadphase/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeMsgDecode   = "ws_msg_decode"
	ErrTypeMsgEncode   = "ws_msg_encode"
	ErrTypeUnknownMsg  = "ws_unknown_msg"
	ErrTypeInvalidData = "ws_invalid_data"
)

type MsgType string

const (
	MsgTypePing              MsgType = "ping"
	MsgTypePong              MsgType = "pong"
	MsgTypeSnapshot          MsgType = "snapshot"
	MsgTypeNeighborsRequest  MsgType = "neighbors_request"
	MsgTypeNeighborsResponse MsgType = "neighbors_response"
	MsgTypeError             MsgType = "error"
)

// Msg is a JSON message exchanged with a client. Only the fields related to
// the message type are set.
type Msg struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id,omitempty"`

	Snapshot  *models.Snapshot    `json:"snapshot,omitempty"`
	EntityID  uint32              `json:"entity_id,omitempty"`
	Neighbors []models.EntityView `json:"neighbors,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return string(m.Type)
}

// ErrorMsg returns the message that reports err to the client.
func ErrorMsg(requestID uint32, err error) Msg {
	return Msg{
		Type:      MsgTypeError,
		RequestID: requestID,
		Error:     err.Error(),
		ErrorType: errors.Type(err),
	}
}

// Sender sends a message and returns the number of sent bytes.
type Sender func(Msg) (int, error)

// Receiver waits for a message and returns it with the number of received
// bytes.
type Receiver func() (Msg, int, error)

// ResponseSender queues messages to be sent to the client.
type ResponseSender interface {
	Send(Msg)
}

// Send encodes the message in JSON and sends it as a text frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").
			WithType(ErrTypeMsgEncode).
			WithTag("msg_type", msg.TypeString()).
			Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Receive waits for a text frame and decodes it.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return Msg{}, 0, err
	}

	var msg Msg
	if err := json.Unmarshal(data, &msg); err != nil {
		return Msg{}, len(data), errors.New("decoding message failed").
			WithType(ErrTypeMsgDecode).
			Wrap(err)
	}
	return msg, len(data), nil
}
