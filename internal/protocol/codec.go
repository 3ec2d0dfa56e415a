package protocol

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	CodecJSON    = "json"
	CodecMsgPack = "msgpack"
)

// Codec encodes frames for one websocket message type.
type Codec interface {
	Name() string
	MessageType() int
	Marshal(f *Frame) ([]byte, error)
	Unmarshal(data []byte, f *Frame) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                          { return CodecJSON }
func (jsonCodec) MessageType() int                      { return websocket.TextMessage }
func (jsonCodec) Marshal(f *Frame) ([]byte, error)      { return json.Marshal(f) }
func (jsonCodec) Unmarshal(data []byte, f *Frame) error { return json.Unmarshal(data, f) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                          { return CodecMsgPack }
func (msgpackCodec) MessageType() int                      { return websocket.BinaryMessage }
func (msgpackCodec) Marshal(f *Frame) ([]byte, error)      { return msgpack.Marshal(f) }
func (msgpackCodec) Unmarshal(data []byte, f *Frame) error { return msgpack.Unmarshal(data, f) }

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

// CodecByName resolves the codec a listener asked for. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSON, nil
	case CodecMsgPack:
		return MsgPack, nil
	default:
		return nil, ErrUnknownCodec
	}
}

// CodecForMessageType picks the decoder for an inbound websocket message.
func CodecForMessageType(messageType int) (Codec, bool) {
	switch messageType {
	case websocket.TextMessage:
		return JSON, true
	case websocket.BinaryMessage:
		return MsgPack, true
	default:
		return nil, false
	}
}
