package conn

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrEmptyMessage     = errors.New("empty raw message")
	ErrWrongMessageType = errors.New("got wrong message type")
	ErrMessageTooLarge  = errors.New("message is too large")
)

// Codec converts packets to datagrams and back.
type Codec interface {
	Marshal(p *Packet) ([]byte, error)
	Unmarshal(data []byte) (*Packet, error)
}

// JSONCodec writes message type as the first byte followed by JSON body.
type JSONCodec struct{}

func (JSONCodec) Marshal(p *Packet) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return append([]byte{byte(p.Type)}, body...), nil
}

func (JSONCodec) Unmarshal(data []byte) (*Packet, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	p := &Packet{Type: MessageType(data[0])}
	if !p.Type.valid() {
		return nil, fmt.Errorf("%w, %s", ErrWrongMessageType, p.Type)
	}

	if err := json.Unmarshal(data[1:], p); err != nil {
		return nil, fmt.Errorf("can not unmarshal %s body, reason %w", p.Type, err)
	}

	return p, nil
}

// MsgpackCodec encodes the whole packet, type included, with msgpack.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(p *Packet) ([]byte, error) {
	return msgpack.Marshal(p)
}

func (MsgpackCodec) Unmarshal(data []byte) (*Packet, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	p := &Packet{}
	if err := msgpack.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("can not unmarshal packet, reason %w", err)
	}

	if !p.Type.valid() {
		return nil, fmt.Errorf("%w, %s", ErrWrongMessageType, p.Type)
	}

	return p, nil
}
