// Package protocol defines the JSON envelopes exchanged between peers.
// Discovery envelopes travel over UDP broadcast, message envelopes over a one-shot TCP connection.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultDiscoveryPort = 41234
	DefaultMessagePort   = 41235

	TypeDiscovery = "discovery"
	TypeMessage   = "message"

	// TimestampLayout is the HH:MM:SS wall clock format carried in message envelopes.
	TimestampLayout = "15:04:05"
)

var (
	ErrUnknownType    = errors.New("unknown envelope type")
	ErrUnexpectedType = errors.New("unexpected envelope type")
	ErrMissingField   = errors.New("missing required field")
	ErrInvalidField   = errors.New("invalid field")
)

// Envelope is one of *Discovery or *Message.
type Envelope interface {
	Type() string
}

// Discovery announces a peer's presence and its messaging port.
type Discovery struct {
	Nickname string
	TCPPort  int
}

// Message carries chat text between two peers.
type Message struct {
	Nickname  string
	Text      string
	Timestamp string // HH:MM:SS
}

func (*Discovery) Type() string { return TypeDiscovery }
func (*Message) Type() string   { return TypeMessage }

// NewMessage builds a message envelope stamped with t.
func NewMessage(nickname, text string, t time.Time) *Message {
	return &Message{
		Nickname:  nickname,
		Text:      text,
		Timestamp: t.Format(TimestampLayout),
	}
}

// Wire representation. Pointers let Decode tell a missing field from a zero value.
type wireEnvelope struct {
	Type      string  `json:"type"`
	Nickname  *string `json:"nickname,omitempty"`
	TCPPort   *int    `json:"tcp_port,omitempty"`
	Message   *string `json:"message,omitempty"`
	Timestamp *string `json:"timestamp,omitempty"`
}

// Encode serializes an envelope into its UTF-8 JSON wire form.
func Encode(e Envelope) ([]byte, error) {
	var w wireEnvelope
	switch v := e.(type) {
	case *Discovery:
		w = wireEnvelope{
			Type:     TypeDiscovery,
			Nickname: &v.Nickname,
			TCPPort:  &v.TCPPort,
		}
	case *Message:
		w = wireEnvelope{
			Type:      TypeMessage,
			Nickname:  &v.Nickname,
			Message:   &v.Text,
			Timestamp: &v.Timestamp,
		}
	default:
		return nil, fmt.Errorf("encode %T: %w", e, ErrUnknownType)
	}
	return json.Marshal(&w)
}

// Decode parses a wire payload. Unrecognized type tags and missing fields are errors.
func Decode(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	switch w.Type {
	case TypeDiscovery:
		if w.Nickname == nil {
			return nil, fmt.Errorf("discovery: nickname: %w", ErrMissingField)
		}
		if w.TCPPort == nil {
			return nil, fmt.Errorf("discovery: tcp_port: %w", ErrMissingField)
		}
		if *w.TCPPort <= 0 || *w.TCPPort > 65535 {
			return nil, fmt.Errorf("discovery: tcp_port %d: %w", *w.TCPPort, ErrInvalidField)
		}
		return &Discovery{Nickname: *w.Nickname, TCPPort: *w.TCPPort}, nil

	case TypeMessage:
		if w.Nickname == nil {
			return nil, fmt.Errorf("message: nickname: %w", ErrMissingField)
		}
		if w.Message == nil {
			return nil, fmt.Errorf("message: message: %w", ErrMissingField)
		}
		if w.Timestamp == nil {
			return nil, fmt.Errorf("message: timestamp: %w", ErrMissingField)
		}
		return &Message{Nickname: *w.Nickname, Text: *w.Message, Timestamp: *w.Timestamp}, nil

	case "":
		return nil, fmt.Errorf("type: %w", ErrMissingField)
	default:
		return nil, fmt.Errorf("%q: %w", w.Type, ErrUnknownType)
	}
}

// DecodeDiscovery decodes data and requires it to be a discovery envelope.
func DecodeDiscovery(data []byte) (*Discovery, error) {
	e, err := Decode(data)
	if err != nil {
		return nil, err
	}
	d, ok := e.(*Discovery)
	if !ok {
		return nil, fmt.Errorf("got %q, want %q: %w", e.Type(), TypeDiscovery, ErrUnexpectedType)
	}
	return d, nil
}

// DecodeMessage decodes data and requires it to be a message envelope.
func DecodeMessage(data []byte) (*Message, error) {
	e, err := Decode(data)
	if err != nil {
		return nil, err
	}
	m, ok := e.(*Message)
	if !ok {
		return nil, fmt.Errorf("got %q, want %q: %w", e.Type(), TypeMessage, ErrUnexpectedType)
	}
	return m, nil
}
