// Package link speaks the device's live websocket protocol. Every frame is
// binary: one message type byte followed by a payload whose layout depends
// on the type. Multi-byte values are little-endian.
package link

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// MessageType is the first byte of every frame.
type MessageType uint8

const (
	// GravitySensorValue carries three float32 axes, sent to the device.
	GravitySensorValue MessageType = 0
	// LogSnapshot carries console output, sent by the device.
	LogSnapshot MessageType = 1
	// UISnapshot carries the GUI elements, sent by the device.
	UISnapshot MessageType = 2
	// TriggerCallback carries a uint16 thread index, sent to the device.
	TriggerCallback MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case GravitySensorValue:
		return "gravity"
	case LogSnapshot:
		return "log"
	case UISnapshot:
		return "ui"
	case TriggerCallback:
		return "trigger"
	default:
		return fmt.Sprintf("message(%d)", uint8(t))
	}
}

// ErrShortMessage is returned when a payload is smaller than its type needs.
var ErrShortMessage = errors.New("short message")

// Message is a decoded frame.
type Message struct {
	Type    MessageType
	Payload []byte
}

// Encode returns the frame bytes.
func (m Message) Encode() []byte {
	return append([]byte{byte(m.Type)}, m.Payload...)
}

// DecodeMessage splits a frame into its type and payload.
func DecodeMessage(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return Message{}, ErrShortMessage
	}
	return Message{Type: MessageType(frame[0]), Payload: frame[1:]}, nil
}

// Gravity builds a gravity sensor message.
func Gravity(x, y, z float32) Message {
	p := make([]byte, 0, 12)
	for _, v := range []float32{x, y, z} {
		p = binary.LittleEndian.AppendUint32(p, math.Float32bits(v))
	}
	return Message{Type: GravitySensorValue, Payload: p}
}

// DecodeGravity reads the axes of a gravity message.
func DecodeGravity(m Message) (x, y, z float32, err error) {
	if len(m.Payload) < 12 {
		return 0, 0, 0, fmt.Errorf("%w: gravity needs 12 bytes, got %d", ErrShortMessage, len(m.Payload))
	}
	f := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(m.Payload[4*i:]))
	}
	return f(0), f(1), f(2), nil
}

// Trigger builds a message that fires the callback thread.
func Trigger(thread uint16) Message {
	return Message{Type: TriggerCallback, Payload: binary.LittleEndian.AppendUint16(nil, thread)}
}

// DecodeTrigger reads the thread index of a trigger message.
func DecodeTrigger(m Message) (uint16, error) {
	if len(m.Payload) < 2 {
		return 0, fmt.Errorf("%w: trigger needs 2 bytes, got %d", ErrShortMessage, len(m.Payload))
	}
	return binary.LittleEndian.Uint16(m.Payload), nil
}

// Log builds a log snapshot message holding text.
func Log(text string) Message {
	return Message{Type: LogSnapshot, Payload: []byte(text)}
}
