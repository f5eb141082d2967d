package link

import (
	"encoding/binary"
	"fmt"
)

// ElementKind identifies a GUI element in a UI snapshot.
type ElementKind uint8

const (
	Button ElementKind = iota
	Label
	SignalLight
)

func (k ElementKind) String() string {
	switch k {
	case Button:
		return "button"
	case Label:
		return "text"
	case SignalLight:
		return "signal_light"
	default:
		return fmt.Sprintf("element(%d)", uint8(k))
	}
}

// Element is one entry of a UI snapshot.
type Element struct {
	Kind             ElementKind
	X, Y             uint8
	ColSpan, RowSpan uint8
	// Button handler threads, NoThread when unset.
	OnClick, OnPress, OnRelease uint16
	Text                        string
	// RGB of a signal light.
	Colour [3]uint8
}

// EncodeUI builds a UI snapshot. The payload starts with the element count;
// each element is its kind and grid cell followed by kind specific data.
// Texts are stored with a one byte length and cut at 255 bytes.
func EncodeUI(elements []Element) (Message, error) {
	if len(elements) > 255 {
		return Message{}, fmt.Errorf("too many GUI elements: %d", len(elements))
	}
	p := []byte{byte(len(elements))}
	for _, e := range elements {
		p = append(p, byte(e.Kind), e.X, e.Y, e.ColSpan, e.RowSpan)
		switch e.Kind {
		case Button:
			p = binary.LittleEndian.AppendUint16(p, e.OnClick)
			p = binary.LittleEndian.AppendUint16(p, e.OnPress)
			p = binary.LittleEndian.AppendUint16(p, e.OnRelease)
			p = appendText(p, e.Text)
		case Label:
			p = appendText(p, e.Text)
		case SignalLight:
			p = append(p, e.Colour[:]...)
		default:
			return Message{}, fmt.Errorf("cannot encode %s", e.Kind)
		}
	}
	return Message{Type: UISnapshot, Payload: p}, nil
}

func appendText(p []byte, s string) []byte {
	if len(s) > 255 {
		s = s[:255]
	}
	p = append(p, byte(len(s)))
	return append(p, s...)
}

type reader struct {
	p   []byte
	pos int
	err error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.pos+n > len(r.p) {
		r.err = fmt.Errorf("%w: UI snapshot truncated at byte %d", ErrShortMessage, r.pos)
		return make([]byte, n)
	}
	b := r.p[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) uint8() uint8 {
	return r.bytes(1)[0]
}

func (r *reader) uint16() uint16 {
	return binary.LittleEndian.Uint16(r.bytes(2))
}

func (r *reader) text() string {
	return string(r.bytes(int(r.uint8())))
}

// DecodeUI reads the elements of a UI snapshot.
func DecodeUI(m Message) ([]Element, error) {
	if m.Type != UISnapshot {
		return nil, fmt.Errorf("expected %s message, got %s", UISnapshot, m.Type)
	}
	r := &reader{p: m.Payload}
	n := int(r.uint8())
	elements := make([]Element, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		e := Element{Kind: ElementKind(r.uint8())}
		e.X, e.Y, e.ColSpan, e.RowSpan = r.uint8(), r.uint8(), r.uint8(), r.uint8()
		switch e.Kind {
		case Button:
			e.OnClick, e.OnPress, e.OnRelease = r.uint16(), r.uint16(), r.uint16()
			e.Text = r.text()
		case Label:
			e.Text = r.text()
		case SignalLight:
			copy(e.Colour[:], r.bytes(3))
		default:
			return nil, fmt.Errorf("unknown GUI element kind %d", e.Kind)
		}
		elements = append(elements, e)
	}
	if r.err != nil {
		return nil, r.err
	}
	return elements, nil
}
