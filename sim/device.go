package sim

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Colour is a colour with components between 0 and 1.
type Colour struct {
	R, G, B float32
}

// Widget is an element shown on the GUI grid.
type Widget struct {
	Kind    string
	X, Y    uint8
	ColSpan uint8
	RowSpan uint8
	Text    string
	Colour  Colour
	// Handler threads of a button, or bytecode.NoThread.
	OnClick, OnPress, OnRelease uint16
}

// Strip is a configured RGB LED strip.
type Strip struct {
	Pin   uint8
	LEDs  []Colour
	Shown []Colour
	Shows int
}

// Matrix is a configured RGB LED matrix. Pixels are stored row by row.
type Matrix struct {
	Width, Height int
	Pin           uint8
	Pixels        []Colour
	Shown         []Colour
	Shows         int
}

type pinWatch struct {
	pin  uint8
	edge uint8
}

// device is the peripheral state the natives act on.
type device struct {
	pins        map[uint8]float32
	watches     map[int]pinWatch
	gravity     [3]float32
	gravityWait map[int]bool
	output      []string
	widgets     map[[2]uint8]Widget
	strips      map[uint16]*Strip
	matrices    map[uint16]*Matrix
}

func newDevice() device {
	return device{
		pins:        map[uint8]float32{},
		watches:     map[int]pinWatch{},
		gravityWait: map[int]bool{},
		widgets:     map[[2]uint8]Widget{},
		strips:      map[uint16]*Strip{},
		matrices:    map[uint16]*Matrix{},
	}
}

// Output returns the printed lines in order.
func (m *Machine) Output() []string {
	return m.output
}

func (m *Machine) print(s string) {
	m.output = append(m.output, s)
	if m.out != nil {
		fmt.Fprintln(m.out, s)
	}
}

// Pin returns the level of a pin: 0 or 1 for digital pins, the duty cycle
// for analog outputs.
func (m *Machine) Pin(pin uint8) float32 {
	return m.pins[pin]
}

// SetPin drives an input pin. Threads waiting for a matching edge on the
// pin become runnable.
func (m *Machine) SetPin(pin uint8, high bool) {
	was := m.pins[pin] != 0
	if high {
		m.pins[pin] = 1
	} else {
		m.pins[pin] = 0
	}
	if was == high {
		return
	}
	for _, t := range m.threads {
		w, ok := m.watches[t.index]
		if !ok || w.pin != pin || t.state != Waiting || t.waitingFor != waitPin {
			continue
		}
		if w.edge == 0 || (w.edge == 1 && high) || (w.edge == 2 && !high) {
			m.wake(t)
		}
	}
}

// SetGravity reports new sensor values and wakes the threads waiting for
// them.
func (m *Machine) SetGravity(x, y, z float32) {
	m.gravity = [3]float32{x, y, z}
	for _, t := range m.threads {
		if m.gravityWait[t.index] && t.state == Waiting && t.waitingFor == waitGravity {
			m.wake(t)
		}
	}
}

// Widgets returns the GUI elements ordered by row, then column.
func (m *Machine) Widgets() []Widget {
	out := make([]Widget, 0, len(m.widgets))
	for _, w := range m.widgets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Widget returns the element at a grid cell.
func (m *Machine) Widget(x, y uint8) (Widget, bool) {
	w, ok := m.widgets[[2]uint8{x, y}]
	return w, ok
}

// Strip returns the LED strip with the given device id.
func (m *Machine) Strip(id uint16) (*Strip, bool) {
	s, ok := m.strips[id]
	return s, ok
}

// Matrix returns the LED matrix with the given device id.
func (m *Machine) Matrix(id uint16) (*Matrix, bool) {
	mx, ok := m.matrices[id]
	return mx, ok
}

// DeviceIDs returns the ids of every configured strip and matrix.
func (m *Machine) DeviceIDs() []uint16 {
	ids := sortedKeys(m.strips)
	ids = append(ids, sortedKeys(m.matrices)...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// VarNumber reads a Number variable at offset.
func (m *Machine) VarNumber(offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(m.mem[offset:]))
}

// VarBool reads a Boolean variable at offset.
func (m *Machine) VarBool(offset int) bool {
	return m.mem[offset] != 0
}

// VarString reads the text of a String variable at offset.
func (m *Machine) VarString(offset int) string {
	return m.Text(binary.LittleEndian.Uint32(m.mem[offset:]))
}

// VarColour reads a Colour variable at offset.
func (m *Machine) VarColour(offset int) Colour {
	return Colour{m.VarNumber(offset), m.VarNumber(offset + 4), m.VarNumber(offset + 8)}
}

// poolString reads a NUL terminated string from the image.
func (m *Machine) poolString(offset int) (string, error) {
	raw := m.img.Raw()
	for i := offset; i < len(raw); i++ {
		if raw[i] == 0 {
			return string(raw[offset:i]), nil
		}
	}
	return "", fmt.Errorf("string at offset %d is not terminated", offset)
}
