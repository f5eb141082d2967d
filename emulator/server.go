// Package emulator serves a simulated device. It accepts images on the same
// HTTP endpoint as the firmware, runs them in a sim.Machine and speaks the
// live websocket protocol, so the uploader and the editor can be used
// without hardware.
package emulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/link"
	"github.com/micro-blocks/mbc/sim"
	"github.com/micro-blocks/mbc/upload"
	"github.com/rs/zerolog"
)

// MaxImageSize is the largest image accepted. Header fields are 16 bit, so
// anything larger cannot be valid.
const MaxImageSize = 1 << 16

// DefaultTick is how much virtual time passes per Run iteration.
const DefaultTick = 20 * time.Millisecond

// tickSteps bounds the instructions executed per tick so a busy thread
// cannot stall the server.
const tickSteps = 200_000

// Server is a simulated device.
type Server struct {
	mu      sync.Mutex
	machine *sim.Machine
	loads   int
	failure error
	logSent int
	lastUI  []byte

	clients map[*client]struct{}

	simOpts  []sim.Option
	log      zerolog.Logger
	tick     time.Duration
	upgrader websocket.Upgrader
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithTick sets the virtual time advanced per Run iteration.
func WithTick(d time.Duration) Option {
	return func(s *Server) {
		s.tick = d
	}
}

// WithMachineOptions passes options to every machine the server creates.
func WithMachineOptions(opts ...sim.Option) Option {
	return func(s *Server) {
		s.simOpts = append(s.simOpts, opts...)
	}
}

// New returns a server with no program loaded.
func New(opts ...Option) *Server {
	s := &Server{
		clients: map[*client]struct{}{},
		log:     zerolog.Nop(),
		tick:    DefaultTick,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post(upload.CodePath, s.handleCode)
	r.Get(link.Path, s.handleWebsocket)
	r.Get("/api/status", s.handleStatus)
	s.router = r
	return s
}

// Handler returns the HTTP handler serving the device API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Load replaces the running program.
func (s *Server) Load(image []byte) error {
	opts := append([]sim.Option{sim.WithStepLimit(tickSteps), sim.WithLogger(s.log)}, s.simOpts...)
	m, err := sim.Load(image, opts...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.machine = m
	s.loads++
	s.failure = nil
	s.logSent = 0
	s.lastUI = nil
	s.mu.Unlock()
	s.log.Info().Int("bytes", len(image)).Int("threads", m.Threads()).Msg("program loaded")
	return nil
}

// Advance runs the loaded program for d of virtual time and pushes new
// output and GUI changes to the connected clients.
func (s *Server) Advance(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	m := s.machine
	if m == nil || s.failure != nil {
		s.mu.Unlock()
		return nil
	}
	err := m.RunFor(ctx, d)
	if errors.Is(err, sim.ErrStepLimit) {
		err = nil
	}
	if err != nil && ctx.Err() == nil {
		s.failure = err
		s.log.Error().Err(err).Msg("program stopped")
	}
	var frames []link.Message
	if out := m.Output(); len(out) > s.logSent {
		frames = append(frames, link.Log(strings.Join(out[s.logSent:], "\n")))
		s.logSent = len(out)
	}
	ui, uiErr := uiSnapshot(m)
	if uiErr == nil && !bytes.Equal(ui.Payload, s.lastUI) {
		s.lastUI = ui.Payload
		frames = append(frames, ui)
	}
	s.mu.Unlock()

	for _, f := range frames {
		s.broadcast(f)
	}
	if uiErr != nil {
		return uiErr
	}
	return err
}

// Run advances the program in real time until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Advance(ctx, s.tick); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("advance")
			}
		}
	}
}

// Status describes the simulated device.
type Status struct {
	Loaded  bool     `json:"loaded"`
	Loads   int      `json:"loads"`
	Clock   string   `json:"clock"`
	Steps   int      `json:"steps"`
	Threads []string `json:"threads"`
	Error   string   `json:"error,omitempty"`
}

// Status returns the state of the loaded program.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Loads: s.loads, Threads: []string{}}
	if s.machine == nil {
		return st
	}
	st.Loaded = true
	st.Clock = s.machine.Now().String()
	st.Steps = s.machine.Steps()
	for _, state := range s.machine.States() {
		st.Threads = append(st.Threads, state.String())
	}
	if s.failure != nil {
		st.Error = s.failure.Error()
	}
	return st
}

// Output returns the lines printed by the loaded program.
func (s *Server) Output() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return nil
	}
	return append([]string(nil), s.machine.Output()...)
}

func (s *Server) handleCode(w http.ResponseWriter, r *http.Request) {
	image, err := io.ReadAll(io.LimitReader(r.Body, MaxImageSize+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(image) > MaxImageSize {
		http.Error(w, "image too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err := s.Load(image); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bytecode.ErrInvalidImage) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		s.log.Warn().Err(err).Msg("writing status")
	}
}

// receive applies a message sent by a client.
func (s *Server) receive(m link.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return nil
	}
	switch m.Type {
	case link.TriggerCallback:
		thread, err := link.DecodeTrigger(m)
		if err != nil {
			return err
		}
		return s.machine.Trigger(int(thread))
	case link.GravitySensorValue:
		x, y, z, err := link.DecodeGravity(m)
		if err != nil {
			return err
		}
		s.machine.SetGravity(x, y, z)
		return nil
	default:
		return fmt.Errorf("unexpected %s message from client", m.Type)
	}
}

func uiSnapshot(m *sim.Machine) (link.Message, error) {
	var elements []link.Element
	for _, w := range m.Widgets() {
		e := link.Element{X: w.X, Y: w.Y, ColSpan: w.ColSpan, RowSpan: w.RowSpan, Text: w.Text}
		switch w.Kind {
		case "button":
			e.Kind = link.Button
			e.OnClick, e.OnPress, e.OnRelease = w.OnClick, w.OnPress, w.OnRelease
		case "text":
			e.Kind = link.Label
		case "signal_light":
			e.Kind = link.SignalLight
			e.Colour = [3]uint8{channel(w.Colour.R), channel(w.Colour.G), channel(w.Colour.B)}
		default:
			continue
		}
		elements = append(elements, e)
	}
	return link.EncodeUI(elements)
}

func channel(v float32) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}
