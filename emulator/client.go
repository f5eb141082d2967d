package emulator

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/micro-blocks/mbc/link"
)

const (
	sendQueue    = 16
	writeTimeout = 5 * time.Second
)

type client struct {
	ws   *websocket.Conn
	send chan []byte
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	c := &client{ws: ws, send: make(chan []byte, sendQueue)}

	// A new client first receives the current GUI, like on the device.
	s.mu.Lock()
	s.clients[c] = struct{}{}
	if s.lastUI != nil {
		c.send <- link.Message{Type: link.UISnapshot, Payload: s.lastUI}.Encode()
	}
	s.mu.Unlock()
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("client connected")

	go c.writeLoop()
	s.readLoop(c)

	s.mu.Lock()
	delete(s.clients, c)
	close(c.send)
	s.mu.Unlock()
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("client disconnected")
}

func (s *Server) readLoop(c *client) {
	defer c.ws.Close()
	for {
		kind, frame, err := c.ws.ReadMessage()
		if err != nil {
			if !link.IsClosed(err) {
				s.log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		m, err := link.DecodeMessage(frame)
		if err != nil {
			continue
		}
		if err := s.receive(m); err != nil {
			s.log.Warn().Err(err).Stringer("type", m.Type).Msg("ignoring message")
		}
	}
}

func (c *client) writeLoop() {
	for frame := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			c.ws.Close()
			for range c.send {
			}
			return
		}
	}
}

// broadcast queues a frame for every client. Slow clients drop frames.
func (s *Server) broadcast(m link.Message) {
	frame := m.Encode()
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- frame:
		default:
			s.log.Debug().Stringer("type", m.Type).Msg("dropping frame for slow client")
		}
	}
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
