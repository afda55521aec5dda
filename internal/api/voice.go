package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pbaille/diario/internal/assistant"
	"github.com/pbaille/diario/internal/speech"
)

// Voice session messages. The browser (or any client) owns the
// microphone and speakers; the server runs the dialogue.
//
// Server to client: speak, play and listen carry an id that the client
// answers with done (speak, play) or utterance (listen). cancel withdraws
// a pending request. notice and phase are informational.
//
// Client to server: start, toggle and stop drive the controller.
const (
	typeSpeak     = "speak"
	typePlay      = "play"
	typeListen    = "listen"
	typeCancel    = "cancel"
	typeNotice    = "notice"
	typePhase     = "phase"
	typeDone      = "done"
	typeUtterance = "utterance"
	typeStart     = "start"
	typeToggle    = "toggle"
	typeStop      = "stop"

	// errNoSpeechCode is what clients report when nothing was heard
	errNoSpeechCode = "no-speech"
)

var errConnClosed = errors.New("voice connection closed")

type voiceMessage struct {
	Type  string `json:"type"`
	ID    uint64 `json:"id,omitempty"`
	Text  string `json:"text,omitempty"`
	Audio string `json:"audio,omitempty"`
	Phase string `json:"phase,omitempty"`
	Error string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) voiceSession(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("api: voice upgrade failed", "error", err)
		return
	}

	conn := newVoiceConn(ws, s.logger)
	defer conn.close()

	// Session lives as long as the socket
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := s.voice
	opts.Notify = func(msg string) { conn.send(voiceMessage{Type: typeNotice, Text: msg}) }
	opts.OnPhase = func(p assistant.Phase) { conn.send(voiceMessage{Type: typePhase, Phase: p.String()}) }

	adapter := speech.NewAdapter(conn, conn, conn, s.logger)
	defer adapter.Close()
	ctrl := assistant.New(adapter, s.journal, s.journal, opts)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		ctrl.Run(ctx)
	}()

	s.logger.Info("api: voice session opened", "remote", r.RemoteAddr)
	conn.readLoop(ctrl)
	s.logger.Info("api: voice session closed", "remote", r.RemoteAddr)

	conn.markClosed()
	cancel()
	<-runDone
}

// voiceConn implements the speech engines over a websocket by asking the
// client to do the work and waiting for its reply.
type voiceConn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]chan voiceMessage
	closed   chan struct{}
	closeOne sync.Once
}

func newVoiceConn(ws *websocket.Conn, logger *slog.Logger) *voiceConn {
	return &voiceConn{
		ws:      ws,
		logger:  logger,
		pending: make(map[uint64]chan voiceMessage),
		closed:  make(chan struct{}),
	}
}

func (c *voiceConn) send(m voiceMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(m); err != nil {
		c.logger.Debug("api: voice write failed", "type", m.Type, "error", err)
		return err
	}
	return nil
}

// request sends m with a fresh id and waits for the client's answer
func (c *voiceConn) request(ctx context.Context, m voiceMessage) (voiceMessage, error) {
	ch := make(chan voiceMessage, 1)

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	m.ID = id
	if err := c.send(m); err != nil {
		return voiceMessage{}, fmt.Errorf("send %s: %w", m.Type, err)
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		c.send(voiceMessage{Type: typeCancel, ID: id})
		return voiceMessage{}, ctx.Err()
	case <-c.closed:
		return voiceMessage{}, errConnClosed
	}
}

func (c *voiceConn) resolve(m voiceMessage) {
	c.mu.Lock()
	ch, ok := c.pending[m.ID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("api: stale voice reply", "type", m.Type, "id", m.ID)
		return
	}
	select {
	case ch <- m:
	default:
	}
}

func (c *voiceConn) readLoop(ctrl *assistant.Controller) {
	for {
		var m voiceMessage
		if err := c.ws.ReadJSON(&m); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("api: voice read ended", "error", err)
			}
			return
		}
		switch m.Type {
		case typeStart:
			ctrl.Start()
		case typeToggle:
			ctrl.Toggle()
		case typeStop:
			ctrl.Stop()
		case typeDone, typeUtterance:
			c.resolve(m)
		default:
			c.logger.Warn("api: unknown voice message", "type", m.Type)
		}
	}
}

func (c *voiceConn) markClosed() {
	c.closeOne.Do(func() { close(c.closed) })
}

func (c *voiceConn) close() {
	c.markClosed()
	c.ws.Close()
}

// Recognize asks the client for one utterance
func (c *voiceConn) Recognize(ctx context.Context) (string, error) {
	reply, err := c.request(ctx, voiceMessage{Type: typeListen})
	if err != nil {
		return "", err
	}
	switch reply.Error {
	case "":
		return reply.Text, nil
	case errNoSpeechCode:
		return "", nil
	default:
		return "", fmt.Errorf("client recognition: %s", reply.Error)
	}
}

// Synthesize asks the client to speak text
func (c *voiceConn) Synthesize(ctx context.Context, text string) error {
	reply, err := c.request(ctx, voiceMessage{Type: typeSpeak, Text: text})
	if err != nil {
		return err
	}
	if reply.Error != "" {
		return fmt.Errorf("client synthesis: %s", reply.Error)
	}
	return nil
}

// Play asks the client to play a stored recording
func (c *voiceConn) Play(ctx context.Context, ref string) error {
	reply, err := c.request(ctx, voiceMessage{Type: typePlay, Audio: ref})
	if err != nil {
		return err
	}
	if reply.Error != "" {
		return fmt.Errorf("%w: %s", speech.ErrPlayback, reply.Error)
	}
	return nil
}
