// Package session implements the realtime voice conversation client: one
// websocket per conversation attempt, a microphone capture pump, a playback
// sink fed in arrival order, and a dispatcher that fans inbound server
// events out to the message log, product store, and cart collaborators.
package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ketzcommerce/storevoice/pkg/catalog"
	"github.com/ketzcommerce/storevoice/pkg/realtime/audio"
	"github.com/ketzcommerce/storevoice/pkg/realtime/protocol"
	"github.com/ketzcommerce/storevoice/pkg/store"
)

const (
	defaultConnectTimeout = 15 * time.Second
	defaultReadyTimeout   = 5 * time.Second
	defaultGraceDelay     = 500 * time.Millisecond

	readyTimeoutMessage = "Sorry, that took too long. Please try again."
)

// link is one socket connection attempt. A Session creates a fresh link per
// connection; links are never reused after teardown.
type link struct {
	id   string
	conn *websocket.Conn

	ready     chan struct{}
	readyOnce sync.Once

	// ctx covers work tied to this connection (pending product lookups);
	// cancelled on close.
	ctx    context.Context
	cancel context.CancelFunc

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	writeMu sync.Mutex
}

func newLink(conn *websocket.Conn) *link {
	ctx, cancel := context.WithCancel(context.Background())
	return &link{
		id:     uuid.NewString(),
		conn:   conn,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (l *link) markReady() {
	l.readyOnce.Do(func() { close(l.ready) })
}

func (l *link) sendJSON(v any) error {
	if l.closed.Load() {
		return ErrClosed
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.conn.WriteJSON(v)
}

func (l *link) close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		l.cancel()
		l.writeMu.Lock()
		_ = l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		l.writeMu.Unlock()
		_ = l.conn.Close()
	})
}

// Session manages the lifecycle of realtime voice/text conversations against
// one backend endpoint. Start, Stop, and SendText are safe for concurrent
// use; at most one connection is live at a time.
type Session struct {
	url    string
	header http.Header
	dialer *websocket.Dialer

	source   audio.Source
	sink     audio.Sink
	log      store.MessageLog
	products store.ProductStore
	cart     store.CartStore
	resolver *catalog.Resolver

	hooks        Hooks
	logger       *zap.Logger
	readyTimeout time.Duration
	graceDelay   time.Duration

	mu             sync.Mutex
	state          State
	link           *link
	captureCancel  context.CancelFunc
	listening      bool
	speaking       bool
	userTranscript string
	assistant      strings.Builder
	graceTimer     *time.Timer
}

// Option configures a Session.
type Option func(*Session)

// WithSource sets the microphone capture source. Without one, Start fails
// and the session is text-only.
func WithSource(src audio.Source) Option {
	return func(s *Session) { s.source = src }
}

// WithSink sets the playback sink. Defaults to an in-memory queue sink.
func WithSink(sink audio.Sink) Option {
	return func(s *Session) { s.sink = sink }
}

func WithMessageLog(log store.MessageLog) Option {
	return func(s *Session) { s.log = log }
}

func WithProductStore(products store.ProductStore) Option {
	return func(s *Session) { s.products = products }
}

func WithCartStore(cart store.CartStore) Option {
	return func(s *Session) { s.cart = cart }
}

// WithResolver sets the product lookup path for tool-triggered searches.
// Without one, the partial identifiers from the server are stored as-is.
func WithResolver(r *catalog.Resolver) Option {
	return func(s *Session) { s.resolver = r }
}

func WithHooks(h Hooks) Option {
	return func(s *Session) { s.hooks = h }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReadyTimeout bounds the SendText wait for the server's ready signal.
func WithReadyTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.readyTimeout = d
		}
	}
}

// WithGraceDelay sets how long the speaking flag lingers after a response
// completes, letting queued audio drain.
func WithGraceDelay(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.graceDelay = d
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) {
		if d != nil {
			s.dialer = d
		}
	}
}

func WithHeader(h http.Header) Option {
	return func(s *Session) { s.header = h }
}

// New creates a session against the given websocket endpoint URL.
func New(url string, opts ...Option) *Session {
	s := &Session{
		url:          url,
		dialer:       websocket.DefaultDialer,
		sink:         audio.NewQueueSink(nil),
		log:          store.NewMemoryLog(),
		products:     store.NewMemoryProducts(),
		cart:         store.NewMemoryCart(),
		logger:       zap.NewNop(),
		readyTimeout: defaultReadyTimeout,
		graceDelay:   defaultGraceDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the UI-facing state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	ready := false
	if s.link != nil {
		select {
		case <-s.link.ready:
			ready = true
		default:
		}
	}
	return Snapshot{
		State:          s.state,
		Ready:          ready,
		Listening:      s.listening,
		Speaking:       s.speaking,
		UserTranscript: s.userTranscript,
		AssistantDraft: s.assistant.String(),
	}
}

// Start acquires the capture source, opens the socket, and begins streaming
// microphone frames. It is a no-op while a connection is already live.
// Capture and dial failures leave the session disconnected; they are
// surfaced to OnError and returned, never retried automatically.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	if s.source == nil {
		s.mu.Unlock()
		return ErrNoAudioSource
	}
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()
	s.notifyState(StateConnecting)

	if err := s.source.Start(ctx); err != nil {
		s.mu.Lock()
		s.setStateLocked(StateDisconnected)
		s.mu.Unlock()
		s.notifyState(StateDisconnected)
		err = fmt.Errorf("start capture: %w", err)
		s.surface(err)
		return err
	}

	ln, err := s.dial(ctx)
	if err != nil {
		_ = s.source.Close()
		s.mu.Lock()
		s.setStateLocked(StateDisconnected)
		s.mu.Unlock()
		s.notifyState(StateDisconnected)
		s.surface(err)
		return err
	}

	captureCtx, captureCancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.link = ln
	s.captureCancel = captureCancel
	s.listening = true
	s.setStateLocked(StateActive)
	s.mu.Unlock()
	s.notifyState(StateActive)

	s.logger.Info("voice session started", zap.String("session_id", ln.id))
	go s.readLoop(ln)
	go s.capturePump(captureCtx, ln)
	return nil
}

// Stop tears down, in order: frame production, the capture source, the
// playback pipeline, and the socket. Safe to call multiple times and from
// any state; always leaves the session disconnected.
func (s *Session) Stop() {
	s.mu.Lock()
	captureCancel := s.captureCancel
	s.captureCancel = nil
	ln := s.link
	s.link = nil
	timer := s.graceTimer
	s.graceTimer = nil
	hadCapture := captureCancel != nil
	s.listening = false
	s.speaking = false
	s.userTranscript = ""
	s.assistant.Reset()
	changed := s.setStateLocked(StateDisconnected)
	s.mu.Unlock()
	if changed {
		s.notifyState(StateDisconnected)
	}

	if timer != nil {
		timer.Stop()
	}
	if captureCancel != nil {
		captureCancel()
	}
	if hadCapture && s.source != nil {
		_ = s.source.Close()
	}
	if s.sink != nil {
		s.sink.Flush()
	}
	if ln != nil {
		ln.close()
		s.logger.Info("session stopped", zap.String("session_id", ln.id))
	}
}

// SendText delivers a text-only turn. The user's text is appended to the
// conversation log before any network work. If no socket is open, one is
// dialed; the send then waits, bounded by the ready timeout, for the
// server's ready signal. On timeout the socket is closed rather than left
// half-open, a failure message is logged for display, and ErrReadyTimeout
// is returned.
func (s *Session) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("session: text must not be empty")
	}

	s.log.Append(protocol.RoleUser, text)

	ln, err := s.currentOrDial(ctx)
	if err != nil {
		s.surface(err)
		return err
	}

	select {
	case <-ln.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.readyTimeout):
		s.log.Append(protocol.RoleAssistant, readyTimeoutMessage)
		s.logger.Warn("server never signaled ready", zap.String("session_id", ln.id),
			zap.Duration("waited", s.readyTimeout))
		s.Stop()
		s.surface(ErrReadyTimeout)
		return ErrReadyTimeout
	}

	if err := ln.sendJSON(protocol.NewClientText(text)); err != nil {
		err = &TransportError{Op: "write", URL: s.url, Err: err}
		s.surface(err)
		return err
	}
	return nil
}

// SendImage notifies the server that an image was uploaded for visual
// search. Requires a live, ready connection.
func (s *Session) SendImage(imageID string) error {
	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return fmt.Errorf("session: image id must not be empty")
	}
	s.mu.Lock()
	ln := s.link
	s.mu.Unlock()
	if ln == nil {
		return ErrNotConnected
	}
	if err := ln.sendJSON(protocol.NewClientImageUploaded(imageID)); err != nil {
		return &TransportError{Op: "write", URL: s.url, Err: err}
	}
	return nil
}

// currentOrDial returns the live link, dialing a text-only connection when
// none exists.
func (s *Session) currentOrDial(ctx context.Context) (*link, error) {
	s.mu.Lock()
	if s.link != nil {
		ln := s.link
		s.mu.Unlock()
		return ln, nil
	}
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()
	s.notifyState(StateConnecting)

	ln, err := s.dial(ctx)
	if err != nil {
		s.mu.Lock()
		s.setStateLocked(StateDisconnected)
		s.mu.Unlock()
		s.notifyState(StateDisconnected)
		return nil, err
	}

	s.mu.Lock()
	if s.link != nil {
		// Lost the race with a concurrent connect; use the winner.
		existing := s.link
		s.mu.Unlock()
		ln.close()
		return existing, nil
	}
	s.link = ln
	s.setStateLocked(StateActive)
	s.mu.Unlock()
	s.notifyState(StateActive)

	s.logger.Info("text session started", zap.String("session_id", ln.id))
	go s.readLoop(ln)
	return ln, nil
}

func (s *Session) dial(ctx context.Context) (*link, error) {
	dialer := s.dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}
	conn, resp, err := dialer.DialContext(dialCtx, s.url, s.header)
	if err != nil {
		if resp != nil {
			return nil, &TransportError{Op: "dial", URL: s.url,
				Err: fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)}
		}
		return nil, &TransportError{Op: "dial", URL: s.url, Err: err}
	}
	return newLink(conn), nil
}

// capturePump slices the source's stream into fixed frames and ships each
// as one message. It never blocks capture on the socket: write failures
// drop the frame.
func (s *Session) capturePump(ctx context.Context, ln *link) {
	frame := make([]float64, audio.FrameSamples)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := s.source.Read(frame)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("capture ended", zap.String("session_id", ln.id), zap.Error(err))
			}
			return
		}
		if n == 0 {
			continue
		}
		msg := protocol.NewClientAudioAppend(audio.EncodeFrameB64(frame[:n]))
		if err := ln.sendJSON(msg); err != nil {
			if ln.closed.Load() {
				return
			}
			// Drop the frame; backlog must never accumulate.
			continue
		}
	}
}

func (s *Session) readLoop(ln *link) {
	defer close(ln.done)
	for {
		_, data, err := ln.conn.ReadMessage()
		if err != nil {
			if !ln.closed.Load() &&
				!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("socket read failed", zap.String("session_id", ln.id), zap.Error(err))
			}
			break
		}
		msg, err := protocol.DecodeServerMessage(data)
		if err != nil {
			s.logger.Warn("dropping malformed frame", zap.String("session_id", ln.id), zap.Error(err))
			continue
		}
		s.dispatch(ln, msg)
	}

	// A socket closure takes the same teardown path as Stop, but only if
	// this link is still the session's current one.
	s.mu.Lock()
	current := s.link == ln
	s.mu.Unlock()
	if current {
		s.Stop()
	}
}

// dispatch handles one inbound event. Called only from the read goroutine,
// so events are processed strictly in arrival order.
func (s *Session) dispatch(ln *link, msg any) {
	switch m := msg.(type) {
	case protocol.ServerSessionReady:
		ln.markReady()
		s.logger.Debug("session ready", zap.String("session_id", ln.id))

	case protocol.ServerSpeechStarted:
		// Barge-in: whatever the assistant is saying stops now.
		s.sink.Flush()
		s.setSpeaking(false)
		s.setListening(true)

	case protocol.ServerSpeechStopped:
		s.setListening(false)

	case protocol.ServerTranscript:
		s.handleTranscript(m)

	case protocol.ServerAudio:
		pcm, err := audio.DecodeChunkB64(m.Audio)
		if err != nil {
			s.logger.Warn("dropping undecodable audio chunk", zap.String("session_id", ln.id), zap.Error(err))
			return
		}
		if err := s.sink.Write(pcm); err != nil {
			s.logger.Warn("playback write failed", zap.String("session_id", ln.id), zap.Error(err))
			return
		}
		s.setSpeaking(true)

	case protocol.ServerResponseComplete:
		s.handleResponseComplete()

	case protocol.ServerProducts:
		s.handleProducts(ln, m)

	case protocol.ServerCartAction:
		if err := s.cart.Apply(m.Action, m.Data); err != nil {
			s.logger.Warn("cart action rejected", zap.String("session_id", ln.id),
				zap.String("action", m.Action), zap.Error(err))
		}

	case protocol.ServerImageReady:
		if s.hooks.OnImageReady != nil {
			s.hooks.OnImageReady(m.ImageID)
		}

	case protocol.ServerError:
		// Surfaced for display; the session stays up.
		s.logger.Warn("server error", zap.String("session_id", ln.id), zap.String("message", m.Message))
		s.surface(&ServerError{Message: m.Message})

	case protocol.ServerUnknown:
		s.logger.Debug("ignoring unknown event", zap.String("session_id", ln.id), zap.String("event_type", m.Type))
	}
}

func (s *Session) handleTranscript(m protocol.ServerTranscript) {
	switch m.Role {
	case protocol.RoleUser:
		// A user transcript is final: replace the current utterance and
		// log it immediately.
		s.mu.Lock()
		s.userTranscript = m.Text
		s.mu.Unlock()
		s.log.Append(protocol.RoleUser, m.Text)
		if s.hooks.OnUserTranscript != nil {
			s.hooks.OnUserTranscript(m.Text)
		}
	case protocol.RoleAssistant:
		delta := m.Delta
		if delta == "" {
			delta = m.Text
		}
		s.mu.Lock()
		s.assistant.WriteString(delta)
		draft := s.assistant.String()
		s.mu.Unlock()
		if s.hooks.OnAssistantDelta != nil {
			s.hooks.OnAssistantDelta(draft)
		}
	}
}

func (s *Session) handleResponseComplete() {
	s.mu.Lock()
	text := s.assistant.String()
	s.assistant.Reset()
	if s.graceTimer != nil {
		s.graceTimer.Stop()
	}
	// Let the tail of the queued audio drain before clearing speaking.
	s.graceTimer = time.AfterFunc(s.graceDelay, func() {
		s.setSpeaking(false)
	})
	s.mu.Unlock()

	if text != "" {
		s.log.Append(protocol.RoleAssistant, text)
		if s.hooks.OnAssistantDelta != nil {
			s.hooks.OnAssistantDelta("")
		}
	}
}

func (s *Session) handleProducts(ln *link, m protocol.ServerProducts) {
	candidates := make([]catalog.Candidate, 0, len(m.Data.Products))
	for _, ref := range m.Data.Products {
		candidates = append(candidates, catalog.Candidate{ID: ref.ID, Name: ref.Name})
	}
	if s.resolver == nil {
		// No lookup path configured: store the partial identifiers.
		partial := make([]catalog.Product, 0, len(candidates))
		seen := make(map[string]bool, len(candidates))
		for _, c := range candidates {
			if c.ID == "" || seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			partial = append(partial, catalog.Product{ID: c.ID, Name: c.Name})
		}
		s.products.Replace(m.Tool, partial)
		return
	}
	batch := s.resolver.Issue()
	tool := m.Tool
	go s.resolver.Resolve(ln.ctx, batch, candidates, func(resolved []catalog.Product) {
		s.products.Replace(tool, resolved)
	})
}

// setStateLocked records a state transition; the caller must hold mu and
// invoke notifyState after unlocking when it returns true.
func (s *Session) setStateLocked(next State) bool {
	if s.state == next {
		return false
	}
	s.state = next
	return true
}

func (s *Session) notifyState(next State) {
	if s.hooks.OnState != nil {
		s.hooks.OnState(next)
	}
}

func (s *Session) setSpeaking(speaking bool) {
	s.mu.Lock()
	changed := s.speaking != speaking
	s.speaking = speaking
	s.mu.Unlock()
	if changed && s.hooks.OnSpeaking != nil {
		s.hooks.OnSpeaking(speaking)
	}
}

func (s *Session) setListening(listening bool) {
	s.mu.Lock()
	s.listening = listening
	s.mu.Unlock()
}

func (s *Session) surface(err error) {
	if err == nil || s.hooks.OnError == nil {
		return
	}
	s.hooks.OnError(err)
}
