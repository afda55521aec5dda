// Package assistant runs the spoken dialogue of the voice journal: it
// listens for one utterance, classifies it, applies it to the journal,
// speaks a confirmation and listens again.
//
// The Controller is an explicit state machine. All state lives in the
// goroutine running Run; engines, timers and public methods communicate
// with it only by posting events.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pbaille/diario/internal/classifier"
	"github.com/pbaille/diario/internal/domain"
	"github.com/pbaille/diario/internal/speech"
)

// Phase is the dialogue state
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseGreeting
	PhaseListening
	PhaseProcessing
	PhaseSpeaking
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseGreeting:
		return "greeting"
	case PhaseListening:
		return "listening"
	case PhaseProcessing:
		return "processing"
	case PhaseSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Voice is the speech capability the controller drives. *speech.Adapter
// implements it.
type Voice interface {
	Available() bool
	StartListening(ctx context.Context, onResult func(text string, err error)) error
	StopListening()
	Speak(ctx context.Context, text string, onDone func())
	PlayRecordedAudio(ctx context.Context, ref string, onDone func())
	CancelSpeech()
}

// UserSource provides the profile used for the greeting
type UserSource interface {
	CurrentUser(ctx context.Context) (*domain.User, error)
}

// Options tune the dialogue
type Options struct {
	// InactivityTimeout ends a session when nothing is heard (default 4s)
	InactivityTimeout time.Duration
	// PlaybackPause separates memories during playback (default 1s)
	PlaybackPause time.Duration
	// GreetingDelay postpones the greeting after Start
	GreetingDelay time.Duration
	// Classifier defaults to classifier.New(nil)
	Classifier *classifier.Classifier
	// Notify shows a message without speaking it
	Notify func(msg string)
	// OnPhase is called from the dialogue goroutine on every phase change
	OnPhase func(Phase)
	Logger  *slog.Logger
}

const (
	DefaultInactivityTimeout = 4 * time.Second
	DefaultPlaybackPause     = time.Second
)

type eventKind int

const (
	evStart eventKind = iota
	evToggle
	evStop
	evGreet
	evRecognized
	evOutputDone
	evTimeout
	evPause
)

type event struct {
	kind eventKind
	gen  uint64
	text string
	err  error
}

// Controller orchestrates listen, process and speak turns
type Controller struct {
	voice   Voice
	journal Journal
	users   UserSource
	opts    Options
	logger  *slog.Logger

	events chan event
	done   chan struct{}
	phase  atomic.Int32

	// owned by the Run goroutine
	ctx        context.Context
	timer      *time.Timer
	timerGen   uint64
	listenGen  uint64
	outputGen  uint64
	onOutput   func()
	seq        *sequence
	disabled   bool
	notifiedUp bool
}

// New creates a controller. users may be nil.
func New(voice Voice, journal Journal, users UserSource, opts Options) *Controller {
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = DefaultInactivityTimeout
	}
	if opts.PlaybackPause <= 0 {
		opts.PlaybackPause = DefaultPlaybackPause
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.New(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		voice:   voice,
		journal: journal,
		users:   users,
		opts:    opts,
		logger:  logger,
		events:  make(chan event, 32),
		done:    make(chan struct{}),
	}
}

// Phase returns the current dialogue state
func (c *Controller) Phase() Phase {
	return Phase(c.phase.Load())
}

// Start begins a session with a greeting. Ignored unless idle.
func (c *Controller) Start() { c.post(event{kind: evStart}) }

// Toggle is the manual microphone button: it stops an active listen, or
// starts listening (without greeting) from any other state, interrupting
// whatever is being spoken or played.
func (c *Controller) Toggle() { c.post(event{kind: evToggle}) }

// Stop ends the session and returns to idle
func (c *Controller) Stop() { c.post(event{kind: evStop}) }

// Run processes events until ctx is cancelled, then tears the session down
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)
	defer c.teardown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case evStart:
		c.start()
	case evToggle:
		c.toggle()
	case evStop:
		c.stop()
	case evGreet:
		if ev.gen == c.timerGen && c.Phase() == PhaseGreeting {
			c.timer = nil
			c.greet()
		}
	case evRecognized:
		c.recognized(ev)
	case evOutputDone:
		if ev.gen != c.outputGen || c.onOutput == nil {
			return
		}
		next := c.onOutput
		c.onOutput = nil
		next()
	case evTimeout:
		if ev.gen == c.timerGen && c.Phase() == PhaseListening {
			c.timer = nil
			c.inactive()
		}
	case evPause:
		if ev.gen == c.timerGen && c.seq != nil {
			c.timer = nil
			c.seq.index++
			c.playCurrent()
		}
	}
}

func (c *Controller) setPhase(p Phase) {
	if Phase(c.phase.Swap(int32(p))) == p {
		return
	}
	c.logger.Debug("assistant: phase", "phase", p.String())
	if c.opts.OnPhase != nil {
		c.opts.OnPhase(p)
	}
}

func (c *Controller) start() {
	if c.Phase() != PhaseIdle {
		c.logger.Debug("assistant: start ignored", "phase", c.Phase().String())
		return
	}
	if !c.voice.Available() {
		c.disable()
	}
	if c.disabled {
		return
	}
	c.setPhase(PhaseGreeting)
	if c.opts.GreetingDelay > 0 {
		c.arm(c.opts.GreetingDelay, evGreet)
		return
	}
	c.greet()
}

func (c *Controller) greet() {
	var firstName string
	if c.users != nil {
		user, err := c.users.CurrentUser(c.ctx)
		if err != nil {
			c.logger.Warn("assistant: current user", "error", err)
		} else if user != nil {
			firstName = user.FirstName()
		}
	}
	c.speak(greeting(firstName), c.listen)
}

func (c *Controller) toggle() {
	if c.disabled || !c.voice.Available() {
		c.notify(NoticeUnavailable)
		return
	}
	switch c.Phase() {
	case PhaseListening:
		c.stopListening()
		c.disarm()
		c.setPhase(PhaseIdle)
	default:
		c.interrupt()
		c.setPhase(PhaseSpeaking)
		c.speak(msgListeningAck, c.listen)
	}
}

func (c *Controller) stop() {
	c.stopListening()
	c.interrupt()
	c.setPhase(PhaseIdle)
}

func (c *Controller) teardown() {
	c.stopListening()
	c.interrupt()
	c.setPhase(PhaseIdle)
}

// interrupt cancels timers, pending output continuations and playback
func (c *Controller) interrupt() {
	c.disarm()
	c.outputGen++
	c.onOutput = nil
	c.seq = nil
	c.voice.CancelSpeech()
}

func (c *Controller) listen() {
	c.listenGen++
	gen := c.listenGen
	err := c.voice.StartListening(c.ctx, func(text string, err error) {
		c.post(event{kind: evRecognized, gen: gen, text: text, err: err})
	})
	if err != nil {
		c.recognitionFailed(err)
		c.setPhase(PhaseIdle)
		return
	}
	c.setPhase(PhaseListening)
	c.arm(c.opts.InactivityTimeout, evTimeout)
}

func (c *Controller) stopListening() {
	c.listenGen++
	c.voice.StopListening()
}

func (c *Controller) recognized(ev event) {
	if ev.gen != c.listenGen || c.Phase() != PhaseListening {
		return
	}
	c.disarm()
	if ev.err != nil {
		c.recognitionFailed(ev.err)
		c.setPhase(PhaseIdle)
		return
	}
	c.setPhase(PhaseProcessing)
	c.process(ev.text)
}

// recognitionFailed absorbs recognition errors. Unavailable recognition
// disables the assistant and is shown once; other errors end the session
// silently.
func (c *Controller) recognitionFailed(err error) {
	if errors.Is(err, speech.ErrRecognitionUnavailable) || errors.Is(err, speech.ErrPermissionDenied) {
		c.disable()
		c.logger.Warn("assistant: recognition unavailable", "error", err)
		return
	}
	c.logger.Info("assistant: recognition ended", "error", err)
}

// disable turns the assistant off for good, showing the notice once
func (c *Controller) disable() {
	c.disabled = true
	if !c.notifiedUp {
		c.notifiedUp = true
		c.notify(NoticeUnavailable)
	}
}

func (c *Controller) inactive() {
	c.stopListening()
	c.setPhase(PhaseSpeaking)
	c.speak(msgInactive, func() { c.setPhase(PhaseIdle) })
}

func (c *Controller) process(text string) {
	entries, err := c.journal.CurrentEntries(c.ctx)
	if err != nil {
		c.logger.Error("assistant: load entries", "error", err)
		c.reply(msgFailed)
		return
	}

	cmd := c.opts.Classifier.Classify(text)
	c.logger.Info("assistant: command", "kind", cmd.Kind, "text", text)

	out, err := Execute(c.ctx, cmd, entries, c.journal)
	if err != nil {
		c.logger.Error("assistant: execute", "kind", cmd.Kind, "error", err)
	}

	if cmd.Kind == classifier.ReadByDate {
		found := out.Playback
		c.setPhase(PhaseSpeaking)
		c.speak(out.Reply, func() { c.read(found) })
		return
	}
	c.reply(out.Reply)
}

// reply speaks text and then listens again
func (c *Controller) reply(text string) {
	c.setPhase(PhaseSpeaking)
	c.speak(text, c.listen)
}

// speak outputs text; next runs on the dialogue goroutine once it is heard
func (c *Controller) speak(text string, next func()) {
	gen := c.beginOutput(next)
	c.voice.Speak(c.ctx, text, func() { c.post(event{kind: evOutputDone, gen: gen}) })
}

// play outputs a recording; next runs once it finishes or fails
func (c *Controller) play(ref string, next func()) {
	gen := c.beginOutput(next)
	c.voice.PlayRecordedAudio(c.ctx, ref, func() { c.post(event{kind: evOutputDone, gen: gen}) })
}

func (c *Controller) beginOutput(next func()) uint64 {
	c.outputGen++
	c.onOutput = next
	return c.outputGen
}

func (c *Controller) notify(msg string) {
	if c.opts.Notify != nil {
		c.opts.Notify(msg)
		return
	}
	c.logger.Warn("assistant: " + msg)
}

// arm starts the single dialogue timer. Only one of greeting delay,
// inactivity or playback pause is pending at a time.
func (c *Controller) arm(d time.Duration, kind eventKind) {
	c.disarm()
	gen := c.timerGen
	c.timer = time.AfterFunc(d, func() { c.post(event{kind: kind, gen: gen}) })
}

func (c *Controller) disarm() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
}
