package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Adapter turns blocking engines into the callback contract used by the
// dialogue controller. Callbacks run on adapter goroutines.
type Adapter struct {
	rec    Recognizer
	syn    Synthesizer
	player Player
	logger *slog.Logger

	mu           sync.Mutex
	authorized   bool
	listenCancel context.CancelFunc
	listenID     uint64
	outputCancel context.CancelFunc
	outputID     uint64
}

// NewAdapter creates an adapter. A nil recognizer makes every listen
// attempt fail with ErrRecognitionUnavailable; nil synthesizer or player
// complete immediately.
func NewAdapter(rec Recognizer, syn Synthesizer, player Player, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{rec: rec, syn: syn, player: player, logger: logger}
}

// Available reports whether recognition is supported at all
func (a *Adapter) Available() bool {
	return a.rec != nil
}

// StartListening begins one non-continuous recognition session.
// onResult is called exactly once with the lower-cased, trimmed transcript
// or an error (ErrNoSpeech, ErrAborted or the recognizer's failure).
// Any in-flight synthesis or playback is cancelled first.
func (a *Adapter) StartListening(ctx context.Context, onResult func(text string, err error)) error {
	if a.rec == nil {
		return ErrRecognitionUnavailable
	}

	a.mu.Lock()
	busy, needAuth := a.listenCancel != nil, !a.authorized
	a.mu.Unlock()
	if busy {
		return ErrAlreadyListening
	}

	// Permission prompts may block; the lock stays free meanwhile
	if needAuth {
		if auth, ok := a.rec.(Authorizer); ok {
			if err := auth.Authorize(ctx); err != nil {
				return fmt.Errorf("%w: %w", ErrRecognitionUnavailable, err)
			}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.authorized = true
	if a.listenCancel != nil {
		return ErrAlreadyListening
	}

	a.cancelOutputLocked()

	sessCtx, cancel := context.WithCancel(ctx)
	a.listenID++
	id := a.listenID
	a.listenCancel = cancel

	go func() {
		text, err := a.rec.Recognize(sessCtx)

		a.mu.Lock()
		if a.listenID == id {
			a.listenCancel = nil
		}
		a.mu.Unlock()

		aborted := sessCtx.Err() != nil
		cancel()

		switch {
		case err != nil && aborted:
			err = ErrAborted
		case err == nil:
			text = strings.ToLower(strings.TrimSpace(text))
			if text == "" {
				err = ErrNoSpeech
			}
		}
		if err != nil {
			a.logger.Debug("speech: recognition ended", "session", id, "error", err)
			text = ""
		} else {
			a.logger.Debug("speech: recognized", "session", id, "text", text)
		}
		onResult(text, err)
	}()

	return nil
}

// StopListening ends the active session, if any. The session's callback
// still fires, with ErrAborted.
func (a *Adapter) StopListening() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listenCancel != nil {
		a.listenCancel()
		a.listenCancel = nil
	}
}

// Listening reports whether a recognition session is active
func (a *Adapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listenCancel != nil
}

// Speak cancels any audible output and synthesizes text. onDone fires
// once the speech completes or fails; it never fires for speech that was
// cancelled or superseded.
func (a *Adapter) Speak(ctx context.Context, text string, onDone func()) {
	a.output(ctx, onDone, func(ctx context.Context) error {
		if a.syn == nil {
			return nil
		}
		a.logger.Debug("speech: speaking", "text", text)
		return a.syn.Synthesize(ctx, text)
	}, "synthesis")
}

// PlayRecordedAudio plays a stored recording. Playback failures are
// logged and reported as completion so the dialogue never stalls.
func (a *Adapter) PlayRecordedAudio(ctx context.Context, ref string, onDone func()) {
	a.output(ctx, onDone, func(ctx context.Context) error {
		if a.player == nil {
			return fmt.Errorf("%w: no player configured", ErrPlayback)
		}
		return a.player.Play(ctx, ref)
	}, "playback")
}

// CancelSpeech silences any synthesis or playback in progress
func (a *Adapter) CancelSpeech() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelOutputLocked()
}

// Close stops listening and silences output
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listenCancel != nil {
		a.listenCancel()
		a.listenCancel = nil
	}
	a.cancelOutputLocked()
}

func (a *Adapter) output(ctx context.Context, onDone func(), run func(context.Context) error, what string) {
	a.mu.Lock()
	a.cancelOutputLocked()
	outCtx, cancel := context.WithCancel(ctx)
	a.outputID++
	id := a.outputID
	a.outputCancel = cancel
	a.mu.Unlock()

	go func() {
		err := run(outCtx)

		a.mu.Lock()
		current := a.outputID == id
		if current {
			a.outputCancel = nil
		}
		a.mu.Unlock()

		superseded := outCtx.Err() != nil
		cancel()
		if superseded {
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("speech: "+what+" failed", "error", err)
		}
		if onDone != nil {
			onDone()
		}
	}()
}

func (a *Adapter) cancelOutputLocked() {
	if a.outputCancel != nil {
		a.outputCancel()
		a.outputCancel = nil
	}
}
