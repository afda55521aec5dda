// Package speech wraps speech recognition, synthesis and audio playback
// engines behind a single-session adapter.
//
// The engines are black boxes. The Adapter enforces that at most one
// recognition session and at most one audible output (synthesis or
// recorded audio) are active at a time.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyListening is returned when a recognition session is active
	ErrAlreadyListening = errors.New("speech: already listening")
	// ErrRecognitionUnavailable is returned when no recognizer can be used
	ErrRecognitionUnavailable = errors.New("speech: recognition unavailable")
	// ErrPermissionDenied is returned by authorizers refusing microphone access
	ErrPermissionDenied = errors.New("speech: permission denied")
	// ErrNoSpeech is delivered when a session ends without any words
	ErrNoSpeech = errors.New("speech: no speech detected")
	// ErrAborted is delivered when a session is stopped before a result
	ErrAborted = errors.New("speech: aborted")
	// ErrPlayback is returned by players that cannot play a reference
	ErrPlayback = errors.New("speech: playback failed")
)

// Recognizer captures one utterance and returns its transcript.
// It must return promptly with ctx.Err() once ctx is cancelled.
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

// Authorizer is implemented by recognizers that need microphone
// permission before the first session.
type Authorizer interface {
	Authorize(ctx context.Context) error
}

// Synthesizer speaks text and returns once it has been heard
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) error
}

// Player plays a stored audio reference to completion
type Player interface {
	Play(ctx context.Context, ref string) error
}

// RecognizerFunc adapts a function to Recognizer
type RecognizerFunc func(ctx context.Context) (string, error)

// Recognize calls f
func (f RecognizerFunc) Recognize(ctx context.Context) (string, error) {
	return f(ctx)
}

// SynthesizerFunc adapts a function to Synthesizer
type SynthesizerFunc func(ctx context.Context, text string) error

// Synthesize calls f
func (f SynthesizerFunc) Synthesize(ctx context.Context, text string) error {
	return f(ctx, text)
}

// PlayerFunc adapts a function to Player
type PlayerFunc func(ctx context.Context, ref string) error

// Play calls f
func (f PlayerFunc) Play(ctx context.Context, ref string) error {
	return f(ctx, ref)
}
