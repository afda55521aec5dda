package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	voiceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#c084fc")).Bold(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	audioStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3b82f6")).Italic(true)
)

// LineRecognizer treats each line read from an io.Reader as one utterance.
// Useful for driving the assistant from a terminal or a pipe.
type LineRecognizer struct {
	in     io.Reader
	prompt io.Writer

	once  sync.Once
	lines chan string
}

// NewLineRecognizer reads utterances from in. When prompt is non-nil a
// microphone prompt is written there at the start of every session.
func NewLineRecognizer(in io.Reader, prompt io.Writer) *LineRecognizer {
	return &LineRecognizer{in: in, prompt: prompt}
}

// Recognize waits for the next line
func (r *LineRecognizer) Recognize(ctx context.Context) (string, error) {
	r.once.Do(r.start)

	if r.prompt != nil {
		fmt.Fprint(r.prompt, promptStyle.Render("● escuchando> "))
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-r.lines:
		if !ok {
			return "", ErrAborted
		}
		return line, nil
	}
}

func (r *LineRecognizer) start() {
	r.lines = make(chan string)
	go func() {
		defer close(r.lines)
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			r.lines <- sc.Text()
		}
	}()
}

// ConsoleSynthesizer prints spoken text and optionally pipes it to an
// external text-to-speech command (for example "say -v Monica" or
// "espeak -v es"), waiting for the command to finish.
type ConsoleSynthesizer struct {
	out     io.Writer
	command []string
}

// NewConsoleSynthesizer writes to out and runs command (may be empty)
func NewConsoleSynthesizer(out io.Writer, command string) *ConsoleSynthesizer {
	return &ConsoleSynthesizer{out: out, command: strings.Fields(command)}
}

// Synthesize prints text and runs the configured command with text as
// its final argument
func (s *ConsoleSynthesizer) Synthesize(ctx context.Context, text string) error {
	if s.out != nil {
		fmt.Fprintln(s.out, voiceStyle.Render("» "+text))
	}
	if len(s.command) == 0 {
		return nil
	}
	args := append(append([]string{}, s.command[1:]...), text)
	if err := exec.CommandContext(ctx, s.command[0], args...).Run(); err != nil {
		return fmt.Errorf("run %s: %w", s.command[0], err)
	}
	return nil
}

// CommandPlayer plays recordings with an external command such as
// "afplay" or "ffplay -nodisp -autoexit"
type CommandPlayer struct {
	out     io.Writer
	command []string
}

// NewCommandPlayer runs command with the reference appended. An empty
// command only announces the reference.
func NewCommandPlayer(out io.Writer, command string) *CommandPlayer {
	return &CommandPlayer{out: out, command: strings.Fields(command)}
}

// Play runs the player command to completion
func (p *CommandPlayer) Play(ctx context.Context, ref string) error {
	if p.out != nil {
		fmt.Fprintln(p.out, audioStyle.Render("♪ "+ref))
	}
	if len(p.command) == 0 {
		return nil
	}
	args := append(append([]string{}, p.command[1:]...), ref)
	if err := exec.CommandContext(ctx, p.command[0], args...).Run(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPlayback, ref, err)
	}
	return nil
}
