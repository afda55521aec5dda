package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pbaille/diario/internal/classifier"
	"github.com/pbaille/diario/internal/dates"
	"github.com/pbaille/diario/internal/domain"
	"github.com/pbaille/diario/internal/selector"
)

// Journal is the persistence collaborator. CurrentEntries must return
// entries most recent first.
type Journal interface {
	CreateEntry(ctx context.Context, content string, audio, image *string) (*domain.Entry, error)
	UpdateEntry(ctx context.Context, id, content string, mode domain.UpdateMode) error
	DeleteEntry(ctx context.Context, id string) error
	CurrentEntries(ctx context.Context) ([]domain.Entry, error)
}

// Outcome describes what a command did and what to say about it.
// For ReadByDate, Reply is the "searching" notice and Playback holds the
// matched entries in input order.
type Outcome struct {
	Command  classifier.Command `json:"command"`
	Reply    string             `json:"reply"`
	Playback []domain.Entry     `json:"playback,omitempty"`
	Affected []string           `json:"affected,omitempty"`
}

// Execute performs cmd against the given entry snapshot. Reply is always
// set; when a collaborator call fails the reply is an apology and the
// error is returned for logging.
func Execute(ctx context.Context, cmd classifier.Command, entries []domain.Entry, j Journal) (Outcome, error) {
	out := Outcome{Command: cmd}

	switch cmd.Kind {
	case classifier.CreateNote:
		entry, err := j.CreateEntry(ctx, cmd.Content, nil, nil)
		if err != nil {
			return failed(out, fmt.Errorf("create entry: %w", err))
		}
		out.Affected = []string{entry.ID}
		out.Reply = fmt.Sprintf(msgCreated, cmd.Content)

	case classifier.CreateNoteEmptyPrompt:
		out.Reply = msgCreatePrompt

	case classifier.ReplaceLastNote, classifier.AppendLastNote:
		mode, done, empty := domain.UpdateReplace, msgReplaced, msgNothingToReplace
		if cmd.Kind == classifier.AppendLastNote {
			mode, done, empty = domain.UpdateAppend, msgAppended, msgNothingToAppend
		}
		last, err := selector.MostRecent(entries)
		if err != nil {
			out.Reply = empty
			return out, nil
		}
		if err := j.UpdateEntry(ctx, last.ID, cmd.Content, mode); err != nil {
			return failed(out, fmt.Errorf("update entry: %w", err))
		}
		out.Affected = []string{last.ID}
		out.Reply = done

	case classifier.DeleteLastNote:
		last, err := selector.MostRecent(entries)
		if err != nil {
			out.Reply = msgNothingToDelete
			return out, nil
		}
		if err := j.DeleteEntry(ctx, last.ID); err != nil {
			return failed(out, fmt.Errorf("delete entry: %w", err))
		}
		out.Affected = []string{last.ID}
		out.Reply = msgDeletedLast

	case classifier.DeleteByDate:
		found := selector.AllOnDate(entries, cmd.Date)
		if len(found) == 0 {
			out.Reply = msgNothingToDeleteOnDate
			return out, nil
		}
		// each deletion is independent; failures do not roll back others
		var errs []error
		for _, e := range found {
			if err := j.DeleteEntry(ctx, e.ID); err != nil {
				errs = append(errs, fmt.Errorf("delete entry %s: %w", e.ID, err))
				continue
			}
			out.Affected = append(out.Affected, e.ID)
		}
		if len(out.Affected) == 0 {
			return failed(out, errors.Join(errs...))
		}
		out.Reply = deletedByDate(len(out.Affected))
		return out, errors.Join(errs...)

	case classifier.ReadByDate:
		out.Reply = fmt.Sprintf(msgSearching, dates.LongSpanish(cmd.Date))
		out.Playback = selector.AllOnDate(entries, cmd.Date)

	default:
		out.Reply = msgHelp
	}

	return out, nil
}

func failed(out Outcome, err error) (Outcome, error) {
	out.Reply = msgFailed
	out.Affected = nil
	return out, err
}

// Phrase is one step of a spoken script: either text to speak or an
// audio reference to play.
type Phrase struct {
	Text  string `json:"text,omitempty"`
	Audio string `json:"audio,omitempty"`
}

// Script returns every phrase the dialogue would produce for this
// outcome, including the full playback sequence for reads.
func (o Outcome) Script() []Phrase {
	script := []Phrase{{Text: o.Reply}}
	if o.Command.Kind != classifier.ReadByDate {
		return script
	}
	if len(o.Playback) == 0 {
		return append(script, Phrase{Text: msgNothingToRead})
	}
	script = append(script, Phrase{Text: foundMemories(len(o.Playback))})
	for i, e := range o.Playback {
		script = append(script, Phrase{Text: memoryIntro(i)}, memoryBody(e))
	}
	return append(script, Phrase{Text: msgEndOfMemories})
}

func memoryIntro(index int) string {
	return fmt.Sprintf(msgMemoryIntro, index+1)
}

// memoryBody plays the recording when there is one, otherwise reads the text
func memoryBody(e domain.Entry) Phrase {
	if e.HasAudio() {
		return Phrase{Audio: *e.Audio}
	}
	text := strings.TrimSpace(e.Text())
	if text == "" {
		text = msgEmptyMemory
	}
	return Phrase{Text: text}
}
