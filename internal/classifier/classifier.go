// Package classifier maps a recognized utterance onto a voice command.
//
// Rules are evaluated in a fixed order and the first match wins:
// create, empty create, replace last, append to last, delete last,
// date-scoped read/delete, and finally unrecognized.
package classifier

import (
	"regexp"
	"strings"
	"time"

	"github.com/pbaille/diario/internal/dates"
)

// Kind identifies the intent of an utterance
type Kind string

const (
	CreateNote            Kind = "create_note"
	CreateNoteEmptyPrompt Kind = "create_note_empty_prompt"
	ReplaceLastNote       Kind = "replace_last_note"
	AppendLastNote        Kind = "append_last_note"
	DeleteLastNote        Kind = "delete_last_note"
	DeleteByDate          Kind = "delete_by_date"
	ReadByDate            Kind = "read_by_date"
	Unrecognized          Kind = "unrecognized"
)

// Command is the structured intent of one utterance
type Command struct {
	Kind    Kind      `json:"kind"`
	Content string    `json:"content,omitempty"`
	Date    time.Time `json:"date,omitzero"`
}

// HasDate reports whether the command is date-scoped
func (c Command) HasDate() bool {
	return c.Kind == DeleteByDate || c.Kind == ReadByDate
}

// Rule is one row of the classification table. Match returns the
// command and true when the rule applies to the normalized text.
type Rule struct {
	Name  string
	Match func(text string) (Command, bool)
}

var (
	createRe      = regexp.MustCompile(`(?:crear|nueva|escribir|anotar|apuntar)\s+nota\s+(.+)`)
	createEmptyRe = regexp.MustCompile(`(?:crear|nueva|escribir|anotar|apuntar)\s+nota$`)
	replaceRe     = regexp.MustCompile(`(?:modificar|cambiar|editar|corregir)\s+(?:la\s+)?(?:última|ultima)\s+nota\s+(.+)`)
	appendRe      = regexp.MustCompile(`(?:agregar|añadir|sumar)\s+(?:a\s+)?(?:la\s+)?(?:última|ultima)\s+nota\s+(.+)`)
	deleteLastRe  = regexp.MustCompile(`(?:borrar|eliminar|quitar)\s+(?:la\s+)?(?:última|ultima)\s+nota`)
	deleteVerbRe  = regexp.MustCompile(`borrar|eliminar|quitar`)
)

// Classifier holds the ordered rule table
type Classifier struct {
	rules []Rule
}

// New builds the default rule table. The resolver supplies "today".
func New(resolver *dates.Resolver) *Classifier {
	if resolver == nil {
		resolver = dates.NewResolver()
	}
	return &Classifier{rules: []Rule{
		{Name: "create", Match: contentRule(createRe, CreateNote)},
		{Name: "create-empty", Match: func(text string) (Command, bool) {
			return Command{Kind: CreateNoteEmptyPrompt}, createEmptyRe.MatchString(text)
		}},
		{Name: "replace-last", Match: contentRule(replaceRe, ReplaceLastNote)},
		{Name: "append-last", Match: contentRule(appendRe, AppendLastNote)},
		{Name: "delete-last", Match: func(text string) (Command, bool) {
			return Command{Kind: DeleteLastNote}, deleteLastRe.MatchString(text)
		}},
		{Name: "date-scoped", Match: func(text string) (Command, bool) {
			date, ok := resolver.Resolve(text)
			if !ok {
				return Command{}, false
			}
			if deleteVerbRe.MatchString(text) {
				return Command{Kind: DeleteByDate, Date: date}, true
			}
			return Command{Kind: ReadByDate, Date: date}, true
		}},
	}}
}

// Rules returns the table in evaluation order
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Classify returns the command for text. Classification is total: text
// matching no rule yields Unrecognized.
func (c *Classifier) Classify(text string) Command {
	text = Normalize(text)
	for _, r := range c.rules {
		if cmd, ok := r.Match(text); ok {
			return cmd
		}
	}
	return Command{Kind: Unrecognized}
}

func contentRule(re *regexp.Regexp, kind Kind) func(string) (Command, bool) {
	return func(text string) (Command, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return Command{}, false
		}
		content := strings.TrimSpace(m[1])
		if content == "" {
			return Command{}, false
		}
		return Command{Kind: kind, Content: content}, true
	}
}
