package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an entry or user does not exist
	ErrNotFound = errors.New("not found")
	// ErrEmptyEntry is returned when an entry has no content, audio or image
	ErrEmptyEntry = errors.New("entry has no content, audio or image")
	// ErrAmbiguousID is returned when an id prefix matches several entries
	ErrAmbiguousID = errors.New("ambiguous id prefix")
)

// Entry represents a single diary memory.
// Content, Audio and Image are optional; nil means absent.
type Entry struct {
	ID        string    `json:"id" yaml:"id"`
	OwnerID   string    `json:"owner_id" yaml:"owner_id"`
	Content   *string   `json:"content,omitempty" yaml:"content,omitempty"`
	Audio     *string   `json:"audio,omitempty" yaml:"audio,omitempty"`
	Image     *string   `json:"image,omitempty" yaml:"image,omitempty"`
	CreatedAt time.Time `json:"date" yaml:"date"`
}

// Text returns the entry content or "" when absent
func (e Entry) Text() string {
	if e.Content == nil {
		return ""
	}
	return *e.Content
}

// HasAudio reports whether the entry carries a recording reference
func (e Entry) HasAudio() bool {
	return e.Audio != nil && *e.Audio != ""
}

// NewEntry holds the fields supplied when creating an entry
type NewEntry struct {
	Content *string
	Audio   *string
	Image   *string
}

// Validate rejects entries with nothing to store
func (n NewEntry) Validate() error {
	if isBlank(n.Content) && isBlank(n.Audio) && isBlank(n.Image) {
		return ErrEmptyEntry
	}
	return nil
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// UpdateMode selects how new content is applied to an existing entry
type UpdateMode string

const (
	UpdateReplace UpdateMode = "replace"
	UpdateAppend  UpdateMode = "append"
)

// Valid reports whether m is a known mode
func (m UpdateMode) Valid() bool {
	return m == UpdateReplace || m == UpdateAppend
}

// Apply computes the resulting content of an update.
// Append joins with a single space when prior content exists.
func (m UpdateMode) Apply(prior *string, content string) string {
	if m == UpdateAppend && prior != nil && *prior != "" {
		return *prior + " " + content
	}
	return content
}

// User is the owner of a journal
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Name returns the display name, falling back to the email local part
func (u User) Name() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return ""
}

// FirstName returns the first word of the user's name, or "" if unknown
func (u User) FirstName() string {
	fields := strings.Fields(u.Name())
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// StringPtr returns nil for an empty string, otherwise a pointer to s
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
