package store

import (
	"context"

	"github.com/pbaille/diario/internal/domain"
)

// Journal binds a Store to a single owner. It is the persistence
// collaborator handed to the voice assistant and the API.
type Journal struct {
	store *Store
	owner string
}

// Journal returns the owner's view of the store
func (s *Store) Journal(owner string) *Journal {
	return &Journal{store: s, owner: owner}
}

// Owner returns the owner ID this journal is bound to
func (j *Journal) Owner() string {
	return j.owner
}

// CreateEntry persists a new entry
func (j *Journal) CreateEntry(ctx context.Context, content string, audio, image *string) (*domain.Entry, error) {
	return j.store.AddEntry(ctx, j.owner, domain.NewEntry{
		Content: domain.StringPtr(content),
		Audio:   audio,
		Image:   image,
	})
}

// UpdateEntry replaces or appends content of an existing entry
func (j *Journal) UpdateEntry(ctx context.Context, id, content string, mode domain.UpdateMode) error {
	_, err := j.store.UpdateEntry(ctx, j.owner, id, content, mode)
	return err
}

// DeleteEntry removes an entry
func (j *Journal) DeleteEntry(ctx context.Context, id string) error {
	return j.store.DeleteEntry(ctx, j.owner, id)
}

// CurrentEntries returns every entry, most recent first
func (j *Journal) CurrentEntries(ctx context.Context) ([]domain.Entry, error) {
	return j.store.ListEntries(ctx, j.owner, 0, 0)
}

// CurrentUser returns the owner's profile
func (j *Journal) CurrentUser(ctx context.Context) (*domain.User, error) {
	return j.store.GetUser(ctx, j.owner)
}
