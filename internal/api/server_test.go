package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/pbaille/diario/internal/assistant"
	"github.com/pbaille/diario/internal/domain"
	"github.com/pbaille/diario/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOwner = "ana"

func newTestServer(t *testing.T, opts Options) (*Server, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "diario.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.EnsureUser(context.Background(), testOwner, "Ana López", "")
	require.NoError(t, err)

	if opts.Owner == "" {
		opts.Owner = testOwner
	}
	if opts.Voice.InactivityTimeout == 0 {
		opts.Voice = assistant.Options{InactivityTimeout: 5 * time.Second, PlaybackPause: time.Millisecond}
	}
	return New(s, ":0", opts), s
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := do(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEntryLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/entries", map[string]string{"content": "comprar pan"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[domain.Entry](t, rec)
	assert.Equal(t, "comprar pan", created.Text())
	assert.Equal(t, testOwner, created.OwnerID)

	// Prefix lookup
	rec = do(t, h, http.MethodGet, "/entries/"+created.ID[:8], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[domain.Entry](t, rec).ID)

	rec = do(t, h, http.MethodPatch, "/entries/"+created.ID, UpdateEntryRequest{Content: "y leche", Mode: domain.UpdateAppend})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "comprar pan y leche", decode[domain.Entry](t, rec).Text())

	rec = do(t, h, http.MethodGet, "/search?q=leche", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[struct {
		Entries []domain.Entry `json:"entries"`
	}](t, rec)
	require.Len(t, found.Entries, 1)

	rec = do(t, h, http.MethodDelete, "/entries/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/entries/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/entries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Entries []domain.Entry `json:"entries"`
		Limit   int            `json:"limit"`
	}](t, rec)
	assert.Empty(t, list.Entries)
	assert.Equal(t, 20, list.Limit)
}

func TestAddEntryValidation(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/entries", map[string]string{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	audio := "rec-1.webm"
	rec = do(t, h, http.MethodPost, "/entries", AddEntryRequest{Audio: &audio})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decode[domain.Entry](t, rec).HasAudio())
}

func TestUpdateEntryRejectsUnknownMode(t *testing.T) {
	srv, s := newTestServer(t, Options{})
	e, err := s.Journal(testOwner).CreateEntry(context.Background(), "nota", nil, nil)
	require.NoError(t, err)

	rec := do(t, srv.Handler(), http.MethodPatch, "/entries/"+e.ID, UpdateEntryRequest{Content: "x", Mode: "merge"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEntriesAreScopedToOwner(t *testing.T) {
	srv, s := newTestServer(t, Options{})
	other, err := s.Journal("otro").CreateEntry(context.Background(), "privado", nil, nil)
	require.NoError(t, err)

	rec := do(t, srv.Handler(), http.MethodGet, "/entries/"+other.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunCommandCreatesAndReads(t *testing.T) {
	srv, s := newTestServer(t, Options{})
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/commands", CommandRequest{Text: "Crear nota comprar pan"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[CommandResponse](t, rec)
	assert.Equal(t, "Anotado: comprar pan", resp.Outcome.Reply)
	require.Len(t, resp.Script, 1)

	entries, err := s.Journal(testOwner).CurrentEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	rec = do(t, h, http.MethodPost, "/commands", CommandRequest{Text: "leer notas de hoy"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[CommandResponse](t, rec)
	require.Len(t, resp.Outcome.Playback, 1)

	var lines []string
	for _, p := range resp.Script {
		lines = append(lines, p.Text)
	}
	assert.Equal(t, "Encontré 1 recuerdo. Reproduciendo...", lines[1])
	assert.Equal(t, []string{"Recuerdo 1.", "comprar pan", "Fin de los recuerdos."}, lines[2:])
}

func TestRunCommandRequiresText(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := do(t, srv.Handler(), http.MethodPost, "/commands", CommandRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{RequestsPerSecond: 0.001, Burst: 2})
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code)

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestDeleteEntryWildcardIDDeletesNothing(t *testing.T) {
	srv, s := newTestServer(t, Options{})
	_, err := s.Journal(testOwner).CreateEntry(context.Background(), "no borrar", nil, nil)
	require.NoError(t, err)

	for _, id := range []string{"_", "%25"} {
		rec := do(t, srv.Handler(), http.MethodDelete, "/entries/"+id, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
	}

	entries, err := s.Journal(testOwner).CurrentEntries(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
