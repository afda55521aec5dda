package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/diario/internal/assistant"
	"github.com/pbaille/diario/internal/classifier"
	"github.com/pbaille/diario/internal/domain"
	"github.com/pbaille/diario/internal/store"
	"golang.org/x/time/rate"
)

// Options configures the server
type Options struct {
	// Owner is the user whose journal is served
	Owner string
	// RequestsPerSecond and Burst throttle the REST endpoints; zero disables
	RequestsPerSecond float64
	Burst             int
	// Voice configures each /voice session
	Voice      assistant.Options
	Classifier *classifier.Classifier
	Logger     *slog.Logger
}

// Server handles HTTP requests for the diary API
type Server struct {
	store      *store.Store
	journal    *store.Journal
	classifier *classifier.Classifier
	limiter    *rate.Limiter
	voice      assistant.Options
	logger     *slog.Logger
	addr       string
}

// New creates a new API server
func New(s *store.Store, addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clf := opts.Classifier
	if clf == nil {
		clf = classifier.New(nil)
	}
	srv := &Server{
		store:      s,
		journal:    s.Journal(opts.Owner),
		classifier: clf,
		voice:      opts.Voice,
		logger:     logger,
		addr:       addr,
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		srv.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	srv.voice.Classifier = clf
	if srv.voice.Logger == nil {
		srv.voice.Logger = logger
	}
	return srv
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Entries
	mux.HandleFunc("GET /entries", s.listEntries)
	mux.HandleFunc("POST /entries", s.addEntry)
	mux.HandleFunc("GET /entries/{id}", s.getEntry)
	mux.HandleFunc("PATCH /entries/{id}", s.updateEntry)
	mux.HandleFunc("DELETE /entries/{id}", s.deleteEntry)

	// Search
	mux.HandleFunc("GET /search", s.searchEntries)

	// Commands
	mux.HandleFunc("POST /commands", s.runCommand)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	root := http.NewServeMux()
	root.Handle("/", withCORS(s.withRateLimit(mux)))
	// Long-lived; not throttled
	root.HandleFunc("GET /voice", s.voiceSession)
	return root
}

// Run starts the HTTP server and shuts it down when ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api: listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(h http.Handler) http.Handler {
	if s.limiter == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AddEntryRequest is the request body for adding an entry
type AddEntryRequest struct {
	Content *string `json:"content,omitempty"`
	Audio   *string `json:"audio,omitempty"`
	Image   *string `json:"image,omitempty"`
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	var req AddEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := s.journal.CreateEntry(r.Context(), deref(req.Content), req.Audio, req.Image)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// UpdateEntryRequest is the request body for editing an entry
type UpdateEntryRequest struct {
	Content string            `json:"content"`
	Mode    domain.UpdateMode `json:"mode,omitempty"`
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	var req UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode == "" {
		req.Mode = domain.UpdateReplace
	}
	if !req.Mode.Valid() {
		writeError(w, http.StatusBadRequest, "mode must be replace or append")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	id, ok := s.resolveID(w, r)
	if !ok {
		return
	}
	entry, err := s.store.UpdateEntry(r.Context(), s.journal.Owner(), id, req.Content, req.Mode)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.resolveID(w, r)
	if !ok {
		return
	}
	if err := s.journal.DeleteEntry(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	// Support prefix matching
	id, ok := s.resolveID(w, r)
	if !ok {
		return
	}

	entry, err := s.store.GetEntry(r.Context(), s.journal.Owner(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	entries, err := s.store.ListEntries(r.Context(), s.journal.Owner(), limit, offset)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": nonNil(entries),
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) searchEntries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	entries, err := s.store.SearchEntries(r.Context(), s.journal.Owner(), query)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": nonNil(entries),
		"query":   query,
	})
}

// CommandRequest is a transcript to interpret
type CommandRequest struct {
	Text string `json:"text"`
}

// CommandResponse reports what the command did and the full spoken script
type CommandResponse struct {
	Outcome assistant.Outcome  `json:"outcome"`
	Script  []assistant.Phrase `json:"script"`
}

func (s *Server) runCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx := r.Context()
	cmd := s.classifier.Classify(req.Text)
	entries, err := s.journal.CurrentEntries(ctx)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	out, err := assistant.Execute(ctx, cmd, entries, s.journal)
	if err != nil {
		s.logger.Warn("api: command failed", "kind", cmd.Kind, "error", err)
	}

	writeJSON(w, http.StatusOK, CommandResponse{Outcome: out, Script: out.Script()})
}

func (s *Server) resolveID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := s.store.ResolveID(r.Context(), s.journal.Owner(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return "", false
	}
	return id, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "entry not found")
	case errors.Is(err, domain.ErrAmbiguousID):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmptyEntry):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("api: store failure", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func nonNil(entries []domain.Entry) []domain.Entry {
	if entries == nil {
		return []domain.Entry{}
	}
	return entries
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
