package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pbaille/diario/internal/classifier"
	"github.com/pbaille/diario/internal/dates"
	"github.com/pbaille/diario/internal/domain"
	"github.com/pbaille/diario/internal/speech"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func testClassifier() *classifier.Classifier {
	return classifier.New(&dates.Resolver{Now: func() time.Time { return testNow }})
}

func textEntry(id, content string, at time.Time) domain.Entry {
	return domain.Entry{ID: id, Content: &content, CreatedAt: at}
}

type updateCall struct {
	ID      string
	Content string
	Mode    domain.UpdateMode
}

// fakeJournal keeps entries most recent first
type fakeJournal struct {
	mu        sync.Mutex
	entries   []domain.Entry
	created   []string
	updates   []updateCall
	deletes   []string
	createErr error
	deleteErr map[string]error
	listErr   error
	nextID    int
}

func newFakeJournal(entries ...domain.Entry) *fakeJournal {
	return &fakeJournal{entries: entries, deleteErr: map[string]error{}}
}

func (j *fakeJournal) CreateEntry(_ context.Context, content string, audio, image *string) (*domain.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.createErr != nil {
		return nil, j.createErr
	}
	j.nextID++
	e := domain.Entry{ID: fmt.Sprintf("new-%d", j.nextID), Content: &content, Audio: audio, Image: image, CreatedAt: testNow}
	j.entries = append([]domain.Entry{e}, j.entries...)
	j.created = append(j.created, content)
	return &e, nil
}

func (j *fakeJournal) UpdateEntry(_ context.Context, id, content string, mode domain.UpdateMode) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.updates = append(j.updates, updateCall{ID: id, Content: content, Mode: mode})
	for i := range j.entries {
		if j.entries[i].ID == id {
			final := mode.Apply(j.entries[i].Content, content)
			j.entries[i].Content = &final
			return nil
		}
	}
	return domain.ErrNotFound
}

func (j *fakeJournal) DeleteEntry(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.deleteErr[id]; err != nil {
		return err
	}
	j.deletes = append(j.deletes, id)
	for i := range j.entries {
		if j.entries[i].ID == id {
			j.entries = append(j.entries[:i], j.entries[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (j *fakeJournal) CurrentEntries(context.Context) ([]domain.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.listErr != nil {
		return nil, j.listErr
	}
	return append([]domain.Entry(nil), j.entries...), nil
}

func (j *fakeJournal) snapshot() (created []string, updates []updateCall, deletes []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.created...), append([]updateCall(nil), j.updates...), append([]string(nil), j.deletes...)
}

type fakeUsers struct {
	user *domain.User
	err  error
}

func (u fakeUsers) CurrentUser(context.Context) (*domain.User, error) {
	return u.user, u.err
}

// fakeRecognizer hands out utterances sent by the test
type fakeRecognizer struct {
	utterances chan string
}

func (r *fakeRecognizer) Recognize(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case u := <-r.utterances:
		return u, nil
	}
}

// recordingOutput records everything spoken or played, in order
type recordingOutput struct {
	mu      sync.Mutex
	log     []string
	playErr error
}

func (o *recordingOutput) Synthesize(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	o.log = append(o.log, text)
	o.mu.Unlock()
	return nil
}

func (o *recordingOutput) Play(ctx context.Context, ref string) error {
	o.mu.Lock()
	o.log = append(o.log, "♪"+ref)
	o.mu.Unlock()
	return o.playErr
}

func (o *recordingOutput) lines() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.log...)
}

func (o *recordingOutput) has(text string) bool {
	for _, l := range o.lines() {
		if l == text {
			return true
		}
	}
	return false
}

type harness struct {
	t       *testing.T
	ctrl    *Controller
	journal *fakeJournal
	rec     *fakeRecognizer
	out     *recordingOutput
	notices chan string
}

type harnessOption func(*Options, *harnessDeps)

type harnessDeps struct {
	users         UserSource
	noRecognition bool
}

func withTimeout(d time.Duration) harnessOption {
	return func(o *Options, _ *harnessDeps) { o.InactivityTimeout = d }
}

func withPause(d time.Duration) harnessOption {
	return func(o *Options, _ *harnessDeps) { o.PlaybackPause = d }
}

func withUsers(u UserSource) harnessOption {
	return func(_ *Options, d *harnessDeps) { d.users = u }
}

func withoutRecognition() harnessOption {
	return func(_ *Options, d *harnessDeps) { d.noRecognition = true }
}

func newHarness(t *testing.T, journal *fakeJournal, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		journal: journal,
		rec:     &fakeRecognizer{utterances: make(chan string)},
		out:     &recordingOutput{},
		notices: make(chan string, 8),
	}
	o := Options{
		InactivityTimeout: 5 * time.Second,
		PlaybackPause:     time.Millisecond,
		Classifier:        testClassifier(),
		Notify:            func(msg string) { h.notices <- msg },
	}
	deps := harnessDeps{users: fakeUsers{user: &domain.User{DisplayName: "Ana López"}}}
	for _, opt := range opts {
		opt(&o, &deps)
	}

	var rec speech.Recognizer = h.rec
	if deps.noRecognition {
		rec = nil
	}
	voice := speech.NewAdapter(rec, h.out, h.out, nil)
	h.ctrl = New(voice, journal, deps.users, o)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.ctrl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		voice.Close()
	})
	return h
}

func (h *harness) waitSpoken(text string) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.out.has(text) }, 2*time.Second, 2*time.Millisecond,
		"never spoke %q; spoken so far: %q", text, h.out.lines())
}

func (h *harness) waitPhase(p Phase) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.ctrl.Phase() == p }, 2*time.Second, 2*time.Millisecond,
		"phase is %s, want %s", h.ctrl.Phase(), p)
}

// say delivers an utterance to the active recognition session
func (h *harness) say(utterance string) {
	h.t.Helper()
	select {
	case h.rec.utterances <- utterance:
	case <-time.After(2 * time.Second):
		h.t.Fatalf("nobody listened for %q; phase %s", utterance, h.ctrl.Phase())
	}
}

// startSession greets and waits until the controller listens
func (h *harness) startSession() {
	h.t.Helper()
	h.ctrl.Start()
	h.waitSpoken("Hola Ana, ¿en qué te puedo ayudar hoy?")
	h.waitPhase(PhaseListening)
}

var errBoom = errors.New("boom")
