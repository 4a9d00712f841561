// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lawsonmorris/nova-cli/internal/gemini"
	"github.com/lawsonmorris/nova-cli/internal/kvstore"
	"github.com/lawsonmorris/nova-cli/internal/model"
	"github.com/lawsonmorris/nova-cli/internal/storage"
)

// =============================================================================
// FAKES
// =============================================================================

// fakeStreamer replays canned fragments, optionally gating delivery so
// tests can observe mid-stream state.
type fakeStreamer struct {
	mu        sync.Mutex
	fragments []gemini.Fragment
	err       error

	opened chan struct{} // closed once a stream has been opened, if set
	gate   chan struct{} // fragments wait for this to close, if set

	lastReq gemini.StreamRequest
	calls   int
}

func (f *fakeStreamer) StreamMessage(ctx context.Context, req gemini.StreamRequest) (<-chan gemini.Fragment, <-chan error) {
	f.mu.Lock()
	f.lastReq = req
	f.calls++
	opened, gate := f.opened, f.gate
	fragments, streamErr := f.fragments, f.err
	f.mu.Unlock()

	out := make(chan gemini.Fragment)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		if opened != nil {
			close(opened)
			f.mu.Lock()
			f.opened = nil
			f.mu.Unlock()
		}
		if gate != nil {
			<-gate
		}
		for _, frag := range fragments {
			select {
			case out <- frag:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if streamErr != nil {
			errs <- streamErr
		}
	}()
	return out, errs
}

func (f *fakeStreamer) request() gemini.StreamRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

// cancelAwareStreamer emits its fragments then blocks until the context is
// cancelled, reporting the cancellation as the stream error.
type cancelAwareStreamer struct {
	fragments []gemini.Fragment
	emitted   chan struct{}
}

func (f *cancelAwareStreamer) StreamMessage(ctx context.Context, _ gemini.StreamRequest) (<-chan gemini.Fragment, <-chan error) {
	out := make(chan gemini.Fragment)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, frag := range f.fragments {
			out <- frag
		}
		close(f.emitted)
		<-ctx.Done()
		errs <- ctx.Err()
	}()
	return out, errs
}

// updateRecorder collects every published snapshot.
type updateRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *updateRecorder) record(_ string, msg model.Message) {
	r.mu.Lock()
	r.texts = append(r.texts, msg.Text)
	r.mu.Unlock()
}

func (r *updateRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

// =============================================================================
// FIXTURE
// =============================================================================

type fixture struct {
	orch     *Orchestrator
	store    *storage.SessionStore
	streamer *fakeStreamer
	updates  *updateRecorder
}

func newFixture(t *testing.T, streamer *fakeStreamer) *fixture {
	t.Helper()
	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	store := storage.NewSessionStore(kv, nil)
	updates := &updateRecorder{}
	orch := NewOrchestrator(streamer, store, nil, updates.record, nil)
	return &fixture{orch: orch, store: store, streamer: streamer, updates: updates}
}

func (f *fixture) newSession(t *testing.T) *model.ChatSession {
	t.Helper()
	sess, err := f.store.Create("u1", model.ModelFast, model.PersonaStandard)
	require.NoError(t, err)
	return sess
}

func frag(text string) gemini.Fragment {
	return gemini.Fragment{TextDelta: text}
}

// =============================================================================
// SUBMIT TESTS
// =============================================================================

func TestSubmit_AccumulatesFragmentsInOrder(t *testing.T) {
	f := newFixture(t, &fakeStreamer{fragments: []gemini.Fragment{frag("Hel"), frag("lo")}})
	sess := f.newSession(t)

	require.NoError(t, f.orch.Submit(context.Background(), sess, "Hi", nil, Options{}))

	last := sess.LastMessage()
	require.NotNil(t, last)
	require.Equal(t, model.RoleModel, last.Role)
	require.Equal(t, "Hello", last.Text)
	require.False(t, last.IsError)

	// Every observed intermediate state is a prefix of the final text, in
	// order: "", "Hel", "Hello".
	for _, text := range f.updates.snapshot() {
		require.True(t, strings.HasPrefix("Hello", text),
			"observed out-of-order intermediate state %q", text)
	}

	// Final state is persisted.
	saved := f.store.Get("u1", sess.ID)
	require.NotNil(t, saved)
	require.Equal(t, "Hello", saved.LastMessage().Text)
}

func TestSubmit_PersistsUserTurnBeforeStreaming(t *testing.T) {
	streamer := &fakeStreamer{err: errors.New("boom")}
	f := newFixture(t, streamer)
	sess := f.newSession(t)

	require.NoError(t, f.orch.Submit(context.Background(), sess, "precious input", nil, Options{}))

	saved := f.store.Get("u1", sess.ID)
	require.NotNil(t, saved)

	var userTexts []string
	for _, msg := range saved.Messages {
		if msg.Role == model.RoleUser {
			userTexts = append(userTexts, msg.Text)
		}
	}
	require.Equal(t, []string{"precious input"}, userTexts,
		"the user turn must survive a failed stream")
}

func TestSubmit_FailurePreservesPartialOutput(t *testing.T) {
	streamer := &fakeStreamer{
		fragments: []gemini.Fragment{frag("Partial")},
		err:       errors.New("connection reset"),
	}
	f := newFixture(t, streamer)
	sess := f.newSession(t)

	require.NoError(t, f.orch.Submit(context.Background(), sess, "Hi", nil, Options{}))

	saved := f.store.Get("u1", sess.ID)
	require.NotNil(t, saved)
	last := saved.LastMessage()
	require.Equal(t, "Partial"+streamErrorSuffix, last.Text)
	require.True(t, last.IsError)
}

func TestSubmit_StreamBusy(t *testing.T) {
	streamer := &fakeStreamer{
		fragments: []gemini.Fragment{frag("slow")},
		opened:    make(chan struct{}),
		gate:      make(chan struct{}),
	}
	f := newFixture(t, streamer)
	sess := f.newSession(t)

	done := make(chan error, 1)
	go func() {
		done <- f.orch.Submit(context.Background(), sess, "first", nil, Options{})
	}()

	<-streamer.opened
	require.ErrorIs(t, f.orch.Submit(context.Background(), sess, "second", nil, Options{}), ErrStreamBusy)

	close(streamer.gate)
	require.NoError(t, <-done)

	// Terminal state releases the session for the next turn.
	require.Equal(t, StateIdle, f.orch.State(sess.ID))
}

func TestSubmit_OtherSessionsNotBlocked(t *testing.T) {
	streamer := &fakeStreamer{
		fragments: []gemini.Fragment{frag("slow")},
		opened:    make(chan struct{}),
		gate:      make(chan struct{}),
	}
	f := newFixture(t, streamer)
	busy := f.newSession(t)
	other := f.newSession(t)

	done := make(chan error, 1)
	go func() {
		done <- f.orch.Submit(context.Background(), busy, "first", nil, Options{})
	}()
	<-streamer.opened

	// A different session streams (and deletes) independently.
	quick := NewOrchestrator(&fakeStreamer{fragments: []gemini.Fragment{frag("ok")}}, f.store, nil, nil, nil)
	require.NoError(t, quick.Submit(context.Background(), other, "hi", nil, Options{}))
	f.store.Delete("u1", other.ID)

	close(streamer.gate)
	require.NoError(t, <-done)

	// The in-flight stream finalized into the session it was opened for.
	saved := f.store.Get("u1", busy.ID)
	require.NotNil(t, saved)
	require.Equal(t, "slow", saved.LastMessage().Text)
}

func TestSubmit_InterimTitleOnFirstExchange(t *testing.T) {
	f := newFixture(t, &fakeStreamer{fragments: []gemini.Fragment{frag("sure")}})
	sess := f.newSession(t)

	long := strings.Repeat("x", 40)
	require.NoError(t, f.orch.Submit(context.Background(), sess, long, nil, Options{}))
	require.Equal(t, strings.Repeat("x", 30)+"...", sess.Title)

	// A second exchange leaves the title alone.
	f.streamer.mu.Lock()
	f.streamer.fragments = []gemini.Fragment{frag("again")}
	f.streamer.mu.Unlock()
	require.NoError(t, f.orch.Submit(context.Background(), sess, "another question", nil, Options{}))
	require.Equal(t, strings.Repeat("x", 30)+"...", sess.Title)
}

func TestSubmit_HistoryExcludesNewTurnAndPlaceholder(t *testing.T) {
	streamer := &fakeStreamer{fragments: []gemini.Fragment{frag("answer")}}
	f := newFixture(t, streamer)
	sess := f.newSession(t)

	require.NoError(t, f.orch.Submit(context.Background(), sess, "question", nil, Options{}))

	req := streamer.request()
	require.Equal(t, "question", req.Text)
	// History carries only the seeded welcome message.
	require.Len(t, req.History, 1)
	require.Equal(t, storage.WelcomeMessageID, req.History[0].ID)
}

func TestSubmit_GroundingLastWriteWins(t *testing.T) {
	first := &model.GroundingMetadata{GroundingChunks: []model.GroundingChunk{
		{Web: &model.GroundingWeb{URI: "https://a.example", Title: "A"}},
	}}
	second := &model.GroundingMetadata{GroundingChunks: []model.GroundingChunk{
		{Web: &model.GroundingWeb{URI: "https://b.example", Title: "B"}},
	}}
	streamer := &fakeStreamer{fragments: []gemini.Fragment{
		{TextDelta: "one", Grounding: first},
		{TextDelta: " two"}, // empty delta must not clear citations
		{TextDelta: " three", Grounding: second},
	}}
	f := newFixture(t, streamer)
	sess := f.newSession(t)

	require.NoError(t, f.orch.Submit(context.Background(), sess, "Hi", nil, Options{WebSearch: true}))

	last := sess.LastMessage()
	require.NotNil(t, last.GroundingMetadata)
	require.Len(t, last.GroundingMetadata.GroundingChunks, 1)
	require.Equal(t, "https://b.example", last.GroundingMetadata.GroundingChunks[0].Web.URI,
		"a later non-empty grounding delta replaces the earlier one in full")
}

func TestSubmit_CancellationPersistsPartial(t *testing.T) {
	streamer := &cancelAwareStreamer{
		fragments: []gemini.Fragment{frag("partial thought")},
		emitted:   make(chan struct{}),
	}
	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	store := storage.NewSessionStore(kv, nil)
	orch := NewOrchestrator(streamer, store, nil, nil, nil)

	sess, err := store.Create("u1", model.ModelFast, model.PersonaStandard)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- orch.Submit(ctx, sess, "Hi", nil, Options{})
	}()

	<-streamer.emitted
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Submit did not return after cancellation")
	}

	saved := store.Get("u1", sess.ID)
	require.NotNil(t, saved)
	last := saved.LastMessage()
	require.Equal(t, "partial thought", last.Text,
		"accumulated text must be persisted on cancellation")
	require.False(t, last.IsError, "cancellation is not a remote failure")
}

// =============================================================================
// REGENERATE TESTS
// =============================================================================

func TestRegenerate_ReplacesLastModelMessage(t *testing.T) {
	streamer := &fakeStreamer{fragments: []gemini.Fragment{frag("Hello")}}
	f := newFixture(t, streamer)
	sess := f.newSession(t)
	sess.Messages = nil // start from a bare session for exact counting

	require.NoError(t, f.orch.Submit(context.Background(), sess, "Hi", nil, Options{}))

	streamer.mu.Lock()
	streamer.fragments = []gemini.Fragment{frag("Hello again")}
	streamer.mu.Unlock()

	require.NoError(t, f.orch.Regenerate(context.Background(), sess, Options{}))

	var users, models int
	for _, msg := range sess.Messages {
		switch msg.Role {
		case model.RoleUser:
			users++
		case model.RoleModel:
			models++
		}
	}
	require.Equal(t, 1, users, "regenerate must not duplicate the user turn")
	require.Equal(t, 1, models)
	require.Equal(t, "Hello again", sess.LastMessage().Text)

	// The replay sends the same user text, with the removed response
	// excluded from history.
	req := streamer.request()
	require.Equal(t, "Hi", req.Text)
	for _, msg := range req.History {
		require.NotEqual(t, "Hello", msg.Text, "removed model message must not be replayed as history")
	}
}

func TestRegenerate_InvalidState(t *testing.T) {
	f := newFixture(t, &fakeStreamer{})
	sess := f.newSession(t)

	// Last message is the model welcome, but no user turn precedes it.
	require.ErrorIs(t, f.orch.Regenerate(context.Background(), sess, Options{}), ErrInvalidState)

	// Last message authored by the user.
	sess.Messages = append(sess.Messages, model.NewMessage(model.RoleUser, "Hi"))
	require.ErrorIs(t, f.orch.Regenerate(context.Background(), sess, Options{}), ErrInvalidState)

	// Empty session.
	sess.Messages = nil
	require.ErrorIs(t, f.orch.Regenerate(context.Background(), sess, Options{}), ErrInvalidState)
}

func TestRegenerate_FailureUsesRegenerateSuffix(t *testing.T) {
	streamer := &fakeStreamer{fragments: []gemini.Fragment{frag("Hello")}}
	f := newFixture(t, streamer)
	sess := f.newSession(t)

	require.NoError(t, f.orch.Submit(context.Background(), sess, "Hi", nil, Options{}))

	streamer.mu.Lock()
	streamer.fragments = []gemini.Fragment{frag("redo")}
	streamer.err = errors.New("boom")
	streamer.mu.Unlock()

	require.NoError(t, f.orch.Regenerate(context.Background(), sess, Options{}))

	last := sess.LastMessage()
	require.Equal(t, "redo"+regenerateErrorSuffix, last.Text)
	require.True(t, last.IsError)
}

// =============================================================================
// STATE TESTS
// =============================================================================

func TestState_IdleWhenNoTurnActive(t *testing.T) {
	f := newFixture(t, &fakeStreamer{})
	require.Equal(t, StateIdle, f.orch.State("anything"))
}

func TestState_String(t *testing.T) {
	states := map[State]string{
		StateIdle:       "idle",
		StateSending:    "sending",
		StateStreaming:  "streaming",
		StateFinalizing: "finalizing",
		StateCompleted:  "completed",
		StateFailed:     "failed",
	}
	for s, want := range states {
		require.Equal(t, want, s.String())
	}
}
