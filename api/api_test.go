package api

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helpline-ai/helpline/internal/agent"
	"github.com/helpline-ai/helpline/internal/provider"
	"github.com/helpline-ai/helpline/internal/session"
)

// fakeStore is an in-memory SessionStore for handler tests.
type fakeStore struct {
	sessions map[uuid.UUID]*session.Session
	turns    map[uuid.UUID][]provider.Turn

	createErr error
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*session.Session),
		turns:    make(map[uuid.UUID][]provider.Turn),
	}
}

func (f *fakeStore) Create(_ context.Context, title string) (*session.Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	now := time.Now()
	sess := &session.Session{ID: uuid.New(), Title: title, CreatedAt: now, UpdatedAt: now}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*session.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	return sess, nil
}

func (f *fakeStore) List(_ context.Context, limit, offset int) ([]session.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []session.Session
	for _, sess := range f.sessions {
		out = append(out, *sess)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	delete(f.sessions, id)
	delete(f.turns, id)
	return nil
}

func (f *fakeStore) History(_ context.Context, id uuid.UUID) ([]provider.Turn, error) {
	return f.turns[id], nil
}

// stubRunner returns a canned agent result, recording the call.
type stubRunner struct {
	result *agent.Result
	err    error

	gotSession uuid.UUID
	gotMessage string
}

func (s *stubRunner) Run(_ context.Context, sessionID uuid.UUID, message string) (*agent.Result, error) {
	s.gotSession = sessionID
	s.gotMessage = message
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}
