package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository/memrepo"
	"github.com/spec-kit/helpdesk/internal/storage"
)

func newMemTickets(tickets ...domain.Ticket) *memrepo.Tickets {
	return memrepo.NewTickets(tickets...)
}

func newMemUsers(users ...domain.User) *memrepo.Users {
	return memrepo.NewUsers(users...)
}

type memImages struct {
	mu    sync.Mutex
	n     int
	saved []string
	fail  bool
}

func (s *memImages) Save(_ context.Context, u storage.Upload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("disk full")
	}
	s.n++
	ref := fmt.Sprintf("/uploads/%d-%s", s.n, u.Filename())
	s.saved = append(s.saved, ref)
	return ref, nil
}

func (s *memImages) Remove(context.Context, string) error { return nil }

type recordingCleaner struct {
	mu   sync.Mutex
	refs []string
}

func (c *recordingCleaner) Enqueue(_ context.Context, refs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs = append(c.refs, refs...)
}

func (c *recordingCleaner) removed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.refs...)
}

type namedUpload string

func (u namedUpload) Filename() string { return string(u) }

func (u namedUpload) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(u))), nil
}

func uploads(names ...string) []storage.Upload {
	out := make([]storage.Upload, 0, len(names))
	for _, n := range names {
		out = append(out, namedUpload(n))
	}
	return out
}

func strPtr(s string) *string { return &s }
