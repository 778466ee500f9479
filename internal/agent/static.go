// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"sync"
)

// StaticBackend answers every request from a fixed reply function and
// records what it was asked. It stands in for a model in tests and offline
// runs.
type StaticBackend struct {
	reply func(Request) (Response, error)

	mu       sync.Mutex
	requests []Request
}

// NewStaticBackend returns a backend that answers with reply.
func NewStaticBackend(reply func(Request) (Response, error)) *StaticBackend {
	return &StaticBackend{reply: reply}
}

// StaticText returns a backend that answers every request with text.
func StaticText(text string) *StaticBackend {
	return NewStaticBackend(func(Request) (Response, error) {
		return Response{Text: text}, nil
	})
}

// Complete records req and returns the reply. A cancelled context wins over
// the reply.
func (s *StaticBackend) Complete(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return s.reply(req)
}

// Requests returns a copy of every request received so far.
func (s *StaticBackend) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Last returns the most recent request, or the zero Request.
func (s *StaticBackend) Last() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}
	}
	return s.requests[len(s.requests)-1]
}
