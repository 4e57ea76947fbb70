// Package fake provides a scripted suggest.Suggester for tests and demos.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/chriscow/meetsl-go/pkg/suggest"
)

// Result is one scripted outcome.
type Result struct {
	Suggestion suggest.Suggestion
	Err        error
	Delay      time.Duration
}

// Suggester returns scripted results in order, cycling when exhausted. With
// no script it answers with suggest.Fallback.
type Suggester struct {
	mu       sync.Mutex
	results  []Result
	requests []suggest.Request
	canceled int
}

// New creates a scripted suggester.
func New(results ...Result) *Suggester {
	return &Suggester{results: results}
}

// Suggest records req and plays the next scripted result.
func (f *Suggester) Suggest(ctx context.Context, req suggest.Request) (suggest.Suggestion, error) {
	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, req)
	var res Result
	scripted := len(f.results) > 0
	if scripted {
		res = f.results[n%len(f.results)]
	}
	f.mu.Unlock()

	if res.Delay > 0 {
		select {
		case <-time.After(res.Delay):
		case <-ctx.Done():
			f.mu.Lock()
			f.canceled++
			f.mu.Unlock()
			return suggest.Suggestion{}, ctx.Err()
		}
	}

	if !scripted {
		return suggest.Fallback(req.Tokens), nil
	}
	if res.Err != nil {
		return suggest.Suggestion{}, res.Err
	}
	return res.Suggestion, nil
}

// Requests returns a copy of the requests received.
func (f *Suggester) Requests() []suggest.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]suggest.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Canceled reports how many calls were aborted through their context.
func (f *Suggester) Canceled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled
}
