package stage

import (
	"context"
	"errors"
	"sync"
)

// ErrStreamClosed is returned from Emitter methods once the consumer has
// closed the stream. Producers must return it promptly so their deferred
// cleanup runs.
var ErrStreamClosed = errors.New("step stream closed")

// Step is the quantum of progress an attempt yields. A nil Result is a
// progress record; a non-nil Result is the terminal verdict for TestID.
type Step struct {
	TestID string
	Result *bool
}

// Emitter is handed to a stream's producer to yield steps.
type Emitter struct {
	steps chan<- Step
	done  <-chan struct{}
}

// Emit yields one step, suspending the producer until the consumer pulls it.
func (e *Emitter) Emit(s Step) error {
	select {
	case e.steps <- s:
		return nil
	case <-e.done:
		return ErrStreamClosed
	}
}

// Progress yields a progress record for id.
func (e *Emitter) Progress(id string) error {
	return e.Emit(Step{TestID: id})
}

// Finish yields the terminal record for id.
func (e *Emitter) Finish(id string, passed bool) error {
	return e.Emit(Step{TestID: id, Result: &passed})
}

// Stream is a finite, non-restartable step sequence backed by a producer
// goroutine. The consumer must call Close on every exit path; Close
// terminates the producer and waits for its cleanup to finish.
type Stream struct {
	steps     chan Step
	done      chan struct{}
	finished  chan struct{}
	closeOnce sync.Once
	err       error // producer error; readable once steps is closed
}

// NewStream starts fn in its own goroutine. Steps are handed over on an
// unbuffered channel, so fn suspends at every yield until the consumer
// pulls; the remote operations between yields on two streams therefore run
// concurrently in wall-clock terms.
func NewStream(fn func(*Emitter) error) *Stream {
	s := &Stream{
		steps:    make(chan Step),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	em := &Emitter{steps: s.steps, done: s.done}
	go func() {
		defer close(s.finished)
		err := fn(em)
		if errors.Is(err, ErrStreamClosed) {
			err = nil
		}
		s.err = err
		close(s.steps)
	}()
	return s
}

// Next pulls the next step. ok is false once the stream is exhausted; err
// then carries the producer's error, if any.
func (s *Stream) Next(ctx context.Context) (step Step, ok bool, err error) {
	select {
	case st, open := <-s.steps:
		if !open {
			return Step{}, false, s.err
		}
		return st, true, nil
	case <-ctx.Done():
		return Step{}, false, ctx.Err()
	}
}

// Close terminates the producer and waits until it has returned. Safe to
// call repeatedly and after exhaustion.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.finished
}
