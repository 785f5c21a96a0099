package lease

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// NoopGrantor issues grants that do nothing. Used when no system bus is
// available (containers, CI) so the timer core keeps its acquire/release
// choreography without an OS to back it.
type NoopGrantor struct{}

func (NoopGrantor) Acquire(context.Context) (Handle, error) {
	return &noopHandle{id: uuid.NewString(), done: make(chan struct{})}, nil
}

type noopHandle struct {
	id   string
	done chan struct{}
	once sync.Once
}

func (h *noopHandle) ID() string            { return h.id }
func (h *noopHandle) Done() <-chan struct{} { return h.done }
func (h *noopHandle) Release()              { h.once.Do(func() { close(h.done) }) }
