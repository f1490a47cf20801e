package shortcut

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Emitter is an ordered list of handlers for one event. A handler that
// panics is recovered and logged; the remaining handlers still run.
type Emitter[T any] struct {
	name   string
	logger *zap.Logger

	mu       sync.Mutex
	nextID   uint64
	handlers []handlerEntry[T]
}

type handlerEntry[T any] struct {
	id uint64
	fn func(T)
}

// NewEmitter returns an emitter whose recovered panics are logged under name.
func NewEmitter[T any](name string, logger *zap.Logger) *Emitter[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter[T]{name: name, logger: logger}
}

// Subscribe appends fn and returns a func that removes it again.
// A nil fn is ignored.
func (e *Emitter[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, handlerEntry[T]{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, h := range e.handlers {
		if h.id == id {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

// Emit calls every handler in registration order. Handlers added or removed
// during Emit take effect on the next call.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	handlers := make([]handlerEntry[T], len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	for _, h := range handlers {
		e.call(h.fn, v)
	}
}

func (e *Emitter[T]) call(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("shortcut event handler failed",
				zap.String("event", e.name),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn(v)
}

// Len returns the number of registered handlers.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}

// Clear removes every handler.
func (e *Emitter[T]) Clear() {
	e.mu.Lock()
	e.handlers = nil
	e.mu.Unlock()
}
