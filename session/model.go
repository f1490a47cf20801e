package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"shortcut-panel/view"
)

// ErrNoElement is returned when a client event names no element of the page.
var ErrNoElement = errors.New("no element matches selector")

// Session is one browser page hosting the shortcuts widget. Its document is
// only touched under mu, one event at a time.
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastActive time.Time
	Connected  bool

	mu            sync.Mutex
	doc           *view.Document
	ctrl          *view.Controller
	inputSelector string
	unsub         []func()
	closed        bool

	outMu    sync.Mutex
	outChan  chan []view.Patch
	kickChan chan struct{}
	resync   bool

	done      chan struct{}
	closeOnce sync.Once
}

type sessionJSON struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	LastActive time.Time  `json:"last_active"`
	Connected  bool       `json:"connected"`
	View       view.State `json:"view"`
}

func (s *Session) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	out := sessionJSON{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastActive,
		View:       s.ctrl.State(),
	}
	s.mu.Unlock()
	s.outMu.Lock()
	out.Connected = s.Connected
	s.outMu.Unlock()
	return json.Marshal(out)
}

// SetClient registers a channel to receive live patches and queues a full
// snapshot on it first. A previously connected client is kicked: its kick
// channel is closed so ws.go can close that connection. The returned kick
// channel is closed if this client is itself later displaced.
func (s *Session) SetClient(ch chan []view.Patch) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outMu.Lock()
	defer s.outMu.Unlock()

	if s.kickChan != nil {
		close(s.kickChan)
	}
	kick := make(chan struct{})
	s.kickChan = kick
	s.outChan = ch
	s.Connected = true
	s.resync = false

	select {
	case ch <- s.ctrl.Snapshot():
	default:
		s.resync = true
	}
	return kick
}

// ClearClient is called when a connection ends. It only updates session state
// if ch is still the current owner, so a displaced connection cannot clear a
// newer one. It always closes ch so the pump goroutine exits.
func (s *Session) ClearClient(ch chan []view.Patch) {
	s.outMu.Lock()
	owned := s.outChan == ch
	if owned {
		s.outChan = nil
		s.Connected = false
		s.kickChan = nil
	}
	s.outMu.Unlock()
	close(ch)
}

// Done returns a channel that is closed when the session is killed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Click dispatches a click at the first element matching selector.
func (s *Session) Click(selector string) error {
	var err error
	s.apply(func() {
		el := s.doc.Query(selector)
		if el == nil {
			err = ErrNoElement
			return
		}
		s.doc.Click(el)
	})
	return err
}

// Input mirrors the client's text field into the document. The client
// already shows the value, so nothing is sent back.
func (s *Session) Input(value string, cursor int) error {
	var err error
	s.apply(func() {
		field := s.doc.Query(s.inputSelector)
		if field == nil {
			err = ErrNoElement
			return
		}
		field.SetValue(value)
		field.SetSelectionRange(cursor, cursor)
		s.doc.TakePatches()
	})
	return err
}

// State returns the controller's render state.
func (s *Session) State() view.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.State()
}

// Snapshot returns the patches that rebuild the widget on a fresh client.
func (s *Session) Snapshot() []view.Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Snapshot()
}

// apply runs fn against the document and pushes the resulting patches to
// the attached client. When the client's buffer was full on an earlier
// push, a full snapshot is sent instead.
func (s *Session) apply(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	fn()
	s.LastActive = time.Now()

	patches := s.doc.TakePatches()
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.outChan == nil {
		return
	}
	if s.resync {
		patches = s.ctrl.Snapshot()
	}
	if len(patches) == 0 {
		return
	}
	select {
	case s.outChan <- patches:
		s.resync = false
	default:
		s.resync = true
	}
}

func (s *Session) idle() (time.Duration, bool) {
	s.mu.Lock()
	last := s.LastActive
	s.mu.Unlock()
	s.outMu.Lock()
	connected := s.Connected
	s.outMu.Unlock()
	return time.Since(last), connected
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		unsub := s.unsub
		s.unsub = nil
		s.closed = true
		s.ctrl.Destroy()
		s.mu.Unlock()

		for _, off := range unsub {
			off()
		}
		close(s.done)
	})
}
