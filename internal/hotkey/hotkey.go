// Package hotkey delivers presses of a global key combination to a single
// registered handler.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.design/x/hotkey"
)

var ErrRegistered = errors.New("hotkey handler already registered")

// Handler is called on its own goroutine for each key press
type Handler func()

// Source is a hotkey event source with an explicit lifetime
type Source interface {
	Register(handler Handler) error
	Unregister() error
}

// SystemSource registers a binding with the operating system
type SystemSource struct {
	binding Binding

	mu   sync.Mutex
	hk   *hotkey.Hotkey
	stop chan struct{}
	done chan struct{}
}

// New validates binding and returns an unregistered source
func New(binding Binding) (*SystemSource, error) {
	if err := binding.Validate(); err != nil {
		return nil, err
	}
	return &SystemSource{binding: binding}, nil
}

// Binding returns the key combination this source listens for
func (s *SystemSource) Binding() Binding {
	return s.binding
}

// Register grabs the key combination and starts delivering presses
func (s *SystemSource) Register(handler Handler) error {
	if handler == nil {
		return errors.New("hotkey handler is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hk != nil {
		return ErrRegistered
	}

	mods, key, err := s.binding.resolve()
	if err != nil {
		return err
	}
	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register hotkey %s: %w", s.binding, err)
	}

	s.hk = hk
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(hk.Keydown(), handler, s.stop, s.done)

	slog.Info("hotkey registered", "binding", s.binding.String())
	return nil
}

// Unregister releases the key combination; it is a no-op when not registered
func (s *SystemSource) Unregister() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hk == nil {
		return nil
	}

	close(s.stop)
	<-s.done
	err := s.hk.Unregister()
	s.hk = nil
	if err != nil {
		return fmt.Errorf("unregister hotkey %s: %w", s.binding, err)
	}
	slog.Info("hotkey unregistered", "binding", s.binding.String())
	return nil
}

func (s *SystemSource) loop(events <-chan hotkey.Event, handler Handler, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
			handler()
		case <-stop:
			return
		}
	}
}
