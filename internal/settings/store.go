package settings

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/footprint/internal/models"
)

var ErrUnknownTheme = errors.New("unknown theme")

// PersistFunc saves settings. It runs synchronously whenever a dispatch
// changes Settings.
type PersistFunc func(models.Settings) error

// Listener observes state transitions.
type Listener func(prev, next State)

// Store serializes dispatches through a queue. Listeners and the persist
// hook run outside the lock, so they may dispatch again; such actions are
// queued and applied after the current one.
type Store struct {
	mu          sync.Mutex
	state       State
	queue       []Action
	dispatching bool
	listeners   map[int]Listener
	nextID      int

	themes  *ThemeRegistry
	persist PersistFunc
	logger  *logrus.Logger
}

// NewStore creates a store. themes and persist may be nil.
func NewStore(initial State, themes *ThemeRegistry, persist PersistFunc, logger *logrus.Logger) *Store {
	return &Store{
		state:     initial,
		listeners: make(map[int]Listener),
		themes:    themes,
		persist:   persist,
		logger:    logger,
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Settings() models.Settings {
	return s.State().Settings
}

// Subscribe registers l and returns a function removing it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Dispatch applies a. When a dispatch is already running, a is queued and
// Dispatch returns nil; errors of queued actions are logged.
func (s *Store) Dispatch(a Action) error {
	s.mu.Lock()
	if s.dispatching {
		s.queue = append(s.queue, a)
		s.mu.Unlock()
		return nil
	}
	s.dispatching = true
	s.mu.Unlock()

	err := s.apply(a)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.dispatching = false
			s.mu.Unlock()
			return err
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if qerr := s.apply(next); qerr != nil {
			s.logger.WithField("action", next.Name()).Warnf("Queued action rejected: %v", qerr)
		}
	}
}

func (s *Store) apply(a Action) error {
	if err := s.checkTheme(a); err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.state
	next, err := Reduce(prev, a)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	if prev.Settings != next.Settings && s.persist != nil {
		if err := s.persist(next.Settings); err != nil {
			s.logger.WithError(err).Warn("Failed to persist settings, keeping them in memory")
		}
	}
	for _, l := range listeners {
		l(prev, next)
	}
	return nil
}

func (s *Store) checkTheme(a Action) error {
	if s.themes == nil {
		return nil
	}
	var id string
	switch a := a.(type) {
	case UpdateSettings:
		if a.Patch.ActiveThemeID == nil {
			return nil
		}
		id = *a.Patch.ActiveThemeID
	case ReplaceSettings:
		id = a.Settings.ActiveThemeID
	default:
		return nil
	}
	if _, ok := s.themes.Get(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTheme, id)
	}
	return nil
}

// Theme resolves the active theme.
func (s *Store) Theme() models.Theme {
	id := s.Settings().ActiveThemeID
	if s.themes == nil {
		return DarkTheme()
	}
	return s.themes.Resolve(id)
}
