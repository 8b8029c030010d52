package prefs

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultSystem is used for users without a stored preference.
const DefaultSystem = "DiceBot"

var (
	ErrMalformed   = errors.New("malformed preference store")
	ErrEmptySystem = errors.New("empty system id")
)

// Repository persists the whole user -> system mapping at once.
// Load must return an empty map when nothing was saved yet.
type Repository interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, systems map[string]string) error
}

// Service owns the in-memory preference mapping and mirrors every
// mutation to its repository before returning.
type Service struct {
	repo    Repository
	mu      sync.Mutex
	systems map[string]string
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, systems: make(map[string]string)}
}

// Load replaces the in-memory mapping with the repository contents.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo == nil {
		return nil
	}
	systems, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	if systems == nil {
		systems = make(map[string]string)
	}
	s.systems = systems
	return nil
}

func (s *Service) SystemFor(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sys, ok := s.systems[userID]; ok && sys != "" {
		return sys
	}
	return DefaultSystem
}

func (s *Service) Set(ctx context.Context, userID, system string) error {
	if system == "" {
		return ErrEmptySystem
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.systems[userID]
	s.systems[userID] = system
	if err := s.persistLocked(ctx); err != nil {
		if had {
			s.systems[userID] = prev
		} else {
			delete(s.systems, userID)
		}
		return err
	}
	return nil
}

// Reset drops the stored preference. Resetting a user without one still
// persists, which keeps the call idempotent from the caller's side.
func (s *Service) Reset(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.systems[userID]
	delete(s.systems, userID)
	if err := s.persistLocked(ctx); err != nil {
		if had {
			s.systems[userID] = prev
		}
		return err
	}
	return nil
}

func (s *Service) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.systems))
	for k, v := range s.systems {
		out[k] = v
	}
	return out
}

func (s *Service) persistLocked(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	snapshot := make(map[string]string, len(s.systems))
	for k, v := range s.systems {
		snapshot[k] = v
	}
	if err := s.repo.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
