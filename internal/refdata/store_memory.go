package refdata

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/navikt/amt-deltaker-sub001/pkg/platform/sentinel"
)

// InMemoryStore implements Store for tests.
type InMemoryStore struct {
	mu             sync.RWMutex
	deltakerlister map[uuid.UUID]Deltakerliste
	tiltakstyper   map[uuid.UUID]Tiltakstype
	ansatte        map[uuid.UUID]NavAnsatt
	enheter        map[uuid.UUID]NavEnhet
	arrangorer     map[uuid.UUID]Arrangor
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		deltakerlister: make(map[uuid.UUID]Deltakerliste),
		tiltakstyper:   make(map[uuid.UUID]Tiltakstype),
		ansatte:        make(map[uuid.UUID]NavAnsatt),
		enheter:        make(map[uuid.UUID]NavEnhet),
		arrangorer:     make(map[uuid.UUID]Arrangor),
	}
}

func (s *InMemoryStore) UpsertDeltakerliste(_ context.Context, d Deltakerliste) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deltakerlister[d.ID] = d
	return nil
}

func (s *InMemoryStore) GetDeltakerliste(_ context.Context, id uuid.UUID) (Deltakerliste, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deltakerlister[id]
	if !ok {
		return Deltakerliste{}, sentinel.ErrNotFound
	}
	return d, nil
}

func (s *InMemoryStore) DeleteDeltakerliste(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deltakerlister, id)
	return nil
}

func (s *InMemoryStore) UpsertTiltakstype(_ context.Context, t Tiltakstype) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiltakstyper[t.ID] = t
	return nil
}

func (s *InMemoryStore) GetTiltakstype(_ context.Context, id uuid.UUID) (Tiltakstype, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiltakstyper[id]
	if !ok {
		return Tiltakstype{}, sentinel.ErrNotFound
	}
	return t, nil
}

func (s *InMemoryStore) UpsertNavAnsatt(_ context.Context, a NavAnsatt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ansatte[a.ID] = a
	return nil
}

func (s *InMemoryStore) GetNavAnsatt(_ context.Context, id uuid.UUID) (NavAnsatt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.ansatte[id]
	if !ok {
		return NavAnsatt{}, sentinel.ErrNotFound
	}
	return a, nil
}

func (s *InMemoryStore) DeleteNavAnsatt(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ansatte, id)
	return nil
}

func (s *InMemoryStore) UpsertNavEnhet(_ context.Context, e NavEnhet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enheter[e.ID] = e
	return nil
}

func (s *InMemoryStore) GetNavEnhet(_ context.Context, id uuid.UUID) (NavEnhet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.enheter[id]
	if !ok {
		return NavEnhet{}, sentinel.ErrNotFound
	}
	return e, nil
}

func (s *InMemoryStore) UpsertArrangor(_ context.Context, a Arrangor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arrangorer[a.ID] = a
	return nil
}

func (s *InMemoryStore) GetArrangor(_ context.Context, id uuid.UUID) (Arrangor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.arrangorer[id]
	if !ok {
		return Arrangor{}, sentinel.ErrNotFound
	}
	return a, nil
}

func (s *InMemoryStore) DeleteArrangor(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.arrangorer, id)
	return nil
}
