package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
	"github.com/navikt/amt-deltaker-sub001/pkg/platform/sentinel"
)

// InMemory implements Store for tests.
type InMemory struct {
	mu        sync.RWMutex
	deltakere map[uuid.UUID]deltaker.Deltaker
	statuser  map[uuid.UUID][]deltaker.DeltakerStatus
	mengder   map[uuid.UUID][]deltaker.Deltakelsesmengde
}

func NewInMemory() *InMemory {
	return &InMemory{
		deltakere: make(map[uuid.UUID]deltaker.Deltaker),
		statuser:  make(map[uuid.UUID][]deltaker.DeltakerStatus),
		mengder:   make(map[uuid.UUID][]deltaker.Deltakelsesmengde),
	}
}

func (s *InMemory) Get(_ context.Context, id uuid.UUID) (deltaker.Deltaker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deltakere[id]
	if !ok {
		return deltaker.Deltaker{}, sentinel.ErrNotFound
	}
	return d, nil
}

func (s *InMemory) ListForDeltakerliste(_ context.Context, deltakerlisteID uuid.UUID) ([]deltaker.Deltaker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []deltaker.Deltaker
	for _, d := range s.deltakere {
		if d.DeltakerlisteID == deltakerlisteID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *InMemory) Upsert(_ context.Context, d deltaker.Deltaker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuser := s.statuser[d.ID]
	seen := false
	for i := range statuser {
		if statuser[i].ID == d.Status.ID {
			seen = true
			continue
		}
		if statuser[i].GyldigTil == nil {
			til := d.SistEndret
			statuser[i].GyldigTil = &til
		}
	}
	if !seen {
		statuser = append(statuser, d.Status)
	}
	s.statuser[d.ID] = statuser
	s.deltakere[d.ID] = d
	return nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deltakere, id)
	delete(s.statuser, id)
	delete(s.mengder, id)
	return nil
}

// Statuser exposes the full status history for invariant assertions in tests.
func (s *InMemory) Statuser(deltakerID uuid.UUID) []deltaker.DeltakerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]deltaker.DeltakerStatus, len(s.statuser[deltakerID]))
	copy(out, s.statuser[deltakerID])
	return out
}

func (s *InMemory) GetMengder(_ context.Context, deltakerID uuid.UUID) ([]deltaker.Deltakelsesmengde, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]deltaker.Deltakelsesmengde, len(s.mengder[deltakerID]))
	copy(out, s.mengder[deltakerID])
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GyldigFra.Equal(out[j].GyldigFra) {
			return out[i].GyldigFra.Before(out[j].GyldigFra)
		}
		return out[i].Opprettet.Before(out[j].Opprettet)
	})
	return out, nil
}

func (s *InMemory) UpsertMengde(_ context.Context, m deltaker.Deltakelsesmengde) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mengder := s.mengder[m.DeltakerID]
	for i := range mengder {
		if mengder[i].GyldigFra.Equal(m.GyldigFra) {
			mengder[i] = m
			s.mengder[m.DeltakerID] = mengder
			return nil
		}
	}
	s.mengder[m.DeltakerID] = append(mengder, m)
	return nil
}
