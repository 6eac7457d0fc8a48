package historikk

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/navikt/amt-deltaker-sub001/pkg/platform/sentinel"
)

// InMemory implements Store for tests. Vedtak and forslag keep every
// appended version so the append-only semantics match the database.
type InMemory struct {
	mu            sync.RWMutex
	vedtak        map[uuid.UUID][]Vedtak
	endringer     map[uuid.UUID][]DeltakerEndring
	forslag       map[uuid.UUID][]Forslag
	fraArrangor   map[uuid.UUID][]EndringFraArrangor
	fraKoordinator map[uuid.UUID][]EndringFraTiltakskoordinator
	importert     map[uuid.UUID]ImportertFraArena
}

func NewInMemory() *InMemory {
	return &InMemory{
		vedtak:         make(map[uuid.UUID][]Vedtak),
		endringer:      make(map[uuid.UUID][]DeltakerEndring),
		forslag:        make(map[uuid.UUID][]Forslag),
		fraArrangor:    make(map[uuid.UUID][]EndringFraArrangor),
		fraKoordinator: make(map[uuid.UUID][]EndringFraTiltakskoordinator),
		importert:      make(map[uuid.UUID]ImportertFraArena),
	}
}

func (s *InMemory) AppendVedtak(_ context.Context, v Vedtak) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vedtak[v.ID] = append(s.vedtak[v.ID], v)
	return nil
}

// latestVedtak resolves the newest version of each vedtak id. Callers hold
// at least the read lock.
func (s *InMemory) latestVedtak() []Vedtak {
	var out []Vedtak
	for _, versions := range s.vedtak {
		latest := versions[0]
		for _, v := range versions[1:] {
			if v.SistEndret.After(latest.SistEndret) {
				latest = v
			}
		}
		out = append(out, latest)
	}
	return out
}

func (s *InMemory) ListVedtak(_ context.Context, deltakerID uuid.UUID) ([]Vedtak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Vedtak
	for _, v := range s.latestVedtak() {
		if v.DeltakerID == deltakerID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *InMemory) GetUfattetVedtak(_ context.Context, deltakerID uuid.UUID) (Vedtak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *Vedtak
	for _, v := range s.latestVedtak() {
		if v.DeltakerID != deltakerID || v.Fattet != nil || v.GyldigTil != nil {
			continue
		}
		if found == nil || v.Opprettet.After(found.Opprettet) {
			vv := v
			found = &vv
		}
	}
	if found == nil {
		return Vedtak{}, sentinel.ErrNotFound
	}
	return *found, nil
}

func (s *InMemory) InsertEndring(_ context.Context, e DeltakerEndring) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endringer[e.DeltakerID] = append(s.endringer[e.DeltakerID], e)
	return nil
}

func (s *InMemory) ListEndringer(_ context.Context, deltakerID uuid.UUID) ([]DeltakerEndring, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeltakerEndring, len(s.endringer[deltakerID]))
	copy(out, s.endringer[deltakerID])
	sort.Slice(out, func(i, j int) bool { return out[i].Endret.After(out[j].Endret) })
	return out, nil
}

func (s *InMemory) AppendForslag(_ context.Context, f Forslag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forslag[f.ID] = append(s.forslag[f.ID], f)
	return nil
}

func (s *InMemory) latestForslag(id uuid.UUID) (Forslag, bool) {
	versions := s.forslag[id]
	if len(versions) == 0 {
		return Forslag{}, false
	}
	latest := versions[0]
	for _, f := range versions[1:] {
		if f.SistEndret.After(latest.SistEndret) {
			latest = f
		}
	}
	return latest, true
}

func (s *InMemory) GetForslag(_ context.Context, id uuid.UUID) (Forslag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.latestForslag(id)
	if !ok {
		return Forslag{}, sentinel.ErrNotFound
	}
	return f, nil
}

func (s *InMemory) ListForslag(_ context.Context, deltakerID uuid.UUID) ([]Forslag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Forslag
	for id := range s.forslag {
		f, ok := s.latestForslag(id)
		if ok && f.DeltakerID == deltakerID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// Versjoner exposes every appended version of a forslag for invariant
// assertions in tests.
func (s *InMemory) Versjoner(forslagID uuid.UUID) []Forslag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Forslag, len(s.forslag[forslagID]))
	copy(out, s.forslag[forslagID])
	return out
}

func (s *InMemory) InsertEndringFraArrangor(_ context.Context, e EndringFraArrangor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fraArrangor[e.DeltakerID] = append(s.fraArrangor[e.DeltakerID], e)
	return nil
}

func (s *InMemory) ListEndringFraArrangor(_ context.Context, deltakerID uuid.UUID) ([]EndringFraArrangor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EndringFraArrangor, len(s.fraArrangor[deltakerID]))
	copy(out, s.fraArrangor[deltakerID])
	sort.Slice(out, func(i, j int) bool { return out[i].Opprettet.After(out[j].Opprettet) })
	return out, nil
}

func (s *InMemory) InsertEndringFraTiltakskoordinator(_ context.Context, e EndringFraTiltakskoordinator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fraKoordinator[e.DeltakerID] = append(s.fraKoordinator[e.DeltakerID], e)
	return nil
}

func (s *InMemory) ListEndringFraTiltakskoordinator(_ context.Context, deltakerID uuid.UUID) ([]EndringFraTiltakskoordinator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EndringFraTiltakskoordinator, len(s.fraKoordinator[deltakerID]))
	copy(out, s.fraKoordinator[deltakerID])
	sort.Slice(out, func(i, j int) bool { return out[i].Endret.After(out[j].Endret) })
	return out, nil
}

func (s *InMemory) UpsertImportertFraArena(_ context.Context, i ImportertFraArena) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.importert[i.DeltakerID] = i
	return nil
}

func (s *InMemory) GetImportertFraArena(_ context.Context, deltakerID uuid.UUID) (*ImportertFraArena, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.importert[deltakerID]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (s *InMemory) SlettForDeltaker(_ context.Context, deltakerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, versions := range s.vedtak {
		if len(versions) > 0 && versions[0].DeltakerID == deltakerID {
			delete(s.vedtak, id)
		}
	}
	for id, versions := range s.forslag {
		if len(versions) > 0 && versions[0].DeltakerID == deltakerID {
			delete(s.forslag, id)
		}
	}
	delete(s.endringer, deltakerID)
	delete(s.fraArrangor, deltakerID)
	delete(s.fraKoordinator, deltakerID)
	delete(s.importert, deltakerID)
	return nil
}
