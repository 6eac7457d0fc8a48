package deltaker

import "time"

// ResolveMengde returns the participation-rate record in effect at asOf: the
// entry with the greatest GyldigFra not after asOf, ties broken by the
// greatest Opprettet. Returns nil when no entry has taken effect yet; the
// caller must then keep its prior values rather than defaulting to zero.
//
// Pure function. history does not need to be sorted.
func ResolveMengde(history []Deltakelsesmengde, asOf time.Time) *Deltakelsesmengde {
	var best *Deltakelsesmengde
	for i := range history {
		m := &history[i]
		if m.GyldigFra.After(asOf) {
			continue
		}
		if best == nil ||
			m.GyldigFra.After(best.GyldigFra) ||
			(m.GyldigFra.Equal(best.GyldigFra) && m.Opprettet.After(best.Opprettet)) {
			best = m
		}
	}
	if best == nil {
		return nil
	}
	resolved := *best
	return &resolved
}
