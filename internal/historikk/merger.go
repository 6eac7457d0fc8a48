package historikk

import (
	"sort"
	"time"
)

// variantPrecedence breaks ties between entries sharing an event time. Lower
// ranks sort first.
var variantPrecedence = map[EntryType]int{
	EntryTypeVedtak:                       0,
	EntryTypeEndring:                      1,
	EntryTypeForslag:                      2,
	EntryTypeEndringFraArrangor:           3,
	EntryTypeEndringFraTiltakskoordinator: 4,
	EntryTypeImportertFraArena:            5,
}

// Merge produces one view of all changes to a deltaker, ordered descending by
// each entry's own event time. Ties are broken by variant precedence, then by
// identifier, so the result is deterministic and stable under permutation of
// the inputs. Proposals still awaiting an answer, and approved proposals
// (visible through the caseworker change they produced), are excluded.
//
// Pure function; no entry is ever filtered by age or count.
func Merge(
	vedtak []Vedtak,
	endringer []DeltakerEndring,
	forslag []Forslag,
	fraArrangor []EndringFraArrangor,
	fraKoordinator []EndringFraTiltakskoordinator,
	importert *ImportertFraArena,
) []Entry {
	entries := make([]Entry, 0,
		len(vedtak)+len(endringer)+len(forslag)+len(fraArrangor)+len(fraKoordinator)+1)

	for _, v := range vedtak {
		entries = append(entries, v)
	}
	for _, e := range endringer {
		entries = append(entries, e)
	}
	for _, f := range forslag {
		if f.Status.Type.Terminal() && f.Status.Type != ForslagGodkjent {
			entries = append(entries, f)
		}
	}
	for _, e := range fraArrangor {
		entries = append(entries, e)
	}
	for _, e := range fraKoordinator {
		entries = append(entries, e)
	}
	if importert != nil {
		entries = append(entries, *importert)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].Tidspunkt(), entries[j].Tidspunkt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		pi, pj := variantPrecedence[entries[i].EntryType()], variantPrecedence[entries[j].EntryType()]
		if pi != pj {
			return pi < pj
		}
		return entries[i].EntryID().String() < entries[j].EntryID().String()
	})

	return entries
}

// InnsoktDato is the first sign-up date for a deltaker: the legacy import's
// embedded original date when present, otherwise the earliest decision
// creation time. Nil when neither exists.
func InnsoktDato(vedtak []Vedtak, importert *ImportertFraArena) *time.Time {
	if importert != nil {
		d := importert.InnsoktDato
		return &d
	}
	var earliest *time.Time
	for _, v := range vedtak {
		opprettet := v.Opprettet
		if earliest == nil || opprettet.Before(*earliest) {
			earliest = &opprettet
		}
	}
	return earliest
}

// ForsteVedtakFattet is the earliest ratification time among decisions that
// have been ratified. Nil when no decision is ratified.
func ForsteVedtakFattet(vedtak []Vedtak) *time.Time {
	var earliest *time.Time
	for _, v := range vedtak {
		if v.Fattet == nil {
			continue
		}
		fattet := *v.Fattet
		if earliest == nil || fattet.Before(*earliest) {
			earliest = &fattet
		}
	}
	return earliest
}
