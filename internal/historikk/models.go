// Package historikk merges every change made to a deltaker, regardless of
// which actor made it, into one time-ordered view. Six sources feed the
// merge: caseworker changes, decisions, provider proposals, provider changes,
// coordinator bulk changes and the one-off legacy import.
package historikk

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
)

// EntryType tags each history source.
type EntryType string

const (
	EntryTypeVedtak                        EntryType = "VEDTAK"
	EntryTypeEndring                       EntryType = "ENDRING"
	EntryTypeForslag                       EntryType = "FORSLAG"
	EntryTypeEndringFraArrangor            EntryType = "ENDRING_FRA_ARRANGOR"
	EntryTypeEndringFraTiltakskoordinator  EntryType = "ENDRING_FRA_TILTAKSKOORDINATOR"
	EntryTypeImportertFraArena             EntryType = "IMPORTERT_FRA_ARENA"
)

// Entry is one element of the merged history.
type Entry interface {
	EntryType() EntryType
	// Tidspunkt is the event time the merge orders by. Each variant carries
	// its own clock field (endret, sistEndret, opprettet or importertDato).
	Tidspunkt() time.Time
	EntryID() uuid.UUID
}

// Vedtak is a caseworker's decision establishing or changing a deltaker's
// terms. DeltakerVedVedtak snapshots the attributes the decision covers.
// Rows are immutable; revisions append new rows.
type Vedtak struct {
	ID                uuid.UUID         `json:"id"`
	DeltakerID        uuid.UUID         `json:"deltakerId"`
	Fattet            *time.Time        `json:"fattet"`
	GyldigTil         *time.Time        `json:"gyldigTil"`
	DeltakerVedVedtak DeltakerVedVedtak `json:"deltakerVedVedtak"`
	FattetAvNav       bool              `json:"fattetAvNav"`
	Opprettet         time.Time         `json:"opprettet"`
	OpprettetAv       string            `json:"opprettetAv"`
	SistEndret        time.Time         `json:"sistEndret"`
	SistEndretAv      string            `json:"sistEndretAv"`
}

// DeltakerVedVedtak is the attribute snapshot captured at decision time.
type DeltakerVedVedtak struct {
	Startdato            *time.Time                   `json:"startdato"`
	Sluttdato            *time.Time                   `json:"sluttdato"`
	Deltakelsesprosent   *float64                     `json:"deltakelsesprosent"`
	DagerPerUke          *float32                     `json:"dagerPerUke"`
	Bakgrunnsinformasjon *string                      `json:"bakgrunnsinformasjon"`
	Innhold              *deltaker.Deltakelsesinnhold `json:"innhold"`
}

// DeltakerEndring is one accepted caseworker change, optionally referencing
// the provider proposal that prompted it.
type DeltakerEndring struct {
	ID            uuid.UUID        `json:"id"`
	DeltakerID    uuid.UUID        `json:"deltakerId"`
	Endring       deltaker.Endring `json:"-"`
	EndretAv      string           `json:"endretAv"`
	EndretAvEnhet string           `json:"endretAvEnhet"`
	Endret        time.Time        `json:"endret"`
	ForslagID     *uuid.UUID       `json:"forslagId"`
}

// ForslagStatusType enumerates the proposal lifecycle.
type ForslagStatusType string

const (
	ForslagVenterPaSvar ForslagStatusType = "VENTER_PA_SVAR"
	ForslagGodkjent     ForslagStatusType = "GODKJENT"
	ForslagAvvist       ForslagStatusType = "AVVIST"
	ForslagErstattet    ForslagStatusType = "ERSTATTET"
	ForslagTilbakekalt  ForslagStatusType = "TILBAKEKALT"
)

// Terminal reports whether the proposal can no longer change.
func (t ForslagStatusType) Terminal() bool {
	return t != ForslagVenterPaSvar
}

// ForslagStatus is the current state of a proposal with the time it was set.
type ForslagStatus struct {
	Type        ForslagStatusType `json:"type"`
	Endret      time.Time         `json:"endret"`
	BesvartAv   *string           `json:"besvartAv"`
	Begrunnelse *string           `json:"begrunnelse"`
}

// Forslag is a provider-originated suggested change awaiting a caseworker's
// answer. Only terminal, non-approved proposals appear in the merged history;
// approved ones surface through the DeltakerEndring they produced.
type Forslag struct {
	ID          uuid.UUID       `json:"id"`
	DeltakerID  uuid.UUID       `json:"deltakerId"`
	OpprettetAv string          `json:"opprettetAv"`
	Opprettet   time.Time       `json:"opprettet"`
	Begrunnelse *string         `json:"begrunnelse"`
	Endring     json.RawMessage `json:"endring"`
	Status      ForslagStatus   `json:"status"`
	SistEndret  time.Time       `json:"sistEndret"`
}

// EndringFraArrangor is a change applied directly by the provider. Currently
// one variant exists: adding start and end dates.
type EndringFraArrangor struct {
	ID               uuid.UUID            `json:"id"`
	DeltakerID       uuid.UUID            `json:"deltakerId"`
	OpprettetAv      string               `json:"opprettetAv"`
	Opprettet        time.Time            `json:"opprettet"`
	LeggTilOppstart  LeggTilOppstartsdato `json:"leggTilOppstartsdato"`
}

// LeggTilOppstartsdato carries the dates the provider set.
type LeggTilOppstartsdato struct {
	Startdato time.Time  `json:"startdato"`
	Sluttdato *time.Time `json:"sluttdato"`
}

// KoordinatorEndringType enumerates coordinator bulk operations.
type KoordinatorEndringType string

const (
	KoordinatorDelMedArrangor   KoordinatorEndringType = "DEL_MED_ARRANGOR"
	KoordinatorTildelPlass      KoordinatorEndringType = "TILDEL_PLASS"
	KoordinatorSettPaVenteliste KoordinatorEndringType = "SETT_PA_VENTELISTE"
	KoordinatorAvslag           KoordinatorEndringType = "AVSLAG"
)

// EndringFraTiltakskoordinator is one coordinator operation applied to a
// deltaker, usually part of a bulk action over a program offering.
type EndringFraTiltakskoordinator struct {
	ID          uuid.UUID              `json:"id"`
	DeltakerID  uuid.UUID              `json:"deltakerId"`
	Type        KoordinatorEndringType `json:"type"`
	Aarsak      *deltaker.Aarsak       `json:"aarsak"`
	Begrunnelse *string                `json:"begrunnelse"`
	EndretAv    string                 `json:"endretAv"`
	Endret      time.Time              `json:"endret"`
}

// ImportertFraArena records the legacy import, at most one per deltaker. The
// embedded InnsoktDato is the original sign-up date from the legacy system.
type ImportertFraArena struct {
	DeltakerID  uuid.UUID `json:"deltakerId"`
	Importert   time.Time `json:"importertDato"`
	InnsoktDato time.Time `json:"innsoktDato"`
}

func (v Vedtak) EntryType() EntryType                       { return EntryTypeVedtak }
func (v Vedtak) Tidspunkt() time.Time                       { return v.SistEndret }
func (v Vedtak) EntryID() uuid.UUID                         { return v.ID }
func (e DeltakerEndring) EntryType() EntryType              { return EntryTypeEndring }
func (e DeltakerEndring) Tidspunkt() time.Time              { return e.Endret }
func (e DeltakerEndring) EntryID() uuid.UUID                { return e.ID }
func (f Forslag) EntryType() EntryType                      { return EntryTypeForslag }
func (f Forslag) Tidspunkt() time.Time                      { return f.SistEndret }
func (f Forslag) EntryID() uuid.UUID                        { return f.ID }
func (e EndringFraArrangor) EntryType() EntryType           { return EntryTypeEndringFraArrangor }
func (e EndringFraArrangor) Tidspunkt() time.Time           { return e.Opprettet }
func (e EndringFraArrangor) EntryID() uuid.UUID             { return e.ID }
func (e EndringFraTiltakskoordinator) EntryType() EntryType { return EntryTypeEndringFraTiltakskoordinator }
func (e EndringFraTiltakskoordinator) Tidspunkt() time.Time { return e.Endret }
func (e EndringFraTiltakskoordinator) EntryID() uuid.UUID   { return e.ID }
func (i ImportertFraArena) EntryType() EntryType            { return EntryTypeImportertFraArena }
func (i ImportertFraArena) Tidspunkt() time.Time            { return i.Importert }
func (i ImportertFraArena) EntryID() uuid.UUID              { return i.DeltakerID }

// MarshalJSON serializes the embedded endring with its explicit tag.
func (e DeltakerEndring) MarshalJSON() ([]byte, error) {
	endring, err := deltaker.MarshalEndring(e.Endring)
	if err != nil {
		return nil, fmt.Errorf("marshal deltakerendring %s: %w", e.ID, err)
	}
	type alias DeltakerEndring
	return json.Marshal(struct {
		alias
		Endring json.RawMessage `json:"endring"`
	}{alias: alias(e), Endring: endring})
}

// UnmarshalJSON restores the tagged endring payload.
func (e *DeltakerEndring) UnmarshalJSON(data []byte) error {
	type alias DeltakerEndring
	aux := struct {
		*alias
		Endring json.RawMessage `json:"endring"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	endring, err := deltaker.UnmarshalEndring(aux.Endring)
	if err != nil {
		return err
	}
	e.Endring = endring
	return nil
}
