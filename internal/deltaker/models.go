// Package deltaker holds the participant aggregate and the rules governing
// its lifecycle: the status state machine, the time-indexed participation
// rate resolver and the typed change requests applied by the engine.
package deltaker

import (
	"time"

	"github.com/google/uuid"
)

// Kilde identifies the system a deltaker originates from.
type Kilde string

const (
	KildeKomet Kilde = "KOMET"
	KildeArena Kilde = "ARENA"
)

// Deltaker is a person enrolled in or applying for a labor-market program.
// Exactly one DeltakerStatus row is current (GyldigTil == nil) at any time.
type Deltaker struct {
	ID                       uuid.UUID           `json:"id"`
	DeltakerlisteID          uuid.UUID           `json:"deltakerlisteId"`
	Personident              string              `json:"personident"`
	Startdato                *time.Time          `json:"startdato"`
	Sluttdato                *time.Time          `json:"sluttdato"`
	Deltakelsesprosent       *float64            `json:"deltakelsesprosent"`
	DagerPerUke              *float32            `json:"dagerPerUke"`
	Bakgrunnsinformasjon     *string             `json:"bakgrunnsinformasjon"`
	Innhold                  *Deltakelsesinnhold `json:"deltakelsesinnhold"`
	Status                   DeltakerStatus      `json:"status"`
	Kilde                    Kilde               `json:"kilde"`
	SistEndret               time.Time           `json:"sistEndret"`
	ErManueltDeltMedArrangor bool                `json:"erManueltDeltMedArrangor"`
}

// Deltakelsesinnhold is the selected curriculum for a deltaker.
type Deltakelsesinnhold struct {
	Ledetekst *string   `json:"ledetekst"`
	Innhold   []Innhold `json:"innhold"`
}

// Innhold is one selectable curriculum element.
type Innhold struct {
	Tekst        string  `json:"tekst"`
	Innholdskode string  `json:"innholdskode"`
	Valgt        bool    `json:"valgt"`
	Beskrivelse  *string `json:"beskrivelse"`
}

// Deltakelsesmengde is one time-indexed participation-rate record. The full
// history for a deltaker is append-only and unique by GyldigFra.
type Deltakelsesmengde struct {
	ID                 uuid.UUID `json:"id"`
	DeltakerID         uuid.UUID `json:"deltakerId"`
	Deltakelsesprosent *float64  `json:"deltakelsesprosent"`
	DagerPerUke        *float32  `json:"dagerPerUke"`
	GyldigFra          time.Time `json:"gyldigFra"`
	Opprettet          time.Time `json:"opprettet"`
}
