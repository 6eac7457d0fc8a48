// Package refdata holds the reference entities replicated from upstream
// Kafka topics. The service is not the owner of any of them; rows mirror the
// latest upstream state and tombstones remove them.
package refdata

import (
	"time"

	"github.com/google/uuid"
)

// DeltakerlisteStatus enumerates the offering lifecycle.
type DeltakerlisteStatus string

const (
	DeltakerlistePlanlagt     DeltakerlisteStatus = "PLANLAGT"
	DeltakerlisteGjennomfores DeltakerlisteStatus = "GJENNOMFORES"
	DeltakerlisteAvsluttet    DeltakerlisteStatus = "AVSLUTTET"
	DeltakerlisteAvlyst       DeltakerlisteStatus = "AVLYST"
)

// Oppstartstype says whether participants join on a common date or on
// rolling admission.
type Oppstartstype string

const (
	OppstartFelles  Oppstartstype = "FELLES"
	OppstartLopende Oppstartstype = "LOPENDE"
)

// Deltakerliste is one program offering participants enroll in.
type Deltakerliste struct {
	ID            uuid.UUID           `json:"id"`
	Navn          string              `json:"navn"`
	TiltakstypeID uuid.UUID           `json:"tiltakstypeId"`
	ArrangorID    uuid.UUID           `json:"arrangorId"`
	Status        DeltakerlisteStatus `json:"status"`
	StartDato     *time.Time          `json:"startDato"`
	SluttDato     *time.Time          `json:"sluttDato"`
	Oppstart      Oppstartstype       `json:"oppstart"`
}

// Tiltakstype is the program category an offering belongs to.
type Tiltakstype struct {
	ID          uuid.UUID `json:"id"`
	Navn        string    `json:"navn"`
	Tiltakskode string    `json:"tiltakskode"`
}

// NavAnsatt is a caseworker; NavIdent is the actor id recorded on changes.
type NavAnsatt struct {
	ID       uuid.UUID `json:"id"`
	NavIdent string    `json:"navIdent"`
	Navn     string    `json:"navn"`
}

// NavEnhet is the office a caseworker acts on behalf of.
type NavEnhet struct {
	ID           uuid.UUID `json:"id"`
	Enhetsnummer string    `json:"enhetsnummer"`
	Navn         string    `json:"navn"`
}

// Arrangor is the provider running an offering.
type Arrangor struct {
	ID                   uuid.UUID  `json:"id"`
	Navn                 string     `json:"navn"`
	Organisasjonsnummer  string     `json:"organisasjonsnummer"`
	OverordnetArrangorID *uuid.UUID `json:"overordnetArrangorId"`
}
