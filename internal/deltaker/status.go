package deltaker

import (
	"time"

	"github.com/google/uuid"
)

// StatusType enumerates the lifecycle states of a deltaker.
type StatusType string

const (
	StatusKladd             StatusType = "KLADD"
	StatusUtkastTilPamelding StatusType = "UTKAST_TIL_PAMELDING"
	StatusAvbruttUtkast     StatusType = "AVBRUTT_UTKAST"
	StatusVenterPaOppstart  StatusType = "VENTER_PA_OPPSTART"
	StatusDeltar            StatusType = "DELTAR"
	StatusHarSluttet        StatusType = "HAR_SLUTTET"
	StatusIkkeAktuell       StatusType = "IKKE_AKTUELL"
	StatusFeilregistrert    StatusType = "FEILREGISTRERT"
	StatusAvbrutt           StatusType = "AVBRUTT"
	StatusFullfort          StatusType = "FULLFORT"
	StatusSoktInn           StatusType = "SOKT_INN"
	StatusVurderes          StatusType = "VURDERES"
	StatusVenteliste        StatusType = "VENTELISTE"
)

// AarsakType enumerates why a deltaker left or was found not relevant.
type AarsakType string

const (
	AarsakSykdom            AarsakType = "SYKDOM"
	AarsakFattJobb          AarsakType = "FATT_JOBB"
	AarsakTrengerAnnenStotte AarsakType = "TRENGER_ANNEN_STOTTE"
	AarsakUtdanning         AarsakType = "UTDANNING"
	AarsakIkkeMott          AarsakType = "IKKE_MOTT"
	AarsakAnnet             AarsakType = "ANNET"
)

// Aarsak is the reason attached to a terminal or not-relevant status.
type Aarsak struct {
	Type        AarsakType `json:"type"`
	Beskrivelse *string    `json:"beskrivelse"`
}

// DeltakerStatus is one validity interval of a deltaker's status. Superseded
// rows are retained with a closed interval; the current row has GyldigTil nil.
type DeltakerStatus struct {
	ID        uuid.UUID  `json:"id"`
	Type      StatusType `json:"type"`
	Aarsak    *Aarsak    `json:"aarsak"`
	GyldigFra time.Time  `json:"gyldigFra"`
	GyldigTil *time.Time `json:"gyldigTil"`
	Opprettet time.Time  `json:"opprettet"`
}

var avsluttendeStatuser = map[StatusType]bool{
	StatusHarSluttet:     true,
	StatusIkkeAktuell:    true,
	StatusFeilregistrert: true,
	StatusAvbrutt:        true,
	StatusFullfort:       true,
	StatusAvbruttUtkast:  true,
}

// Avsluttende reports whether the status type is terminal.
func (t StatusType) Avsluttende() bool {
	return avsluttendeStatuser[t]
}

// VenterPaOppstartEllerDeltar reports whether the deltaker is enrolled,
// either awaiting start or actively participating.
func (t StatusType) VenterPaOppstartEllerDeltar() bool {
	return t == StatusVenterPaOppstart || t == StatusDeltar
}

// NewStatus builds a current status row effective from gyldigFra.
func NewStatus(statusType StatusType, aarsak *Aarsak, gyldigFra time.Time, now time.Time) DeltakerStatus {
	return DeltakerStatus{
		ID:        uuid.New(),
		Type:      statusType,
		Aarsak:    aarsak,
		GyldigFra: gyldigFra,
		GyldigTil: nil,
		Opprettet: now,
	}
}

// StatusForStartdato derives the status a deltaker should hold given its
// start date: a start date in the future leaves it awaiting start, otherwise
// it is participating. This is the forward-looking rule shared by start-date
// changes and reactivation.
func StatusForStartdato(startdato *time.Time, now time.Time) StatusType {
	if startdato == nil || startdato.After(now) {
		return StatusVenterPaOppstart
	}
	return StatusDeltar
}
