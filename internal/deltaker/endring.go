package deltaker

import (
	"encoding/json"
	"fmt"
	"time"
)

// EndringType tags each caseworker change variant for serialization and
// dispatch. The tag table below is the single source of truth; dispatch is
// always an explicit switch, never reflection.
type EndringType string

const (
	EndringTypeEndreStartdato            EndringType = "ENDRE_STARTDATO"
	EndringTypeEndreSluttdato            EndringType = "ENDRE_SLUTTDATO"
	EndringTypeEndreDeltakelsesmengde    EndringType = "ENDRE_DELTAKELSESMENGDE"
	EndringTypeEndreBakgrunnsinformasjon EndringType = "ENDRE_BAKGRUNNSINFORMASJON"
	EndringTypeEndreInnhold              EndringType = "ENDRE_INNHOLD"
	EndringTypeIkkeAktuell               EndringType = "IKKE_AKTUELL"
	EndringTypeForlengDeltakelse         EndringType = "FORLENG_DELTAKELSE"
	EndringTypeAvsluttDeltakelse         EndringType = "AVSLUTT_DELTAKELSE"
	EndringTypeEndreSluttarsak           EndringType = "ENDRE_SLUTTARSAK"
	EndringTypeReaktiverDeltakelse       EndringType = "REAKTIVER_DELTAKELSE"
)

// Endring is one typed caseworker change request.
type Endring interface {
	EndringType() EndringType
}

// EndreStartdato sets or replaces the start date, optionally the end date.
type EndreStartdato struct {
	Startdato   *time.Time `json:"startdato"`
	Sluttdato   *time.Time `json:"sluttdato"`
	Begrunnelse *string    `json:"begrunnelse"`
}

// EndreSluttdato replaces the end date of a participation.
type EndreSluttdato struct {
	Sluttdato   time.Time `json:"sluttdato"`
	Begrunnelse *string   `json:"begrunnelse"`
}

// EndreDeltakelsesmengde adds a participation-rate record effective GyldigFra.
type EndreDeltakelsesmengde struct {
	Deltakelsesprosent *float64   `json:"deltakelsesprosent"`
	DagerPerUke        *float32   `json:"dagerPerUke"`
	GyldigFra          time.Time  `json:"gyldigFra"`
	Begrunnelse        *string    `json:"begrunnelse"`
}

// EndreBakgrunnsinformasjon replaces the background info text.
type EndreBakgrunnsinformasjon struct {
	Bakgrunnsinformasjon string `json:"bakgrunnsinformasjon"`
}

// EndreInnhold replaces the selected curriculum.
type EndreInnhold struct {
	Innhold Deltakelsesinnhold `json:"innhold"`
}

// IkkeAktuell marks the deltaker as not relevant for the program.
type IkkeAktuell struct {
	Aarsak      Aarsak  `json:"aarsak"`
	Begrunnelse *string `json:"begrunnelse"`
}

// ForlengDeltakelse extends the participation to a later end date.
type ForlengDeltakelse struct {
	Sluttdato   time.Time `json:"sluttdato"`
	Begrunnelse *string   `json:"begrunnelse"`
}

// AvsluttDeltakelse ends the participation.
type AvsluttDeltakelse struct {
	Sluttdato   *time.Time `json:"sluttdato"`
	Aarsak      *Aarsak    `json:"aarsak"`
	Begrunnelse *string    `json:"begrunnelse"`
}

// EndreSluttarsak corrects the reason on an already ended participation.
type EndreSluttarsak struct {
	Aarsak      Aarsak  `json:"aarsak"`
	Begrunnelse *string `json:"begrunnelse"`
}

// ReaktiverDeltakelse reopens a participation from a terminal status.
type ReaktiverDeltakelse struct {
	Reaktiveringsdato time.Time `json:"reaktiveringsdato"`
	Begrunnelse       string    `json:"begrunnelse"`
}

func (EndreStartdato) EndringType() EndringType            { return EndringTypeEndreStartdato }
func (EndreSluttdato) EndringType() EndringType            { return EndringTypeEndreSluttdato }
func (EndreDeltakelsesmengde) EndringType() EndringType    { return EndringTypeEndreDeltakelsesmengde }
func (EndreBakgrunnsinformasjon) EndringType() EndringType { return EndringTypeEndreBakgrunnsinformasjon }
func (EndreInnhold) EndringType() EndringType              { return EndringTypeEndreInnhold }
func (IkkeAktuell) EndringType() EndringType               { return EndringTypeIkkeAktuell }
func (ForlengDeltakelse) EndringType() EndringType         { return EndringTypeForlengDeltakelse }
func (AvsluttDeltakelse) EndringType() EndringType         { return EndringTypeAvsluttDeltakelse }
func (EndreSluttarsak) EndringType() EndringType           { return EndringTypeEndreSluttarsak }
func (ReaktiverDeltakelse) EndringType() EndringType       { return EndringTypeReaktiverDeltakelse }

// endringFactories instantiates the payload struct for each tag.
var endringFactories = map[EndringType]func() Endring{
	EndringTypeEndreStartdato:            func() Endring { return &EndreStartdato{} },
	EndringTypeEndreSluttdato:            func() Endring { return &EndreSluttdato{} },
	EndringTypeEndreDeltakelsesmengde:    func() Endring { return &EndreDeltakelsesmengde{} },
	EndringTypeEndreBakgrunnsinformasjon: func() Endring { return &EndreBakgrunnsinformasjon{} },
	EndringTypeEndreInnhold:              func() Endring { return &EndreInnhold{} },
	EndringTypeIkkeAktuell:               func() Endring { return &IkkeAktuell{} },
	EndringTypeForlengDeltakelse:         func() Endring { return &ForlengDeltakelse{} },
	EndringTypeAvsluttDeltakelse:         func() Endring { return &AvsluttDeltakelse{} },
	EndringTypeEndreSluttarsak:           func() Endring { return &EndreSluttarsak{} },
	EndringTypeReaktiverDeltakelse:       func() Endring { return &ReaktiverDeltakelse{} },
}

type endringEnvelope struct {
	Type    EndringType     `json:"@type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalEndring serializes an endring with its type tag.
func MarshalEndring(e Endring) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal endring payload: %w", err)
	}
	return json.Marshal(endringEnvelope{Type: e.EndringType(), Payload: payload})
}

// UnmarshalEndring deserializes a tagged endring.
func UnmarshalEndring(data []byte) (Endring, error) {
	var envelope endringEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal endring envelope: %w", err)
	}
	factory, ok := endringFactories[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("unknown endring type %q", envelope.Type)
	}
	e := factory()
	if err := json.Unmarshal(envelope.Payload, e); err != nil {
		return nil, fmt.Errorf("unmarshal endring payload for %s: %w", envelope.Type, err)
	}
	return derefEndring(e), nil
}

// derefEndring normalizes to value form so type switches over Endring only
// need to handle one shape.
func derefEndring(e Endring) Endring {
	switch v := e.(type) {
	case *EndreStartdato:
		return *v
	case *EndreSluttdato:
		return *v
	case *EndreDeltakelsesmengde:
		return *v
	case *EndreBakgrunnsinformasjon:
		return *v
	case *EndreInnhold:
		return *v
	case *IkkeAktuell:
		return *v
	case *ForlengDeltakelse:
		return *v
	case *AvsluttDeltakelse:
		return *v
	case *EndreSluttarsak:
		return *v
	case *ReaktiverDeltakelse:
		return *v
	default:
		return e
	}
}
