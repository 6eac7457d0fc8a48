package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
	"github.com/navikt/amt-deltaker-sub001/pkg/apperrors"
)

// Toggles exposes feature switches to the engine. Passed in explicitly so
// transition rules stay testable without process-wide state.
type Toggles interface {
	Enabled(name string) bool
}

// Toggle names consulted by the engine.
const (
	ToggleReaktivering = "reaktivering"
)

// Engine decides status transitions for a deltaker given a change request.
// All decisions are total functions of (current status, request kind,
// computed effective date); unmodeled combinations reject. Apply performs no
// I/O; persistence of the outcome is the service's responsibility.
type Engine struct {
	toggles Toggles
}

func New(toggles Toggles) *Engine {
	return &Engine{toggles: toggles}
}

// Apply evaluates endring against the deltaker's current state and mengde
// history and produces exactly one Outcome.
func (e *Engine) Apply(d deltaker.Deltaker, mengder []deltaker.Deltakelsesmengde, endring deltaker.Endring, now time.Time) Outcome {
	switch endr := endring.(type) {
	case deltaker.EndreStartdato:
		return e.endreStartdato(d, mengder, endr, now)
	case deltaker.EndreSluttdato:
		return e.endreSluttdato(d, endr, now)
	case deltaker.EndreDeltakelsesmengde:
		return e.endreDeltakelsesmengde(d, mengder, endr, now)
	case deltaker.EndreBakgrunnsinformasjon:
		return e.endreBakgrunnsinformasjon(d, endr, now)
	case deltaker.EndreInnhold:
		return e.endreInnhold(d, endr, now)
	case deltaker.IkkeAktuell:
		return e.ikkeAktuell(d, endr, now)
	case deltaker.ForlengDeltakelse:
		return e.forlengDeltakelse(d, endr, now)
	case deltaker.AvsluttDeltakelse:
		return e.avsluttDeltakelse(d, endr, now)
	case deltaker.EndreSluttarsak:
		return e.endreSluttarsak(d, endr, now)
	case deltaker.ReaktiverDeltakelse:
		return e.reaktiverDeltakelse(d, endr, now)
	default:
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			fmt.Sprintf("ukjent endringstype %T", endring)))
	}
}

// endreStartdato sets or replaces the start date (and optionally the end
// date). When the start date moves strictly later, participation-rate fields
// are recomputed from the mengde history at the new start date; when it moves
// earlier or is cleared, they are left untouched.
func (e *Engine) endreStartdato(d deltaker.Deltaker, mengder []deltaker.Deltakelsesmengde, endr deltaker.EndreStartdato, now time.Time) Outcome {
	if !d.Status.Type.VenterPaOppstartEllerDeltar() {
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			"kan ikke endre startdato for deltaker som ikke venter på oppstart eller deltar"))
	}
	if equalDate(d.Startdato, endr.Startdato) {
		return rejected(apperrors.New(apperrors.CodeBadRequest, "startdato er uendret"))
	}

	flyttetSenere := d.Startdato != nil && endr.Startdato != nil && endr.Startdato.After(*d.Startdato)

	d.Startdato = endr.Startdato
	if endr.Sluttdato != nil {
		d.Sluttdato = endr.Sluttdato
	}

	if flyttetSenere {
		if mengde := deltaker.ResolveMengde(mengder, *endr.Startdato); mengde != nil {
			d.Deltakelsesprosent = mengde.Deltakelsesprosent
			d.DagerPerUke = mengde.DagerPerUke
		}
	}

	nyStatus := deltaker.StatusForStartdato(d.Startdato, now)
	if nyStatus != d.Status.Type {
		d.Status = deltaker.NewStatus(nyStatus, nil, now, now)
	}
	d.SistEndret = now
	return accepted(d)
}

func (e *Engine) endreSluttdato(d deltaker.Deltaker, endr deltaker.EndreSluttdato, now time.Time) Outcome {
	if d.Status.Type != deltaker.StatusDeltar && d.Status.Type != deltaker.StatusHarSluttet {
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			"kan bare endre sluttdato for deltaker som deltar eller har sluttet"))
	}
	if d.Sluttdato != nil && d.Sluttdato.Equal(endr.Sluttdato) {
		return rejected(apperrors.New(apperrors.CodeBadRequest, "sluttdato er uendret"))
	}

	sluttdato := endr.Sluttdato
	d.Sluttdato = &sluttdato
	switch {
	case d.Status.Type == deltaker.StatusDeltar && sluttdato.Before(now):
		d.Status = deltaker.NewStatus(deltaker.StatusHarSluttet, nil, now, now)
	case d.Status.Type == deltaker.StatusHarSluttet && !sluttdato.Before(now):
		d.Status = deltaker.NewStatus(deltaker.StatusDeltar, nil, now, now)
	}
	d.SistEndret = now
	return accepted(d)
}

// endreDeltakelsesmengde appends a rate record. A record effective in the
// future is recorded without touching today's rate fields.
func (e *Engine) endreDeltakelsesmengde(d deltaker.Deltaker, mengder []deltaker.Deltakelsesmengde, endr deltaker.EndreDeltakelsesmengde, now time.Time) Outcome {
	if d.Status.Type.Avsluttende() {
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			"kan ikke endre deltakelsesmengde for avsluttet deltaker"))
	}
	gjeldende := deltaker.ResolveMengde(mengder, endr.GyldigFra)
	if gjeldende != nil &&
		equalFloat64(gjeldende.Deltakelsesprosent, endr.Deltakelsesprosent) &&
		equalFloat32(gjeldende.DagerPerUke, endr.DagerPerUke) {
		return rejected(apperrors.New(apperrors.CodeBadRequest, "deltakelsesmengde er uendret"))
	}

	nyMengde := &deltaker.Deltakelsesmengde{
		ID:                 uuid.New(),
		DeltakerID:         d.ID,
		Deltakelsesprosent: endr.Deltakelsesprosent,
		DagerPerUke:        endr.DagerPerUke,
		GyldigFra:          endr.GyldigFra,
		Opprettet:          now,
	}

	d.SistEndret = now
	if endr.GyldigFra.After(now) {
		out := deferred(d)
		out.NyMengde = nyMengde
		return out
	}

	d.Deltakelsesprosent = endr.Deltakelsesprosent
	d.DagerPerUke = endr.DagerPerUke
	out := accepted(d)
	out.NyMengde = nyMengde
	return out
}

func (e *Engine) endreBakgrunnsinformasjon(d deltaker.Deltaker, endr deltaker.EndreBakgrunnsinformasjon, now time.Time) Outcome {
	if d.Status.Type.Avsluttende() {
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			"kan ikke endre bakgrunnsinformasjon for avsluttet deltaker"))
	}
	if d.Bakgrunnsinformasjon != nil && *d.Bakgrunnsinformasjon == endr.Bakgrunnsinformasjon {
		return rejected(apperrors.New(apperrors.CodeBadRequest, "bakgrunnsinformasjon er uendret"))
	}
	info := endr.Bakgrunnsinformasjon
	d.Bakgrunnsinformasjon = &info
	d.SistEndret = now
	return accepted(d)
}

func (e *Engine) endreInnhold(d deltaker.Deltaker, endr deltaker.EndreInnhold, now time.Time) Outcome {
	if d.Status.Type.Avsluttende() {
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			"kan ikke endre innhold for avsluttet deltaker"))
	}
	innhold := endr.Innhold
	d.Innhold = &innhold
	d.SistEndret = now
	return accepted(d)
}

func (e *Engine) ikkeAktuell(d deltaker.Deltaker, endr deltaker.IkkeAktuell, now time.Time) Outcome {
	if d.Status.Type.Avsluttende() {
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			"deltakelsen er allerede avsluttet"))
	}
	aarsak := endr.Aarsak
	d.Status = deltaker.NewStatus(deltaker.StatusIkkeAktuell, &aarsak, now, now)
	d.SistEndret = now
	return accepted(d)
}

func (e *Engine) forlengDeltakelse(d deltaker.Deltaker, endr deltaker.ForlengDeltakelse, now time.Time) Outcome {
	if d.Status.Type.Avsluttende() {
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			"kan ikke forlenge avsluttet deltakelse"))
	}
	if d.Sluttdato != nil && !endr.Sluttdato.After(*d.Sluttdato) {
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			"ny sluttdato må være etter gjeldende sluttdato"))
	}
	sluttdato := endr.Sluttdato
	d.Sluttdato = &sluttdato
	d.SistEndret = now
	return accepted(d)
}

// avsluttDeltakelse ends an active participation. An end date in the future
// is recorded as deferred: the deltaker keeps participating until then, and
// the derived terminal status is carried on the outcome.
func (e *Engine) avsluttDeltakelse(d deltaker.Deltaker, endr deltaker.AvsluttDeltakelse, now time.Time) Outcome {
	if d.Status.Type.Avsluttende() {
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			"deltakelsen er allerede avsluttet"))
	}
	if d.Status.Type != deltaker.StatusDeltar {
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			"kan bare avslutte deltakelse for deltaker som deltar"))
	}

	sluttdato := now
	if endr.Sluttdato != nil {
		sluttdato = *endr.Sluttdato
	}
	d.Sluttdato = &sluttdato
	d.SistEndret = now

	if sluttdato.After(now) {
		neste := deltaker.NewStatus(deltaker.StatusHarSluttet, endr.Aarsak, sluttdato, now)
		out := deferred(d)
		out.NesteStatus = &neste
		return out
	}

	d.Status = deltaker.NewStatus(deltaker.StatusHarSluttet, endr.Aarsak, now, now)
	return accepted(d)
}

// endreSluttarsak corrects the recorded reason on an ended participation.
// Only statuses that carry a reason qualify.
func (e *Engine) endreSluttarsak(d deltaker.Deltaker, endr deltaker.EndreSluttarsak, now time.Time) Outcome {
	switch d.Status.Type {
	case deltaker.StatusHarSluttet, deltaker.StatusAvbrutt, deltaker.StatusIkkeAktuell:
	default:
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			"kan bare endre sluttårsak for avsluttet deltakelse"))
	}
	if d.Status.Aarsak != nil && d.Status.Aarsak.Type == endr.Aarsak.Type &&
		equalStringPtr(d.Status.Aarsak.Beskrivelse, endr.Aarsak.Beskrivelse) {
		return rejected(apperrors.New(apperrors.CodeBadRequest, "sluttårsak er uendret"))
	}
	aarsak := endr.Aarsak
	d.Status = deltaker.NewStatus(d.Status.Type, &aarsak, d.Status.GyldigFra, now)
	d.SistEndret = now
	return accepted(d)
}

// reaktiverDeltakelse reopens a participation from a reversible terminal
// status. The new status follows the same forward-looking rule as start-date
// changes, evaluated at the reactivation date.
func (e *Engine) reaktiverDeltakelse(d deltaker.Deltaker, endr deltaker.ReaktiverDeltakelse, now time.Time) Outcome {
	if e.toggles != nil && !e.toggles.Enabled(ToggleReaktivering) {
		return rejected(apperrors.New(apperrors.CodeBadRequest, "reaktivering er ikke aktivert"))
	}
	switch d.Status.Type {
	case deltaker.StatusHarSluttet, deltaker.StatusIkkeAktuell, deltaker.StatusAvbrutt:
	default:
		return rejected(apperrors.New(apperrors.CodeBadRequest,
			"kan bare reaktivere deltakelse som har sluttet, er avbrutt eller ikke aktuell"))
	}

	d.Sluttdato = nil
	nyStatus := deltaker.StatusForStartdato(d.Startdato, endr.Reaktiveringsdato)
	d.Status = deltaker.NewStatus(nyStatus, nil, endr.Reaktiveringsdato, now)
	d.SistEndret = now
	return accepted(d)
}

func equalDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalFloat64(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalFloat32(a, b *float32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
