package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
	"github.com/navikt/amt-deltaker-sub001/pkg/apperrors"
)

type toggleSet map[string]bool

func (t toggleSet) Enabled(name string) bool { return t[name] }

type EngineSuite struct {
	suite.Suite

	engine *Engine
	now    time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.engine = New(toggleSet{ToggleReaktivering: true})
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func (s *EngineSuite) deltaker(status deltaker.StatusType) deltaker.Deltaker {
	start := s.now.AddDate(0, 0, -14)
	slutt := s.now.AddDate(0, 0, 30)
	prosent := 100.0
	return deltaker.Deltaker{
		ID:                 uuid.New(),
		DeltakerlisteID:    uuid.New(),
		Personident:        "12345678901",
		Startdato:          &start,
		Sluttdato:          &slutt,
		Deltakelsesprosent: &prosent,
		Status:             deltaker.NewStatus(status, nil, s.now.AddDate(0, 0, -14), s.now.AddDate(0, 0, -14)),
		Kilde:              deltaker.KildeKomet,
		SistEndret:         s.now.AddDate(0, 0, -1),
	}
}

func (s *EngineSuite) mengde(prosent float64, gyldigFra time.Time) deltaker.Deltakelsesmengde {
	return deltaker.Deltakelsesmengde{
		ID:                 uuid.New(),
		Deltakelsesprosent: &prosent,
		GyldigFra:          gyldigFra,
		Opprettet:          s.now.AddDate(0, 0, -20),
	}
}

func (s *EngineSuite) TestEndreStartdato() {
	s.Run("future start date keeps a waiting deltaker waiting", func() {
		d := s.deltaker(deltaker.StatusVenterPaOppstart)
		fremtid := s.now.AddDate(0, 0, 7)

		out := s.engine.Apply(d, nil, deltaker.EndreStartdato{Startdato: &fremtid}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Equal(deltaker.StatusVenterPaOppstart, out.Deltaker.Status.Type)
		// No new status row when the type is unchanged.
		s.Equal(d.Status.ID, out.Deltaker.Status.ID)
		s.Equal(fremtid, *out.Deltaker.Startdato)
	})

	s.Run("past start date moves a waiting deltaker to deltar", func() {
		d := s.deltaker(deltaker.StatusVenterPaOppstart)
		igar := s.now.AddDate(0, 0, -1)

		out := s.engine.Apply(d, nil, deltaker.EndreStartdato{Startdato: &igar}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Equal(deltaker.StatusDeltar, out.Deltaker.Status.Type)
		s.NotEqual(d.Status.ID, out.Deltaker.Status.ID)
	})

	s.Run("moving the start later recomputes the rate from the history", func() {
		d := s.deltaker(deltaker.StatusVenterPaOppstart)
		mengder := []deltaker.Deltakelsesmengde{
			s.mengde(100, s.now.AddDate(0, 0, -14)),
			s.mengde(50, s.now.AddDate(0, 0, 5)),
		}
		senere := s.now.AddDate(0, 0, 10)

		out := s.engine.Apply(d, mengder, deltaker.EndreStartdato{Startdato: &senere}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Require().NotNil(out.Deltaker.Deltakelsesprosent)
		s.Equal(50.0, *out.Deltaker.Deltakelsesprosent)
	})

	s.Run("rate recomputation carries percent and days per week", func() {
		d := s.deltaker(deltaker.StatusVenterPaOppstart)
		fortito := 42.0
		toDager := float32(2)
		mengder := []deltaker.Deltakelsesmengde{
			s.mengde(100, s.now.AddDate(0, 0, -14)),
			{
				ID:                 uuid.New(),
				Deltakelsesprosent: &fortito,
				DagerPerUke:        &toDager,
				GyldigFra:          s.now.AddDate(0, 0, 10),
				Opprettet:          s.now.AddDate(0, 0, -20),
			},
		}
		senere := s.now.AddDate(0, 0, 30)

		out := s.engine.Apply(d, mengder, deltaker.EndreStartdato{Startdato: &senere}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Require().NotNil(out.Deltaker.Deltakelsesprosent)
		s.Equal(42.0, *out.Deltaker.Deltakelsesprosent)
		s.Require().NotNil(out.Deltaker.DagerPerUke)
		s.Equal(float32(2), *out.Deltaker.DagerPerUke)
	})

	s.Run("clearing the start date keeps the rate", func() {
		d := s.deltaker(deltaker.StatusVenterPaOppstart)
		mengder := []deltaker.Deltakelsesmengde{
			s.mengde(50, s.now.AddDate(0, 0, -30)),
		}

		out := s.engine.Apply(d, mengder, deltaker.EndreStartdato{Startdato: nil}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Nil(out.Deltaker.Startdato)
		s.Equal(deltaker.StatusVenterPaOppstart, out.Deltaker.Status.Type)
		s.Require().NotNil(out.Deltaker.Deltakelsesprosent)
		s.Equal(100.0, *out.Deltaker.Deltakelsesprosent)
	})

	s.Run("moving the start earlier leaves the rate untouched", func() {
		d := s.deltaker(deltaker.StatusVenterPaOppstart)
		mengder := []deltaker.Deltakelsesmengde{
			s.mengde(50, s.now.AddDate(0, 0, -30)),
		}
		tidligere := s.now.AddDate(0, 0, -20)

		out := s.engine.Apply(d, mengder, deltaker.EndreStartdato{Startdato: &tidligere}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Equal(100.0, *out.Deltaker.Deltakelsesprosent)
	})

	s.Run("unchanged start date rejects", func() {
		d := s.deltaker(deltaker.StatusVenterPaOppstart)
		out := s.engine.Apply(d, nil, deltaker.EndreStartdato{Startdato: d.Startdato}, s.now)
		s.Equal(KindRejected, out.Kind)
		s.True(apperrors.Is(out.Reason, apperrors.CodeBadRequest))
	})

	s.Run("rejects for a deltaker that is not enrolled", func() {
		for _, status := range []deltaker.StatusType{
			deltaker.StatusKladd, deltaker.StatusHarSluttet, deltaker.StatusSoktInn,
		} {
			d := s.deltaker(status)
			ny := s.now.AddDate(0, 0, 3)
			out := s.engine.Apply(d, nil, deltaker.EndreStartdato{Startdato: &ny}, s.now)
			s.Equal(KindRejected, out.Kind, "status %s", status)
		}
	})
}

func (s *EngineSuite) TestEndreSluttdato() {
	s.Run("past end date ends an active participation", func() {
		d := s.deltaker(deltaker.StatusDeltar)
		igar := s.now.AddDate(0, 0, -1)

		out := s.engine.Apply(d, nil, deltaker.EndreSluttdato{Sluttdato: igar}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Equal(deltaker.StatusHarSluttet, out.Deltaker.Status.Type)
	})

	s.Run("future end date revives an ended participation", func() {
		d := s.deltaker(deltaker.StatusHarSluttet)
		fremtid := s.now.AddDate(0, 0, 14)

		out := s.engine.Apply(d, nil, deltaker.EndreSluttdato{Sluttdato: fremtid}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Equal(deltaker.StatusDeltar, out.Deltaker.Status.Type)
	})

	s.Run("rejects outside deltar and har sluttet", func() {
		d := s.deltaker(deltaker.StatusVenterPaOppstart)
		out := s.engine.Apply(d, nil, deltaker.EndreSluttdato{Sluttdato: s.now}, s.now)
		s.Equal(KindRejected, out.Kind)
	})
}

func (s *EngineSuite) TestEndreDeltakelsesmengde() {
	s.Run("immediate change updates the rate and records the entry", func() {
		d := s.deltaker(deltaker.StatusDeltar)
		femti := 50.0

		out := s.engine.Apply(d, nil, deltaker.EndreDeltakelsesmengde{
			Deltakelsesprosent: &femti,
			GyldigFra:          s.now,
		}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Equal(50.0, *out.Deltaker.Deltakelsesprosent)
		s.Require().NotNil(out.NyMengde)
		s.Equal(50.0, *out.NyMengde.Deltakelsesprosent)
	})

	s.Run("future change is deferred and leaves today's rate alone", func() {
		d := s.deltaker(deltaker.StatusDeltar)
		femti := 50.0

		out := s.engine.Apply(d, nil, deltaker.EndreDeltakelsesmengde{
			Deltakelsesprosent: &femti,
			GyldigFra:          s.now.AddDate(0, 0, 14),
		}, s.now)
		s.Require().Equal(KindDeferred, out.Kind)
		s.Equal(100.0, *out.Deltaker.Deltakelsesprosent)
		s.Require().NotNil(out.NyMengde)
	})

	s.Run("unchanged rate at the effective date rejects", func() {
		d := s.deltaker(deltaker.StatusDeltar)
		hundre := 100.0
		mengder := []deltaker.Deltakelsesmengde{s.mengde(100, s.now.AddDate(0, 0, -14))}

		out := s.engine.Apply(d, mengder, deltaker.EndreDeltakelsesmengde{
			Deltakelsesprosent: &hundre,
			GyldigFra:          s.now,
		}, s.now)
		s.Equal(KindRejected, out.Kind)
	})

	s.Run("rejects for an ended participation", func() {
		d := s.deltaker(deltaker.StatusFullfort)
		femti := 50.0
		out := s.engine.Apply(d, nil, deltaker.EndreDeltakelsesmengde{
			Deltakelsesprosent: &femti,
			GyldigFra:          s.now,
		}, s.now)
		s.Equal(KindRejected, out.Kind)
	})
}

func (s *EngineSuite) TestAvsluttDeltakelse() {
	s.Run("immediate end transitions now", func() {
		d := s.deltaker(deltaker.StatusDeltar)
		out := s.engine.Apply(d, nil, deltaker.AvsluttDeltakelse{
			Aarsak: &deltaker.Aarsak{Type: deltaker.AarsakFattJobb},
		}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Equal(deltaker.StatusHarSluttet, out.Deltaker.Status.Type)
		s.Require().NotNil(out.Deltaker.Status.Aarsak)
		s.Equal(deltaker.AarsakFattJobb, out.Deltaker.Status.Aarsak.Type)
	})

	s.Run("future end is deferred with the terminal status carried", func() {
		d := s.deltaker(deltaker.StatusDeltar)
		fremtid := s.now.AddDate(0, 0, 14)

		out := s.engine.Apply(d, nil, deltaker.AvsluttDeltakelse{Sluttdato: &fremtid}, s.now)
		s.Require().Equal(KindDeferred, out.Kind)
		s.Equal(deltaker.StatusDeltar, out.Deltaker.Status.Type)
		s.Require().NotNil(out.NesteStatus)
		s.Equal(deltaker.StatusHarSluttet, out.NesteStatus.Type)
		s.Equal(fremtid, out.NesteStatus.GyldigFra)
	})

	s.Run("rejects when not participating", func() {
		for _, status := range []deltaker.StatusType{
			deltaker.StatusVenterPaOppstart, deltaker.StatusHarSluttet,
		} {
			d := s.deltaker(status)
			out := s.engine.Apply(d, nil, deltaker.AvsluttDeltakelse{}, s.now)
			s.Equal(KindRejected, out.Kind, "status %s", status)
		}
	})
}

func (s *EngineSuite) TestIkkeAktuellOgForleng() {
	s.Run("ikke aktuell carries the reason", func() {
		d := s.deltaker(deltaker.StatusVenterPaOppstart)
		out := s.engine.Apply(d, nil, deltaker.IkkeAktuell{
			Aarsak: deltaker.Aarsak{Type: deltaker.AarsakIkkeMott},
		}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Equal(deltaker.StatusIkkeAktuell, out.Deltaker.Status.Type)
	})

	s.Run("forleng requires a strictly later end date", func() {
		d := s.deltaker(deltaker.StatusDeltar)
		out := s.engine.Apply(d, nil, deltaker.ForlengDeltakelse{Sluttdato: *d.Sluttdato}, s.now)
		s.Equal(KindRejected, out.Kind)

		senere := d.Sluttdato.AddDate(0, 0, 30)
		out = s.engine.Apply(d, nil, deltaker.ForlengDeltakelse{Sluttdato: senere}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Equal(senere, *out.Deltaker.Sluttdato)
	})
}

func (s *EngineSuite) TestEndreSluttarsak() {
	s.Run("replaces the reason and keeps the validity start", func() {
		d := s.deltaker(deltaker.StatusHarSluttet)
		aarsak := deltaker.Aarsak{Type: deltaker.AarsakSykdom}
		d.Status.Aarsak = &deltaker.Aarsak{Type: deltaker.AarsakAnnet}

		out := s.engine.Apply(d, nil, deltaker.EndreSluttarsak{Aarsak: aarsak}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Equal(deltaker.AarsakSykdom, out.Deltaker.Status.Aarsak.Type)
		s.Equal(d.Status.GyldigFra, out.Deltaker.Status.GyldigFra)
	})

	s.Run("rejects for an active participation", func() {
		d := s.deltaker(deltaker.StatusDeltar)
		out := s.engine.Apply(d, nil, deltaker.EndreSluttarsak{
			Aarsak: deltaker.Aarsak{Type: deltaker.AarsakSykdom},
		}, s.now)
		s.Equal(KindRejected, out.Kind)
	})
}

func (s *EngineSuite) TestReaktiverDeltakelse() {
	s.Run("toggle off rejects", func() {
		eng := New(toggleSet{})
		d := s.deltaker(deltaker.StatusHarSluttet)
		out := eng.Apply(d, nil, deltaker.ReaktiverDeltakelse{Reaktiveringsdato: s.now}, s.now)
		s.Equal(KindRejected, out.Kind)
	})

	s.Run("clears the end date and re-derives the status", func() {
		d := s.deltaker(deltaker.StatusHarSluttet)
		out := s.engine.Apply(d, nil, deltaker.ReaktiverDeltakelse{Reaktiveringsdato: s.now}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Nil(out.Deltaker.Sluttdato)
		// Start date lies in the past, so the deltaker participates again.
		s.Equal(deltaker.StatusDeltar, out.Deltaker.Status.Type)
	})

	s.Run("rejects from a non-reversible status", func() {
		d := s.deltaker(deltaker.StatusFeilregistrert)
		out := s.engine.Apply(d, nil, deltaker.ReaktiverDeltakelse{Reaktiveringsdato: s.now}, s.now)
		s.Equal(KindRejected, out.Kind)
	})
}

func (s *EngineSuite) TestBakgrunnsinformasjonOgInnhold() {
	s.Run("unchanged bakgrunnsinformasjon rejects", func() {
		d := s.deltaker(deltaker.StatusDeltar)
		info := "trenger tilrettelegging"
		d.Bakgrunnsinformasjon = &info

		out := s.engine.Apply(d, nil, deltaker.EndreBakgrunnsinformasjon{Bakgrunnsinformasjon: info}, s.now)
		s.Equal(KindRejected, out.Kind)
	})

	s.Run("innhold is replaced wholesale", func() {
		d := s.deltaker(deltaker.StatusDeltar)
		out := s.engine.Apply(d, nil, deltaker.EndreInnhold{
			Innhold: deltaker.Deltakelsesinnhold{
				Innhold: []deltaker.Innhold{{Tekst: "Arbeidspraksis", Innholdskode: "type1", Valgt: true}},
			},
		}, s.now)
		s.Require().Equal(KindAccepted, out.Kind)
		s.Require().NotNil(out.Deltaker.Innhold)
		s.Len(out.Deltaker.Innhold.Innhold, 1)
	})
}
