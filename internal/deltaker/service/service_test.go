package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/cache"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/engine"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/store"
	"github.com/navikt/amt-deltaker-sub001/internal/historikk"
	"github.com/navikt/amt-deltaker-sub001/internal/outbox"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/config"
	"github.com/navikt/amt-deltaker-sub001/pkg/apperrors"
	"github.com/navikt/amt-deltaker-sub001/pkg/platform/sentinel"
	txpkg "github.com/navikt/amt-deltaker-sub001/pkg/platform/tx"
)

type toggleSet map[string]bool

func (t toggleSet) Enabled(name string) bool { return t[name] }

type ServiceSuite struct {
	suite.Suite

	deltakere *store.InMemory
	historikk *historikk.InMemory
	outbox    *outbox.InMemoryStore
	service   *Service
	now       time.Time
	actor     Actor
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.deltakere = store.NewInMemory()
	s.historikk = historikk.NewInMemory()
	s.outbox = outbox.NewInMemoryStore()
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.actor = Actor{EndretAv: "Z123456", EndretAvEnhet: "0315"}

	logger := slog.New(slog.DiscardHandler)
	s.service = New(
		s.deltakere,
		s.historikk,
		outbox.NewEnqueuer(s.outbox),
		txpkg.NewMemoryRunner(),
		engine.New(toggleSet{engine.ToggleReaktivering: true}),
		cache.New(nil, logger),
		logger,
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *ServiceSuite) seedDeltaker(status deltaker.StatusType) deltaker.Deltaker {
	opprettet := s.now.Add(-30 * 24 * time.Hour)
	start := s.now.Add(-14 * 24 * time.Hour)
	slutt := s.now.Add(30 * 24 * time.Hour)
	d := deltaker.Deltaker{
		ID:              uuid.New(),
		DeltakerlisteID: uuid.New(),
		Personident:     "12345678901",
		Startdato:       &start,
		Sluttdato:       &slutt,
		Status:          deltaker.NewStatus(status, nil, opprettet, opprettet),
		Kilde:           deltaker.KildeKomet,
		SistEndret:      opprettet,
	}
	s.Require().NoError(s.deltakere.Upsert(context.Background(), d))
	return d
}

func (s *ServiceSuite) TestApply() {
	s.Run("accepted endring persists deltaker, history and outbox message", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusDeltar)
		nySlutt := s.now.Add(60 * 24 * time.Hour)

		got, err := s.service.Apply(context.Background(), d.ID,
			deltaker.ForlengDeltakelse{Sluttdato: nySlutt}, s.actor, nil)
		s.Require().NoError(err)
		s.Require().NotNil(got.Sluttdato)
		s.Equal(nySlutt, *got.Sluttdato)

		lagret, err := s.deltakere.Get(context.Background(), d.ID)
		s.Require().NoError(err)
		s.Equal(nySlutt, *lagret.Sluttdato)

		endringer, err := s.historikk.ListEndringer(context.Background(), d.ID)
		s.Require().NoError(err)
		s.Require().Len(endringer, 1)
		s.Equal(s.actor.EndretAv, endringer[0].EndretAv)
		s.Equal(s.actor.EndretAvEnhet, endringer[0].EndretAvEnhet)

		pending := s.outbox.Pending()
		s.Require().Len(pending, 1)
		s.Equal(config.TopicDeltaker, pending[0].Topic)
		s.Equal(d.ID.String(), pending[0].Key)

		var payload deltaker.Deltaker
		s.Require().NoError(json.Unmarshal(pending[0].Value, &payload))
		s.Equal(d.ID, payload.ID)
	})

	s.Run("rejected endring persists nothing", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusHarSluttet)

		_, err := s.service.Apply(context.Background(), d.ID,
			deltaker.EndreBakgrunnsinformasjon{Bakgrunnsinformasjon: "ny"}, s.actor, nil)
		s.Require().Error(err)
		s.True(apperrors.Is(err, apperrors.CodeBadRequest))

		endringer, err := s.historikk.ListEndringer(context.Background(), d.ID)
		s.Require().NoError(err)
		s.Empty(endringer)
		s.Empty(s.outbox.Pending())
	})

	s.Run("referenced forslag is marked godkjent in the same mutation", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusDeltar)
		f := s.seedForslag(d.ID)

		nySlutt := s.now.Add(90 * 24 * time.Hour)
		_, err := s.service.Apply(context.Background(), d.ID,
			deltaker.ForlengDeltakelse{Sluttdato: nySlutt}, s.actor, &f.ID)
		s.Require().NoError(err)

		oppdatert, err := s.historikk.GetForslag(context.Background(), f.ID)
		s.Require().NoError(err)
		s.Equal(historikk.ForslagGodkjent, oppdatert.Status.Type)

		endringer, err := s.historikk.ListEndringer(context.Background(), d.ID)
		s.Require().NoError(err)
		s.Require().Len(endringer, 1)
		s.Require().NotNil(endringer[0].ForslagID)
		s.Equal(f.ID, *endringer[0].ForslagID)

		// The earlier version is retained; approval appended a new row.
		s.Len(s.historikk.Versjoner(f.ID), 2)
	})

	s.Run("status change keeps exactly one open status row", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusDeltar)

		_, err := s.service.Apply(context.Background(), d.ID,
			deltaker.AvsluttDeltakelse{Aarsak: &deltaker.Aarsak{Type: deltaker.AarsakFattJobb}},
			s.actor, nil)
		s.Require().NoError(err)

		open := 0
		for _, st := range s.deltakere.Statuser(d.ID) {
			if st.GyldigTil == nil {
				open++
				s.Equal(deltaker.StatusHarSluttet, st.Type)
			}
		}
		s.Equal(1, open)
	})
}

func (s *ServiceSuite) seedForslag(deltakerID uuid.UUID) historikk.Forslag {
	f := historikk.Forslag{
		ID:          uuid.New(),
		DeltakerID:  deltakerID,
		OpprettetAv: "123456789",
		Opprettet:   s.now.Add(-time.Hour),
		Endring:     json.RawMessage(`{"@type":"FORLENG_DELTAKELSE","payload":{}}`),
		Status:      historikk.ForslagStatus{Type: historikk.ForslagVenterPaSvar, Endret: s.now.Add(-time.Hour)},
		SistEndret:  s.now.Add(-time.Hour),
	}
	s.Require().NoError(s.historikk.AppendForslag(context.Background(), f))
	return f
}

func (s *ServiceSuite) TestGodkjennUtkast() {
	s.Run("ratifies the pending vedtak and activates the deltaker", func() {
		s.SetupTest()
		utkast, err := s.service.OpprettUtkast(context.Background(), UtkastRequest{
			DeltakerlisteID: uuid.New(),
			Personident:     "12345678901",
		}, s.actor)
		s.Require().NoError(err)
		s.Equal(deltaker.StatusUtkastTilPamelding, utkast.Status.Type)

		s.now = s.now.Add(time.Hour)
		got, err := s.service.GodkjennUtkast(context.Background(), utkast.ID, s.actor)
		s.Require().NoError(err)
		s.Equal(deltaker.StatusVenterPaOppstart, got.Status.Type)

		vedtak, err := s.historikk.ListVedtak(context.Background(), utkast.ID)
		s.Require().NoError(err)
		s.Require().Len(vedtak, 1)
		s.Require().NotNil(vedtak[0].Fattet)
		s.Equal(s.now, *vedtak[0].Fattet)
		s.True(vedtak[0].FattetAvNav)
	})

	s.Run("rejects when the deltaker has no utkast", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusDeltar)

		_, err := s.service.GodkjennUtkast(context.Background(), d.ID, s.actor)
		s.Require().Error(err)
		s.True(apperrors.Is(err, apperrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestForslag() {
	s.Run("ny forslag erstatter ubesvart forslag", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusDeltar)
		gammelt := s.seedForslag(d.ID)

		nytt := historikk.Forslag{
			ID:          uuid.New(),
			DeltakerID:  d.ID,
			OpprettetAv: "123456789",
			Opprettet:   s.now,
			Endring:     json.RawMessage(`{"@type":"ENDRE_SLUTTDATO","payload":{}}`),
		}
		s.Require().NoError(s.service.OpprettForslag(context.Background(), nytt))

		erstattet, err := s.historikk.GetForslag(context.Background(), gammelt.ID)
		s.Require().NoError(err)
		s.Equal(historikk.ForslagErstattet, erstattet.Status.Type)

		lagret, err := s.historikk.GetForslag(context.Background(), nytt.ID)
		s.Require().NoError(err)
		s.Equal(historikk.ForslagVenterPaSvar, lagret.Status.Type)
	})

	s.Run("avvis records the answer and notifies the provider channel", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusDeltar)
		f := s.seedForslag(d.ID)
		begrunnelse := "ikke aktuelt"

		avvist, err := s.service.AvvisForslag(context.Background(), f.ID, s.actor, &begrunnelse)
		s.Require().NoError(err)
		s.Equal(historikk.ForslagAvvist, avvist.Status.Type)
		s.Equal(&begrunnelse, avvist.Status.Begrunnelse)

		pending := s.outbox.Pending()
		s.Require().Len(pending, 1)
		s.Equal(config.TopicArrangorMelding, pending[0].Topic)
	})

	s.Run("avvis rejects an already answered forslag", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusDeltar)
		f := s.seedForslag(d.ID)

		_, err := s.service.AvvisForslag(context.Background(), f.ID, s.actor, nil)
		s.Require().NoError(err)
		_, err = s.service.AvvisForslag(context.Background(), f.ID, s.actor, nil)
		s.Require().Error(err)
		s.True(apperrors.Is(err, apperrors.CodeConflict))
	})

	s.Run("tilbakekall is idempotent", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusDeltar)
		f := s.seedForslag(d.ID)

		s.Require().NoError(s.service.TilbakekallForslag(context.Background(), f.ID))
		s.Require().NoError(s.service.TilbakekallForslag(context.Background(), f.ID))

		got, err := s.historikk.GetForslag(context.Background(), f.ID)
		s.Require().NoError(err)
		s.Equal(historikk.ForslagTilbakekalt, got.Status.Type)
		s.Len(s.historikk.Versjoner(f.ID), 2)
	})
}

func (s *ServiceSuite) TestEndringFraArrangor() {
	s.Run("provider start date activates a waiting deltaker", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusVenterPaOppstart)
		start := s.now.Add(-24 * time.Hour)

		got, err := s.service.EndringFraArrangor(context.Background(), historikk.EndringFraArrangor{
			ID:          uuid.New(),
			DeltakerID:  d.ID,
			OpprettetAv: "123456789",
			Opprettet:   s.now,
			LeggTilOppstart: historikk.LeggTilOppstartsdato{
				Startdato: start,
			},
		})
		s.Require().NoError(err)
		s.Equal(deltaker.StatusDeltar, got.Status.Type)
		s.Equal(start, *got.Startdato)

		entries, err := s.historikk.ListEndringFraArrangor(context.Background(), d.ID)
		s.Require().NoError(err)
		s.Len(entries, 1)
	})

	s.Run("future start date keeps the deltaker waiting", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusVenterPaOppstart)
		start := s.now.Add(14 * 24 * time.Hour)

		got, err := s.service.EndringFraArrangor(context.Background(), historikk.EndringFraArrangor{
			ID:              uuid.New(),
			DeltakerID:      d.ID,
			OpprettetAv:     "123456789",
			Opprettet:       s.now,
			LeggTilOppstart: historikk.LeggTilOppstartsdato{Startdato: start},
		})
		s.Require().NoError(err)
		s.Equal(deltaker.StatusVenterPaOppstart, got.Status.Type)
		// The status row is untouched when the type does not change.
		s.Equal(d.Status.ID, got.Status.ID)
	})
}

func (s *ServiceSuite) TestKoordinatorEndring() {
	s.Run("bulk avslag continues past failures", func() {
		s.SetupTest()
		ok1 := s.seedDeltaker(deltaker.StatusSoktInn)
		allerede := s.seedDeltaker(deltaker.StatusHarSluttet)
		ok2 := s.seedDeltaker(deltaker.StatusVurderes)

		aarsak := deltaker.Aarsak{Type: deltaker.AarsakAnnet}
		res := s.service.KoordinatorEndring(context.Background(), historikk.KoordinatorAvslag,
			[]uuid.UUID{ok1.ID, allerede.ID, ok2.ID}, &aarsak, nil, s.actor)

		s.Require().Len(res, 3)
		s.NoError(res[0].Err)
		s.Error(res[1].Err)
		s.NoError(res[2].Err)

		for _, id := range []uuid.UUID{ok1.ID, ok2.ID} {
			d, err := s.deltakere.Get(context.Background(), id)
			s.Require().NoError(err)
			s.Equal(deltaker.StatusIkkeAktuell, d.Status.Type)
			entries, err := s.historikk.ListEndringFraTiltakskoordinator(context.Background(), id)
			s.Require().NoError(err)
			s.Len(entries, 1)
		}
	})

	s.Run("del med arrangor flags the deltaker once", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusSoktInn)

		res := s.service.KoordinatorEndring(context.Background(), historikk.KoordinatorDelMedArrangor,
			[]uuid.UUID{d.ID}, nil, nil, s.actor)
		s.Require().NoError(res[0].Err)

		res = s.service.KoordinatorEndring(context.Background(), historikk.KoordinatorDelMedArrangor,
			[]uuid.UUID{d.ID}, nil, nil, s.actor)
		s.Require().Error(res[0].Err)
		s.True(apperrors.Is(res[0].Err, apperrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestSlett() {
	s.Run("purge removes everything and emits a tombstone", func() {
		s.SetupTest()
		d := s.seedDeltaker(deltaker.StatusFeilregistrert)
		s.seedForslag(d.ID)

		s.Require().NoError(s.service.Slett(context.Background(), d.ID))

		_, err := s.deltakere.Get(context.Background(), d.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)

		forslag, err := s.historikk.ListForslag(context.Background(), d.ID)
		s.Require().NoError(err)
		s.Empty(forslag)

		pending := s.outbox.Pending()
		s.Require().Len(pending, 1)
		s.Equal(config.TopicDeltaker, pending[0].Topic)
		s.Equal(d.ID.String(), pending[0].Key)
		s.Nil(pending[0].Value)
	})

	s.Run("purging an unknown deltaker is a not found error", func() {
		s.SetupTest()
		err := s.service.Slett(context.Background(), uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
