package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/cache"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/engine"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/service"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/store"
	"github.com/navikt/amt-deltaker-sub001/internal/historikk"
	"github.com/navikt/amt-deltaker-sub001/internal/outbox"
	"github.com/navikt/amt-deltaker-sub001/internal/refdata"
	txpkg "github.com/navikt/amt-deltaker-sub001/pkg/platform/tx"
)

type noToggles struct{}

func (noToggles) Enabled(string) bool { return false }

func newTestService(t *testing.T, deltakere *store.InMemory, hist *historikk.InMemory, now time.Time) *service.Service {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	return service.New(
		deltakere,
		hist,
		outbox.NewEnqueuer(outbox.NewInMemoryStore()),
		txpkg.NewMemoryRunner(),
		engine.New(noToggles{}),
		cache.New(nil, logger),
		logger,
		service.WithClock(func() time.Time { return now }),
	)
}

func TestRefdataHandlers(t *testing.T) {
	ctx := context.Background()
	rd := refdata.NewInMemoryStore()
	handlers := Handlers(rd, nil, slog.New(slog.DiscardHandler))

	t.Run("deltakerliste upsert and tombstone", func(t *testing.T) {
		h := handlers["amt.deltakerliste-v1"]
		liste := refdata.Deltakerliste{
			ID:            uuid.New(),
			Navn:          "Oppfølging Oslo",
			TiltakstypeID: uuid.New(),
			ArrangorID:    uuid.New(),
			Status:        refdata.DeltakerlisteGjennomfores,
			Oppstart:      refdata.OppstartLopende,
		}
		value, err := json.Marshal(liste)
		require.NoError(t, err)

		require.NoError(t, h.Handle(ctx, []byte(liste.ID.String()), value))
		got, err := rd.GetDeltakerliste(ctx, liste.ID)
		require.NoError(t, err)
		require.Equal(t, liste.Navn, got.Navn)

		require.NoError(t, h.HandleTombstone(ctx, []byte(liste.ID.String())))
		_, err = rd.GetDeltakerliste(ctx, liste.ID)
		require.Error(t, err)
	})

	t.Run("undecodable record is skipped, not retried", func(t *testing.T) {
		h := handlers["amt.arrangor-v1"]
		require.NoError(t, h.Handle(ctx, []byte("key"), []byte("not json")))
	})

	t.Run("nav-ansatt replicates actor data", func(t *testing.T) {
		h := handlers["amt.nav-ansatt-v1"]
		ansatt := refdata.NavAnsatt{ID: uuid.New(), NavIdent: "Z999999", Navn: "Saks Behandler"}
		value, err := json.Marshal(ansatt)
		require.NoError(t, err)

		require.NoError(t, h.Handle(ctx, []byte(ansatt.ID.String()), value))
		got, err := rd.GetNavAnsatt(ctx, ansatt.ID)
		require.NoError(t, err)
		require.Equal(t, "Z999999", got.NavIdent)
	})
}

func TestArrangorMeldingHandler(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	logger := slog.New(slog.DiscardHandler)

	seed := func(t *testing.T, deltakere *store.InMemory, status deltaker.StatusType) deltaker.Deltaker {
		d := deltaker.Deltaker{
			ID:              uuid.New(),
			DeltakerlisteID: uuid.New(),
			Personident:     "12345678901",
			Status:          deltaker.NewStatus(status, nil, now.Add(-24*time.Hour), now.Add(-24*time.Hour)),
			Kilde:           deltaker.KildeKomet,
			SistEndret:      now.Add(-24 * time.Hour),
		}
		require.NoError(t, deltakere.Upsert(ctx, d))
		return d
	}

	t.Run("forslag melding records the proposal", func(t *testing.T) {
		deltakere := store.NewInMemory()
		hist := historikk.NewInMemory()
		h := NewArrangorMeldingHandler(newTestService(t, deltakere, hist, now), logger)
		d := seed(t, deltakere, deltaker.StatusDeltar)

		f := historikk.Forslag{
			ID:          uuid.New(),
			DeltakerID:  d.ID,
			OpprettetAv: "123456789",
			Opprettet:   now,
			Endring:     json.RawMessage(`{"@type":"FORLENG_DELTAKELSE","payload":{}}`),
		}
		value, err := json.Marshal(arrangorMelding{Type: MeldingForslag, Forslag: &f})
		require.NoError(t, err)

		require.NoError(t, h.Handle(ctx, []byte(f.ID.String()), value))
		got, err := hist.GetForslag(ctx, f.ID)
		require.NoError(t, err)
		require.Equal(t, historikk.ForslagVenterPaSvar, got.Status.Type)
	})

	t.Run("oppstartsdato activates the deltaker", func(t *testing.T) {
		deltakere := store.NewInMemory()
		hist := historikk.NewInMemory()
		h := NewArrangorMeldingHandler(newTestService(t, deltakere, hist, now), logger)
		d := seed(t, deltakere, deltaker.StatusVenterPaOppstart)

		e := historikk.EndringFraArrangor{
			ID:          uuid.New(),
			DeltakerID:  d.ID,
			OpprettetAv: "123456789",
			Opprettet:   now,
			LeggTilOppstart: historikk.LeggTilOppstartsdato{
				Startdato: now.Add(-24 * time.Hour),
			},
		}
		value, err := json.Marshal(arrangorMelding{Type: MeldingLeggTilOppstartsdato, Endring: &e})
		require.NoError(t, err)

		require.NoError(t, h.Handle(ctx, []byte(e.ID.String()), value))
		got, err := deltakere.Get(ctx, d.ID)
		require.NoError(t, err)
		require.Equal(t, deltaker.StatusDeltar, got.Status.Type)
	})

	t.Run("melding for unknown deltaker is dropped, not retried", func(t *testing.T) {
		deltakere := store.NewInMemory()
		hist := historikk.NewInMemory()
		h := NewArrangorMeldingHandler(newTestService(t, deltakere, hist, now), logger)

		e := historikk.EndringFraArrangor{
			ID:              uuid.New(),
			DeltakerID:      uuid.New(),
			Opprettet:       now,
			LeggTilOppstart: historikk.LeggTilOppstartsdato{Startdato: now},
		}
		value, err := json.Marshal(arrangorMelding{Type: MeldingLeggTilOppstartsdato, Endring: &e})
		require.NoError(t, err)

		require.NoError(t, h.Handle(ctx, []byte(e.ID.String()), value))
	})

	t.Run("tilbakekall is idempotent across redelivery", func(t *testing.T) {
		deltakere := store.NewInMemory()
		hist := historikk.NewInMemory()
		svc := newTestService(t, deltakere, hist, now)
		h := NewArrangorMeldingHandler(svc, logger)
		d := seed(t, deltakere, deltaker.StatusDeltar)

		f := historikk.Forslag{
			ID:         uuid.New(),
			DeltakerID: d.ID,
			Opprettet:  now,
			Endring:    json.RawMessage(`{"@type":"FORLENG_DELTAKELSE","payload":{}}`),
		}
		require.NoError(t, svc.OpprettForslag(ctx, f))

		value, err := json.Marshal(arrangorMelding{Type: MeldingTilbakekallForslag, ForslagID: &f.ID})
		require.NoError(t, err)

		require.NoError(t, h.Handle(ctx, []byte(f.ID.String()), value))
		require.NoError(t, h.Handle(ctx, []byte(f.ID.String()), value))

		got, err := hist.GetForslag(ctx, f.ID)
		require.NoError(t, err)
		require.Equal(t, historikk.ForslagTilbakekalt, got.Status.Type)
	})
}
