// Package service orchestrates deltaker mutations: it loads state, asks the
// engine for a decision, persists the accepted outcome together with its
// history record and outbox message in one transaction, and keeps the read
// cache coherent.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/cache"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/engine"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/store"
	"github.com/navikt/amt-deltaker-sub001/internal/historikk"
	"github.com/navikt/amt-deltaker-sub001/internal/outbox"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/config"
	"github.com/navikt/amt-deltaker-sub001/pkg/apperrors"
	txpkg "github.com/navikt/amt-deltaker-sub001/pkg/platform/tx"
)

// Actor identifies who makes a change: the caseworker ident and the office
// they act for.
type Actor struct {
	EndretAv      string
	EndretAvEnhet string
}

// Service coordinates the deltaker aggregate across stores, engine, outbox
// and cache.
type Service struct {
	deltakere store.Store
	historikk historikk.Store
	outbox    *outbox.Enqueuer
	runner    txpkg.Runner
	engine    *engine.Engine
	cache     *cache.Cache
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option customizes the service.
type Option func(*Service)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(
	deltakere store.Store,
	hist historikk.Store,
	enqueuer *outbox.Enqueuer,
	runner txpkg.Runner,
	eng *engine.Engine,
	c *cache.Cache,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		deltakere: deltakere,
		historikk: hist,
		outbox:    enqueuer,
		runner:    runner,
		engine:    eng,
		cache:     c,
		logger:    logger.With(slog.String("component", "deltaker-service")),
		tracer:    otel.Tracer("amt-deltaker/deltaker"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// statePayload is the full-state message published on the deltaker topic.
// NesteStatus carries an accepted future transition so consumers do not have
// to re-derive it.
type statePayload struct {
	deltaker.Deltaker
	NesteStatus *deltaker.DeltakerStatus `json:"nesteStatus,omitempty"`
}

func (s *Service) enqueueState(ctx context.Context, d deltaker.Deltaker, neste *deltaker.DeltakerStatus) error {
	payload, err := json.Marshal(statePayload{Deltaker: d, NesteStatus: neste})
	if err != nil {
		return fmt.Errorf("marshal deltaker payload: %w", err)
	}
	return s.outbox.Enqueue(ctx, config.TopicDeltaker, d.ID.String(), payload)
}

// Get returns the deltaker, served from the cache when possible.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (deltaker.Deltaker, error) {
	if d, err := s.cache.Get(ctx, id); err == nil {
		return d, nil
	}
	d, err := s.deltakere.Get(ctx, id)
	if err != nil {
		return deltaker.Deltaker{}, err
	}
	s.cache.Set(ctx, d)
	return d, nil
}

// Historikk returns the merged change history, newest first.
func (s *Service) Historikk(ctx context.Context, id uuid.UUID) ([]historikk.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Historikk")
	defer span.End()

	if _, err := s.deltakere.Get(ctx, id); err != nil {
		return nil, err
	}
	vedtak, err := s.historikk.ListVedtak(ctx, id)
	if err != nil {
		return nil, err
	}
	endringer, err := s.historikk.ListEndringer(ctx, id)
	if err != nil {
		return nil, err
	}
	forslag, err := s.historikk.ListForslag(ctx, id)
	if err != nil {
		return nil, err
	}
	fraArrangor, err := s.historikk.ListEndringFraArrangor(ctx, id)
	if err != nil {
		return nil, err
	}
	fraKoordinator, err := s.historikk.ListEndringFraTiltakskoordinator(ctx, id)
	if err != nil {
		return nil, err
	}
	importert, err := s.historikk.GetImportertFraArena(ctx, id)
	if err != nil {
		return nil, err
	}
	return historikk.Merge(vedtak, endringer, forslag, fraArrangor, fraKoordinator, importert), nil
}

// Apply runs a caseworker change through the engine and persists an accepted
// or deferred outcome atomically with its history record and outbox message.
// forslagID, when set, marks the provider proposal that prompted the change
// as approved in the same transaction.
func (s *Service) Apply(ctx context.Context, deltakerID uuid.UUID, endring deltaker.Endring, actor Actor, forslagID *uuid.UUID) (deltaker.Deltaker, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Apply",
		trace.WithAttributes(attribute.String("endringstype", string(endring.EndringType()))))
	defer span.End()

	d, err := s.deltakere.Get(ctx, deltakerID)
	if err != nil {
		return deltaker.Deltaker{}, err
	}
	mengder, err := s.deltakere.GetMengder(ctx, deltakerID)
	if err != nil {
		return deltaker.Deltaker{}, err
	}

	now := s.now()
	out := s.engine.Apply(d, mengder, endring, now)
	if out.Kind == engine.KindRejected {
		return deltaker.Deltaker{}, out.Reason
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deltakere.Upsert(ctx, out.Deltaker); err != nil {
			return err
		}
		if out.NyMengde != nil {
			if err := s.deltakere.UpsertMengde(ctx, *out.NyMengde); err != nil {
				return err
			}
		}
		if err := s.historikk.InsertEndring(ctx, historikk.DeltakerEndring{
			ID:            uuid.New(),
			DeltakerID:    deltakerID,
			Endring:       endring,
			EndretAv:      actor.EndretAv,
			EndretAvEnhet: actor.EndretAvEnhet,
			Endret:        now,
			ForslagID:     forslagID,
		}); err != nil {
			return err
		}
		if forslagID != nil {
			if err := s.godkjennForslag(ctx, *forslagID, actor, now); err != nil {
				return err
			}
		}
		return s.enqueueState(ctx, out.Deltaker, out.NesteStatus)
	})
	if err != nil {
		return deltaker.Deltaker{}, err
	}

	s.cache.Invalidate(ctx, deltakerID)
	s.logger.InfoContext(ctx, "endring anvendt",
		slog.String("deltakerId", deltakerID.String()),
		slog.String("endringstype", string(endring.EndringType())),
		slog.Bool("deferred", out.Kind == engine.KindDeferred))
	return out.Deltaker, nil
}

func (s *Service) godkjennForslag(ctx context.Context, forslagID uuid.UUID, actor Actor, now time.Time) error {
	f, err := s.historikk.GetForslag(ctx, forslagID)
	if err != nil {
		return err
	}
	if f.Status.Type.Terminal() {
		return apperrors.New(apperrors.CodeConflict, "forslaget er allerede besvart")
	}
	f.Status = historikk.ForslagStatus{
		Type:      historikk.ForslagGodkjent,
		Endret:    now,
		BesvartAv: &actor.EndretAv,
	}
	f.SistEndret = now
	return s.historikk.AppendForslag(ctx, f)
}

// UtkastRequest carries the fields of a new registration draft.
type UtkastRequest struct {
	DeltakerlisteID      uuid.UUID
	Personident          string
	Bakgrunnsinformasjon *string
	Innhold              *deltaker.Deltakelsesinnhold
	Deltakelsesprosent   *float64
	DagerPerUke          *float32
}

// OpprettUtkast creates a deltaker in UTKAST_TIL_PAMELDING together with the
// unratified decision carrying the proposed terms.
func (s *Service) OpprettUtkast(ctx context.Context, req UtkastRequest, actor Actor) (deltaker.Deltaker, error) {
	ctx, span := s.tracer.Start(ctx, "Service.OpprettUtkast")
	defer span.End()

	now := s.now()
	d := deltaker.Deltaker{
		ID:                   uuid.New(),
		DeltakerlisteID:      req.DeltakerlisteID,
		Personident:          req.Personident,
		Deltakelsesprosent:   req.Deltakelsesprosent,
		DagerPerUke:          req.DagerPerUke,
		Bakgrunnsinformasjon: req.Bakgrunnsinformasjon,
		Innhold:              req.Innhold,
		Status:               deltaker.NewStatus(deltaker.StatusUtkastTilPamelding, nil, now, now),
		Kilde:                deltaker.KildeKomet,
		SistEndret:           now,
	}
	v := historikk.Vedtak{
		ID:                uuid.New(),
		DeltakerID:        d.ID,
		DeltakerVedVedtak: snapshot(d),
		Opprettet:         now,
		OpprettetAv:       actor.EndretAv,
		SistEndret:        now,
		SistEndretAv:      actor.EndretAv,
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deltakere.Upsert(ctx, d); err != nil {
			return err
		}
		if err := s.historikk.AppendVedtak(ctx, v); err != nil {
			return err
		}
		return s.enqueueState(ctx, d, nil)
	})
	if err != nil {
		return deltaker.Deltaker{}, err
	}
	return d, nil
}

// GodkjennUtkast ratifies the pending decision and activates the deltaker.
// The new status follows the forward-looking start-date rule.
func (s *Service) GodkjennUtkast(ctx context.Context, deltakerID uuid.UUID, actor Actor) (deltaker.Deltaker, error) {
	ctx, span := s.tracer.Start(ctx, "Service.GodkjennUtkast")
	defer span.End()

	d, err := s.deltakere.Get(ctx, deltakerID)
	if err != nil {
		return deltaker.Deltaker{}, err
	}
	if d.Status.Type != deltaker.StatusUtkastTilPamelding {
		return deltaker.Deltaker{}, apperrors.New(apperrors.CodeConflict,
			"deltakeren har ikke et utkast til påmelding")
	}
	v, err := s.historikk.GetUfattetVedtak(ctx, deltakerID)
	if err != nil {
		return deltaker.Deltaker{}, err
	}

	now := s.now()
	fattet := now
	v.Fattet = &fattet
	v.FattetAvNav = true
	v.SistEndret = now
	v.SistEndretAv = actor.EndretAv

	d.Status = deltaker.NewStatus(deltaker.StatusForStartdato(d.Startdato, now), nil, now, now)
	d.SistEndret = now

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.historikk.AppendVedtak(ctx, v); err != nil {
			return err
		}
		if err := s.deltakere.Upsert(ctx, d); err != nil {
			return err
		}
		return s.enqueueState(ctx, d, nil)
	})
	if err != nil {
		return deltaker.Deltaker{}, err
	}

	s.cache.Invalidate(ctx, deltakerID)
	return d, nil
}

// OpprettForslag records a new provider proposal. An earlier proposal for the
// same deltaker still awaiting an answer is superseded.
func (s *Service) OpprettForslag(ctx context.Context, f historikk.Forslag) error {
	ctx, span := s.tracer.Start(ctx, "Service.OpprettForslag")
	defer span.End()

	now := s.now()
	if f.Status.Type == "" {
		f.Status = historikk.ForslagStatus{Type: historikk.ForslagVenterPaSvar, Endret: now}
	}
	if f.SistEndret.IsZero() {
		f.SistEndret = now
	}

	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		eksisterende, err := s.historikk.ListForslag(ctx, f.DeltakerID)
		if err != nil {
			return err
		}
		for _, e := range eksisterende {
			if e.ID == f.ID || e.Status.Type.Terminal() {
				continue
			}
			e.Status = historikk.ForslagStatus{Type: historikk.ForslagErstattet, Endret: now}
			e.SistEndret = now
			if err := s.historikk.AppendForslag(ctx, e); err != nil {
				return err
			}
		}
		return s.historikk.AppendForslag(ctx, f)
	})
}

// TilbakekallForslag marks a proposal withdrawn by the provider. Already
// answered proposals are left alone so redelivered messages stay harmless.
func (s *Service) TilbakekallForslag(ctx context.Context, forslagID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "Service.TilbakekallForslag")
	defer span.End()

	f, err := s.historikk.GetForslag(ctx, forslagID)
	if err != nil {
		return err
	}
	if f.Status.Type.Terminal() {
		return nil
	}
	now := s.now()
	f.Status = historikk.ForslagStatus{Type: historikk.ForslagTilbakekalt, Endret: now}
	f.SistEndret = now
	return s.historikk.AppendForslag(ctx, f)
}

// AvvisForslag records a caseworker's rejection of a provider proposal and
// notifies the provider channel through the outbox.
func (s *Service) AvvisForslag(ctx context.Context, forslagID uuid.UUID, actor Actor, begrunnelse *string) (historikk.Forslag, error) {
	ctx, span := s.tracer.Start(ctx, "Service.AvvisForslag")
	defer span.End()

	f, err := s.historikk.GetForslag(ctx, forslagID)
	if err != nil {
		return historikk.Forslag{}, err
	}
	if f.Status.Type.Terminal() {
		return historikk.Forslag{}, apperrors.New(apperrors.CodeConflict, "forslaget er allerede besvart")
	}

	now := s.now()
	f.Status = historikk.ForslagStatus{
		Type:        historikk.ForslagAvvist,
		Endret:      now,
		BesvartAv:   &actor.EndretAv,
		Begrunnelse: begrunnelse,
	}
	f.SistEndret = now

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.historikk.AppendForslag(ctx, f); err != nil {
			return err
		}
		payload, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("marshal forslag: %w", err)
		}
		return s.outbox.Enqueue(ctx, config.TopicArrangorMelding, f.ID.String(), payload)
	})
	if err != nil {
		return historikk.Forslag{}, err
	}
	return f, nil
}

// EndringFraArrangor applies a provider-set start date. The change runs
// through the same engine rule as a caseworker start-date change, so rate
// recomputation and the forward-looking status rule apply.
func (s *Service) EndringFraArrangor(ctx context.Context, e historikk.EndringFraArrangor) (deltaker.Deltaker, error) {
	ctx, span := s.tracer.Start(ctx, "Service.EndringFraArrangor")
	defer span.End()

	d, err := s.deltakere.Get(ctx, e.DeltakerID)
	if err != nil {
		return deltaker.Deltaker{}, err
	}
	mengder, err := s.deltakere.GetMengder(ctx, e.DeltakerID)
	if err != nil {
		return deltaker.Deltaker{}, err
	}

	now := s.now()
	startdato := e.LeggTilOppstart.Startdato
	out := s.engine.Apply(d, mengder, deltaker.EndreStartdato{
		Startdato: &startdato,
		Sluttdato: e.LeggTilOppstart.Sluttdato,
	}, now)
	if out.Kind == engine.KindRejected {
		return deltaker.Deltaker{}, out.Reason
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deltakere.Upsert(ctx, out.Deltaker); err != nil {
			return err
		}
		if err := s.historikk.InsertEndringFraArrangor(ctx, e); err != nil {
			return err
		}
		return s.enqueueState(ctx, out.Deltaker, out.NesteStatus)
	})
	if err != nil {
		return deltaker.Deltaker{}, err
	}

	s.cache.Invalidate(ctx, e.DeltakerID)
	return out.Deltaker, nil
}

// KoordinatorResultat is the per-deltaker outcome of a bulk operation.
type KoordinatorResultat struct {
	DeltakerID uuid.UUID
	Err        error
}

// KoordinatorEndring applies one coordinator operation to each listed
// deltaker. Each deltaker runs in its own transaction; one failure does not
// roll back the others.
func (s *Service) KoordinatorEndring(
	ctx context.Context,
	typ historikk.KoordinatorEndringType,
	deltakerIDs []uuid.UUID,
	aarsak *deltaker.Aarsak,
	begrunnelse *string,
	actor Actor,
) []KoordinatorResultat {
	ctx, span := s.tracer.Start(ctx, "Service.KoordinatorEndring",
		trace.WithAttributes(attribute.String("type", string(typ)), attribute.Int("antall", len(deltakerIDs))))
	defer span.End()

	out := make([]KoordinatorResultat, 0, len(deltakerIDs))
	for _, id := range deltakerIDs {
		err := s.koordinatorEndringForDeltaker(ctx, typ, id, aarsak, begrunnelse, actor)
		if err != nil {
			s.logger.WarnContext(ctx, "koordinatorendring feilet",
				slog.String("deltakerId", id.String()),
				slog.String("type", string(typ)),
				slog.String("error", err.Error()))
		}
		out = append(out, KoordinatorResultat{DeltakerID: id, Err: err})
	}
	return out
}

func (s *Service) koordinatorEndringForDeltaker(
	ctx context.Context,
	typ historikk.KoordinatorEndringType,
	deltakerID uuid.UUID,
	aarsak *deltaker.Aarsak,
	begrunnelse *string,
	actor Actor,
) error {
	d, err := s.deltakere.Get(ctx, deltakerID)
	if err != nil {
		return err
	}

	now := s.now()
	switch typ {
	case historikk.KoordinatorDelMedArrangor:
		if d.ErManueltDeltMedArrangor {
			return apperrors.New(apperrors.CodeConflict, "deltakeren er allerede delt med arrangør")
		}
		d.ErManueltDeltMedArrangor = true
	case historikk.KoordinatorTildelPlass:
		if !sokerStatus(d.Status.Type) {
			return apperrors.New(apperrors.CodeBadRequest, "kan bare tildele plass til søker")
		}
		d.Status = deltaker.NewStatus(deltaker.StatusForStartdato(d.Startdato, now), nil, now, now)
	case historikk.KoordinatorSettPaVenteliste:
		if !sokerStatus(d.Status.Type) {
			return apperrors.New(apperrors.CodeBadRequest, "kan bare sette søker på venteliste")
		}
		d.Status = deltaker.NewStatus(deltaker.StatusVenteliste, nil, now, now)
	case historikk.KoordinatorAvslag:
		if d.Status.Type.Avsluttende() {
			return apperrors.New(apperrors.CodeConflict, "deltakelsen er allerede avsluttet")
		}
		d.Status = deltaker.NewStatus(deltaker.StatusIkkeAktuell, aarsak, now, now)
	default:
		return apperrors.New(apperrors.CodeBadRequest, fmt.Sprintf("ukjent koordinatorendring %q", typ))
	}
	d.SistEndret = now

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deltakere.Upsert(ctx, d); err != nil {
			return err
		}
		if err := s.historikk.InsertEndringFraTiltakskoordinator(ctx, historikk.EndringFraTiltakskoordinator{
			ID:          uuid.New(),
			DeltakerID:  deltakerID,
			Type:        typ,
			Aarsak:      aarsak,
			Begrunnelse: begrunnelse,
			EndretAv:    actor.EndretAv,
			Endret:      now,
		}); err != nil {
			return err
		}
		return s.enqueueState(ctx, d, nil)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, deltakerID)
	return nil
}

// Slett purges a deltaker: aggregate, history sources and cache entry are
// removed atomically and a tombstone goes out on the deltaker topic.
func (s *Service) Slett(ctx context.Context, deltakerID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "Service.Slett")
	defer span.End()

	if _, err := s.deltakere.Get(ctx, deltakerID); err != nil {
		return err
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.historikk.SlettForDeltaker(ctx, deltakerID); err != nil {
			return err
		}
		if err := s.deltakere.Delete(ctx, deltakerID); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, config.TopicDeltaker, deltakerID.String(), nil)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, deltakerID)
	s.logger.InfoContext(ctx, "deltaker slettet", slog.String("deltakerId", deltakerID.String()))
	return nil
}

func sokerStatus(t deltaker.StatusType) bool {
	return t == deltaker.StatusSoktInn || t == deltaker.StatusVurderes || t == deltaker.StatusVenteliste
}

func snapshot(d deltaker.Deltaker) historikk.DeltakerVedVedtak {
	return historikk.DeltakerVedVedtak{
		Startdato:            d.Startdato,
		Sluttdato:            d.Sluttdato,
		Deltakelsesprosent:   d.Deltakelsesprosent,
		DagerPerUke:          d.DagerPerUke,
		Bakgrunnsinformasjon: d.Bakgrunnsinformasjon,
		Innhold:              d.Innhold,
	}
}
