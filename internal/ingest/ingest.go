// Package ingest consumes the upstream Kafka topics: reference data mirrored
// into local stores and provider messages routed into the deltaker service.
//
// Handlers are idempotent; the consumer redelivers on commit failure. Errors
// are only returned for infrastructure failures — a record that can never
// succeed (unknown deltaker, rule violation) is logged and skipped so it
// cannot stall its partition forever.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
	"github.com/navikt/amt-deltaker-sub001/internal/historikk"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/config"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/kafka/consumer"
	"github.com/navikt/amt-deltaker-sub001/internal/refdata"
	"github.com/navikt/amt-deltaker-sub001/pkg/apperrors"
	"github.com/navikt/amt-deltaker-sub001/pkg/platform/sentinel"
)

// DeltakerService is the slice of the deltaker service the provider-message
// handler needs.
type DeltakerService interface {
	OpprettForslag(ctx context.Context, f historikk.Forslag) error
	TilbakekallForslag(ctx context.Context, forslagID uuid.UUID) error
	EndringFraArrangor(ctx context.Context, e historikk.EndringFraArrangor) (deltaker.Deltaker, error)
}

// Handlers builds the per-topic consumer handlers.
func Handlers(store refdata.Store, svc DeltakerService, logger *slog.Logger) map[string]consumer.Handler {
	return map[string]consumer.Handler{
		config.TopicDeltakerliste:   &deltakerlisteHandler{store: store, logger: logger},
		config.TopicTiltakstype:     &tiltakstypeHandler{store: store, logger: logger},
		config.TopicNavAnsatt:       &navAnsattHandler{store: store, logger: logger},
		config.TopicNavEnhet:        &navEnhetHandler{store: store, logger: logger},
		config.TopicArrangor:        &arrangorHandler{store: store, logger: logger},
		config.TopicArrangorMelding: &ArrangorMeldingHandler{service: svc, logger: logger},
	}
}

func parseKey(key []byte) (uuid.UUID, error) {
	id, err := uuid.ParseBytes(key)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse record key %q: %w", key, err)
	}
	return id, nil
}

type deltakerlisteHandler struct {
	store  refdata.Store
	logger *slog.Logger
}

func (h *deltakerlisteHandler) Handle(ctx context.Context, key, value []byte) error {
	var d refdata.Deltakerliste
	if err := json.Unmarshal(value, &d); err != nil {
		h.logger.ErrorContext(ctx, "skipping undecodable deltakerliste", "key", string(key), "error", err)
		return nil
	}
	return h.store.UpsertDeltakerliste(ctx, d)
}

func (h *deltakerlisteHandler) HandleTombstone(ctx context.Context, key []byte) error {
	id, err := parseKey(key)
	if err != nil {
		h.logger.ErrorContext(ctx, "skipping tombstone with bad key", "key", string(key), "error", err)
		return nil
	}
	return h.store.DeleteDeltakerliste(ctx, id)
}

type tiltakstypeHandler struct {
	store  refdata.Store
	logger *slog.Logger
}

func (h *tiltakstypeHandler) Handle(ctx context.Context, key, value []byte) error {
	var t refdata.Tiltakstype
	if err := json.Unmarshal(value, &t); err != nil {
		h.logger.ErrorContext(ctx, "skipping undecodable tiltakstype", "key", string(key), "error", err)
		return nil
	}
	return h.store.UpsertTiltakstype(ctx, t)
}

func (h *tiltakstypeHandler) HandleTombstone(ctx context.Context, key []byte) error {
	// Program categories are never retracted upstream; an unexpected
	// tombstone is surfaced but not acted on.
	h.logger.WarnContext(ctx, "ignoring tiltakstype tombstone", "key", string(key))
	return nil
}

type navAnsattHandler struct {
	store  refdata.Store
	logger *slog.Logger
}

func (h *navAnsattHandler) Handle(ctx context.Context, key, value []byte) error {
	var a refdata.NavAnsatt
	if err := json.Unmarshal(value, &a); err != nil {
		h.logger.ErrorContext(ctx, "skipping undecodable nav-ansatt", "key", string(key), "error", err)
		return nil
	}
	return h.store.UpsertNavAnsatt(ctx, a)
}

func (h *navAnsattHandler) HandleTombstone(ctx context.Context, key []byte) error {
	id, err := parseKey(key)
	if err != nil {
		h.logger.ErrorContext(ctx, "skipping tombstone with bad key", "key", string(key), "error", err)
		return nil
	}
	return h.store.DeleteNavAnsatt(ctx, id)
}

type navEnhetHandler struct {
	store  refdata.Store
	logger *slog.Logger
}

func (h *navEnhetHandler) Handle(ctx context.Context, key, value []byte) error {
	var e refdata.NavEnhet
	if err := json.Unmarshal(value, &e); err != nil {
		h.logger.ErrorContext(ctx, "skipping undecodable nav-enhet", "key", string(key), "error", err)
		return nil
	}
	return h.store.UpsertNavEnhet(ctx, e)
}

func (h *navEnhetHandler) HandleTombstone(ctx context.Context, key []byte) error {
	h.logger.WarnContext(ctx, "ignoring nav-enhet tombstone", "key", string(key))
	return nil
}

type arrangorHandler struct {
	store  refdata.Store
	logger *slog.Logger
}

func (h *arrangorHandler) Handle(ctx context.Context, key, value []byte) error {
	var a refdata.Arrangor
	if err := json.Unmarshal(value, &a); err != nil {
		h.logger.ErrorContext(ctx, "skipping undecodable arrangor", "key", string(key), "error", err)
		return nil
	}
	return h.store.UpsertArrangor(ctx, a)
}

func (h *arrangorHandler) HandleTombstone(ctx context.Context, key []byte) error {
	id, err := parseKey(key)
	if err != nil {
		h.logger.ErrorContext(ctx, "skipping tombstone with bad key", "key", string(key), "error", err)
		return nil
	}
	return h.store.DeleteArrangor(ctx, id)
}

// Melding types on the provider topic.
const (
	MeldingForslag              = "FORSLAG"
	MeldingTilbakekallForslag   = "TILBAKEKALL_FORSLAG"
	MeldingLeggTilOppstartsdato = "LEGG_TIL_OPPSTARTSDATO"
)

type arrangorMelding struct {
	Type      string                        `json:"@type"`
	Forslag   *historikk.Forslag            `json:"forslag"`
	ForslagID *uuid.UUID                    `json:"forslagId"`
	Endring   *historikk.EndringFraArrangor `json:"endring"`
}

// ArrangorMeldingHandler routes provider messages: new and withdrawn
// proposals, and directly applied start dates.
type ArrangorMeldingHandler struct {
	service DeltakerService
	logger  *slog.Logger
}

func NewArrangorMeldingHandler(svc DeltakerService, logger *slog.Logger) *ArrangorMeldingHandler {
	return &ArrangorMeldingHandler{service: svc, logger: logger}
}

func (h *ArrangorMeldingHandler) Handle(ctx context.Context, key, value []byte) error {
	var melding arrangorMelding
	if err := json.Unmarshal(value, &melding); err != nil {
		h.logger.ErrorContext(ctx, "skipping undecodable arrangor-melding", "key", string(key), "error", err)
		return nil
	}

	var err error
	switch melding.Type {
	case MeldingForslag:
		if melding.Forslag == nil {
			h.logger.ErrorContext(ctx, "skipping forslag-melding without payload", "key", string(key))
			return nil
		}
		err = h.service.OpprettForslag(ctx, *melding.Forslag)
	case MeldingTilbakekallForslag:
		if melding.ForslagID == nil {
			h.logger.ErrorContext(ctx, "skipping tilbakekall without forslagId", "key", string(key))
			return nil
		}
		err = h.service.TilbakekallForslag(ctx, *melding.ForslagID)
	case MeldingLeggTilOppstartsdato:
		if melding.Endring == nil {
			h.logger.ErrorContext(ctx, "skipping oppstartsdato-melding without payload", "key", string(key))
			return nil
		}
		_, err = h.service.EndringFraArrangor(ctx, *melding.Endring)
	default:
		h.logger.ErrorContext(ctx, "skipping arrangor-melding with unknown type",
			"key", string(key), "type", melding.Type)
		return nil
	}

	if err != nil && permanent(err) {
		h.logger.WarnContext(ctx, "dropping arrangor-melding that can never succeed",
			"key", string(key), "type", melding.Type, "error", err)
		return nil
	}
	return err
}

func (h *ArrangorMeldingHandler) HandleTombstone(ctx context.Context, key []byte) error {
	h.logger.WarnContext(ctx, "ignoring arrangor-melding tombstone", "key", string(key))
	return nil
}

// permanent reports whether retrying can never help: the referenced deltaker
// does not exist or a domain rule rejects the change outright.
func permanent(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound) ||
		apperrors.Is(err, apperrors.CodeBadRequest) ||
		apperrors.Is(err, apperrors.CodeConflict) ||
		apperrors.Is(err, apperrors.CodeNotFound)
}
