// Package handler exposes the deltaker API over HTTP. It translates between
// JSON requests and the service's typed change requests; all rules live in
// the engine and service.
package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/service"
	"github.com/navikt/amt-deltaker-sub001/internal/historikk"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/middleware"
	"github.com/navikt/amt-deltaker-sub001/pkg/apperrors"
	"github.com/navikt/amt-deltaker-sub001/pkg/platform/httputil"
)

const maxBodySize = 1 << 20

// Handler serves the deltaker endpoints.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the routes. The caller wraps the router in the auth
// middleware; handlers read the actor from context.
func (h *Handler) Register(r chi.Router) {
	r.Post("/pamelding", h.opprettUtkast)

	r.Route("/deltaker/{deltakerId}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Get("/historikk", h.historikk)
		r.Delete("/", h.slett)
		r.Post("/godkjenn-utkast", h.godkjennUtkast)

		r.Post("/startdato", endringEndpoint[deltaker.EndreStartdato](h))
		r.Post("/sluttdato", endringEndpoint[deltaker.EndreSluttdato](h))
		r.Post("/deltakelsesmengde", endringEndpoint[deltaker.EndreDeltakelsesmengde](h))
		r.Post("/bakgrunnsinformasjon", endringEndpoint[deltaker.EndreBakgrunnsinformasjon](h))
		r.Post("/innhold", endringEndpoint[deltaker.EndreInnhold](h))
		r.Post("/ikke-aktuell", endringEndpoint[deltaker.IkkeAktuell](h))
		r.Post("/forleng", endringEndpoint[deltaker.ForlengDeltakelse](h))
		r.Post("/avslutt", endringEndpoint[deltaker.AvsluttDeltakelse](h))
		r.Post("/sluttarsak", endringEndpoint[deltaker.EndreSluttarsak](h))
		r.Post("/reaktiver", endringEndpoint[deltaker.ReaktiverDeltakelse](h))
	})

	r.Post("/forslag/{forslagId}/avvis", h.avvisForslag)

	r.Route("/tiltakskoordinator", func(r chi.Router) {
		r.Post("/del-med-arrangor", h.koordinator(historikk.KoordinatorDelMedArrangor))
		r.Post("/tildel-plass", h.koordinator(historikk.KoordinatorTildelPlass))
		r.Post("/sett-pa-venteliste", h.koordinator(historikk.KoordinatorSettPaVenteliste))
		r.Post("/avslag", h.koordinator(historikk.KoordinatorAvslag))
	})
}

func actorFrom(r *http.Request) service.Actor {
	return service.Actor{
		EndretAv:      middleware.GetNavIdent(r.Context()),
		EndretAvEnhet: middleware.GetEnhetsnummer(r.Context()),
	}
}

func deltakerID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "deltakerId"))
	if err != nil {
		return uuid.Nil, apperrors.New(apperrors.CodeBadRequest, "ugyldig deltakerId")
	}
	return id, nil
}

// endringEndpoint builds one POST handler per change variant. The body is
// decoded twice: once into the variant payload and once for the optional
// forslagId that ties the change to a provider proposal.
func endringEndpoint[T deltaker.Endring](h *Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := deltakerID(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "kunne ikke lese forespørselen"))
			return
		}
		var endring T
		if err := json.Unmarshal(raw, &endring); err != nil {
			httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "ugyldig endring"))
			return
		}
		var meta struct {
			ForslagID *uuid.UUID `json:"forslagId"`
		}
		if err := json.Unmarshal(raw, &meta); err != nil {
			httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "ugyldig endring"))
			return
		}

		d, err := h.service.Apply(r.Context(), id, endring, actorFrom(r), meta.ForslagID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, d)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := deltakerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

// historikkEntry wraps each merged entry with its source tag so clients can
// dispatch without probing fields.
type historikkEntry struct {
	Type    historikk.EntryType `json:"type"`
	Payload any                 `json:"payload"`
}

func (h *Handler) historikk(w http.ResponseWriter, r *http.Request) {
	id, err := deltakerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.service.Historikk(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]historikkEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historikkEntry{Type: e.EntryType(), Payload: e})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) opprettUtkast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeltakerlisteID      uuid.UUID                    `json:"deltakerlisteId"`
		Personident          string                       `json:"personident"`
		Bakgrunnsinformasjon *string                      `json:"bakgrunnsinformasjon"`
		Innhold              *deltaker.Deltakelsesinnhold `json:"deltakelsesinnhold"`
		Deltakelsesprosent   *float64                     `json:"deltakelsesprosent"`
		DagerPerUke          *float32                     `json:"dagerPerUke"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "ugyldig påmelding"))
		return
	}
	if req.DeltakerlisteID == uuid.Nil || req.Personident == "" {
		httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "deltakerlisteId og personident er påkrevd"))
		return
	}

	d, err := h.service.OpprettUtkast(r.Context(), service.UtkastRequest{
		DeltakerlisteID:      req.DeltakerlisteID,
		Personident:          req.Personident,
		Bakgrunnsinformasjon: req.Bakgrunnsinformasjon,
		Innhold:              req.Innhold,
		Deltakelsesprosent:   req.Deltakelsesprosent,
		DagerPerUke:          req.DagerPerUke,
	}, actorFrom(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) godkjennUtkast(w http.ResponseWriter, r *http.Request) {
	id, err := deltakerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.GodkjennUtkast(r.Context(), id, actorFrom(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) avvisForslag(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "forslagId"))
	if err != nil {
		httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "ugyldig forslagId"))
		return
	}
	var req struct {
		Begrunnelse *string `json:"begrunnelse"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "ugyldig forespørsel"))
		return
	}

	f, err := h.service.AvvisForslag(r.Context(), id, actorFrom(r), req.Begrunnelse)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) slett(w http.ResponseWriter, r *http.Request) {
	id, err := deltakerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Slett(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type koordinatorRequest struct {
	Deltakere   []uuid.UUID      `json:"deltakere"`
	Aarsak      *deltaker.Aarsak `json:"aarsak"`
	Begrunnelse *string          `json:"begrunnelse"`
}

type koordinatorResponse struct {
	DeltakerID uuid.UUID `json:"deltakerId"`
	Feil       *string   `json:"feil"`
}

func (h *Handler) koordinator(typ historikk.KoordinatorEndringType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req koordinatorRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
			httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "ugyldig forespørsel"))
			return
		}
		if len(req.Deltakere) == 0 {
			httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "ingen deltakere angitt"))
			return
		}
		if typ == historikk.KoordinatorAvslag && req.Aarsak == nil {
			httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest, "avslag krever årsak"))
			return
		}

		res := h.service.KoordinatorEndring(r.Context(), typ, req.Deltakere, req.Aarsak, req.Begrunnelse, actorFrom(r))
		out := make([]koordinatorResponse, 0, len(res))
		for _, item := range res {
			resp := koordinatorResponse{DeltakerID: item.DeltakerID}
			if item.Err != nil {
				msg := item.Err.Error()
				resp.Feil = &msg
			}
			out = append(out, resp)
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}
