package periods

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	internalShared "github.com/ledgerline/ledgerline/internal/shared"
)

// Handler exposes fiscal period endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers period routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/periods", h.list)
	r.Post("/periods", h.create)
	r.Post("/periods/{id}/close", h.close)
	r.Post("/periods/{id}/reopen", h.reopen)
}

type periodResponse struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	StartDate string     `json:"start_date"`
	EndDate   string     `json:"end_date"`
	Status    Status     `json:"status"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	ClosedBy  *int64     `json:"closed_by,omitempty"`
}

func toPeriodResponse(p Period) periodResponse {
	return periodResponse{
		ID:        p.ID,
		Code:      p.Code,
		StartDate: p.StartDate.Format("2006-01-02"),
		EndDate:   p.EndDate.Format("2006-01-02"),
		Status:    p.Status,
		ClosedAt:  p.ClosedAt,
		ClosedBy:  p.ClosedBy,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err, "list periods", 0)
		return
	}
	out := make([]periodResponse, 0, len(all))
	for _, p := range all {
		out = append(out, toPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code      string `json:"code"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "end_date must be YYYY-MM-DD")
		return
	}
	period, err := h.service.Create(r.Context(), req.Code, start, end)
	if err != nil {
		h.respondError(w, err, "create period", 0)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPeriodResponse(period))
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, "close period", h.service.Close)
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, "reopen period", h.service.Reopen)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, op string, apply func(ctx context.Context, id, actorID int64) error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid period id")
		return
	}
	var req struct {
		ActorID int64 `json:"actor_id"`
	}
	_ = httpx.DecodeJSON(r, &req)
	if err := apply(r.Context(), id, req.ActorID); err != nil {
		h.respondError(w, err, op, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string, id int64) {
	status := internalShared.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err), slog.Int64("id", id))
	}
	httpx.Problem(w, status, http.StatusText(status), internalShared.UserSafeMessage(err))
}
