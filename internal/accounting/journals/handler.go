package journals

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	internalShared "github.com/ledgerline/ledgerline/internal/shared"
)

// Handler exposes journal entry endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/journals", h.listEntries)
	r.Post("/journals", h.createDraft)
	r.Get("/journals/{id}", h.getEntry)
	r.Post("/journals/{id}/post", h.postEntry)
	r.Post("/journals/{id}/reverse", h.reverseEntry)
	r.Delete("/journals/{id}", h.deleteDraft)
}

type lineRequest struct {
	AccountID int64   `json:"account_id"`
	Debit     float64 `json:"debit"`
	Credit    float64 `json:"credit"`
	Memo      string  `json:"memo"`
}

type createEntryRequest struct {
	Date      string        `json:"date"`
	Reference string        `json:"reference"`
	Memo      string        `json:"memo"`
	CreatedBy int64         `json:"created_by"`
	Lines     []lineRequest `json:"lines"`
}

type entryResponse struct {
	ID          int64          `json:"id"`
	Number      string         `json:"number"`
	Date        string         `json:"date"`
	Type        EntryType      `json:"type"`
	Status      EntryStatus    `json:"status"`
	Reference   string         `json:"reference,omitempty"`
	Memo        string         `json:"memo,omitempty"`
	Source      string         `json:"source_module,omitempty"`
	SourceID    string         `json:"source_id,omitempty"`
	PostedAt    *time.Time     `json:"posted_at,omitempty"`
	ReverseOfID *int64         `json:"reverse_of,omitempty"`
	Lines       []lineResponse `json:"lines,omitempty"`
}

type lineResponse struct {
	ID        int64   `json:"id"`
	AccountID int64   `json:"account_id"`
	Debit     float64 `json:"debit"`
	Credit    float64 `json:"credit"`
	Memo      string  `json:"memo,omitempty"`
}

func toEntryResponse(e JournalEntry) entryResponse {
	resp := entryResponse{
		ID:          e.ID,
		Number:      e.Number,
		Date:        e.Date.Format("2006-01-02"),
		Type:        e.Type,
		Status:      e.Status,
		Reference:   e.Reference,
		Memo:        e.Memo,
		Source:      e.SourceModule,
		PostedAt:    e.PostedAt,
		ReverseOfID: e.ReverseOfID,
	}
	if e.SourceID != uuid.Nil {
		resp.SourceID = e.SourceID.String()
	}
	for _, line := range e.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID: line.ID, AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit, Memo: line.Memo,
		})
	}
	return resp
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", internalShared.UserSafeMessage(err))
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err, "get journal", id)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "date must be YYYY-MM-DD")
		return
	}
	input := DraftInput{
		Date:      date,
		Reference: req.Reference,
		Memo:      req.Memo,
		CreatedBy: req.CreatedBy,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit, Memo: line.Memo,
		})
	}
	entry, err := h.service.CreateDraft(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err, "create journal draft", 0)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal id")
		return
	}
	var req struct {
		ActorID int64 `json:"actor_id"`
	}
	_ = httpx.DecodeJSON(r, &req)
	entry, err := h.service.Post(r.Context(), id, req.ActorID)
	if err != nil {
		h.respondError(w, r, err, "post journal", id)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal id")
		return
	}
	var req struct {
		ActorID int64  `json:"actor_id"`
		Reason  string `json:"reason"`
		Date    string `json:"date"`
	}
	_ = httpx.DecodeJSON(r, &req)
	input := ReverseInput{EntryID: id, ActorID: req.ActorID, Reason: req.Reason}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "date must be YYYY-MM-DD")
			return
		}
		input.Date = date
	}
	reversal, err := h.service.Reverse(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err, "reverse journal", id)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(reversal))
}

func (h *Handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal id")
		return
	}
	var req struct {
		ActorID int64 `json:"actor_id"`
	}
	_ = httpx.DecodeJSON(r, &req)
	if err := h.service.DeleteDraft(r.Context(), id, req.ActorID); err != nil {
		h.respondError(w, r, err, "delete journal draft", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error, op string, id int64) {
	status := internalShared.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err), slog.Int64("id", id))
	}
	httpx.Problem(w, status, http.StatusText(status), internalShared.UserSafeMessage(err))
}
