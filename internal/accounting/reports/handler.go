package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	internalShared "github.com/ledgerline/ledgerline/internal/shared"
)

// Handler exposes reporting endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/balance-sheet", h.balanceSheet)
	r.Get("/ledger/{accountID}", h.ledger)
	r.Get("/ledgers", h.categoryLedgers)
	r.Get("/aged-receivables", h.agedReceivables)
	r.Get("/aged-payables", h.agedPayables)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	report, err := h.service.TrialBalance(r.Context(), from, to)
	if err != nil {
		h.respondError(w, err, "trial balance")
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	report, err := h.service.BalanceSheet(r.Context(), asOf)
	if err != nil {
		h.respondError(w, err, "balance sheet")
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	report, err := h.service.Ledger(r.Context(), accountID, from, to)
	if err != nil {
		h.respondError(w, err, "account ledger")
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) categoryLedgers(w http.ResponseWriter, r *http.Request) {
	category := accounts.Category(r.URL.Query().Get("category"))
	switch category {
	case accounts.CategoryAsset, accounts.CategoryLiability, accounts.CategoryEquity,
		accounts.CategoryRevenue, accounts.CategoryExpense:
	default:
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "category must be ASSET, LIABILITY, EQUITY, REVENUE, or EXPENSE")
		return
	}
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	ledgers, err := h.service.CategoryLedgers(r.Context(), category, from, to)
	if err != nil {
		h.respondError(w, err, "category ledgers")
		return
	}
	httpx.JSON(w, http.StatusOK, ledgers)
}

func (h *Handler) agedReceivables(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	report, err := h.service.AgedReceivables(r.Context(), asOf)
	if err != nil {
		h.respondError(w, err, "aged receivables")
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) agedPayables(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	report, err := h.service.AgedPayables(r.Context(), asOf)
	if err != nil {
		h.respondError(w, err, "aged payables")
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "from must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "to must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *Handler) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), true
	}
	asOf, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "as_of must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return asOf, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	status := internalShared.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.Problem(w, status, http.StatusText(status), internalShared.UserSafeMessage(err))
}
