package accounts

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	internalShared "github.com/ledgerline/ledgerline/internal/shared"
)

// Handler exposes chart of accounts endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers chart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.list)
	r.Post("/accounts", h.create)
	r.Get("/accounts/types", h.listTypes)
	r.Get("/accounts/{id}", h.get)
	r.Put("/accounts/{id}", h.update)
	r.Delete("/accounts/{id}", h.delete)
	r.Get("/accounts/{id}/descendants", h.descendants)
}

type bankRequest struct {
	BankName string `json:"bank_name"`
	IBAN     string `json:"iban"`
	SWIFT    string `json:"swift"`
}

type createAccountRequest struct {
	Code           string       `json:"code" validate:"required"`
	Name           string       `json:"name" validate:"required"`
	TypeID         int64        `json:"type_id" validate:"required"`
	ParentID       *int64       `json:"parent_id"`
	IsCash         bool         `json:"is_cash"`
	IsBank         bool         `json:"is_bank"`
	IsReconcilable bool         `json:"is_reconcilable"`
	IsControl      bool         `json:"is_control"`
	OpeningBalance float64      `json:"opening_balance"`
	OpeningDate    string       `json:"opening_date"`
	Bank           *bankRequest `json:"bank"`
	ActorID        int64        `json:"actor_id"`
}

type updateAccountRequest struct {
	Name           string       `json:"name" validate:"required"`
	IsReconcilable bool         `json:"is_reconcilable"`
	Bank           *bankRequest `json:"bank"`
	ActorID        int64        `json:"actor_id"`
}

type accountResponse struct {
	ID             int64    `json:"id"`
	Code           string   `json:"code"`
	Name           string   `json:"name"`
	TypeID         int64    `json:"type_id"`
	Category       Category `json:"category"`
	Nature         Nature   `json:"nature"`
	ParentID       *int64   `json:"parent_id,omitempty"`
	Level          int      `json:"level"`
	IsLeaf         bool     `json:"is_leaf"`
	IsCash         bool     `json:"is_cash"`
	IsBank         bool     `json:"is_bank"`
	IsReconcilable bool     `json:"is_reconcilable"`
	IsControl      bool     `json:"is_control"`
	IsSystem       bool     `json:"is_system"`
	IsActive       bool     `json:"is_active"`
	OpeningBalance float64  `json:"opening_balance"`
	OpeningDate    string   `json:"opening_date,omitempty"`
}

func toAccountResponse(a Account) accountResponse {
	resp := accountResponse{
		ID:             a.ID,
		Code:           a.Code,
		Name:           a.Name,
		TypeID:         a.TypeID,
		Category:       a.Category,
		Nature:         a.Nature(),
		ParentID:       a.ParentID,
		Level:          a.Level,
		IsLeaf:         a.IsLeaf,
		IsCash:         a.IsCash,
		IsBank:         a.IsBank,
		IsReconcilable: a.IsReconcilable,
		IsControl:      a.IsControl,
		IsSystem:       a.IsSystem,
		IsActive:       a.IsActive,
		OpeningBalance: a.OpeningBalance,
	}
	if a.OpeningDate != nil {
		resp.OpeningDate = a.OpeningDate.Format("2006-01-02")
	}
	return resp
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err, "list accounts", 0)
		return
	}
	out := make([]accountResponse, 0, len(all))
	for _, account := range all {
		out = append(out, toAccountResponse(account))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListTypes(r.Context())
	if err != nil {
		h.respondError(w, err, "list account types", 0)
		return
	}
	httpx.JSON(w, http.StatusOK, types)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get account", id)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	input := CreateInput{
		Code:           req.Code,
		Name:           req.Name,
		TypeID:         req.TypeID,
		ParentID:       req.ParentID,
		IsCash:         req.IsCash,
		IsBank:         req.IsBank,
		IsReconcilable: req.IsReconcilable,
		IsControl:      req.IsControl,
		OpeningBalance: req.OpeningBalance,
	}
	if req.OpeningDate != "" {
		date, err := time.Parse("2006-01-02", req.OpeningDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "opening_date must be YYYY-MM-DD")
			return
		}
		input.OpeningDate = &date
	}
	if req.Bank != nil {
		input.Bank = &BankDetails{BankName: req.Bank.BankName, IBAN: req.Bank.IBAN, SWIFT: req.Bank.SWIFT}
	}
	account, err := h.service.Create(r.Context(), input, req.ActorID)
	if err != nil {
		h.respondError(w, err, "create account", 0)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	var req updateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	input := UpdateInput{AccountID: id, Name: req.Name, IsReconcilable: req.IsReconcilable}
	if req.Bank != nil {
		input.Bank = &BankDetails{BankName: req.Bank.BankName, IBAN: req.Bank.IBAN, SWIFT: req.Bank.SWIFT}
	}
	if err := h.service.Update(r.Context(), input, req.ActorID); err != nil {
		h.respondError(w, err, "update account", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	var req struct {
		ActorID int64 `json:"actor_id"`
	}
	_ = httpx.DecodeJSON(r, &req)
	if err := h.service.Delete(r.Context(), id, req.ActorID); err != nil {
		h.respondError(w, err, "delete account", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) descendants(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	leavesOnly := r.URL.Query().Get("leaves") == "true"
	children, err := h.service.Descendants(r.Context(), id, leavesOnly)
	if err != nil {
		h.respondError(w, err, "list descendants", id)
		return
	}
	out := make([]accountResponse, 0, len(children))
	for _, account := range children {
		out = append(out, toAccountResponse(account))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string, id int64) {
	status := internalShared.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err), slog.Int64("id", id))
	}
	httpx.Problem(w, status, http.StatusText(status), internalShared.UserSafeMessage(err))
}
