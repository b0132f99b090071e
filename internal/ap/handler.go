package ap

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	internalShared "github.com/ledgerline/ledgerline/internal/shared"
)

// Handler exposes AP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers AP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices", h.listInvoices)
	r.Post("/invoices", h.createInvoice)
	r.Get("/invoices/{id}", h.getInvoice)
	r.Post("/invoices/{id}/confirm", h.confirmInvoice)
	r.Post("/invoices/{id}/cancel", h.cancelInvoice)

	r.Get("/payments", h.listPayments)
	r.Post("/payments", h.createPayment)
	r.Get("/payments/{id}", h.getPayment)
	r.Post("/payments/{id}/post", h.postPayment)
	r.Post("/payments/{id}/unpost", h.unpostPayment)
	r.Patch("/payments/{id}", h.editPostedPayment)
	r.Delete("/payments/{id}", h.deletePayment)
}

type invoiceLineRequest struct {
	Description string  `json:"description" validate:"required"`
	Qty         float64 `json:"qty" validate:"gt=0"`
	UnitCost    float64 `json:"unit_cost" validate:"gte=0"`
}

type createInvoiceRequest struct {
	SupplierID   int64                `json:"supplier_id" validate:"required"`
	SupplierName string               `json:"supplier_name" validate:"required"`
	Date         string               `json:"date" validate:"required"`
	DueDate      string               `json:"due_date"`
	CreatedBy    int64                `json:"created_by"`
	Lines        []invoiceLineRequest `json:"lines" validate:"min=1,dive"`
}

type createPaymentRequest struct {
	InvoiceID int64   `json:"invoice_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0"`
	Date      string  `json:"date" validate:"required"`
	Method    string  `json:"method"`
	AccountID *int64  `json:"account_id"`
	Note      string  `json:"note"`
	CreatedBy int64   `json:"created_by"`
}

type editPaymentRequest struct {
	ActorID   int64    `json:"actor_id"`
	Amount    *float64 `json:"amount"`
	Date      *string  `json:"date"`
	Method    *string  `json:"method"`
	AccountID *int64   `json:"account_id"`
	Note      *string  `json:"note"`
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	status := InvoiceStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	invoices, err := h.service.ListInvoices(r.Context(), status, limit)
	if err != nil {
		h.respondError(w, err, "list AP invoices")
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get AP invoice")
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "date must be YYYY-MM-DD")
		return
	}
	input := CreateInvoiceInput{
		SupplierID:   req.SupplierID,
		SupplierName: req.SupplierName,
		Date:         date,
		CreatedBy:    req.CreatedBy,
	}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "due_date must be YYYY-MM-DD")
			return
		}
		input.DueDate = due
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, CreateInvoiceLine{
			Description: line.Description,
			Qty:         line.Qty,
			UnitCost:    line.UnitCost,
		})
	}
	invoice, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		h.respondError(w, err, "create AP invoice")
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) confirmInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.ConfirmInvoice(r.Context(), id, h.actor(r))
	if err != nil {
		h.respondError(w, err, "confirm AP invoice")
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.CancelInvoice(r.Context(), id, h.actor(r)); err != nil {
		h.respondError(w, err, "cancel AP invoice")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	payments, err := h.service.ListPayments(r.Context(), limit)
	if err != nil {
		h.respondError(w, err, "list AP payments")
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get AP payment")
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "date must be YYYY-MM-DD")
		return
	}
	payment, err := h.service.CreatePayment(r.Context(), CreatePaymentInput{
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
		Date:      date,
		Method:    PaymentMethod(req.Method),
		AccountID: req.AccountID,
		Note:      req.Note,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		h.respondError(w, err, "create AP payment")
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) postPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	payment, err := h.service.PostPayment(r.Context(), id, h.actor(r))
	if err != nil {
		h.respondError(w, err, "post AP payment")
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) unpostPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req struct {
		ActorID int64  `json:"actor_id"`
		Reason  string `json:"reason"`
	}
	_ = httpx.DecodeJSON(r, &req)
	payment, err := h.service.UnpostPayment(r.Context(), id, req.ActorID, req.Reason)
	if err != nil {
		h.respondError(w, err, "unpost AP payment")
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) editPostedPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req editPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	input := EditPaymentInput{
		PaymentID: id,
		ActorID:   req.ActorID,
		Amount:    req.Amount,
		AccountID: req.AccountID,
		Note:      req.Note,
	}
	if req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "date must be YYYY-MM-DD")
			return
		}
		input.Date = &date
	}
	if req.Method != nil {
		method := PaymentMethod(*req.Method)
		input.Method = &method
	}
	payment, err := h.service.EditPostedPayment(r.Context(), input)
	if err != nil {
		h.respondError(w, err, "edit posted AP payment")
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req struct {
		ActorID int64 `json:"actor_id"`
	}
	_ = httpx.DecodeJSON(r, &req)
	if err := h.service.DeletePayment(r.Context(), id, req.ActorID); err != nil {
		h.respondError(w, err, "delete AP payment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) actor(r *http.Request) int64 {
	var req struct {
		ActorID int64 `json:"actor_id"`
	}
	_ = httpx.DecodeJSON(r, &req)
	return req.ActorID
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
		message = internalShared.UserSafeMessage(err)
	}
	httpx.Problem(w, status, http.StatusText(status), message)
}

func statusFor(err error) int {
	var lpe *LedgerPostError
	switch {
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotDraft), errors.Is(err, ErrNotConfirmed), errors.Is(err, ErrNotPosted),
		errors.Is(err, ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrEditForbidden):
		return http.StatusForbidden
	case errors.As(err, &lpe):
		return http.StatusUnprocessableEntity
	default:
		return internalShared.StatusFor(err)
	}
}
