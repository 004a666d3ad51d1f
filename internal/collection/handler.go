package collection

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-dist/meridian/internal/platform/httpx"
	"github.com/meridian-dist/meridian/internal/sales"
	"github.com/meridian-dist/meridian/internal/shared"
)

// Handler manages the payment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	clock    shared.Clock
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, clock shared.Clock) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, clock: clock}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.apply)
	r.Post("/batch", h.applyBatch)
	r.Get("/sale/{saleID}", h.listBySale)
	r.Get("/pending", h.listReceivables(h.service.ListPending))
	r.Get("/paid", h.listReceivables(h.service.ListPaid))
	r.Get("/history", h.listReceivables(h.service.ListHistory))
	r.Get("/summary", h.summary)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	reference, err := h.service.Apply(r.Context(), req)
	if err != nil {
		h.logger.Warn("apply payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"reference": reference})
}

func (h *Handler) applyBatch(w http.ResponseWriter, r *http.Request) {
	var req ApplyBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	references, err := h.service.ApplyBatch(r.Context(), req)
	if err != nil {
		h.logger.Warn("apply payment batch", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"references": references})
}

func (h *Handler) listReceivables(list func(context.Context, ReceivableFilter) ([]sales.Summary, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := receivableFilterFromQuery(r, h.clock.Now())
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		out, err := list(r.Context(), filter)
		if err != nil {
			h.logger.Error("list receivables", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, out)
	}
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	filter, err := receivableFilterFromQuery(r, h.clock.Now())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	totals, err := h.service.SummaryByMethod(r.Context(), filter.StartDate, filter.EndDate)
	if err != nil {
		h.logger.Error("payment summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func receivableFilterFromQuery(r *http.Request, now time.Time) (ReceivableFilter, error) {
	filter := ReceivableFilter{
		StartDate: now.AddDate(0, 0, -30),
		EndDate:   now.AddDate(0, 0, 1),
	}
	q := r.URL.Query()
	if v := q.Get("start_date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, shared.E(shared.KindValidation, "start_date must be YYYY-MM-DD")
		}
		filter.StartDate = d
	}
	if v := q.Get("end_date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, shared.E(shared.KindValidation, "end_date must be YYYY-MM-DD")
		}
		// End date is inclusive.
		filter.EndDate = d.AddDate(0, 0, 1)
	}
	if v := q.Get("client_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return filter, shared.E(shared.KindValidation, "client_id must be a positive integer")
		}
		filter.ClientID = &id
	}
	if v := q.Get("seller_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return filter, shared.E(shared.KindValidation, "seller_id must be a positive integer")
		}
		filter.SellerID = &id
	}
	if v := q.Get("sale_status"); v != "" {
		status := sales.Status(v)
		filter.SaleStatus = &status
	}
	return filter, nil
}

func (h *Handler) listBySale(w http.ResponseWriter, r *http.Request) {
	saleID, err := strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
	if err != nil || saleID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	payments, err := h.service.ListBySale(r.Context(), saleID)
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}
