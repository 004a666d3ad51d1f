package sales

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-dist/meridian/internal/platform/httpx"
	"github.com/meridian-dist/meridian/internal/shared"
)

// Handler manages the sale lifecycle endpoints.
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

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.listByStatus)
	r.Get("/mine", h.listBySeller)
	r.Get("/deliveries", h.listByDeliveryUser)
	r.Get("/{id}/details", h.details)
	r.Get("/{id}/movements", h.movements)
	r.Get("/{id}/cancel-comments", h.cancelComments)
	r.Post("/{id}/package", h.packageSale)
	r.Post("/{id}/assign-delivery", h.assignDelivery)
	r.Post("/{id}/deliver", h.deliver)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/confirm-return", h.confirmReturn)
	r.Post("/{id}/cancel-omission", h.cancelOmission)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Warn("create sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"sale_id": id})
}

func (h *Handler) listByStatus(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	if status == "" {
		status = StatusProcessing
	}
	sales, err := h.service.ListByStatus(r.Context(), status)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sales)
}

func (h *Handler) listBySeller(w http.ResponseWriter, r *http.Request) {
	filter, err := sellerFilterFromQuery(r, h.clock.Now())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sales, err := h.service.ListBySeller(r.Context(), filter)
	if err != nil {
		h.logger.Error("list seller sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sales)
}

func (h *Handler) listByDeliveryUser(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	if status == "" {
		status = StatusAssignedForDelivery
	}
	sales, err := h.service.ListByDeliveryUser(r.Context(), status)
	if err != nil {
		h.logger.Error("list deliveries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sales)
}

func (h *Handler) details(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	details, err := h.service.Details(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	mv, err := h.service.Movements(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mv)
}

func (h *Handler) cancelComments(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	comments, err := h.service.CancelComments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, comments)
}

func (h *Handler) packageSale(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	var req PackageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	h.transition(w, r, "package sale", func() error {
		return h.service.Package(r.Context(), id, req)
	})
}

func (h *Handler) assignDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	var req AssignDeliveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	h.transition(w, r, "assign delivery", func() error {
		return h.service.AssignDelivery(r.Context(), id, req)
	})
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	h.transition(w, r, "deliver sale", func() error {
		return h.service.Deliver(r.Context(), id)
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.cancelRequest(w, r)
	if !ok {
		return
	}
	h.transition(w, r, "cancel sale", func() error {
		return h.service.CancelWithComment(r.Context(), id, req)
	})
}

func (h *Handler) confirmReturn(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.cancelRequest(w, r)
	if !ok {
		return
	}
	h.transition(w, r, "confirm return", func() error {
		return h.service.ConfirmReturn(r.Context(), id, req)
	})
}

func (h *Handler) cancelOmission(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.cancelRequest(w, r)
	if !ok {
		return
	}
	h.transition(w, r, "cancel by omission", func() error {
		return h.service.CancelByOmission(r.Context(), id, req)
	})
}

func (h *Handler) cancelRequest(w http.ResponseWriter, r *http.Request) (int64, CancelRequest, bool) {
	id, ok := saleID(w, r)
	if !ok {
		return 0, CancelRequest{}, false
	}
	var req CancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return 0, CancelRequest{}, false
	}
	return id, req, true
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, fn func() error) {
	if err := fn(); err != nil {
		h.logger.Warn(action, slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

func saleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return 0, false
	}
	return id, true
}

func sellerFilterFromQuery(r *http.Request, now time.Time) (ListBySellerFilter, error) {
	filter := ListBySellerFilter{}
	start := r.URL.Query().Get("start_date")
	end := r.URL.Query().Get("end_date")
	filter.StartDate = now.AddDate(0, 0, -30)
	filter.EndDate = now.AddDate(0, 0, 1)
	if start != "" {
		d, err := time.Parse("2006-01-02", start)
		if err != nil {
			return filter, shared.E(shared.KindValidation, "start_date must be YYYY-MM-DD")
		}
		filter.StartDate = d
	}
	if end != "" {
		d, err := time.Parse("2006-01-02", end)
		if err != nil {
			return filter, shared.E(shared.KindValidation, "end_date must be YYYY-MM-DD")
		}
		// End date is inclusive.
		filter.EndDate = d.AddDate(0, 0, 1)
	}
	if s := r.URL.Query().Get("sale_status"); s != "" {
		status := Status(s)
		filter.SaleStatus = &status
	}
	if s := r.URL.Query().Get("payment_status"); s != "" {
		status := PaymentStatus(s)
		filter.PaymentStatus = &status
	}
	return filter, nil
}
