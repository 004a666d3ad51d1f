package creditnote

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-dist/meridian/internal/platform/httpx"
)

// Handler manages the credit note endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers credit note routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.request)
	r.Get("/", h.listByStatus)
	r.Get("/{id}", h.get)
	r.Post("/{id}/approve-collections", h.approveCollections)
	r.Post("/{id}/confirm-warehouse", h.confirmWarehouse)
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) {
	var req RequestCreditNote
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, err := h.service.Request(r.Context(), req)
	if err != nil {
		h.logger.Warn("request credit note", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"credit_note_id": id})
}

func (h *Handler) listByStatus(w http.ResponseWriter, r *http.Request) {
	status := ApprovalStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = AwaitingCollections
	}
	notes, err := h.service.ListByStatus(r.Context(), status)
	if err != nil {
		h.logger.Error("list credit notes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, notes)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	note, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) approveCollections(w http.ResponseWriter, r *http.Request) {
	h.stage(w, r, "approve credit note", h.service.ApproveByCollections)
}

func (h *Handler) confirmWarehouse(w http.ResponseWriter, r *http.Request) {
	h.stage(w, r, "confirm credit note", h.service.ConfirmByWarehouse)
}

func (h *Handler) stage(w http.ResponseWriter, r *http.Request, action string, fn func(ctx context.Context, id int64, req StageRequest) error) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	var req StageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := fn(r.Context(), id, req); err != nil {
		h.logger.Warn(action, slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

func noteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid credit note id")
		return 0, false
	}
	return id, true
}
