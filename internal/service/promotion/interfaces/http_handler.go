package interfaces

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"marketplace/internal/pkg/httpx"
	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/middleware"
	"marketplace/internal/service/promotion/application"
	"marketplace/internal/service/promotion/domain"
)

// DiscountHandler 封装了折扣码相关的 HTTP 处理器
type DiscountHandler struct {
	service *application.DiscountService
}

// NewDiscountHandler 创建一个新的 HTTP 处理器实例
func NewDiscountHandler(service *application.DiscountService) *DiscountHandler {
	return &DiscountHandler{service: service}
}

// RegisterRoutes 注册公开接口与管理接口
func (h *DiscountHandler) RegisterRoutes(r chi.Router) {
	r.Route("/discounts", func(r chi.Router) {
		r.Post("/validate", h.handleValidate)
		r.Get("/valid", h.handleListValid)
		r.Get("/code/{code}", h.handleGetByCode)
	})

	r.Route("/admin/discounts", func(r chi.Router) {
		r.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleBusiness))
		r.Get("/", h.handleListActive)
		r.Post("/", h.handleCreate)
		r.Get("/mine", h.handleListMine)
		r.Get("/search", h.handleSearch)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDeactivate)
		r.Patch("/{id}/status", h.handleSetStatus)
	})
}

func (h *DiscountHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req application.EvaluateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Code == "" || req.Subtotal.IsNegative() {
		httpx.WriteError(w, http.StatusBadRequest, "code and a non-negative subtotal are required")
		return
	}
	if id, ok := middleware.IdentityFrom(r.Context()); ok && req.CustomerID == 0 {
		req.CustomerID = id.UserID
	}

	quote, err := h.service.Evaluate(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, quote)
}

func (h *DiscountHandler) handleListValid(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListValid(r.Context())
	respond(w, r, list, err)
}

func (h *DiscountHandler) handleGetByCode(w http.ResponseWriter, r *http.Request) {
	dto, err := h.service.GetByCode(r.Context(), chi.URLParam(r, "code"))
	respond(w, r, dto, err)
}

func (h *DiscountHandler) handleListActive(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListActive(r.Context())
	respond(w, r, list, err)
}

func (h *DiscountHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	list, err := h.service.ListByCreator(r.Context(), id.UserID)
	respond(w, r, list, err)
}

func (h *DiscountHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Search(r.Context(), r.URL.Query().Get("keyword"))
	respond(w, r, list, err)
}

func (h *DiscountHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req application.DiscountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id, _ := middleware.IdentityFrom(r.Context())
	dto, err := h.service.Create(r.Context(), id.UserID, &req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, dto)
}

func (h *DiscountHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	dto, err := h.service.GetByID(r.Context(), id)
	respond(w, r, dto, err)
}

func (h *DiscountHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req application.DiscountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	dto, err := h.service.Update(r.Context(), id, &req)
	respond(w, r, dto, err)
}

func (h *DiscountHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DiscountHandler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	dto, err := h.service.SetStatus(r.Context(), id, body.Status)
	respond(w, r, dto, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid discount id")
		return 0, false
	}
	return id, true
}

func respond(w http.ResponseWriter, r *http.Request, data interface{}, err error) {
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, data)
}

// writeDomainError 根据错误类型返回不同的 HTTP 状态码
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Msg("discount request failed")
		httpx.WriteError(w, status, "internal error")
		return
	}
	httpx.WriteError(w, status, err.Error())
}

// StatusFor 把折扣领域错误映射为 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrDiscountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidDiscount),
		errors.Is(err, domain.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateCode):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDiscountInactive),
		errors.Is(err, domain.ErrDiscountExpired),
		errors.Is(err, domain.ErrDiscountExhausted),
		errors.Is(err, domain.ErrOrderBelowMinimum),
		errors.Is(err, domain.ErrDiscountNotApplicable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
