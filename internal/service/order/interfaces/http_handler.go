package interfaces

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/pkg/bootstrap"
	"marketplace/internal/pkg/httpx"
	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/middleware"
	"marketplace/internal/pkg/push"
	inventory "marketplace/internal/service/inventory/domain"
	"marketplace/internal/service/order/application"
	"marketplace/internal/service/order/domain"
	promotion "marketplace/internal/service/promotion/domain"
)

// OrderHandler 封装了订单服务的 HTTP 处理器
type OrderHandler struct {
	service *application.OrderApplicationService
	hub     *push.Hub
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例；hub 为 nil 时不开放 websocket 推送
func NewOrderHandler(service *application.OrderApplicationService, hub *push.Hub) *OrderHandler {
	return &OrderHandler{service: service, hub: hub}
}

// RegisterRoutes 注册客户接口、管理接口和推送入口
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(middleware.RequireRole())
		r.Post("/", h.handleCreate)
		r.Get("/my-orders", h.handleListMine)
		r.Get("/{id}", h.handleGetMine)
		r.Post("/{id}/cancel", h.handleCancel)
		r.Patch("/{id}/address", h.handleUpdateAddress)
	})

	r.Route("/admin/orders", func(r chi.Router) {
		r.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleBusiness))
		r.Get("/", h.handleListAll)
		r.Get("/{id}", h.handleGet)
		r.Get("/customer/{customerId}", h.handleListByCustomer)
		r.Get("/status/{status}", h.handleListByStatus)
		r.Patch("/{id}/status", h.handleUpdateStatus)
	})

	if h.hub != nil {
		r.With(middleware.RequireRole()).Get("/ws/orders", h.handlePush)
	}
}

func (h *OrderHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req application.CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id, _ := middleware.IdentityFrom(r.Context())
	req.CustomerID = id.UserID

	async := bootstrap.GetCurrentConfig().App.FeatureFlags.EnableAsyncCheckout
	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.Int64("customer.id", id.UserID),
		attribute.Bool("feature_flag.async_checkout", async),
	)

	if async {
		accepted, err := h.service.RequestCheckout(r.Context(), &req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusAccepted, accepted)
		return
	}

	dto, err := h.service.CreateOrder(r.Context(), &req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, dto)
}

func (h *OrderHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	list, err := h.service.ListOrdersByCustomer(r.Context(), id.UserID)
	respond(w, r, list, err)
}

func (h *OrderHandler) handleGetMine(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	dto, err := h.service.GetOrderForCustomer(r.Context(), chi.URLParam(r, "id"), id.UserID)
	respond(w, r, dto, err)
}

func (h *OrderHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	dto, err := h.service.CancelOrder(r.Context(), chi.URLParam(r, "id"), id.UserID)
	respond(w, r, dto, err)
}

func (h *OrderHandler) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id, _ := middleware.IdentityFrom(r.Context())
	dto, err := h.service.UpdateShippingAddress(r.Context(), chi.URLParam(r, "id"), id.UserID, body.Address)
	respond(w, r, dto, err)
}

func (h *OrderHandler) handleListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListOrders(r.Context())
	respond(w, r, list, err)
}

func (h *OrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	dto, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, dto, err)
}

func (h *OrderHandler) handleListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerId"), 10, 64)
	if err != nil || customerID <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid customer id")
		return
	}
	list, err := h.service.ListOrdersByCustomer(r.Context(), customerID)
	respond(w, r, list, err)
}

func (h *OrderHandler) handleListByStatus(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListOrdersByStatus(r.Context(), chi.URLParam(r, "status"))
	respond(w, r, list, err)
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id, _ := middleware.IdentityFrom(r.Context())
	dto, err := h.service.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), body.Status, id.UserID, body.Reason)
	respond(w, r, dto, err)
}

// handlePush 把连接挂到 Hub 上，只推送该用户自己的订单事件
func (h *OrderHandler) handlePush(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	h.hub.Serve(w, r, id.UserID)
}

func respond(w http.ResponseWriter, r *http.Request, data interface{}, err error) {
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, data)
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Msg("order request failed")
		if status == http.StatusInternalServerError {
			httpx.WriteError(w, status, "internal error")
			return
		}
	}
	httpx.WriteError(w, status, err.Error())
}

// StatusFor 把订单、库存、折扣三类领域错误映射为 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, promotion.ErrDiscountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrOutOfStock),
		errors.Is(err, inventory.ErrProductUnavailable),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrOrderNotEditable):
		return http.StatusConflict
	case errors.Is(err, promotion.ErrDiscountInactive),
		errors.Is(err, promotion.ErrDiscountExpired),
		errors.Is(err, promotion.ErrDiscountExhausted),
		errors.Is(err, promotion.ErrOrderBelowMinimum),
		errors.Is(err, promotion.ErrDiscountNotApplicable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, application.ErrAsyncCheckoutDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
