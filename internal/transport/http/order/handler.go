package order

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SystonTigers/app-sub004/internal/dto"
	"github.com/SystonTigers/app-sub004/internal/entity"
	"github.com/SystonTigers/app-sub004/internal/presentation/http/response"
	"github.com/SystonTigers/app-sub004/internal/provider"
	service "github.com/SystonTigers/app-sub004/internal/service/order"
	"github.com/SystonTigers/app-sub004/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/SystonTigers/app-sub004/transport/http/order")

// Handler exposes reconciled orders over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("/:provider/:id", h.getByKey)
}

func (h *Handler) getByKey(c echo.Context) error {
	b := response.New(c)

	tag, err := provider.ParseTag(c.Param("provider"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("unknown provider", errorbank.WithCause(err))).Build()
	}
	orderID := c.Param("id")
	if orderID == "" {
		return b.WithError(errorbank.BadRequest("order id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByKey", trace.WithAttributes(
		attribute.String("order.provider", string(tag)),
		attribute.String("order.id", orderID),
	))
	defer span.End()

	record, err := h.svc.Get(ctx, string(tag), orderID)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(record)).Build()
}

func toDTO(record *entity.OrderRecord) dto.OrderResponse {
	return dto.OrderResponse{
		OrderID:       record.OrderID,
		Provider:      record.Provider,
		Status:        record.Status,
		Amount:        record.Amount,
		Currency:      record.Currency,
		CustomerEmail: record.CustomerEmail,
		Metadata:      record.Metadata,
		LastEventType: record.LastEventType,
		LastEventAt:   record.LastEventAt,
		RawEventID:    record.RawEventID,
		UpdatedAt:     record.UpdatedAt,
	}
}
