package webhook

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SystonTigers/app-sub004/internal/presentation/http/response"
	"github.com/SystonTigers/app-sub004/internal/provider"
	service "github.com/SystonTigers/app-sub004/internal/service/webhook"
	"github.com/SystonTigers/app-sub004/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/SystonTigers/app-sub004/transport/http/webhook")

// Handler receives provider webhook deliveries over HTTP. It hands the exact
// raw body and headers to the processor and maps typed outcomes to status
// codes: providers retry on 5xx (store/config failures) and stop on 2xx/4xx.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a webhook Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/webhooks/:provider", h.receive)
}

func (h *Handler) receive(c echo.Context) error {
	b := response.New(c)

	tag, err := provider.ParseTag(c.Param("provider"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("unknown provider", errorbank.WithCause(err))).Build()
	}

	rawBody, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return b.WithError(errorbank.BadRequest("unreadable body", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "webhooks.receive", trace.WithAttributes(
		attribute.String("webhook.provider", string(tag)),
	))
	defer span.End()

	result, err := h.svc.Process(ctx, tag, rawBody, flattenHeaders(c.Request().Header))
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusOK).WithData(result).Build()
}

// flattenHeaders keeps the first value per header name. Provider signature
// headers are single-valued; the processor's lookup tolerates any casing.
func flattenHeaders(header http.Header) provider.Headers {
	flat := make(provider.Headers, len(header))
	for name, values := range header {
		if len(values) > 0 {
			flat[name] = values[0]
		}
	}
	return flat
}
