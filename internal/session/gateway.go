package session

import (
	"log/slog"
	"net/http"

	"tictactoe-rooms/internal/room"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("session")

// Gateway upgrades websocket connections and hands each one a session bound
// to the room registry.
type Gateway struct {
	registry *room.Registry
	upgrader websocket.Upgrader
}

func NewGateway(registry *room.Registry) *Gateway {
	return &Gateway{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS upgrades the request and starts the session pumps. Everything
// after the upgrade is driven by inbound intents.
func (g *Gateway) HandleWS(c *gin.Context) {
	_, span := tracer.Start(c.Request.Context(), "session.HandleWS", trace.WithAttributes(
		attribute.String("http.url", c.Request.URL.String()),
	))
	defer span.End()

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("failed to upgrade connection", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}

	s := newSession(conn, g.registry)
	span.SetAttributes(attribute.String("session.id", s.id))
	slog.Info("session connected", "session.id", s.id)

	go s.writePump()
	go s.readPump()
}
