package server

import (
	"tictactoe-rooms/internal/api/controller"
	"tictactoe-rooms/internal/session"

	"github.com/gin-gonic/gin"
)

// Server wires the HTTP API and the websocket gateway onto one gin engine.
type Server struct {
	engine *gin.Engine
}

// NewServer builds the engine and registers all routes.
func NewServer(gateway *session.Gateway, users *controller.UserController, lobby *controller.LobbyController) *Server {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	api := engine.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", users.Register)
			auth.POST("/login", users.Login)
			auth.POST("/guest", users.GuestLogin)
		}

		api.GET("/profile", users.AuthRequired(), users.Profile)
		api.GET("/rooms", lobby.ListRooms)
		api.GET("/games", lobby.RecentGames)
	}

	engine.GET("/ws", gateway.HandleWS)

	return &Server{engine: engine}
}

// Engine exposes the underlying gin engine for http.Server wiring.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
