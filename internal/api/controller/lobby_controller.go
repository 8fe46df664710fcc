package controller

import (
	"net/http"

	"tictactoe-rooms/internal/api/response"
	"tictactoe-rooms/internal/repository"
	"tictactoe-rooms/internal/room"

	"github.com/gin-gonic/gin"
)

// LobbyController serves read-only views of live rooms and finished games.
type LobbyController struct {
	registry *room.Registry
	results  repository.ResultRepository
}

// NewLobbyController creates a new LobbyController. results may be nil when
// the server runs without game history.
func NewLobbyController(registry *room.Registry, results repository.ResultRepository) *LobbyController {
	return &LobbyController{
		registry: registry,
		results:  results,
	}
}

// ListRooms returns a listing of every live room.
func (lc *LobbyController) ListRooms(c *gin.Context) {
	response.SuccessResponseList(c, lc.registry.List())
}

// RecentGames returns the most recently finished games, newest first.
func (lc *LobbyController) RecentGames(c *gin.Context) {
	if lc.results == nil {
		response.ErrorResponse(c, http.StatusServiceUnavailable, "game history is not available")
		return
	}

	results, err := lc.results.Recent(c.Request.Context(), 20)
	if err != nil {
		response.ErrorResponse(c, http.StatusInternalServerError, "failed to load recent games")
		return
	}

	response.SuccessResponseList(c, results)
}
