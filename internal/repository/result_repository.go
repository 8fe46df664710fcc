package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tictactoe-rooms/internal/events"
	"tictactoe-rooms/internal/game"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("repository.result")

const (
	recentGamesKey = "games:recent"
	historyLimit   = 100
)

// GameResult is one finished game as stored in the history list.
type GameResult struct {
	RoomID     string    `json:"room_id"`
	Winner     game.Mark `json:"winner"`
	Reason     string    `json:"reason"`
	FinishedAt time.Time `json:"finished_at"`
}

// ResultRepository records finished games and serves the recent-game
// listing. Recording happens after the terminal broadcast and is never on
// the move path.
type ResultRepository interface {
	Record(ctx context.Context, roomID string, winner game.Mark, reason string) error
	Recent(ctx context.Context, limit int64) ([]GameResult, error)
}

type redisResultRepository struct {
	rdb *redis.Client
}

// NewResultRepository creates a new Redis-based ResultRepository.
func NewResultRepository(rdb *redis.Client) ResultRepository {
	return &redisResultRepository{rdb: rdb}
}

// Record pushes the result onto the capped history list and publishes a
// game_finished event for external consumers.
func (r *redisResultRepository) Record(ctx context.Context, roomID string, winner game.Mark, reason string) error {
	ctx, span := tracer.Start(ctx, "ResultRepository.Record")
	defer span.End()

	result := GameResult{RoomID: roomID, Winner: winner, Reason: reason, FinishedAt: time.Now().UTC()}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal game result: %w", err)
	}

	pipe := r.rdb.Pipeline()
	pipe.LPush(ctx, recentGamesKey, data)
	pipe.LTrim(ctx, recentGamesKey, 0, historyLimit-1)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record game result: %w", err)
	}

	payload, _ := json.Marshal(events.GameFinishedPayload{
		RoomID: roomID,
		Winner: string(winner),
		Reason: reason,
	})
	event, _ := json.Marshal(events.Event{Type: "game_finished", Payload: payload})
	if err := r.rdb.Publish(ctx, events.EventsChannel, event).Err(); err != nil {
		return fmt.Errorf("failed to publish game_finished event: %w", err)
	}
	return nil
}

// Recent returns up to limit finished games, newest first.
func (r *redisResultRepository) Recent(ctx context.Context, limit int64) ([]GameResult, error) {
	ctx, span := tracer.Start(ctx, "ResultRepository.Recent")
	defer span.End()

	raw, err := r.rdb.LRange(ctx, recentGamesKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent games: %w", err)
	}

	results := make([]GameResult, 0, len(raw))
	for _, item := range raw {
		var res GameResult
		if err := json.Unmarshal([]byte(item), &res); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game result: %w", err)
		}
		results = append(results, res)
	}
	return results, nil
}
