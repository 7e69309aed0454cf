package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key patterns for Redis game state.
func stateKey(gameID string) string      { return "game:" + gameID + ":state" }
func eventsChannel(gameID string) string { return "game:" + gameID + ":events" }

const activeKey = "games:active"

// stateTTL bounds how long an abandoned game's state lingers in the cache.
const stateTTL = 24 * time.Hour

// SetGameState stores the live engine snapshot.
func (c *Client) SetGameState(ctx context.Context, gameID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, stateKey(gameID), []byte(state), stateTTL).Err()
}

// GetGameState retrieves the live engine snapshot.
func (c *Client) GetGameState(ctx context.Context, gameID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game state: %w", err)
	}
	return json.RawMessage(data), nil
}

// MarkActive adds a game to the set the tick runner drives.
func (c *Client) MarkActive(ctx context.Context, gameID string) error {
	return c.rdb.SAdd(ctx, activeKey, gameID).Err()
}

// UnmarkActive removes a game from the active set.
func (c *Client) UnmarkActive(ctx context.Context, gameID string) error {
	return c.rdb.SRem(ctx, activeKey, gameID).Err()
}

// ActiveGames returns the ids of every active game.
func (c *Client) ActiveGames(ctx context.Context) ([]string, error) {
	ids, err := c.rdb.SMembers(ctx, activeKey).Result()
	if err != nil {
		return nil, fmt.Errorf("active games: %w", err)
	}
	return ids, nil
}

// PublishEvent fans an engine event out to every subscriber of the game.
func (c *Client) PublishEvent(ctx context.Context, gameID string, event json.RawMessage) error {
	return c.rdb.Publish(ctx, eventsChannel(gameID), []byte(event)).Err()
}

// SubscribeEvents returns a subscription to a game's event channel. The
// caller closes it.
func (c *Client) SubscribeEvents(ctx context.Context, gameID string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, eventsChannel(gameID))
}

// DeleteGameData removes all Redis data for a game.
func (c *Client) DeleteGameData(ctx context.Context, gameID string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, stateKey(gameID))
	pipe.SRem(ctx, activeKey, gameID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete game data: %w", err)
	}
	return nil
}
