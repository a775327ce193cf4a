package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eventify/internal/models"

	"github.com/go-redis/redis/v8"
)

const CategoriesKey = "eventify:categories"

// CategoryCache holds the full category list as JSON.
type CategoryCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewCategoryCache(client *redis.Client, ttl time.Duration) *CategoryCache {
	return &CategoryCache{Client: client, TTL: ttl}
}

// GetCategories reports ok=false on a miss.
func (c *CategoryCache) GetCategories(ctx context.Context) ([]models.Category, bool, error) {
	raw, err := c.Client.Get(ctx, CategoriesKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get categories from redis: %w", err)
	}

	var categories []models.Category
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached categories: %w", err)
	}
	return categories, true, nil
}

func (c *CategoryCache) SetCategories(ctx context.Context, categories []models.Category) error {
	raw, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	if err := c.Client.Set(ctx, CategoriesKey, raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("store categories in redis: %w", err)
	}
	return nil
}

func (c *CategoryCache) InvalidateCategories(ctx context.Context) error {
	if err := c.Client.Del(ctx, CategoriesKey).Err(); err != nil {
		return fmt.Errorf("invalidate categories: %w", err)
	}
	return nil
}

// NopCategoryCache always misses.
type NopCategoryCache struct{}

func (NopCategoryCache) GetCategories(context.Context) ([]models.Category, bool, error) {
	return nil, false, nil
}

func (NopCategoryCache) SetCategories(context.Context, []models.Category) error { return nil }

func (NopCategoryCache) InvalidateCategories(context.Context) error { return nil }
