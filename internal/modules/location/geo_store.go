// README: Redis GEO index of last-known unit positions for radius search.
package location

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const unitGeoKey = "ubicaciones:geo"

type RedisGeoIndex struct {
	redis *redis.Client
}

func NewRedisGeoIndex(redis *redis.Client) *RedisGeoIndex {
	return &RedisGeoIndex{redis: redis}
}

// Add replaces the member's position; GEOADD on an existing member is an update.
func (g *RedisGeoIndex) Add(ctx context.Context, unitID string, lat, lon float64) error {
	return g.redis.GeoAdd(ctx, unitGeoKey, &redis.GeoLocation{
		Name:      unitID,
		Longitude: lon,
		Latitude:  lat,
	}).Err()
}

func (g *RedisGeoIndex) Search(ctx context.Context, lat, lon, radiusKm float64) ([]string, error) {
	return g.redis.GeoSearch(ctx, unitGeoKey, &redis.GeoSearchQuery{
		Longitude:  lon,
		Latitude:   lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
}
