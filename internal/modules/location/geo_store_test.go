package location

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ubicaciones/internal/infra"
)

func TestRedisGeoIndex_AddAndSearch(t *testing.T) {
	redisAddr := os.Getenv("UBICACIONES_TEST_REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("UBICACIONES_TEST_REDIS_ADDR not set; skipping integration test")
	}
	ctx := context.Background()
	rdb, err := infra.NewRedis(ctx, redisAddr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	geo := NewRedisGeoIndex(rdb)
	near := testUnitID("near")
	far := testUnitID("far")
	t.Cleanup(func() { rdb.ZRem(context.Background(), unitGeoKey, near, far) })

	require.NoError(t, geo.Add(ctx, near, 19.4330, -99.1340))
	require.NoError(t, geo.Add(ctx, far, 19.4204, -99.1819))

	ids, err := geo.Search(ctx, 19.4326, -99.1332, 1)
	require.NoError(t, err)
	assert.Contains(t, ids, near)
	assert.NotContains(t, ids, far)

	// A second Add moves the member rather than duplicating it.
	require.NoError(t, geo.Add(ctx, far, 19.4327, -99.1333))
	ids, err = geo.Search(ctx, 19.4326, -99.1332, 1)
	require.NoError(t, err)
	assert.Contains(t, ids, far)
}
