package gadm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globicephala/sdm/internal/adapter/gadm"
	"github.com/globicephala/sdm/internal/domain"
)

// countingProvider tracks how many fetches reach the upstream.
type countingProvider struct {
	calls int
	empty bool
	err   error
}

func (p *countingProvider) FetchCoastline(_ context.Context, iso string, level int) (domain.Coastline, error) {
	p.calls++
	if p.err != nil {
		return domain.Coastline{}, p.err
	}
	coast := domain.Coastline{Country: iso, Level: level}
	if !p.empty {
		coast.Polygons = []geom.Polygon{{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}}}}
	}
	return coast, nil
}

func TestCachedProvider_SecondFetchHitsCache(t *testing.T) {
	inner := &countingProvider{}
	c := gadm.NewCachedProvider(inner, 4)
	ctx := context.Background()

	first, err := c.FetchCoastline(ctx, "FRA", 0)
	require.NoError(t, err)
	second, err := c.FetchCoastline(ctx, "FRA", 0)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.Country, second.Country)
	assert.Len(t, second.Polygons, 1)
}

func TestCachedProvider_KeyIncludesLevel(t *testing.T) {
	inner := &countingProvider{}
	c := gadm.NewCachedProvider(inner, 4)
	ctx := context.Background()

	_, err := c.FetchCoastline(ctx, "FRA", 0)
	require.NoError(t, err)
	_, err = c.FetchCoastline(ctx, "FRA", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedProvider_ErrorsAreNotCached(t *testing.T) {
	inner := &countingProvider{err: errors.New("upstream down")}
	c := gadm.NewCachedProvider(inner, 4)
	ctx := context.Background()

	_, err := c.FetchCoastline(ctx, "FRA", 0)
	require.Error(t, err)
	_, err = c.FetchCoastline(ctx, "FRA", 0)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls, "failed fetches must retry upstream")
}

func TestCachedProvider_EmptyResultsAreNotCached(t *testing.T) {
	inner := &countingProvider{empty: true}
	c := gadm.NewCachedProvider(inner, 4)
	ctx := context.Background()

	_, err := c.FetchCoastline(ctx, "ESP", 0)
	require.NoError(t, err)
	_, err = c.FetchCoastline(ctx, "ESP", 0)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedProvider_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &countingProvider{}
	c := gadm.NewCachedProvider(inner, 2)
	ctx := context.Background()

	_, err := c.FetchCoastline(ctx, "FRA", 0)
	require.NoError(t, err)
	_, err = c.FetchCoastline(ctx, "ESP", 0)
	require.NoError(t, err)
	// Touch FRA so ESP becomes least recently used.
	_, err = c.FetchCoastline(ctx, "FRA", 0)
	require.NoError(t, err)
	// PRT evicts ESP.
	_, err = c.FetchCoastline(ctx, "PRT", 0)
	require.NoError(t, err)

	before := inner.calls
	_, err = c.FetchCoastline(ctx, "FRA", 0)
	require.NoError(t, err)
	assert.Equal(t, before, inner.calls, "FRA should still be cached")

	_, err = c.FetchCoastline(ctx, "ESP", 0)
	require.NoError(t, err)
	assert.Equal(t, before+1, inner.calls, "ESP should have been evicted")
}
