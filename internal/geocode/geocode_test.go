package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/model"
)

func TestClient_Resolve(t *testing.T) {
	var gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		switch gotQuery {
		case "nowhere, AZ, USA":
			_, _ = w.Write([]byte(`[]`))
		case "boom, AZ, USA":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`[{"lat":"33.4152","lon":"-111.8315","display_name":"Mesa"}]`))
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/", UserAgent: "roofdispatch-test", RatePerSec: 1000, Suffix: "AZ, USA"})

	coord, err := c.Resolve(context.Background(), "85201")
	require.NoError(t, err)
	assert.InDelta(t, 33.4152, coord.Lat, 1e-9)
	assert.InDelta(t, -111.8315, coord.Lng, 1e-9)
	assert.Equal(t, "85201, AZ, USA", gotQuery)
	assert.Equal(t, "roofdispatch-test", gotAgent)

	_, err = c.Resolve(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoResult)

	_, err = c.Resolve(context.Background(), "boom")
	assert.Error(t, err)
}

func TestClient_RespectsContext(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", RatePerSec: 0.001})
	// 第一次请求消耗令牌
	c.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Resolve(ctx, "85201")
	assert.Error(t, err)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCache(client, time.Hour)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr, cache := newRedis(t)

	_, ok, err := cache.Get(ctx, "85201")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, " 85201 ", Entry{Coord: model.Coordinate{Lat: 1, Lng: 2}}))
	e, ok, err := cache.Get(ctx, "85201")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2.0, e.Coord.Lng)
	assert.Equal(t, time.Hour, mr.TTL("geocode:85201"))

	require.NoError(t, cache.Set(ctx, "nowhere", Entry{Miss: true}))
	assert.Equal(t, time.Hour/30, mr.TTL("geocode:nowhere"))
}

type fakeResolver struct {
	mu    sync.Mutex
	calls map[string]int
	delay time.Duration
}

func (f *fakeResolver) Resolve(ctx context.Context, address string) (model.Coordinate, error) {
	f.mu.Lock()
	f.calls[address]++
	f.mu.Unlock()
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return model.Coordinate{}, ctx.Err()
	}
	switch address {
	case "nowhere":
		return model.Coordinate{}, ErrNoResult
	case "broken":
		return model.Coordinate{}, errors.New("timeout")
	}
	return model.Coordinate{Lat: 33, Lng: -111}, nil
}

func (f *fakeResolver) count(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[address]
}

type countingObserver struct{ hits, misses int64 }

func (o *countingObserver) ObserveGeocode(source string, ok bool) {
	if ok {
		atomic.AddInt64(&o.hits, 1)
	} else {
		atomic.AddInt64(&o.misses, 1)
	}
}

func TestService_ResolveLayers(t *testing.T) {
	ctx := context.Background()
	_, cache := newRedis(t)
	resolver := &fakeResolver{calls: map[string]int{}}
	obs := &countingObserver{}
	svc := NewService(resolver, cache, 2)
	svc.SetObserver(obs)

	_, err := svc.Resolve(ctx, "85201")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, "85201")
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.count("85201"), "memory layer should serve the second call")

	// 新服务共享 Redis：不再访问上游
	svc2 := NewService(resolver, cache, 2)
	c, err := svc2.Resolve(ctx, "85201")
	require.NoError(t, err)
	assert.Equal(t, 33.0, c.Lat)
	assert.Equal(t, 1, resolver.count("85201"))

	_, err = svc.Resolve(ctx, "nowhere")
	assert.ErrorIs(t, err, ErrNoResult)
	_, err = svc2.Resolve(ctx, "nowhere")
	assert.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, 1, resolver.count("nowhere"), "negative results are cached")

	_, err = svc.Resolve(ctx, "broken")
	assert.True(t, apperrors.Is(err, apperrors.CodeGeocodeFailed))

	_, err = svc.Resolve(ctx, "   ")
	assert.ErrorIs(t, err, ErrNoResult)
	assert.Positive(t, atomic.LoadInt64(&obs.hits))
}

func TestService_CoalescesConcurrentRequests(t *testing.T) {
	resolver := &fakeResolver{calls: map[string]int{}, delay: 20 * time.Millisecond}
	svc := NewService(resolver, nil, 8)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Resolve(context.Background(), "1 Main St, Mesa")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, resolver.count("1 Main St, Mesa"))
}

func TestService_CancelledCallerDoesNotFailOthers(t *testing.T) {
	resolver := &fakeResolver{calls: map[string]int{}, delay: 50 * time.Millisecond}
	svc := NewService(resolver, nil, 2)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Resolve(first, "1 Main St, Mesa")
		firstErr <- err
	}()
	time.Sleep(10 * time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		_, err := svc.Resolve(context.Background(), "1 Main St, Mesa")
		secondErr <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	require.NoError(t, <-secondErr, "a waiter must not inherit another caller's cancellation")
	assert.Equal(t, 1, resolver.count("1 Main St, Mesa"))

	_, ok := svc.Lookup().Coordinate("1 Main St, Mesa")
	assert.True(t, ok, "the shared lookup still fills the memory layer")
}

func TestService_MissExpires(t *testing.T) {
	resolver := &fakeResolver{calls: map[string]int{}}
	svc := NewService(resolver, nil, 2)
	svc.SetMissTTL(time.Hour)
	now := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Resolve(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoResult)
	_, err = svc.Resolve(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, 1, resolver.count("nowhere"), "negative result is cached in memory")

	now = now.Add(61 * time.Minute)
	_, err = svc.Resolve(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, 2, resolver.count("nowhere"), "expired negative entry goes upstream again")
}

func TestService_Prepare(t *testing.T) {
	resolver := &fakeResolver{calls: map[string]int{}}
	svc := NewService(resolver, nil, 3)

	state := model.NewDayState("2024-06-03", []*model.Representative{
		{ID: "r1", PostalCodes: []string{"85201"}},
		{ID: "r2", PostalCodes: []string{"85201"}},
	}, model.DefaultSettings())
	state.Unassigned = []*model.Job{
		{ID: "j1", Address: "1 Main St", City: "Mesa"},
		{ID: "j2", Address: "nowhere"},
		{ID: "j3", Address: "broken"},
	}

	res, err := svc.Prepare(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, PrepareResult{Total: 4, Resolved: 2, Failed: 2}, res)

	_, ok := svc.Lookup().Coordinate("1 Main St, Mesa")
	assert.True(t, ok)
	_, ok = svc.Lookup().Coordinate("85201")
	assert.True(t, ok)

	empty, err := svc.Prepare(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}
