package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/taskforge/internal/clock"
	"github.com/smallbiznis/taskforge/internal/config"
	"github.com/smallbiznis/taskforge/internal/holiday/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupHolidayService(t *testing.T, upstream string) (domain.Service, *clock.FakeClock) {
	t.Helper()

	fake := clock.NewFakeClock(time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		Log: zap.NewNop(),
		Cfg: config.Config{
			HolidayAPIBaseURL: upstream,
			HolidayCountry:    "JP",
		},
		Clock: fake,
	})
	return svc, fake
}

func TestListFetchesAndCaches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/PublicHolidays/2025/JP", r.URL.Path)
		fmt.Fprint(w, `[{"date":"2025-01-01","localName":"元日","name":"New Year's Day","countryCode":"JP"}]`)
	}))
	defer srv.Close()

	svc, _ := setupHolidayService(t, srv.URL)
	ctx := context.Background()

	holidays, err := svc.List(ctx, "jp", 2025)
	require.NoError(t, err)
	require.Len(t, holidays, 1)
	assert.Equal(t, "New Year's Day", holidays[0].Name)

	// second lookup is served from cache
	_, err = svc.List(ctx, "JP", 2025)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// a different year misses the cache
	_, err = svc.List(ctx, "JP", 2026)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestListCacheExpires(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	svc, fake := setupHolidayService(t, srv.URL)
	ctx := context.Background()

	_, err := svc.List(ctx, "JP", 2025)
	require.NoError(t, err)

	fake.Advance(25 * time.Hour)
	_, err = svc.List(ctx, "JP", 2025)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestListDefaultsCountry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/PublicHolidays/2025/JP", r.URL.Path)
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	svc, _ := setupHolidayService(t, srv.URL)

	_, err := svc.List(context.Background(), "  ", 2025)
	require.NoError(t, err)
}

func TestListUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc, _ := setupHolidayService(t, srv.URL)

	_, err := svc.List(context.Background(), "JP", 2025)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
