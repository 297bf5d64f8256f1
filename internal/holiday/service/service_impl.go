package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taskforge/internal/clock"
	"github.com/smallbiznis/taskforge/internal/config"
	"github.com/smallbiznis/taskforge/internal/holiday/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	cacheTTL       = 24 * time.Hour
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock
	Redis *redis.Client `optional:"true"`
}

type Service struct {
	log    *zap.Logger
	cfg    config.Config
	clock  clock.Clock
	redis  *redis.Client
	client *http.Client

	mu   sync.Mutex
	memo map[string]memoEntry
}

type memoEntry struct {
	holidays []domain.Holiday
	expires  time.Time
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:    p.Log.Named("holiday.service"),
		cfg:    p.Cfg,
		clock:  p.Clock,
		redis:  p.Redis,
		client: &http.Client{Timeout: requestTimeout},
		memo:   make(map[string]memoEntry),
	}
}

func (s *Service) List(ctx context.Context, country string, year int) ([]domain.Holiday, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		country = s.cfg.HolidayCountry
	}
	key := fmt.Sprintf("holidays:%s:%d", country, year)

	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	holidays, err := s.fetch(ctx, country, year)
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, key, holidays)
	return holidays, nil
}

func (s *Service) fetch(ctx context.Context, country string, year int) ([]domain.Holiday, error) {
	url := fmt.Sprintf("%s/PublicHolidays/%d/%s", strings.TrimRight(s.cfg.HolidayAPIBaseURL, "/"), year, country)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	var holidays []domain.Holiday
	if err := json.Unmarshal(body, &holidays); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	return holidays, nil
}

func (s *Service) fromCache(ctx context.Context, key string) ([]domain.Holiday, bool) {
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			var holidays []domain.Holiday
			if json.Unmarshal(raw, &holidays) == nil {
				return holidays, true
			}
		} else if err != redis.Nil {
			s.log.Warn("holiday cache read failed", zap.Error(err))
		}
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.memo[key]
	if !ok || s.clock.Now().After(entry.expires) {
		return nil, false
	}
	return entry.holidays, true
}

func (s *Service) toCache(ctx context.Context, key string, holidays []domain.Holiday) {
	if s.redis != nil {
		raw, err := json.Marshal(holidays)
		if err != nil {
			return
		}
		if err := s.redis.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
			s.log.Warn("holiday cache write failed", zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.memo[key] = memoEntry{holidays: holidays, expires: s.clock.Now().Add(cacheTTL)}
}
