package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/nsyasa/okul-bilgi-pano/internal/bundle"
	"github.com/nsyasa/okul-bilgi-pano/internal/clock"
	"github.com/nsyasa/okul-bilgi-pano/internal/config"
	"github.com/nsyasa/okul-bilgi-pano/internal/db"
	"github.com/nsyasa/okul-bilgi-pano/internal/metrics"
	"github.com/nsyasa/okul-bilgi-pano/internal/mqtt"
	"github.com/nsyasa/okul-bilgi-pano/internal/player"
	"github.com/nsyasa/okul-bilgi-pano/internal/redis"
	"github.com/nsyasa/okul-bilgi-pano/internal/watchdog"
	"github.com/nsyasa/okul-bilgi-pano/internal/weather"
)

// reload counters only matter for the current day; the TTL keeps a
// decommissioned device from leaving keys behind
const reloadCounterTTL = 48 * time.Hour

// Services is everything the routes and the run group need.
type Services struct {
	Player    *player.Player
	Preview   *clock.Preview
	Guard     *watchdog.Guard
	Metrics   *metrics.Metrics
	Publisher *mqtt.Publisher
	redis     *goredis.Client
}

// InitServices wires the player and its collaborators. Redis and MQTT are
// best effort: the player keeps running on live data without them.
func InitServices(cfg *config.Config, conn *sqlx.DB) (*Services, error) {
	loc, err := clock.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("display timezone %q: %w", cfg.DisplayTimezone, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	wall := clock.System{}
	preview := clock.NewPreview(wall)

	rdb := redis.InitRedis(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
	if err := redis.Ping(context.Background(), rdb); err != nil {
		log.Warn().Err(err).Str("address", cfg.RedisAddress).Msg("redis unreachable, cache disabled until it comes back")
	}

	provider := db.NewProvider(conn, preview, loc)
	cache := redis.NewCache(rdb, cfg.CacheMaxAge, wall)
	loader := bundle.NewLoader(provider, cache, cfg.CacheKey, wall, m)

	guard := watchdog.NewGuard(
		redis.NewKV(rdb, reloadCounterTTL),
		fmt.Sprintf("player:%s:reloads", cfg.DeviceID),
		cfg.ReloadMaxPerDay,
		loc,
	)

	publisher := initPublisher(cfg)

	var ws player.WeatherSource
	if cfg.WeatherEnabled {
		ws = weather.NewClient(cfg.WeatherLatitude, cfg.WeatherLongitude, cfg.DisplayTimezone)
	}

	pcfg := player.DefaultConfig()
	pcfg.Location = loc
	p := player.New(pcfg, player.Deps{
		Loader:   loader,
		Policy:   watchdog.NewPolicy(),
		Guard:    guard,
		Clock:    preview,
		Wall:     wall,
		Weather:  ws,
		Notifier: publisher,
		Metrics:  m,
	})

	return &Services{
		Player:    p,
		Preview:   preview,
		Guard:     guard,
		Metrics:   m,
		Publisher: publisher,
		redis:     rdb,
	}, nil
}

// initPublisher returns a disabled publisher when no broker is configured
// or the broker is down at startup.
func initPublisher(cfg *config.Config) *mqtt.Publisher {
	if cfg.MQTTBrokerURL == "" {
		log.Info().Msg("MQTT_BROKER_URL not set, control messages disabled")
		return mqtt.NewPublisher(nil, cfg.DeviceID, "")
	}

	session := uuid.NewString()
	client, err := mqtt.Connect(cfg.MQTTBrokerURL, fmt.Sprintf("pano-%s-%s", cfg.DeviceID, session[:8]))
	if err != nil {
		log.Error().Err(err).Msg("mqtt unavailable, control messages disabled")
		return mqtt.NewPublisher(nil, cfg.DeviceID, session)
	}
	return mqtt.NewPublisher(client, cfg.DeviceID, session)
}

func (s *Services) Close() {
	s.Publisher.Close()
	if err := s.redis.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close redis")
	}
}
