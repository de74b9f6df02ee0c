package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"pravha/api/internal/model"
)

// SubjectStatsSnapshot carries periodic dashboard snapshots.
const SubjectStatsSnapshot = "pravha.stats.SNAPSHOT"

const latestStatsKey = "pravha:stats:latest"

// UserCounter supplies user totals for the snapshot. Users live with the
// external auth collaborator; this is the read-side mirror.
type UserCounter interface {
	CountUsers(ctx context.Context) (total, active int64, err error)
}

// dbUserCounter counts mirrored users in Postgres.
type dbUserCounter struct {
	db *gorm.DB
}

// NewDBUserCounter returns a UserCounter over the users table. A nil db
// yields zero counts.
func NewDBUserCounter(db *gorm.DB) UserCounter {
	return &dbUserCounter{db: db}
}

func (c *dbUserCounter) CountUsers(ctx context.Context) (int64, int64, error) {
	if c.db == nil {
		return 0, 0, nil
	}
	var total, active int64
	if err := c.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := c.db.WithContext(ctx).Model(&model.User{}).Where("active = ?", true).Count(&active).Error; err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

// StatsService aggregates the three stores into dashboard snapshots. It only
// ever reads; each store is sampled under its own lock, so the snapshot is
// consistent per store (not linearizable across stores).
type StatsService struct {
	sos      *SOSService
	shelters *ShelterService
	alerts   *AlertService
	users    UserCounter
	redis    *redis.Client
	natsConn *nats.Conn
	clock    clockwork.Clock

	refreshSpec string
	cron        *cron.Cron
}

// NewStatsService creates the aggregator. redisClient and natsConn may be
// nil; users may be nil when no user mirror exists.
func NewStatsService(sos *SOSService, shelters *ShelterService, alerts *AlertService, users UserCounter, redisClient *redis.Client, natsConn *nats.Conn) *StatsService {
	return &StatsService{
		sos:         sos,
		shelters:    shelters,
		alerts:      alerts,
		users:       users,
		redis:       redisClient,
		natsConn:    natsConn,
		clock:       clockwork.NewRealClock(),
		refreshSpec: "@every 30s",
	}
}

// SetClock swaps the time source for deterministic tests.
func (s *StatsService) SetClock(c clockwork.Clock) {
	s.clock = c
}

// SetRefreshSpec overrides the refresh cadence. Must be called before Start.
func (s *StatsService) SetRefreshSpec(spec string) {
	if spec != "" {
		s.refreshSpec = spec
	}
}

// Snapshot computes the current dashboard numbers. Calling it twice without
// intervening mutations yields identical results except GeneratedAt.
func (s *StatsService) Snapshot(ctx context.Context) (model.SystemStats, error) {
	stats := model.SystemStats{GeneratedAt: s.clock.Now()}

	if s.users != nil {
		total, active, err := s.users.CountUsers(ctx)
		if err != nil {
			return model.SystemStats{}, err
		}
		stats.TotalUsers, stats.ActiveUsers = total, active
	}
	stats.TotalAlerts, stats.ActiveAlerts = s.alerts.Counts()
	stats.TotalSOSRequests, stats.PendingSOSRequests = s.sos.Counts()
	stats.TotalShelters, stats.AvailableShelters = s.shelters.Counts()

	return stats, nil
}

// Start launches the periodic refresher that feeds the dashboard cache and
// the live feed. Mutations never depend on this job.
func (s *StatsService) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.refreshSpec, s.refresh)
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[StatsAggregator] Refresh scheduled (%s)", s.refreshSpec)
	return nil
}

// Stop cancels the refresher and waits for an in-flight run to finish.
func (s *StatsService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *StatsService) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := s.Snapshot(ctx)
	if err != nil {
		log.Printf("[StatsAggregator] Refresh failed: %v", err)
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, latestStatsKey, data, 0).Err(); err != nil {
			log.Printf("[StatsAggregator] Failed to cache snapshot: %v", err)
		}
	}
	if s.natsConn != nil {
		if err := s.natsConn.Publish(SubjectStatsSnapshot, data); err != nil {
			log.Printf("[StatsAggregator] Failed to publish snapshot: %v", err)
		}
	}
}

// Cached returns the last refreshed snapshot from Redis, if any. Callers fall
// back to a live Snapshot when this misses.
func (s *StatsService) Cached(ctx context.Context) (model.SystemStats, bool) {
	if s.redis == nil {
		return model.SystemStats{}, false
	}
	raw, err := s.redis.Get(ctx, latestStatsKey).Bytes()
	if err != nil {
		return model.SystemStats{}, false
	}
	var stats model.SystemStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return model.SystemStats{}, false
	}
	return stats, true
}
