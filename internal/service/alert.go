package service

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"pravha/api/internal/config"
	"pravha/api/internal/model"
)

// SubjectAlertBroadcast carries broadcast intents; delivery to SMS/email
// channels is whatever subscribes here, never this service.
const SubjectAlertBroadcast = "pravha.alert.BROADCAST"

const recentAlertsKey = "pravha:alerts:recent"

// AlertService turns prediction output into alert records and tracks
// broadcast bookkeeping. Like the other stores, the in-memory map is the
// logical owner and the database is a write-through mirror.
type AlertService struct {
	db         *gorm.DB
	redis      *redis.Client
	natsConn   *nats.Conn
	clock      clockwork.Clock
	thresholds config.RiskThresholds

	expirySpec string
	alertTTL   time.Duration
	cron       *cron.Cron

	mu     sync.RWMutex
	alerts map[string]*model.Alert
}

// NewAlertService creates the alert engine. db, redisClient and natsConn may
// each be nil; thresholds with zero values fall back to the documented
// defaults.
func NewAlertService(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn, thresholds config.RiskThresholds) *AlertService {
	if thresholds.Moderate <= 0 {
		thresholds.Moderate = 0.3
	}
	if thresholds.High <= 0 {
		thresholds.High = 0.6
	}
	if thresholds.Critical <= 0 {
		thresholds.Critical = 0.85
	}
	return &AlertService{
		db:         db,
		redis:      redisClient,
		natsConn:   natsConn,
		clock:      clockwork.NewRealClock(),
		thresholds: thresholds,
		expirySpec: "@every 1h",
		alertTTL:   24 * time.Hour,
		alerts:     make(map[string]*model.Alert),
	}
}

// SetClock swaps the time source for deterministic tests.
func (s *AlertService) SetClock(c clockwork.Clock) {
	s.clock = c
}

// SetExpiryPolicy configures the scheduled sweep that resolves stale ACTIVE
// alerts. Must be called before Start.
func (s *AlertService) SetExpiryPolicy(spec string, ttl time.Duration) {
	if spec != "" {
		s.expirySpec = spec
	}
	if ttl > 0 {
		s.alertTTL = ttl
	}
}

// Load hydrates the engine from the database.
func (s *AlertService) Load(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	var records []model.Alert
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		a := records[i]
		s.alerts[a.ID] = &a
	}
	log.Printf("[AlertEngine] Loaded %d alerts", len(records))
	return nil
}

// Start launches the expiry sweep job.
func (s *AlertService) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.expirySpec, func() {
		expired := s.ExpireStale(context.Background())
		if expired > 0 {
			log.Printf("[AlertEngine] Expired %d stale alerts", expired)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop cancels the expiry job and waits for an in-flight run to finish.
func (s *AlertService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RiskLevel derives the severity label from a probability. Pure and monotonic
// over [0,1]; the cut points come from configuration.
func (s *AlertService) RiskLevel(probability float64) model.RiskLevel {
	switch {
	case probability >= s.thresholds.Critical:
		return model.RiskCritical
	case probability >= s.thresholds.High:
		return model.RiskHigh
	case probability >= s.thresholds.Moderate:
		return model.RiskModerate
	default:
		return model.RiskLow
	}
}

// Ingest creates an ACTIVE alert from a prediction result.
func (s *AlertService) Ingest(ctx context.Context, probability float64, loc model.Location, message string) (model.AlertView, error) {
	if probability < 0 || probability > 1 {
		return model.AlertView{}, newError(CodeValidation, "probability %f outside [0,1]", probability)
	}
	if !loc.Valid() {
		return model.AlertView{}, newError(CodeValidation, "coordinates (%f, %f) out of range", loc.Lat, loc.Lon)
	}

	now := s.clock.Now()
	alert := &model.Alert{
		ID:          uuid.NewString(),
		Probability: probability,
		Lat:         loc.Lat,
		Lon:         loc.Lon,
		Message:     message,
		Status:      model.AlertStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.alerts[alert.ID] = alert
	record := *alert
	s.mu.Unlock()

	s.persist(ctx, &record)
	return s.view(record), nil
}

// Broadcast increments the alert's broadcast counter and publishes the intent.
// It guarantees internal bookkeeping only, not external delivery.
func (s *AlertService) Broadcast(ctx context.Context, id string) (model.AlertView, error) {
	s.mu.Lock()
	alert, ok := s.alerts[id]
	if !ok {
		s.mu.Unlock()
		return model.AlertView{}, newError(CodeNotFound, "alert %s not found", id)
	}
	if alert.Status != model.AlertStatusActive {
		s.mu.Unlock()
		return model.AlertView{}, newError(CodeNotActive, "alert %s is %s", id, alert.Status)
	}
	now := s.clock.Now()
	alert.BroadcastCount++
	alert.LastBroadcastAt = &now
	alert.UpdatedAt = now
	record := *alert
	s.mu.Unlock()

	s.persist(ctx, &record)

	intent := model.BroadcastIntent{
		AlertID:        record.ID,
		RiskLevel:      s.RiskLevel(record.Probability),
		Probability:    record.Probability,
		Location:       record.Location(),
		Message:        record.Message,
		BroadcastCount: record.BroadcastCount,
		IssuedAt:       now,
	}
	s.publishIntent(ctx, intent)
	return s.view(record), nil
}

// Resolve flips an alert to RESOLVED. Resolving twice fails with NotActive.
func (s *AlertService) Resolve(ctx context.Context, id string) (model.AlertView, error) {
	s.mu.Lock()
	alert, ok := s.alerts[id]
	if !ok {
		s.mu.Unlock()
		return model.AlertView{}, newError(CodeNotFound, "alert %s not found", id)
	}
	if alert.Status != model.AlertStatusActive {
		s.mu.Unlock()
		return model.AlertView{}, newError(CodeNotActive, "alert %s is %s", id, alert.Status)
	}
	now := s.clock.Now()
	alert.Status = model.AlertStatusResolved
	alert.ResolvedAt = &now
	alert.UpdatedAt = now
	record := *alert
	s.mu.Unlock()

	s.persist(ctx, &record)
	return s.view(record), nil
}

// Get returns one alert by id.
func (s *AlertService) Get(ctx context.Context, id string) (model.AlertView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alert, ok := s.alerts[id]
	if !ok {
		return model.AlertView{}, newError(CodeNotFound, "alert %s not found", id)
	}
	return s.view(*alert), nil
}

// ListActive returns ACTIVE alerts, newest first.
func (s *AlertService) ListActive(ctx context.Context) []model.AlertView {
	return s.list(func(a *model.Alert) bool { return a.Status == model.AlertStatusActive }, 0)
}

// History returns the most recent alerts regardless of status.
func (s *AlertService) History(ctx context.Context, limit int) []model.AlertView {
	if limit <= 0 {
		limit = 10
	}
	return s.list(func(*model.Alert) bool { return true }, limit)
}

func (s *AlertService) list(keep func(*model.Alert) bool, limit int) []model.AlertView {
	s.mu.RLock()
	out := make([]model.AlertView, 0, len(s.alerts))
	for _, alert := range s.alerts {
		if keep(alert) {
			out = append(out, s.view(*alert))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ExpireStale resolves ACTIVE alerts older than the configured TTL and
// returns how many were flipped.
func (s *AlertService) ExpireStale(ctx context.Context) int {
	cutoff := s.clock.Now().Add(-s.alertTTL)

	s.mu.RLock()
	var stale []string
	for id, alert := range s.alerts {
		if alert.Status == model.AlertStatusActive && alert.CreatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	expired := 0
	for _, id := range stale {
		if _, err := s.Resolve(ctx, id); err == nil {
			expired++
		}
	}
	return expired
}

// Counts returns total and active alert counts under a single read lock.
func (s *AlertService) Counts() (total, active int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, alert := range s.alerts {
		total++
		if alert.Status == model.AlertStatusActive {
			active++
		}
	}
	return total, active
}

func (s *AlertService) view(a model.Alert) model.AlertView {
	return model.AlertView{Alert: a, RiskLevel: s.RiskLevel(a.Probability)}
}

func (s *AlertService) persist(ctx context.Context, alert *model.Alert) {
	if s.db == nil {
		return
	}
	if err := s.db.WithContext(ctx).Save(alert).Error; err != nil {
		log.Printf("[AlertEngine] Failed to persist alert %s: %v", alert.ID, err)
	}
}

func (s *AlertService) publishIntent(ctx context.Context, intent model.BroadcastIntent) {
	data, err := json.Marshal(intent)
	if err != nil {
		return
	}
	if s.natsConn != nil {
		if err := s.natsConn.Publish(SubjectAlertBroadcast, data); err != nil {
			log.Printf("[AlertEngine] Failed to publish broadcast intent: %v", err)
		}
	}
	if s.redis != nil {
		// Keep a short recent-broadcast list for dashboard cold starts.
		s.redis.LPush(ctx, recentAlertsKey, data)
		s.redis.LTrim(ctx, recentAlertsKey, 0, 99)
	}
}

// RecentBroadcasts reads the cached broadcast intents from Redis, newest
// first. Returns nil when no cache is configured.
func (s *AlertService) RecentBroadcasts(ctx context.Context, limit int) []model.BroadcastIntent {
	if s.redis == nil {
		return nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	raw, err := s.redis.LRange(ctx, recentAlertsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil
	}
	out := make([]model.BroadcastIntent, 0, len(raw))
	for _, item := range raw {
		var intent model.BroadcastIntent
		if err := json.Unmarshal([]byte(item), &intent); err == nil {
			out = append(out, intent)
		}
	}
	return out
}
