package service

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"gorm.io/gorm"

	"pravha/api/internal/model"
)

// NATS subjects emitted by the SOS lifecycle.
const (
	SubjectSOSCreated = "pravha.sos.CREATED"
	SubjectSOSUpdated = "pravha.sos.UPDATED"
)

// sosTransitions is the lifecycle DAG: each status maps to the set of statuses
// reachable from it. Terminal states have no entry.
var sosTransitions = map[model.SOSStatus][]model.SOSStatus{
	model.SOSStatusPending:    {model.SOSStatusAssigned, model.SOSStatusCancelled},
	model.SOSStatusAssigned:   {model.SOSStatusInProgress, model.SOSStatusResolved, model.SOSStatusCancelled},
	model.SOSStatusInProgress: {model.SOSStatusResolved, model.SOSStatusCancelled},
}

// SOSService is the single logical owner of SOS request records. Every
// mutation runs under the store mutex, so a record can never be transitioned
// by two operators at once.
type SOSService struct {
	db       *gorm.DB
	natsConn *nats.Conn
	clock    clockwork.Clock
	shelters *ShelterService
	alerts   *AlertService

	maxMessageLen int

	mu       sync.RWMutex
	requests map[string]*model.SOSRequest
}

// NewSOSService creates the SOS lifecycle store. db and natsConn may be nil;
// shelters and alerts are optional collaborators for submission side effects.
func NewSOSService(db *gorm.DB, natsConn *nats.Conn, shelters *ShelterService, alerts *AlertService, maxMessageLen int) *SOSService {
	if maxMessageLen <= 0 {
		maxMessageLen = 500
	}
	return &SOSService{
		db:            db,
		natsConn:      natsConn,
		clock:         clockwork.NewRealClock(),
		shelters:      shelters,
		alerts:        alerts,
		maxMessageLen: maxMessageLen,
		requests:      make(map[string]*model.SOSRequest),
	}
}

// SetClock swaps the time source for deterministic tests.
func (s *SOSService) SetClock(c clockwork.Clock) {
	s.clock = c
}

// Load hydrates the store from the database.
func (s *SOSService) Load(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	var records []model.SOSRequest
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		r := records[i]
		s.requests[r.ID] = &r
	}
	log.Printf("[SOSLifecycle] Loaded %d requests", len(records))
	return nil
}

// Submit creates a PENDING request for a citizen. It also recommends nearby
// shelters and raises a high-severity alert so operators see the emergency on
// the live feed; both side effects are best effort and never fail the submit.
func (s *SOSService) Submit(ctx context.Context, requesterID string, loc model.Location, emergencyType model.EmergencyType, message, address string) (model.SOSSubmission, error) {
	if !loc.Valid() {
		return model.SOSSubmission{}, newError(CodeValidation, "coordinates (%f, %f) out of range", loc.Lat, loc.Lon)
	}
	if n := utf8.RuneCountInString(message); n > s.maxMessageLen {
		return model.SOSSubmission{}, newError(CodeValidation, "message length %d exceeds bound %d", n, s.maxMessageLen)
	}
	if emergencyType == "" {
		emergencyType = model.EmergencyFlood
	}
	if !model.KnownEmergencyType(emergencyType) {
		return model.SOSSubmission{}, newError(CodeValidation, "unknown emergency type %q", emergencyType)
	}

	now := s.clock.Now()
	req := &model.SOSRequest{
		ID:            uuid.NewString(),
		RequesterID:   requesterID,
		Lat:           loc.Lat,
		Lon:           loc.Lon,
		Address:       address,
		EmergencyType: emergencyType,
		Message:       message,
		Status:        model.SOSStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.requests[req.ID] = req
	record := *req
	s.mu.Unlock()

	s.persist(ctx, &record)
	s.publish(SubjectSOSCreated, record)

	submission := model.SOSSubmission{Request: record}
	if s.shelters != nil {
		if nearby, err := s.shelters.FindNearest(ctx, loc, 3, 0); err == nil {
			submission.RecommendedShelters = nearby
		}
	}
	if s.alerts != nil {
		if _, err := s.alerts.Ingest(ctx, 0.9, loc, "SOS Emergency: "+string(emergencyType)); err != nil {
			log.Printf("[SOSLifecycle] Failed to raise SOS alert: %v", err)
		}
	}
	return submission, nil
}

// Assign moves a PENDING request to ASSIGNED with the given officer. The
// check-and-set runs under the store lock, so at most one concurrent assign
// wins; the loser gets InvalidTransition.
func (s *SOSService) Assign(ctx context.Context, id, officer string) (model.SOSRequest, error) {
	if officer == "" {
		return model.SOSRequest{}, newError(CodeValidation, "assigned officer is required")
	}
	return s.transition(ctx, id, model.SOSStatusAssigned, func(req *model.SOSRequest) {
		req.AssignedOfficer = officer
	})
}

// MarkInProgress moves an ASSIGNED request to IN_PROGRESS.
func (s *SOSService) MarkInProgress(ctx context.Context, id string) (model.SOSRequest, error) {
	return s.transition(ctx, id, model.SOSStatusInProgress, nil)
}

// Resolve closes an ASSIGNED or IN_PROGRESS request and records the response
// time from creation to resolution.
func (s *SOSService) Resolve(ctx context.Context, id, notes string) (model.SOSRequest, error) {
	return s.transition(ctx, id, model.SOSStatusResolved, func(req *model.SOSRequest) {
		now := s.clock.Now()
		req.ResolvedAt = &now
		req.ResolutionNotes = notes
		minutes := now.Sub(req.CreatedAt).Minutes()
		req.ResponseTimeMinutes = &minutes
	})
}

// Cancel aborts a request from any non-terminal state.
func (s *SOSService) Cancel(ctx context.Context, id string) (model.SOSRequest, error) {
	return s.transition(ctx, id, model.SOSStatusCancelled, nil)
}

// transition applies the lifecycle DAG under the store lock.
func (s *SOSService) transition(ctx context.Context, id string, target model.SOSStatus, apply func(*model.SOSRequest)) (model.SOSRequest, error) {
	s.mu.Lock()
	req, ok := s.requests[id]
	if !ok {
		s.mu.Unlock()
		return model.SOSRequest{}, newError(CodeNotFound, "sos request %s not found", id)
	}
	if req.Status.Terminal() {
		s.mu.Unlock()
		return model.SOSRequest{}, newError(CodeTerminalState, "sos request %s already %s", id, req.Status)
	}
	if !transitionAllowed(req.Status, target) {
		s.mu.Unlock()
		return model.SOSRequest{}, newError(CodeInvalidTransition, "cannot move sos request %s from %s to %s", id, req.Status, target)
	}
	req.Status = target
	if apply != nil {
		apply(req)
	}
	req.UpdatedAt = s.clock.Now()
	record := *req
	s.mu.Unlock()

	s.persist(ctx, &record)
	s.publish(SubjectSOSUpdated, record)
	return record, nil
}

func transitionAllowed(from, to model.SOSStatus) bool {
	for _, next := range sosTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Get returns one request by id.
func (s *SOSService) Get(ctx context.Context, id string) (model.SOSRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return model.SOSRequest{}, newError(CodeNotFound, "sos request %s not found", id)
	}
	return *req, nil
}

// ListByStatus returns requests, optionally filtered by status, newest first.
func (s *SOSService) ListByStatus(ctx context.Context, status model.SOSStatus) []model.SOSRequest {
	s.mu.RLock()
	out := make([]model.SOSRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if status != "" && req.Status != status {
			continue
		}
		out = append(out, *req)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Counts returns total and pending request counts under a single read lock.
func (s *SOSService) Counts() (total, pending int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		total++
		if req.Status == model.SOSStatusPending {
			pending++
		}
	}
	return total, pending
}

func (s *SOSService) persist(ctx context.Context, req *model.SOSRequest) {
	if s.db == nil {
		return
	}
	if err := s.db.WithContext(ctx).Save(req).Error; err != nil {
		log.Printf("[SOSLifecycle] Failed to persist sos request %s: %v", req.ID, err)
	}
}

func (s *SOSService) publish(subject string, req model.SOSRequest) {
	if s.natsConn == nil {
		return
	}
	data, err := json.Marshal(req)
	if err != nil {
		return
	}
	if err := s.natsConn.Publish(subject, data); err != nil {
		log.Printf("[SOSLifecycle] Failed to publish %s: %v", subject, err)
	}
}
