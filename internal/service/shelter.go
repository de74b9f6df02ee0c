package service

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"pravha/api/internal/model"
)

// ShelterService is the single logical owner of shelter records. The
// in-memory map is authoritative; the database, when present, is a
// write-through mirror used for hydration across restarts.
type ShelterService struct {
	db    *gorm.DB
	clock clockwork.Clock

	mu       sync.RWMutex
	shelters map[string]*model.Shelter
}

// NewShelterService creates a new shelter registry. db may be nil for a
// memory-only registry.
func NewShelterService(db *gorm.DB) *ShelterService {
	return &ShelterService{
		db:       db,
		clock:    clockwork.NewRealClock(),
		shelters: make(map[string]*model.Shelter),
	}
}

// SetClock swaps the time source. Tests inject a fake for deterministic
// timestamps; production keeps the real clock.
func (s *ShelterService) SetClock(c clockwork.Clock) {
	s.clock = c
}

// Load hydrates the registry from the database.
func (s *ShelterService) Load(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	var records []model.Shelter
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		r := records[i]
		s.shelters[r.ID] = &r
	}
	log.Printf("[ShelterRegistry] Loaded %d shelters", len(records))
	return nil
}

// Register validates and stores a new shelter. Initial occupancy defaults to
// zero unless explicitly supplied.
func (s *ShelterService) Register(ctx context.Context, req model.CreateShelterRequest) (model.ShelterInfo, error) {
	if req.Capacity <= 0 {
		return model.ShelterInfo{}, newError(CodeValidation, "capacity must be positive, got %d", req.Capacity)
	}
	loc, err := parseLocation(req.Location)
	if err != nil {
		return model.ShelterInfo{}, err
	}
	if req.Occupancy < 0 || req.Occupancy > req.Capacity {
		return model.ShelterInfo{}, newError(CodeValidation, "initial occupancy %d outside [0, %d]", req.Occupancy, req.Capacity)
	}

	now := s.clock.Now()
	shelter := &model.Shelter{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Address:          req.Address,
		Lat:              loc.Lat,
		Lon:              loc.Lon,
		Capacity:         req.Capacity,
		CurrentOccupancy: req.Occupancy,
		Facilities:       req.Facilities,
		Contact:          req.Contact,
		Phone:            req.Phone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	s.mu.Lock()
	s.shelters[shelter.ID] = shelter
	view := info(*shelter)
	s.mu.Unlock()

	s.persist(ctx, shelter)
	return view, nil
}

// Update edits shelter metadata. Occupancy and maintenance have their own
// operations and are untouchable here.
func (s *ShelterService) Update(ctx context.Context, id string, req model.UpdateShelterRequest) (model.ShelterInfo, error) {
	s.mu.Lock()
	shelter, ok := s.shelters[id]
	if !ok {
		s.mu.Unlock()
		return model.ShelterInfo{}, newError(CodeNotFound, "shelter %s not found", id)
	}
	if req.Name != nil {
		shelter.Name = *req.Name
	}
	if req.Address != nil {
		shelter.Address = *req.Address
	}
	if req.Contact != nil {
		shelter.Contact = *req.Contact
	}
	if req.Phone != nil {
		shelter.Phone = *req.Phone
	}
	if req.Facilities != nil {
		shelter.Facilities = *req.Facilities
	}
	shelter.UpdatedAt = s.clock.Now()
	view := info(*shelter)
	record := *shelter
	s.mu.Unlock()

	s.persist(ctx, &record)
	return view, nil
}

// AdjustOccupancy applies a bounded delta to the shelter's occupancy. The
// check and the write happen under the registry lock so concurrent increments
// can never push occupancy past capacity or below zero.
func (s *ShelterService) AdjustOccupancy(ctx context.Context, id string, delta int) (model.ShelterInfo, error) {
	s.mu.Lock()
	shelter, ok := s.shelters[id]
	if !ok {
		s.mu.Unlock()
		return model.ShelterInfo{}, newError(CodeNotFound, "shelter %s not found", id)
	}
	next := shelter.CurrentOccupancy + delta
	if next > shelter.Capacity {
		s.mu.Unlock()
		return model.ShelterInfo{}, newError(CodeCapacityExceeded,
			"occupancy %d+%d exceeds capacity %d", shelter.CurrentOccupancy, delta, shelter.Capacity)
	}
	if next < 0 {
		s.mu.Unlock()
		return model.ShelterInfo{}, newError(CodeUnderflow,
			"occupancy %d%+d goes below zero", shelter.CurrentOccupancy, delta)
	}
	shelter.CurrentOccupancy = next
	shelter.UpdatedAt = s.clock.Now()
	view := info(*shelter)
	record := *shelter
	s.mu.Unlock()

	s.persist(ctx, &record)
	return view, nil
}

// SetMaintenance flips the explicit maintenance flag, which overrides the
// derived status while set.
func (s *ShelterService) SetMaintenance(ctx context.Context, id string, enabled bool) (model.ShelterInfo, error) {
	s.mu.Lock()
	shelter, ok := s.shelters[id]
	if !ok {
		s.mu.Unlock()
		return model.ShelterInfo{}, newError(CodeNotFound, "shelter %s not found", id)
	}
	shelter.Maintenance = enabled
	shelter.UpdatedAt = s.clock.Now()
	view := info(*shelter)
	record := *shelter
	s.mu.Unlock()

	s.persist(ctx, &record)
	return view, nil
}

// Get returns one shelter with its derived status.
func (s *ShelterService) Get(ctx context.Context, id string) (model.ShelterInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shelter, ok := s.shelters[id]
	if !ok {
		return model.ShelterInfo{}, newError(CodeNotFound, "shelter %s not found", id)
	}
	return info(*shelter), nil
}

// List returns all shelters with derived status, newest first.
func (s *ShelterService) List(ctx context.Context) []model.ShelterInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ShelterInfo, 0, len(s.shelters))
	for _, shelter := range s.shelters {
		out = append(out, info(*shelter))
	}
	sortSheltersByCreated(out)
	return out
}

// FindNearest returns up to k shelters ordered by great-circle distance from
// loc, optionally filtered to radiusKm. See nearestShelters for the
// availability fallback rule.
func (s *ShelterService) FindNearest(ctx context.Context, loc model.Location, k int, radiusKm float64) ([]model.ShelterDistance, error) {
	if !loc.Valid() {
		return nil, newError(CodeValidation, "coordinates (%f, %f) out of range", loc.Lat, loc.Lon)
	}
	candidates := s.List(ctx)
	return nearestShelters(candidates, loc, k, radiusKm), nil
}

// Counts returns total and available shelter counts under a single read lock.
// Available means the derived status is READY or OCCUPIED.
func (s *ShelterService) Counts() (total, available int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, shelter := range s.shelters {
		total++
		switch shelter.Status() {
		case model.ShelterStatusReady, model.ShelterStatusOccupied:
			available++
		}
	}
	return total, available
}

func (s *ShelterService) persist(ctx context.Context, shelter *model.Shelter) {
	if s.db == nil {
		return
	}
	if err := s.db.WithContext(ctx).Save(shelter).Error; err != nil {
		log.Printf("[ShelterRegistry] Failed to persist shelter %s: %v", shelter.ID, err)
	}
}

func info(s model.Shelter) model.ShelterInfo {
	return model.ShelterInfo{Shelter: s, Status: s.Status()}
}

// sortSheltersByCreated orders list output newest first, ties broken by id.
func sortSheltersByCreated(shelters []model.ShelterInfo) {
	sort.Slice(shelters, func(i, j int) bool {
		if !shelters[i].CreatedAt.Equal(shelters[j].CreatedAt) {
			return shelters[i].CreatedAt.After(shelters[j].CreatedAt)
		}
		return shelters[i].ID < shelters[j].ID
	})
}

// parseLocation validates a [lat, lon] pair from the wire.
func parseLocation(coords []float64) (model.Location, error) {
	if len(coords) != 2 {
		return model.Location{}, newError(CodeValidation, "location must be [lat, lon], got %d values", len(coords))
	}
	loc := model.Location{Lat: coords[0], Lon: coords[1]}
	if !loc.Valid() {
		return model.Location{}, newError(CodeValidation, "coordinates (%f, %f) out of range", loc.Lat, loc.Lon)
	}
	return loc, nil
}
