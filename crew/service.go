// Package crew manages the volunteer roster and the cleanup log. Both live in
// the cache as whole documents and are rewritten on every mutation, so reads
// stay cheap and the storage contract stays the same as for every other key.
package crew

import (
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/cache"
	"github.com/shorecrew/shorecrew/types"
)

type Service struct {
	// mu serializes read-modify-write cycles on the roster and the log.
	mu       sync.Mutex
	cache    types.Cache
	logger   types.Logger
	notifier types.Notifier
	validate *validator.Validate
	now      func() time.Time
}

func NewService(c types.Cache, logger types.Logger, notifier types.Notifier) *Service {
	return &Service{
		cache:    c,
		logger:   logger,
		notifier: notifier,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithClock replaces the wall clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Roster() []types.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadRoster()
}

// Join validates the member, assigns an ID and appends it to the roster.
func (s *Service) Join(m types.Member) (types.Member, error) {
	if err := s.validate.Struct(m); err != nil {
		return types.Member{}, types.Errorf(types.ErrMemberInvalid, "%v", err)
	}

	m.ID = uuid.NewString()
	m.JoinedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	roster := append(s.loadRoster(), m)
	if !s.cache.Set(cache.KeyCrewRoster, roster) {
		return types.Member{}, types.Errorf(types.ErrRosterStoreRejected, "member: %s", m.Name)
	}

	s.publish(types.EventMemberJoined, m)
	return m, nil
}

// Leave removes the member with the given ID from the roster.
func (s *Service) Leave(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster := s.loadRoster()
	kept := make([]types.Member, 0, len(roster))
	var removed *types.Member

	for i := range roster {
		if roster[i].ID == id {
			m := roster[i]
			removed = &m
			continue
		}
		kept = append(kept, roster[i])
	}

	if removed == nil {
		return types.Errorf(types.ErrMemberNotFound, "id: %s", id)
	}

	if !s.cache.Set(cache.KeyCrewRoster, kept) {
		return types.Errorf(types.ErrRosterStoreRejected, "removing member: %s", id)
	}

	s.publish(types.EventMemberLeft, removed)
	return nil
}

func (s *Service) Cleanups() []types.CleanupEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCleanups()
}

// LogCleanup validates and records a cleanup. Member IDs that are not on the
// roster are dropped rather than rejected, a cleanup report should never fail
// because someone left in the meantime.
func (s *Service) LogCleanup(entry types.CleanupEntry) (types.CleanupEntry, error) {
	if err := s.validate.Struct(entry); err != nil {
		return types.CleanupEntry{}, types.Errorf(types.ErrCleanupEntryInvalid, "%v", err)
	}

	entry.ID = uuid.NewString()
	if entry.Date.IsZero() {
		entry.Date = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.MemberIDs = s.filterKnownMembers(entry.MemberIDs)

	log := append(s.loadCleanups(), entry)
	if !s.cache.Set(cache.KeyCleanupLog, log) {
		return types.CleanupEntry{}, types.Errorf(types.ErrRosterStoreRejected, "cleanup at: %s", entry.BeachSlug)
	}

	s.publish(types.EventCleanupLogged, entry)
	return entry, nil
}

// Stats aggregates the cleanup log and the roster.
func (s *Service) Stats() types.CleanupStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleanups := s.loadCleanups()

	stats := types.CleanupStats{
		TotalCleanups: len(cleanups),
		BagsByBeach:   make(map[string]int),
		CrewSize:      len(s.loadRoster()),
	}

	for _, c := range cleanups {
		stats.TotalBags += c.Bags
		stats.BagsByBeach[c.BeachSlug] += c.Bags
	}

	return stats
}

// Reset drops the roster and the cleanup log.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Remove(cache.KeyCrewRoster)
	s.cache.Remove(cache.KeyCleanupLog)
}

// loadRoster reads the roster unbounded: membership never expires.
func (s *Service) loadRoster() []types.Member {
	roster, ok := cache.GetAs[[]types.Member](s.cache, cache.KeyCrewRoster)
	if !ok {
		return nil
	}
	return roster
}

func (s *Service) loadCleanups() []types.CleanupEntry {
	log, ok := cache.GetAs[[]types.CleanupEntry](s.cache, cache.KeyCleanupLog)
	if !ok {
		return nil
	}
	sort.Slice(log, func(i, j int) bool {
		return log[i].Date.Before(log[j].Date)
	})
	return log
}

func (s *Service) filterKnownMembers(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}

	known := make(map[string]struct{})
	for _, m := range s.loadRoster() {
		known[m.ID] = struct{}{}
	}

	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; ok {
			kept = append(kept, id)
		} else {
			s.logger.Debug("Dropping unknown member from cleanup entry", zap.String("id", id))
		}
	}
	return kept
}

func (s *Service) publish(event string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(event, payload)
}
