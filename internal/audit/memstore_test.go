package audit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/crucial707/licitasis/internal/models"
)

// memStore mirrors the queries of repo.AuditRepo over a slice.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	events []models.AuditEvent
	users  map[int]models.User
	err    error
}

func newMemStore() *memStore {
	return &memStore{users: map[int]models.User{}}
}

// seed stores e with an explicit creation time, bypassing the server clock.
func (s *memStore) seed(e models.AuditEvent, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	e.CreatedAt = createdAt
	s.events = append(s.events, e)
}

func (s *memStore) Insert(_ context.Context, e *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if !e.Action.Valid() {
		return errors.New(`violates check constraint "audit_log_action_check"`)
	}
	s.nextID++
	e.ID = s.nextID
	e.CreatedAt = time.Now()
	s.events = append(s.events, *e)
	return nil
}

func (s *memStore) newestFirst(keep func(models.AuditEvent) bool) []models.AuditEvent {
	var out []models.AuditEvent
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *memStore) ListByUser(_ context.Context, userID int, action models.Action, limit int) ([]models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := s.newestFirst(func(e models.AuditEvent) bool {
		return e.ActorID != nil && *e.ActorID == userID && (action == "" || e.Action == action)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Stats(_ context.Context, days int) ([]models.ActionStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	counts := map[models.Action]int{}
	actors := map[models.Action]map[int]bool{}
	for _, e := range s.events {
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		counts[e.Action]++
		if actors[e.Action] == nil {
			actors[e.Action] = map[int]bool{}
		}
		if e.ActorID != nil {
			actors[e.Action][*e.ActorID] = true
		}
	}
	var out []models.ActionStat
	for a, n := range counts {
		out = append(out, models.ActionStat{Action: a, Count: n, DistinctActors: len(actors[a])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Action < out[j].Action
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}

func (s *memStore) CountFailedLogins(_ context.Context, email string, windowSeconds int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	cutoff := time.Now().Add(-time.Duration(windowSeconds) * time.Second)
	n := 0
	for _, e := range s.events {
		if e.Action == models.ActionAccessDenied &&
			e.TargetTable != nil && *e.TargetTable == TableUsers &&
			e.SubjectEmail != nil && *e.SubjectEmail == email &&
			!e.CreatedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteOlderThan(_ context.Context, days int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	kept := s.events[:0]
	var deleted int64
	for _, e := range s.events {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return deleted, nil
}

func (s *memStore) Report(_ context.Context, start, end time.Time, userID *int) ([]models.ReportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	events := s.newestFirst(func(e models.AuditEvent) bool {
		if e.CreatedAt.Before(start) || e.CreatedAt.After(end) {
			return false
		}
		return userID == nil || (e.ActorID != nil && *e.ActorID == *userID)
	})
	out := make([]models.ReportRow, 0, len(events))
	for _, e := range events {
		row := models.ReportRow{AuditEvent: e}
		if e.ActorID != nil {
			if u, ok := s.users[*e.ActorID]; ok {
				name, perm := u.Name, u.Permission
				row.ActorFullName = &name
				row.ActorPermission = &perm
			}
		}
		out = append(out, row)
	}
	return out, nil
}
