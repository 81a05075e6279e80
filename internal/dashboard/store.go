// Package dashboard is the web-side consumer of the realtime channel: a
// local mirror of the LOI list kept in sync by applying broadcast events,
// plus the WebSocket client that feeds it.
package dashboard

import (
	"encoding/json"
	"fmt"

	"github.com/simywang/Teambot/internal/model"
)

// Store holds the mirrored record list, newest first. All apply operations
// are idempotent: duplicate delivery of the same event leaves the list
// unchanged.
type Store struct {
	records []model.LOI
}

func NewStore() *Store {
	return &Store{records: []model.LOI{}}
}

// ApplyCreated prepends the record unless it is already present by id.
func (s *Store) ApplyCreated(loi *model.LOI) {
	if loi == nil || s.indexOf(loi.ID) >= 0 {
		return
	}
	s.records = append([]model.LOI{*loi}, s.records...)
}

// ApplyUpdated replaces the matching record; unknown ids are ignored.
func (s *Store) ApplyUpdated(loi *model.LOI) {
	if loi == nil {
		return
	}
	if idx := s.indexOf(loi.ID); idx >= 0 {
		s.records[idx] = *loi
	}
}

// ApplyDeleted removes by id; absent ids are ignored.
func (s *Store) ApplyDeleted(id string) {
	if idx := s.indexOf(id); idx >= 0 {
		s.records = append(s.records[:idx], s.records[idx+1:]...)
	}
}

// Reconcile replaces local state with the server-confirmed record returned
// from a mutating call. Optimistic local edits are never merged with
// broadcast state; the server copy wins wholesale.
func (s *Store) Reconcile(loi *model.LOI) {
	if loi == nil {
		return
	}
	if idx := s.indexOf(loi.ID); idx >= 0 {
		s.records[idx] = *loi
		return
	}
	s.records = append([]model.LOI{*loi}, s.records...)
}

// Reset replaces the whole mirror, e.g. after an initial list fetch.
func (s *Store) Reset(lois []model.LOI) {
	s.records = append([]model.LOI{}, lois...)
}

// Records returns a copy of the current mirror.
func (s *Store) Records() []model.LOI {
	out := make([]model.LOI, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) Len() int {
	return len(s.records)
}

func (s *Store) Get(id string) (*model.LOI, bool) {
	if idx := s.indexOf(id); idx >= 0 {
		loi := s.records[idx]
		return &loi, true
	}
	return nil, false
}

// Apply dispatches a wire event onto the mirror. Unknown event types are
// ignored; malformed payloads are an error.
func (s *Store) Apply(event *model.WSEvent) error {
	switch event.Type {
	case model.EventLOICreated:
		var payload model.LOICreatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		s.ApplyCreated(payload.LOI)

	case model.EventLOIUpdated:
		var payload model.LOIUpdatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		s.ApplyUpdated(payload.LOI)

	case model.EventLOIDeleted:
		var payload model.LOIDeletedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		s.ApplyDeleted(payload.LOIID)
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}
