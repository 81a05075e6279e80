package service

import (
	"log"
	"sync"
	"time"

	"github.com/simywang/Teambot/internal/model"
)

// Transport is where published events go: the WebSocket hub in production,
// a capture fake in tests.
type Transport interface {
	Broadcast(event *model.WSEvent)
	SendToRoom(room string, event *model.WSEvent)
}

// detachedTransport is the state of the bus before a hub is attached at
// startup. Publishes are skipped with a warning, never queued or fatal.
type detachedTransport struct{}

func (detachedTransport) Broadcast(*model.WSEvent) {
	log.Println("[sync] broadcast skipped: no transport attached")
}

func (detachedTransport) SendToRoom(string, *model.WSEvent) {
	log.Println("[sync] room send skipped: no transport attached")
}

// SyncService fans mutation events out to every connected dashboard session.
// It starts detached; Attach wires the hub once during startup.
type SyncService struct {
	mu        sync.RWMutex
	transport Transport
}

func NewSyncService() *SyncService {
	return &SyncService{transport: detachedTransport{}}
}

func (s *SyncService) Attach(t Transport) {
	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()
}

func (s *SyncService) current() Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transport
}

func (s *SyncService) PublishCreated(loi *model.LOI) {
	event, err := model.NewWSEvent(model.EventLOICreated, model.LOICreatedPayload{
		LOI:       loi,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[sync] marshal created event: %v", err)
		return
	}
	s.current().Broadcast(event)
	log.Printf("[sync] broadcast LOI created: %s", loi.ID)
}

func (s *SyncService) PublishUpdated(loi *model.LOI, updatedBy, source string, changes map[string]any) {
	event, err := model.NewWSEvent(model.EventLOIUpdated, model.LOIUpdatedPayload{
		LOI:       loi,
		UpdatedBy: updatedBy,
		Source:    source,
		Changes:   changes,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[sync] marshal updated event: %v", err)
		return
	}
	s.current().Broadcast(event)
	log.Printf("[sync] broadcast LOI updated: %s by %s from %s", loi.ID, updatedBy, source)
}

func (s *SyncService) PublishDeleted(loiID, deletedBy string) {
	event, err := model.NewWSEvent(model.EventLOIDeleted, model.LOIDeletedPayload{
		LOIID:     loiID,
		DeletedBy: deletedBy,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[sync] marshal deleted event: %v", err)
		return
	}
	s.current().Broadcast(event)
	log.Printf("[sync] broadcast LOI deleted: %s", loiID)
}

func (s *SyncService) SendToRoom(conversationID, message string, data any) {
	event, err := model.NewWSEvent(model.EventNotification, model.NotificationPayload{
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[sync] marshal notification: %v", err)
		return
	}
	s.current().SendToRoom(conversationID, event)
}
