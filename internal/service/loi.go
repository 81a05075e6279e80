package service

import (
	"context"
	"errors"
	"time"

	"github.com/simywang/Teambot/internal/model"
	"github.com/simywang/Teambot/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrLOINotFound   = errors.New("LOI not found")
	ErrMissingFields = errors.New("missing required fields")
)

// Publisher is the broadcast side of a mutation. The mutation service owns
// when an event is emitted; the publisher owns how it reaches clients.
type Publisher interface {
	PublishCreated(loi *model.LOI)
	PublishUpdated(loi *model.LOI, updatedBy, source string, changes map[string]any)
	PublishDeleted(loiID, deletedBy string)
	SendToRoom(conversationID, message string, data any)
}

// LOIService owns all LOI mutations. Both surfaces (REST handlers and the
// chat bot) go through it; nothing else writes to the store.
type LOIService struct {
	store     repository.LOIStore
	publisher Publisher
}

func NewLOIService(store repository.LOIStore, publisher Publisher) *LOIService {
	return &LOIService{store: store, publisher: publisher}
}

// Create validates and persists a new record, then broadcasts it. Status
// defaults to draft unless the caller supplies one (the chat confirm path
// passes confirmed explicitly).
func (s *LOIService) Create(ctx context.Context, req *model.CreateLOIRequest, createdBy string) (*model.LOI, error) {
	if req.Customer == "" || req.Product == "" || req.Ratio == 0 ||
		req.Incoterm == "" || req.Period == "" || req.QuantityMT == 0 {
		return nil, ErrMissingFields
	}

	status := req.Status
	if status == "" {
		status = model.StatusDraft
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = model.ConversationWeb
	}

	loi := &model.LOI{
		ConversationID: conversationID,
		ChatMessageID:  req.ChatMessageID,
		Customer:       req.Customer,
		Product:        req.Product,
		Ratio:          req.Ratio,
		Incoterm:       req.Incoterm,
		Period:         req.Period,
		QuantityMT:     req.QuantityMT,
		Status:         status,
		CreatedBy:      createdBy,
	}

	created, err := s.store.Create(ctx, loi)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishCreated(created)
	return created, nil
}

// validID guards the uuid columns: a malformed id can never match a record,
// so it is not-found rather than a database cast error.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

func (s *LOIService) GetByID(ctx context.Context, id string) (*model.LOI, error) {
	if !validID(id) {
		return nil, ErrLOINotFound
	}
	loi, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrLOINotFound
	}
	return loi, err
}

func (s *LOIService) GetByMessageID(ctx context.Context, messageID string) (*model.LOI, error) {
	loi, err := s.store.GetByMessageID(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrLOINotFound
	}
	return loi, err
}

func (s *LOIService) List(ctx context.Context, conversationID string) ([]model.LOI, error) {
	return s.store.List(ctx, conversationID)
}

// Update applies a sparse patch. An empty patch is a silent no-op: the
// current record comes back with no history entry and no broadcast. A
// non-empty patch produces exactly one history entry recording the patch as
// supplied (not a before/after diff) and one updated event. The service never
// infers a status change; callers that want modified set it in the patch.
func (s *LOIService) Update(ctx context.Context, id string, patch *model.LOIPatch, modifiedBy, source string) (*model.LOI, error) {
	if !validID(id) {
		return nil, ErrLOINotFound
	}
	if patch.IsEmpty() {
		return s.GetByID(ctx, id)
	}

	updated, err := s.store.Update(ctx, id, patch)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrLOINotFound
	}
	if err != nil {
		return nil, err
	}

	changes := patch.Changes()
	entry := &model.ModificationEntry{
		LOIID:      id,
		ModifiedBy: modifiedBy,
		Source:     source,
		Changes:    changes,
	}
	if err := s.store.InsertHistory(ctx, entry); err != nil {
		return nil, err
	}

	s.publisher.PublishUpdated(updated, modifiedBy, source, changes)
	return updated, nil
}

// Delete removes the record if it exists. A missing id is not an error: the
// boolean tells the caller, and no event is emitted. History rows survive the
// delete for audit.
func (s *LOIService) Delete(ctx context.Context, id string, deletedBy string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.publisher.PublishDeleted(id, deletedBy)
	}
	return deleted, nil
}

// GetHistory returns the audit trail, newest first. limit <= 0 means all.
func (s *LOIService) GetHistory(ctx context.Context, loiID string, limit int) ([]model.ModificationEntry, error) {
	if !validID(loiID) {
		return []model.ModificationEntry{}, nil
	}
	return s.store.ListHistory(ctx, loiID, limit)
}

// NotifyConversation sends an informational notification to the sessions
// subscribed to one conversation room. Best effort, no error to report.
func (s *LOIService) NotifyConversation(conversationID, message string, data any) {
	s.publisher.SendToRoom(conversationID, message, data)
}

// GetConversationState returns nil (without error) when no cursor exists yet.
func (s *LOIService) GetConversationState(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	state, err := s.store.GetConversationState(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return state, err
}

// UpsertConversationState merges at field level: nil arguments preserve the
// stored values.
func (s *LOIService) UpsertConversationState(ctx context.Context, conversationID string, messageID *string, cardTimestamp *time.Time) (*model.ConversationState, error) {
	return s.store.UpsertConversationState(ctx, conversationID, messageID, cardTimestamp)
}
