package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/simywang/Teambot/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

const loiColumns = `id, conversation_id, chat_message_id, customer, product, ratio,
       incoterm, period, quantity_mt, status, created_by, created_at, updated_at`

// LOIStore is the persistence contract the mutation service depends on.
type LOIStore interface {
	Create(ctx context.Context, loi *model.LOI) (*model.LOI, error)
	GetByID(ctx context.Context, id string) (*model.LOI, error)
	GetByMessageID(ctx context.Context, messageID string) (*model.LOI, error)
	List(ctx context.Context, conversationID string) ([]model.LOI, error)
	Update(ctx context.Context, id string, patch *model.LOIPatch) (*model.LOI, error)
	Delete(ctx context.Context, id string) (bool, error)
	InsertHistory(ctx context.Context, entry *model.ModificationEntry) error
	ListHistory(ctx context.Context, loiID string, limit int) ([]model.ModificationEntry, error)
	GetConversationState(ctx context.Context, conversationID string) (*model.ConversationState, error)
	UpsertConversationState(ctx context.Context, conversationID string, messageID *string, cardTimestamp *time.Time) (*model.ConversationState, error)
}

type LOIRepository struct {
	pool *pgxpool.Pool
}

func NewLOIRepository(pool *pgxpool.Pool) *LOIRepository {
	return &LOIRepository{pool: pool}
}

func (r *LOIRepository) Create(ctx context.Context, loi *model.LOI) (*model.LOI, error) {
	if loi.ID == "" {
		loi.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO live_of_interests (
			id, conversation_id, chat_message_id, customer, product, ratio,
			incoterm, period, quantity_mt, status, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`,
		loi.ID, loi.ConversationID, loi.ChatMessageID, loi.Customer, loi.Product, loi.Ratio,
		loi.Incoterm, loi.Period, loi.QuantityMT, loi.Status, loi.CreatedBy,
	).Scan(&loi.CreatedAt, &loi.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return loi, nil
}

func (r *LOIRepository) GetByID(ctx context.Context, id string) (*model.LOI, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+loiColumns+`
		FROM live_of_interests WHERE id = $1
	`, id)
	return scanLOI(row)
}

func (r *LOIRepository) GetByMessageID(ctx context.Context, messageID string) (*model.LOI, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+loiColumns+`
		FROM live_of_interests WHERE chat_message_id = $1
	`, messageID)
	return scanLOI(row)
}

func (r *LOIRepository) List(ctx context.Context, conversationID string) ([]model.LOI, error) {
	query := `SELECT ` + loiColumns + ` FROM live_of_interests`
	var args []interface{}
	if conversationID != "" {
		query += ` WHERE conversation_id = $1`
		args = append(args, conversationID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lois []model.LOI
	for rows.Next() {
		l, err := scanLOI(rows)
		if err != nil {
			return nil, err
		}
		lois = append(lois, *l)
	}
	if lois == nil {
		lois = []model.LOI{}
	}
	return lois, nil
}

// Update applies only the fields present in the patch, in one statement, and
// always advances updated_at. The store's per-row atomicity is the only
// serialization for concurrent updates to the same id (last write wins).
func (r *LOIRepository) Update(ctx context.Context, id string, patch *model.LOIPatch) (*model.LOI, error) {
	setClauses, args := buildUpdateSet(patch)
	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE live_of_interests
		SET %s, updated_at = NOW()
		WHERE id = $%d
		RETURNING `+loiColumns+`
	`, strings.Join(setClauses, ", "), len(args))

	row := r.pool.QueryRow(ctx, query, args...)
	return scanLOI(row)
}

func (r *LOIRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM live_of_interests WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *LOIRepository) InsertHistory(ctx context.Context, entry *model.ModificationEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO modification_history (loi_id, modified_by, modified_source, changes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, modified_at
	`, entry.LOIID, entry.ModifiedBy, entry.Source, changes).Scan(&entry.ID, &entry.ModifiedAt)
}

func (r *LOIRepository) ListHistory(ctx context.Context, loiID string, limit int) ([]model.ModificationEntry, error) {
	query := `
		SELECT id, loi_id, modified_by, modified_source, changes, modified_at
		FROM modification_history
		WHERE loi_id = $1
		ORDER BY modified_at DESC
	`
	args := []interface{}{loiID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.ModificationEntry
	for rows.Next() {
		var e model.ModificationEntry
		var changes []byte
		if err := rows.Scan(&e.ID, &e.LOIID, &e.ModifiedBy, &e.Source, &changes, &e.ModifiedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(changes, &e.Changes); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if entries == nil {
		entries = []model.ModificationEntry{}
	}
	return entries, nil
}

func (r *LOIRepository) GetConversationState(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	s := &model.ConversationState{}
	err := r.pool.QueryRow(ctx, `
		SELECT conversation_id, last_processed_message_id, last_card_timestamp, updated_at
		FROM bot_conversation_state WHERE conversation_id = $1
	`, conversationID).Scan(&s.ConversationID, &s.LastProcessedMessageID, &s.LastCardTimestamp, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpsertConversationState overwrites only the supplied fields; COALESCE keeps
// the stored value when a field is not part of this upsert.
func (r *LOIRepository) UpsertConversationState(ctx context.Context, conversationID string, messageID *string, cardTimestamp *time.Time) (*model.ConversationState, error) {
	s := &model.ConversationState{}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bot_conversation_state (conversation_id, last_processed_message_id, last_card_timestamp, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (conversation_id)
		DO UPDATE SET
			last_processed_message_id = COALESCE($2, bot_conversation_state.last_processed_message_id),
			last_card_timestamp = COALESCE($3, bot_conversation_state.last_card_timestamp),
			updated_at = NOW()
		RETURNING conversation_id, last_processed_message_id, last_card_timestamp, updated_at
	`, conversationID, messageID, cardTimestamp).Scan(&s.ConversationID, &s.LastProcessedMessageID, &s.LastCardTimestamp, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func buildUpdateSet(patch *model.LOIPatch) ([]string, []interface{}) {
	var clauses []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch == nil {
		return clauses, args
	}
	if patch.Customer != nil {
		add("customer", *patch.Customer)
	}
	if patch.Product != nil {
		add("product", *patch.Product)
	}
	if patch.Ratio != nil {
		add("ratio", *patch.Ratio)
	}
	if patch.Incoterm != nil {
		add("incoterm", *patch.Incoterm)
	}
	if patch.Period != nil {
		add("period", *patch.Period)
	}
	if patch.QuantityMT != nil {
		add("quantity_mt", *patch.QuantityMT)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.ChatMessageID != nil {
		add("chat_message_id", *patch.ChatMessageID)
	}
	return clauses, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLOI(row rowScanner) (*model.LOI, error) {
	l := &model.LOI{}
	err := row.Scan(
		&l.ID, &l.ConversationID, &l.ChatMessageID, &l.Customer, &l.Product, &l.Ratio,
		&l.Incoterm, &l.Period, &l.QuantityMT, &l.Status, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}
