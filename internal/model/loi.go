package model

import "time"

// LOI statuses. A record starts as draft (web) or confirmed (chat confirm),
// and becomes modified on any subsequent edit. Modified is sticky.
const (
	StatusDraft     = "draft"
	StatusConfirmed = "confirmed"
	StatusModified  = "modified"
)

// Mutation sources recorded in the modification history.
const (
	SourceChat = "chat"
	SourceWeb  = "web"
)

// ConversationWeb is the sentinel conversation id for records created from
// the dashboard rather than a chat thread.
const ConversationWeb = "web"

// LOI is a Live of Interest: a tracked trade proposal captured from a chat
// conversation or entered on the web dashboard.
type LOI struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	ChatMessageID  *string   `json:"chat_message_id,omitempty"`
	Customer       string    `json:"customer"`
	Product        string    `json:"product"`
	Ratio          float64   `json:"ratio"`
	Incoterm       string    `json:"incoterm"`
	Period         string    `json:"period"`
	QuantityMT     int       `json:"quantity_mt"`
	Status         string    `json:"status"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateLOIRequest carries all fields required to create a record.
type CreateLOIRequest struct {
	ConversationID string  `json:"conversation_id"`
	ChatMessageID  *string `json:"chat_message_id,omitempty"`
	Customer       string  `json:"customer"`
	Product        string  `json:"product"`
	Ratio          float64 `json:"ratio"`
	Incoterm       string  `json:"incoterm"`
	Period         string  `json:"period"`
	QuantityMT     int     `json:"quantity_mt"`
	Status         string  `json:"status,omitempty"`
}

// LOIPatch is a sparse update: nil fields are left untouched. The patch is
// persisted verbatim into the modification history (what was sent, not a
// before/after diff).
type LOIPatch struct {
	Customer      *string  `json:"customer,omitempty"`
	Product       *string  `json:"product,omitempty"`
	Ratio         *float64 `json:"ratio,omitempty"`
	Incoterm      *string  `json:"incoterm,omitempty"`
	Period        *string  `json:"period,omitempty"`
	QuantityMT    *int     `json:"quantity_mt,omitempty"`
	Status        *string  `json:"status,omitempty"`
	ChatMessageID *string  `json:"chat_message_id,omitempty"`
}

// IsEmpty reports whether the patch carries no fields at all.
func (p *LOIPatch) IsEmpty() bool {
	return p == nil || (p.Customer == nil && p.Product == nil && p.Ratio == nil &&
		p.Incoterm == nil && p.Period == nil && p.QuantityMT == nil &&
		p.Status == nil && p.ChatMessageID == nil)
}

// Changes returns the supplied fields as a map keyed by wire field name.
// This is what gets logged to history and broadcast to clients.
func (p *LOIPatch) Changes() map[string]any {
	changes := make(map[string]any)
	if p == nil {
		return changes
	}
	if p.Customer != nil {
		changes["customer"] = *p.Customer
	}
	if p.Product != nil {
		changes["product"] = *p.Product
	}
	if p.Ratio != nil {
		changes["ratio"] = *p.Ratio
	}
	if p.Incoterm != nil {
		changes["incoterm"] = *p.Incoterm
	}
	if p.Period != nil {
		changes["period"] = *p.Period
	}
	if p.QuantityMT != nil {
		changes["quantity_mt"] = *p.QuantityMT
	}
	if p.Status != nil {
		changes["status"] = *p.Status
	}
	if p.ChatMessageID != nil {
		changes["chat_message_id"] = *p.ChatMessageID
	}
	return changes
}

// ModificationEntry is one append-only audit row for a successful update.
type ModificationEntry struct {
	ID         int64          `json:"id"`
	LOIID      string         `json:"loi_id"`
	ModifiedBy string         `json:"modified_by"`
	Source     string         `json:"modified_source"`
	Changes    map[string]any `json:"changes"`
	ModifiedAt time.Time      `json:"modified_at"`
}

// ConversationState is the per-conversation bot cursor: the last chat message
// the bot processed and the time of the last card it produced.
type ConversationState struct {
	ConversationID         string     `json:"conversation_id"`
	LastProcessedMessageID *string    `json:"last_processed_message_id,omitempty"`
	LastCardTimestamp      *time.Time `json:"last_card_timestamp,omitempty"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// ExtractedLOI is the untrusted best-effort guess returned by the extraction
// collaborator. Every field may be absent.
type ExtractedLOI struct {
	Customer   *string  `json:"customer"`
	Product    *string  `json:"product"`
	Ratio      *float64 `json:"ratio"`
	Incoterm   *string  `json:"incoterm"`
	Period     *string  `json:"period"`
	QuantityMT *int     `json:"quantity_mt"`
}
