package bot

import (
	"log"
	"sync"

	"github.com/simywang/Teambot/internal/model"
	"github.com/simywang/Teambot/internal/service"

	"github.com/bwmarrin/discordgo"
)

// pendingDraft is an extraction result waiting for the triggering user's
// confirm or cancel, keyed by the preview message id.
type pendingDraft struct {
	Data             *model.ExtractedLOI
	RequesterID      string
	RequesterName    string
	ConversationID   string
	TriggerMessageID string
}

// Bot manages the chat surface: mention-triggered extraction previews and
// the confirm/cancel/edit card actions.
type Bot struct {
	session   *discordgo.Session
	loiSvc    *service.LOIService
	extractor service.Extractor

	mu      sync.Mutex
	pending map[string]*pendingDraft
}

// NewBot creates and configures the bot. An empty token disables the chat
// surface without failing startup.
func NewBot(token string, loiSvc *service.LOIService, extractor service.Extractor) (*Bot, error) {
	if token == "" {
		log.Println("[bot] No bot token configured, chat surface disabled")
		return nil, nil
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentsDirectMessages

	b := &Bot{
		session:   s,
		loiSvc:    loiSvc,
		extractor: extractor,
		pending:   make(map[string]*pendingDraft),
	}

	s.AddHandler(b.onMessageCreate)
	s.AddHandler(b.onInteractionCreate)

	return b, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if b == nil || b.session == nil {
		return nil
	}
	if err := b.session.Open(); err != nil {
		return err
	}
	log.Println("[bot] Connected to Discord")
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() {
	if b == nil || b.session == nil {
		return
	}
	_ = b.session.Close()
	log.Println("[bot] Disconnected")
}

func (b *Bot) storePending(previewMessageID string, draft *pendingDraft) {
	b.mu.Lock()
	b.pending[previewMessageID] = draft
	b.mu.Unlock()
}

func (b *Bot) takePending(previewMessageID string) *pendingDraft {
	b.mu.Lock()
	defer b.mu.Unlock()
	draft, ok := b.pending[previewMessageID]
	if !ok {
		return nil
	}
	delete(b.pending, previewMessageID)
	return draft
}
