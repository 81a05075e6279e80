package bot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/simywang/Teambot/internal/model"
	"github.com/simywang/Teambot/internal/repository"
	"github.com/simywang/Teambot/internal/service"

	"github.com/bwmarrin/discordgo"
)

const testBotID = "99"

// fakeSession scripts the gateway calls the message flow makes and records
// everything sent back to the channel.
type fakeSession struct {
	history    []*discordgo.Message
	historyErr error

	historyCalls []historyCall
	sent         []string
	cards        []*discordgo.MessageSend
	embeds       []*discordgo.MessageEmbed
	typing       int
}

type historyCall struct {
	limit  int
	before string
	after  string
}

func (f *fakeSession) ChannelMessages(_ string, limit int, beforeID, afterID, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.historyCalls = append(f.historyCalls, historyCall{limit: limit, before: beforeID, after: afterID})
	return f.history, f.historyErr
}

func (f *fakeSession) ChannelMessageSend(_ string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, content)
	return &discordgo.Message{ID: "sent"}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(_ string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.cards = append(f.cards, data)
	return &discordgo.Message{ID: fmt.Sprintf("preview-%d", len(f.cards))}, nil
}

func (f *fakeSession) ChannelMessageSendEmbed(_ string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.embeds = append(f.embeds, embed)
	return &discordgo.Message{ID: "embed"}, nil
}

func (f *fakeSession) ChannelTyping(string, ...discordgo.RequestOption) error {
	f.typing++
	return nil
}

// stubStore satisfies the persistence contract with a scripted cursor; the
// message flow touches nothing else on it.
type stubStore struct {
	state *model.ConversationState
}

func (s *stubStore) Create(_ context.Context, loi *model.LOI) (*model.LOI, error) { return loi, nil }
func (s *stubStore) GetByID(context.Context, string) (*model.LOI, error) {
	return nil, repository.ErrNotFound
}
func (s *stubStore) GetByMessageID(context.Context, string) (*model.LOI, error) {
	return nil, repository.ErrNotFound
}
func (s *stubStore) List(context.Context, string) ([]model.LOI, error) { return nil, nil }
func (s *stubStore) Update(context.Context, string, *model.LOIPatch) (*model.LOI, error) {
	return nil, repository.ErrNotFound
}
func (s *stubStore) Delete(context.Context, string) (bool, error)                 { return false, nil }
func (s *stubStore) InsertHistory(context.Context, *model.ModificationEntry) error { return nil }
func (s *stubStore) ListHistory(context.Context, string, int) ([]model.ModificationEntry, error) {
	return nil, nil
}
func (s *stubStore) GetConversationState(context.Context, string) (*model.ConversationState, error) {
	if s.state == nil {
		return nil, repository.ErrNotFound
	}
	return s.state, nil
}
func (s *stubStore) UpsertConversationState(context.Context, string, *string, *time.Time) (*model.ConversationState, error) {
	return nil, nil
}

type stubPublisher struct{}

func (stubPublisher) PublishCreated(*model.LOI)                                 {}
func (stubPublisher) PublishUpdated(*model.LOI, string, string, map[string]any) {}
func (stubPublisher) PublishDeleted(string, string)                             {}
func (stubPublisher) SendToRoom(string, string, any)                            {}

type extractFunc func(ctx context.Context, lines []string) (*model.ExtractedLOI, error)

func (f extractFunc) ExtractLOI(ctx context.Context, lines []string) (*model.ExtractedLOI, error) {
	return f(ctx, lines)
}

func newTestBot(extract extractFunc, state *model.ConversationState) *Bot {
	if extract == nil {
		extract = func(context.Context, []string) (*model.ExtractedLOI, error) {
			return &model.ExtractedLOI{}, nil
		}
	}
	return &Bot{
		loiSvc:    service.NewLOIService(&stubStore{state: state}, stubPublisher{}),
		extractor: extract,
		pending:   make(map[string]*pendingDraft),
	}
}

func mention(content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "trigger",
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		Content:   content,
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
		Mentions:  []*discordgo.User{{ID: testBotID}},
		Timestamp: time.Now().UTC(),
	}}
}

func msg(id, author, content string, bot bool, ts time.Time) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		Content:   content,
		Timestamp: ts,
		Author:    &discordgo.User{ID: "u-" + author, Username: author, Bot: bot},
	}
}

func TestMentionIgnoredOutsideMentionsAndFromBots(t *testing.T) {
	b := newTestBot(func(context.Context, []string) (*model.ExtractedLOI, error) {
		t.Fatal("extractor must not run")
		return nil, nil
	}, nil)
	f := &fakeSession{}

	noMention := mention("hello team")
	noMention.Mentions = nil
	b.handleMention(f, testBotID, noMention)

	fromBot := mention("<@99> hi")
	fromBot.Author.Bot = true
	b.handleMention(f, testBotID, fromBot)

	fromSelf := mention("<@99> hi")
	fromSelf.Author.ID = testBotID
	b.handleMention(f, testBotID, fromSelf)

	if len(f.sent) != 0 || len(f.cards) != 0 || f.typing != 0 {
		t.Fatalf("nothing should happen, got sent=%v cards=%d", f.sent, len(f.cards))
	}
}

func TestMentionOutsideGuildIsRejected(t *testing.T) {
	b := newTestBot(nil, nil)
	f := &fakeSession{}

	m := mention("<@99> create an LOI")
	m.GuildID = ""
	b.handleMention(f, testBotID, m)

	if len(f.sent) != 1 || f.sent[0] != "This bot only works in group channels." {
		t.Fatalf("got %v", f.sent)
	}
	if len(f.historyCalls) != 0 {
		t.Fatalf("history must not be read outside a guild")
	}
}

func TestMentionHelp(t *testing.T) {
	b := newTestBot(nil, nil)
	f := &fakeSession{}

	b.handleMention(f, testBotID, mention("<@99> help"))

	if len(f.sent) != 1 || f.sent[0] != helpText {
		t.Fatalf("expected help text, got %v", f.sent)
	}
	if len(f.historyCalls) != 0 || f.typing != 0 {
		t.Fatalf("help must not read history")
	}
}

func TestMentionWithEmptyWindowSendsNoCard(t *testing.T) {
	b := newTestBot(func(context.Context, []string) (*model.ExtractedLOI, error) {
		t.Fatal("extractor must not run on an empty window")
		return nil, nil
	}, nil)
	f := &fakeSession{history: []*discordgo.Message{
		msg("b1", "teambot", "earlier bot reply", true, time.Now().UTC()),
		msg("e1", "alice", "", false, time.Now().UTC()),
	}}

	b.handleMention(f, testBotID, mention("<@99>"))

	if len(f.sent) != 1 || f.sent[0] != "No messages found to analyze." {
		t.Fatalf("got %v", f.sent)
	}
	if len(f.cards) != 0 {
		t.Fatalf("no preview card on an empty window")
	}
	if len(b.pending) != 0 {
		t.Fatalf("no draft should be stored")
	}
}

func TestWindowLastNIsCapped(t *testing.T) {
	b := newTestBot(nil, nil)
	f := &fakeSession{}

	b.handleMention(f, testBotID, mention("<@99> last 500"))

	if len(f.historyCalls) != 1 {
		t.Fatalf("expected one history fetch, got %d", len(f.historyCalls))
	}
	call := f.historyCalls[0]
	if call.limit != maxWindow {
		t.Fatalf("explicit count must cap at %d, got %d", maxWindow, call.limit)
	}
	if call.before != "trigger" || call.after != "" {
		t.Fatalf("explicit count reads backwards from the trigger, got %+v", call)
	}
}

func TestWindowSinceHoursFiltersByTime(t *testing.T) {
	var gotLines []string
	b := newTestBot(func(_ context.Context, lines []string) (*model.ExtractedLOI, error) {
		gotLines = lines
		return &model.ExtractedLOI{}, nil
	}, nil)

	now := time.Now().UTC()
	f := &fakeSession{history: []*discordgo.Message{
		msg("m2", "bob", "ratio 2.78 for Lindt", false, now.Add(-30*time.Minute)),
		msg("m1", "alice", "stale discussion", false, now.Add(-5*time.Hour)),
	}}

	b.handleMention(f, testBotID, mention("<@99> since 2 hours ago"))

	if len(f.historyCalls) != 1 || f.historyCalls[0].limit != maxWindow {
		t.Fatalf("time window fetches the full cap, got %+v", f.historyCalls)
	}
	if len(gotLines) != 1 || gotLines[0] != "bob: ratio 2.78 for Lindt" {
		t.Fatalf("stale messages must be filtered out, got %v", gotLines)
	}
}

func TestWindowUsesCursorWhenPresent(t *testing.T) {
	cursor := "m42"
	b := newTestBot(nil, &model.ConversationState{
		ConversationID:         "chan-1",
		LastProcessedMessageID: &cursor,
	})
	f := &fakeSession{}

	b.handleMention(f, testBotID, mention("<@99>"))

	if len(f.historyCalls) != 1 {
		t.Fatalf("expected one history fetch, got %d", len(f.historyCalls))
	}
	call := f.historyCalls[0]
	if call.after != "m42" || call.before != "" {
		t.Fatalf("cursor means reading forward from it, got %+v", call)
	}
	if call.limit != maxWindow {
		t.Fatalf("got limit %d", call.limit)
	}
}

func TestWindowDefaultsWithoutCursor(t *testing.T) {
	b := newTestBot(nil, nil)
	f := &fakeSession{}

	b.handleMention(f, testBotID, mention("<@99>"))

	if len(f.historyCalls) != 1 {
		t.Fatalf("expected one history fetch, got %d", len(f.historyCalls))
	}
	call := f.historyCalls[0]
	if call.limit != defaultWindow || call.before != "trigger" || call.after != "" {
		t.Fatalf("first mention reads the default window before the trigger, got %+v", call)
	}
}

func TestUnextractableConversationGetsGuidance(t *testing.T) {
	b := newTestBot(func(context.Context, []string) (*model.ExtractedLOI, error) {
		return &model.ExtractedLOI{}, nil
	}, nil)
	f := &fakeSession{history: []*discordgo.Message{
		msg("m1", "alice", "lunch plans?", false, time.Now().UTC()),
	}}

	b.handleMention(f, testBotID, mention("<@99>"))

	if len(f.cards) != 0 {
		t.Fatalf("no preview when neither customer nor product was found")
	}
	if len(f.sent) != 1 {
		t.Fatalf("expected one guidance message, got %v", f.sent)
	}
}

func TestExtractionFailureSendsErrorCard(t *testing.T) {
	b := newTestBot(func(context.Context, []string) (*model.ExtractedLOI, error) {
		return nil, service.ErrExtraction
	}, nil)
	f := &fakeSession{history: []*discordgo.Message{
		msg("m1", "alice", "Lindt wants cocoa butter", false, time.Now().UTC()),
	}}

	b.handleMention(f, testBotID, mention("<@99>"))

	if len(f.embeds) != 1 {
		t.Fatalf("expected an error card, got %d embeds", len(f.embeds))
	}
	if len(f.cards) != 0 || len(b.pending) != 0 {
		t.Fatalf("no preview or draft on extraction failure")
	}
}

func TestPreviewCardStoresPendingDraft(t *testing.T) {
	customer := "Lindt"
	product := "cocoa butter"
	b := newTestBot(func(context.Context, []string) (*model.ExtractedLOI, error) {
		return &model.ExtractedLOI{Customer: &customer, Product: &product}, nil
	}, nil)
	f := &fakeSession{history: []*discordgo.Message{
		msg("m1", "alice", "Lindt wants cocoa butter", false, time.Now().UTC()),
	}}

	b.handleMention(f, testBotID, mention("<@99>"))

	if len(f.cards) != 1 {
		t.Fatalf("expected one preview card, got %d", len(f.cards))
	}
	card := f.cards[0]
	if card.Content != "<@u1> please review and confirm:" {
		t.Fatalf("preview must address the requester, got %q", card.Content)
	}
	if len(card.Embeds) != 1 || len(card.Components) != 1 {
		t.Fatalf("preview needs an embed and the confirm/cancel row")
	}

	draft := b.pending["preview-1"]
	if draft == nil {
		t.Fatalf("draft must be keyed by the preview message id")
	}
	if draft.RequesterID != "u1" || draft.ConversationID != "chan-1" || draft.TriggerMessageID != "trigger" {
		t.Fatalf("unexpected draft: %+v", draft)
	}
	if draft.Data.Customer == nil || *draft.Data.Customer != "Lindt" {
		t.Fatalf("draft must carry the extraction, got %+v", draft.Data)
	}
}

func TestFormatWindowFiltersAndOrders(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Discord returns history newest first; the window must come out oldest
	// first as "speaker: text" lines.
	messages := []*discordgo.Message{
		msg("4", "alice", "100 mt, FOB Jan-Jun 2026", false, base.Add(3*time.Minute)),
		msg("3", "teambot", "I am a bot reply", true, base.Add(2*time.Minute)),
		msg("2", "bob", "ratio 2.78 works for Lindt", false, base.Add(time.Minute)),
		msg("1", "alice", "", false, base),
	}

	lines := formatWindow(messages, "trigger")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != "bob: ratio 2.78 works for Lindt" {
		t.Fatalf("expected oldest first, got %q", lines[0])
	}
	if lines[1] != "alice: 100 mt, FOB Jan-Jun 2026" {
		t.Fatalf("got %q", lines[1])
	}
}

func TestFormatWindowDropsTriggerMessage(t *testing.T) {
	base := time.Now().UTC()
	messages := []*discordgo.Message{
		msg("trigger", "alice", "<@999> create an LOI", false, base),
		msg("1", "bob", "cocoa butter for Lindt", false, base.Add(-time.Minute)),
	}

	lines := formatWindow(messages, "trigger")
	if len(lines) != 1 || lines[0] != "bob: cocoa butter for Lindt" {
		t.Fatalf("trigger must be excluded, got %v", lines)
	}
}

func TestFormatWindowStripsMentionTokens(t *testing.T) {
	messages := []*discordgo.Message{
		msg("1", "bob", "<@123> the ratio is 2.78", false, time.Now().UTC()),
	}

	lines := formatWindow(messages, "trigger")
	if len(lines) != 1 || lines[0] != "bob: the ratio is 2.78" {
		t.Fatalf("got %v", lines)
	}
}

func TestFilterSince(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	messages := []*discordgo.Message{
		msg("1", "alice", "old", false, base.Add(-3*time.Hour)),
		msg("2", "bob", "recent", false, base.Add(-30*time.Minute)),
	}

	kept := filterSince(messages, base.Add(-time.Hour))
	if len(kept) != 1 || kept[0].ID != "2" {
		t.Fatalf("expected only the recent message, got %v", kept)
	}
}

func TestDisplayNamePrefersNick(t *testing.T) {
	user := &discordgo.User{Username: "alice"}

	if got := displayName(&discordgo.Member{Nick: "Ally", User: user}, user); got != "Ally" {
		t.Fatalf("got %q", got)
	}
	if got := displayName(&discordgo.Member{User: user}, user); got != "alice" {
		t.Fatalf("got %q", got)
	}
	if got := displayName(nil, nil); got != "Unknown User" {
		t.Fatalf("got %q", got)
	}
}
