package bot

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	defaultWindow   = 30  // messages analyzed on a first-time mention
	maxWindow       = 100 // Discord's per-request history cap
	extractTimeout  = 30 * time.Second
	helpText        = "**Live of Interest Bot - Help**\n\n" +
		"**Commands:**\n" +
		"- `@bot` - Analyze messages since last card\n" +
		"- `@bot last 50` - Analyze last 50 messages\n" +
		"- `@bot since 2 hours ago` - Analyze messages from last 2 hours\n\n" +
		"**How to use:**\n" +
		"1. Have a conversation about a trade in the group channel\n" +
		"2. Mention the bot with optional parameters\n" +
		"3. Review the preview card and press Confirm\n" +
		"4. The card is shared with the team; anyone can edit it in place\n" +
		"5. Changes sync to the web dashboard in real time"
)

// chatSession is the slice of the gateway session the message flow touches.
// *discordgo.Session satisfies it; tests substitute a scripted fake.
type chatSession interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	b.handleMention(s, s.State.User.ID, m)
}

func (b *Bot) handleMention(s chatSession, botUserID string, m *discordgo.MessageCreate) {
	defer b.recoverToChannel(s, m.ChannelID)

	if m.Author.ID == botUserID || m.Author.Bot {
		return
	}
	if !isBotMentioned(m, botUserID) {
		return
	}

	// The chat flow only makes sense where a team can see the card.
	if m.GuildID == "" {
		_, _ = s.ChannelMessageSend(m.ChannelID, "This bot only works in group channels.")
		return
	}

	cmd := parseCommand(m.Content)
	if cmd.Help {
		_, _ = s.ChannelMessageSend(m.ChannelID, helpText)
		return
	}

	_ = s.ChannelTyping(m.ChannelID)

	ctx, cancel := context.WithTimeout(context.Background(), extractTimeout)
	defer cancel()

	lines, err := b.resolveWindow(ctx, s, m, cmd)
	if err != nil {
		log.Printf("[bot] resolve window: %v", err)
		b.sendErrorCard(s, m.ChannelID, "An error occurred while reading the conversation. Please try again.")
		return
	}
	if len(lines) == 0 {
		_, _ = s.ChannelMessageSend(m.ChannelID, "No messages found to analyze.")
		return
	}

	extracted, err := b.extractor.ExtractLOI(ctx, lines)
	if err != nil {
		log.Printf("[bot] extraction: %v", err)
		b.sendErrorCard(s, m.ChannelID, "An error occurred while processing your request. Please try again.")
		return
	}

	if extracted.Customer == nil && extracted.Product == nil {
		_, _ = s.ChannelMessageSend(m.ChannelID,
			"Could not extract Live of Interest information from the conversation. "+
				"Please ensure the conversation contains customer and product details.")
		return
	}

	preview, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:    fmt.Sprintf("<@%s> please review and confirm:", m.Author.ID),
		Embeds:     []*discordgo.MessageEmbed{previewEmbed(extracted)},
		Components: previewComponents(),
	})
	if err != nil {
		log.Printf("[bot] send preview: %v", err)
		return
	}

	b.storePending(preview.ID, &pendingDraft{
		Data:             extracted,
		RequesterID:      m.Author.ID,
		RequesterName:    displayName(m.Member, m.Author),
		ConversationID:   m.ChannelID,
		TriggerMessageID: m.ID,
	})

	log.Printf("[bot] preview card sent for conversation %s (requested by %s)", m.ChannelID, m.Author.Username)
}

// resolveWindow picks the slice of conversation to analyze: an explicit
// count, an explicit time window, everything since the cursor, or a
// first-time default. Lines come back oldest first as "speaker: text".
func (b *Bot) resolveWindow(ctx context.Context, s chatSession, m *discordgo.MessageCreate, cmd command) ([]string, error) {
	var (
		messages []*discordgo.Message
		err      error
	)

	switch {
	case cmd.Limit > 0:
		limit := cmd.Limit
		if limit > maxWindow {
			limit = maxWindow
		}
		messages, err = s.ChannelMessages(m.ChannelID, limit, m.ID, "", "")

	case cmd.SinceHours > 0:
		cutoff := time.Now().Add(-time.Duration(cmd.SinceHours) * time.Hour)
		messages, err = s.ChannelMessages(m.ChannelID, maxWindow, m.ID, "", "")
		if err == nil {
			messages = filterSince(messages, cutoff)
		}

	default:
		state, stateErr := b.loiSvc.GetConversationState(ctx, m.ChannelID)
		if stateErr != nil {
			return nil, stateErr
		}
		if state != nil && state.LastProcessedMessageID != nil {
			messages, err = s.ChannelMessages(m.ChannelID, maxWindow, "", *state.LastProcessedMessageID, "")
		} else {
			messages, err = s.ChannelMessages(m.ChannelID, defaultWindow, m.ID, "", "")
		}
	}
	if err != nil {
		return nil, err
	}

	return formatWindow(messages, m.ID), nil
}

// formatWindow drops bot and empty messages, orders the rest chronologically,
// and renders "speaker: text" lines for the extractor.
func formatWindow(messages []*discordgo.Message, triggerID string) []string {
	filtered := make([]*discordgo.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Author == nil || msg.Author.Bot || msg.Content == "" || msg.ID == triggerID {
			continue
		}
		filtered = append(filtered, msg)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	lines := make([]string, 0, len(filtered))
	for _, msg := range filtered {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Author.Username, stripMentions(msg.Content)))
	}
	return lines
}

func filterSince(messages []*discordgo.Message, cutoff time.Time) []*discordgo.Message {
	kept := make([]*discordgo.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Timestamp.After(cutoff) {
			kept = append(kept, msg)
		}
	}
	return kept
}

func isBotMentioned(m *discordgo.MessageCreate, botUserID string) bool {
	for _, user := range m.Mentions {
		if user.ID == botUserID {
			return true
		}
	}
	return false
}

func displayName(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user != nil && user.Username != "" {
		return user.Username
	}
	return "Unknown User"
}

func (b *Bot) sendErrorCard(s chatSession, channelID, message string) {
	if _, err := s.ChannelMessageSendEmbed(channelID, errorEmbed(message)); err != nil {
		// Plain text fallback when the embed itself fails.
		_, _ = s.ChannelMessageSend(channelID, message)
	}
}

// recoverToChannel keeps a panicking action from escaping to the transport
// layer; the user gets an error card and the process stays up.
func (b *Bot) recoverToChannel(s chatSession, channelID string) {
	if r := recover(); r != nil {
		log.Printf("[bot] recovered from panic: %v", r)
		b.sendErrorCard(s, channelID, "An error occurred while processing your request. Please try again.")
	}
}
