package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/simywang/Teambot/internal/model"
	"github.com/simywang/Teambot/internal/service"

	"github.com/bwmarrin/discordgo"
)

const actionTimeout = 10 * time.Second

var errUnknownAction = errors.New("unknown action")

// The card actions form a closed set; each variant carries its own payload.
type cardAction interface{ isCardAction() }

type confirmAction struct{ PreviewMessageID string }
type cancelAction struct{ PreviewMessageID string }
type editAction struct{ LOIID string }
type editSubmitAction struct {
	LOIID  string
	Values map[string]string
}

func (confirmAction) isCardAction()    {}
func (cancelAction) isCardAction()     {}
func (editAction) isCardAction()       {}
func (editSubmitAction) isCardAction() {}

// parseInteraction maps an inbound interaction onto a typed action, rejecting
// unknown verbs at the boundary.
func parseInteraction(i *discordgo.InteractionCreate) (cardAction, error) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		switch {
		case customID == actionConfirm:
			return confirmAction{PreviewMessageID: i.Message.ID}, nil
		case customID == actionCancel:
			return cancelAction{PreviewMessageID: i.Message.ID}, nil
		case strings.HasPrefix(customID, actionEditPrefix):
			return editAction{LOIID: strings.TrimPrefix(customID, actionEditPrefix)}, nil
		}
		return nil, fmt.Errorf("%w: %q", errUnknownAction, customID)

	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		if !strings.HasPrefix(data.CustomID, modalEditPrefix) {
			return nil, fmt.Errorf("%w: %q", errUnknownAction, data.CustomID)
		}
		return editSubmitAction{
			LOIID:  strings.TrimPrefix(data.CustomID, modalEditPrefix),
			Values: modalValues(data),
		}, nil
	}
	return nil, errUnknownAction
}

func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range actionsRow.Components {
			if input, ok := comp.(*discordgo.TextInput); ok {
				values[input.CustomID] = strings.TrimSpace(input.Value)
			}
		}
	}
	return values
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer b.recoverToChannel(s, i.ChannelID)

	action, err := parseInteraction(i)
	if err != nil {
		// Unknown verbs are logged and ignored, never surfaced to the user.
		log.Printf("[bot] %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	switch a := action.(type) {
	case confirmAction:
		b.handleConfirm(ctx, s, i, a)
	case cancelAction:
		b.handleCancel(s, i, a)
	case editAction:
		b.handleEdit(ctx, s, i, a)
	case editSubmitAction:
		b.handleEditSubmit(ctx, s, i, a)
	}
}

func (b *Bot) handleConfirm(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, a confirmAction) {
	// Claim the draft up front so a second press races on an empty map
	// instead of creating a duplicate record; failures put it back.
	draft := b.takePending(a.PreviewMessageID)
	if draft == nil {
		respondEphemeral(s, i, "This preview has expired. Mention the bot again to start over.")
		return
	}
	if interactionUserID(i) != draft.RequesterID {
		b.storePending(a.PreviewMessageID, draft)
		respondEphemeral(s, i, "Only the requester can confirm this preview.")
		return
	}

	req := draftToRequest(draft)
	loi, err := b.loiSvc.Create(ctx, req, draft.RequesterName)
	if errors.Is(err, service.ErrMissingFields) {
		b.storePending(a.PreviewMessageID, draft)
		respondEphemeral(s, i, "The extracted data is incomplete. Edit the missing fields on the dashboard, or mention the bot again after more discussion.")
		return
	}
	if err != nil {
		b.storePending(a.PreviewMessageID, draft)
		log.Printf("[bot] confirm create: %v", err)
		respondEphemeral(s, i, "An error occurred while creating the record. Please try again.")
		return
	}

	ackUpdate(s, i)

	// Share the editable card with the team, then point the record at it so
	// later edits can replace the same message.
	card, err := s.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{editableEmbed(loi)},
		Components: editableComponents(loi.ID),
	})
	if err != nil {
		log.Printf("[bot] send editable card: %v", err)
	} else {
		patch := &model.LOIPatch{ChatMessageID: &card.ID}
		if _, err := b.loiSvc.Update(ctx, loi.ID, patch, draft.RequesterName, model.SourceChat); err != nil {
			log.Printf("[bot] link card message: %v", err)
		}
	}

	now := time.Now().UTC()
	trigger := draft.TriggerMessageID
	if _, err := b.loiSvc.UpsertConversationState(ctx, draft.ConversationID, &trigger, &now); err != nil {
		log.Printf("[bot] advance cursor: %v", err)
	}

	// Best-effort cleanup of the preview card.
	if err := s.ChannelMessageDelete(i.ChannelID, a.PreviewMessageID); err != nil {
		log.Printf("[bot] could not delete preview card: %v", err)
	}

	log.Printf("[bot] LOI confirmed and created: %s", loi.ID)
}

func (b *Bot) handleCancel(s *discordgo.Session, i *discordgo.InteractionCreate, a cancelAction) {
	b.takePending(a.PreviewMessageID)

	ackUpdate(s, i)

	if err := s.ChannelMessageDelete(i.ChannelID, a.PreviewMessageID); err != nil {
		log.Printf("[bot] could not delete preview card: %v", err)
	}
	_, _ = s.ChannelMessageSend(i.ChannelID, "Live of Interest creation cancelled.")
}

func (b *Bot) handleEdit(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, a editAction) {
	loi, err := b.loiSvc.GetByID(ctx, a.LOIID)
	if errors.Is(err, service.ErrLOINotFound) {
		respondEphemeral(s, i, "This record no longer exists.")
		return
	}
	if err != nil {
		log.Printf("[bot] edit lookup: %v", err)
		respondEphemeral(s, i, "An error occurred. Please try again.")
		return
	}

	if err := s.InteractionRespond(i.Interaction, editModal(loi)); err != nil {
		log.Printf("[bot] open edit modal: %v", err)
	}
}

func (b *Bot) handleEditSubmit(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, a editSubmitAction) {
	current, err := b.loiSvc.GetByID(ctx, a.LOIID)
	if errors.Is(err, service.ErrLOINotFound) {
		respondEphemeral(s, i, "This record no longer exists.")
		return
	}
	if err != nil {
		log.Printf("[bot] edit submit lookup: %v", err)
		respondEphemeral(s, i, "An error occurred. Please try again.")
		return
	}

	patch, err := buildEditPatch(current, a.Values)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}
	if patch.IsEmpty() {
		respondEphemeral(s, i, "No changes detected.")
		return
	}

	// Any chat-side edit makes the record modified, and modified is sticky.
	status := model.StatusModified
	patch.Status = &status

	userName := interactionUserName(i)
	updated, err := b.loiSvc.Update(ctx, a.LOIID, patch, userName, model.SourceChat)
	if err != nil {
		log.Printf("[bot] edit update: %v", err)
		respondEphemeral(s, i, "An error occurred while saving changes. Please try again.")
		return
	}

	respondEphemeral(s, i, "Changes saved.")

	// Replace the card in place so the channel shows current state.
	if updated.ChatMessageID != nil {
		embeds := []*discordgo.MessageEmbed{editableEmbed(updated)}
		components := editableComponents(updated.ID)
		_, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    i.ChannelID,
			ID:         *updated.ChatMessageID,
			Embeds:     &embeds,
			Components: &components,
		})
		if err != nil {
			log.Printf("[bot] could not update card in place: %v", err)
		}
	}

	if _, err := s.ChannelMessageSendEmbed(i.ChannelID, updateNotificationEmbed(userName, patch.Changes())); err != nil {
		log.Printf("[bot] send update notification: %v", err)
	}

	// Sessions watching this conversation's room get a targeted heads-up on
	// top of the global loi:updated broadcast.
	b.loiSvc.NotifyConversation(updated.ConversationID, "LOI updated from chat", map[string]any{
		"loi_id":  updated.ID,
		"changes": patch.Changes(),
	})

	log.Printf("[bot] LOI updated: %s by %s", a.LOIID, userName)
}

// buildEditPatch diffs the modal values against the current record; only
// changed fields enter the patch.
func buildEditPatch(current *model.LOI, values map[string]string) (*model.LOIPatch, error) {
	patch := &model.LOIPatch{}

	if v, ok := values["customer"]; ok && v != "" && v != current.Customer {
		patch.Customer = &v
	}
	if v, ok := values["product"]; ok && v != "" && v != current.Product {
		patch.Product = &v
	}
	if v, ok := values["ratio"]; ok && v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("Invalid ratio %q: enter a number like 2.78.", v)
		}
		if ratio != current.Ratio {
			patch.Ratio = &ratio
		}
	}
	if v, ok := values["terms"]; ok && v != "" {
		incoterm, period, err := splitTerms(v)
		if err != nil {
			return nil, err
		}
		if incoterm != current.Incoterm {
			patch.Incoterm = &incoterm
		}
		if period != current.Period {
			patch.Period = &period
		}
	}
	if v, ok := values["quantity_mt"]; ok && v != "" {
		quantity, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("Invalid quantity %q: enter a whole number of metric tons.", v)
		}
		if quantity != current.QuantityMT {
			patch.QuantityMT = &quantity
		}
	}

	return patch, nil
}

func splitTerms(v string) (incoterm, period string, err error) {
	parts := strings.SplitN(v, "|", 2)
	if len(parts) != 2 {
		return "", "", errors.New("Invalid terms: use the format 'FOB | Jan-Jun 2026'.")
	}
	incoterm = strings.TrimSpace(parts[0])
	period = strings.TrimSpace(parts[1])
	if incoterm == "" || period == "" {
		return "", "", errors.New("Invalid terms: use the format 'FOB | Jan-Jun 2026'.")
	}
	return incoterm, period, nil
}

func draftToRequest(draft *pendingDraft) *model.CreateLOIRequest {
	req := &model.CreateLOIRequest{
		ConversationID: draft.ConversationID,
		Status:         model.StatusConfirmed,
	}
	if draft.Data.Customer != nil {
		req.Customer = *draft.Data.Customer
	}
	if draft.Data.Product != nil {
		req.Product = *draft.Data.Product
	}
	if draft.Data.Ratio != nil {
		req.Ratio = *draft.Data.Ratio
	}
	if draft.Data.Incoterm != nil {
		req.Incoterm = *draft.Data.Incoterm
	}
	if draft.Data.Period != nil {
		req.Period = *draft.Data.Period
	}
	if draft.Data.QuantityMT != nil {
		req.QuantityMT = *draft.Data.QuantityMT
	}
	return req
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func interactionUserName(i *discordgo.InteractionCreate) string {
	if i.Member != nil {
		return displayName(i.Member, i.Member.User)
	}
	if i.User != nil {
		return i.User.Username
	}
	return "Unknown User"
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("[bot] interaction respond: %v", err)
	}
}

// ackUpdate acknowledges a component press without posting a visible reply.
func ackUpdate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		log.Printf("[bot] interaction ack: %v", err)
	}
}
