package bot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/simywang/Teambot/internal/model"

	"github.com/bwmarrin/discordgo"
)

// Interaction custom ids for the typed action verbs. Anything else arriving
// at the interaction boundary is rejected.
const (
	actionConfirm    = "loi:confirm"
	actionCancel     = "loi:cancel"
	actionEditPrefix = "loi:edit:"
	modalEditPrefix  = "loi:editsubmit:"
)

const (
	colorPreview = 0x00C8FF
	colorLive    = 0x2ECC71
	colorError   = 0xE74C3C
	colorNotice  = 0xF39C12
)

func previewEmbed(data *model.ExtractedLOI) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Live of Interest - Preview",
		Description: "Please review the extracted information and confirm to share with the team.",
		Color:       colorPreview,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Customer", Value: orNA(data.Customer), Inline: true},
			{Name: "Product", Value: orNA(data.Product), Inline: true},
			{Name: "Ratio", Value: floatOrNA(data.Ratio), Inline: true},
			{Name: "Incoterm", Value: orNA(data.Incoterm), Inline: true},
			{Name: "Period", Value: orNA(data.Period), Inline: true},
			{Name: "Quantity", Value: quantityOrNA(data.QuantityMT), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "LOI Bot"},
	}
}

func previewComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Confirm", Style: discordgo.SuccessButton, CustomID: actionConfirm},
				discordgo.Button{Label: "Cancel", Style: discordgo.DangerButton, CustomID: actionCancel},
			},
		},
	}
}

func editableEmbed(loi *model.LOI) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Live of Interest",
		Description: fmt.Sprintf("Status: **%s**", strings.ToUpper(loi.Status)),
		Color:       colorLive,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Customer", Value: loi.Customer, Inline: true},
			{Name: "Product", Value: loi.Product, Inline: true},
			{Name: "Ratio", Value: formatRatio(loi.Ratio), Inline: true},
			{Name: "Incoterm", Value: loi.Incoterm, Inline: true},
			{Name: "Period", Value: loi.Period, Inline: true},
			{Name: "Quantity", Value: fmt.Sprintf("%d MT", loi.QuantityMT), Inline: true},
			{Name: "Created by", Value: loi.CreatedBy, Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "LOI " + loi.ID},
	}
}

func editableComponents(loiID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Edit", Style: discordgo.PrimaryButton, CustomID: actionEditPrefix + loiID},
			},
		},
	}
}

func errorEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Something went wrong",
		Description: message,
		Color:       colorError,
	}
}

func updateNotificationEmbed(userName string, changes map[string]any) *discordgo.MessageEmbed {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "**%s** → %v\n", k, changes[k])
	}

	return &discordgo.MessageEmbed{
		Title:       "Live of Interest updated",
		Description: fmt.Sprintf("%s changed:\n%s", userName, sb.String()),
		Color:       colorNotice,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// editModal prefills every field with the record's current values; the
// change-set is computed against these on submit.
func editModal(loi *model.LOI) *discordgo.InteractionResponse {
	textInput := func(id, label, value string) discordgo.ActionsRow {
		return discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID: id,
					Label:    label,
					Style:    discordgo.TextInputShort,
					Value:    value,
					Required: true,
				},
			},
		}
	}

	// Discord caps a modal at five rows, so incoterm and period share one
	// input ("FOB | Jan-Jun 2026") and are split back apart on submit.
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: modalEditPrefix + loi.ID,
			Title:    "Edit Live of Interest",
			Components: []discordgo.MessageComponent{
				textInput("customer", "Customer", loi.Customer),
				textInput("product", "Product", loi.Product),
				textInput("ratio", "Ratio", formatRatio(loi.Ratio)),
				textInput("terms", "Incoterm | Period", loi.Incoterm+" | "+loi.Period),
				textInput("quantity_mt", "Quantity (MT)", strconv.Itoa(loi.QuantityMT)),
			},
		},
	}
}

func formatRatio(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}

func floatOrNA(f *float64) string {
	if f == nil {
		return "N/A"
	}
	return formatRatio(*f)
}

func quantityOrNA(q *int) string {
	if q == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d MT", *q)
}
