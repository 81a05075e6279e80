package bot

import (
	"regexp"
	"strconv"
	"strings"
)

// command is what the user asked for in the mention text.
type command struct {
	Help       bool
	Limit      int // "last N"
	SinceHours int // "since N hours"
}

var (
	mentionRe = regexp.MustCompile(`<@!?\d+>`)
	lastRe    = regexp.MustCompile(`last\s+(\d+)`)
	sinceRe   = regexp.MustCompile(`since\s+(\d+)\s+hours?`)
)

// parseCommand interprets the mention text. Examples: "@bot", "@bot help",
// "@bot last 50", "@bot since 2 hours ago".
func parseCommand(text string) command {
	clean := strings.ToLower(strings.TrimSpace(mentionRe.ReplaceAllString(text, "")))

	var cmd command
	if clean == "help" {
		cmd.Help = true
		return cmd
	}
	if m := lastRe.FindStringSubmatch(clean); m != nil {
		cmd.Limit, _ = strconv.Atoi(m[1])
	}
	if m := sinceRe.FindStringSubmatch(clean); m != nil {
		cmd.SinceHours, _ = strconv.Atoi(m[1])
	}
	return cmd
}

// stripMentions removes mention tokens from message text.
func stripMentions(text string) string {
	return strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
}
