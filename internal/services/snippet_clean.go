package services

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/charlesng35/snippets/internal/models"
)

// CleanTarget selects how snippet text is prepared for output.
type CleanTarget string

const (
	// CleanTargetForm escapes text for use inside form fields.
	CleanTargetForm CleanTarget = "form"
	// CleanTargetView escapes text and renders newlines as line breaks.
	CleanTargetView CleanTarget = "view"
	// CleanTargetRaw leaves text untouched apart from placeholder substitution.
	CleanTargetRaw CleanTarget = "raw"
)

// ParseCleanTarget validates a target name. Empty selects CleanTargetForm.
func ParseCleanTarget(value string) (CleanTarget, error) {
	switch target := CleanTarget(strings.ToLower(strings.TrimSpace(value))); target {
	case "":
		return CleanTargetForm, nil
	case CleanTargetForm, CleanTargetView, CleanTargetRaw:
		return target, nil
	default:
		return "", fmt.Errorf("unknown clean target %q", value)
	}
}

// Placeholders lists the tokens Clean substitutes, user first.
var Placeholders = []string{"{user}", "{reporter}", "{handler}", "{project}", "{bug}", "{summary}"}

// BugDetails are the bug attributes available to placeholders.
type BugDetails struct {
	ID       uint
	Reporter string
	Handler  string
	Project  string
	Summary  string
}

// CleanContext carries the values substituted into snippet text. A nil Bug
// leaves the bug placeholders untouched.
type CleanContext struct {
	Username string
	Bug      *BugDetails
}

func (c CleanContext) replacer() *strings.Replacer {
	pairs := []string{"{user}", c.Username}
	if c.Bug != nil {
		pairs = append(pairs,
			"{reporter}", c.Bug.Reporter,
			"{handler}", c.Bug.Handler,
			"{project}", c.Bug.Project,
			"{bug}", strconv.FormatUint(uint64(c.Bug.ID), 10),
			"{summary}", c.Bug.Summary,
		)
	}
	return strings.NewReplacer(pairs...)
}

// Clean returns copies of snippets with placeholders substituted in their
// values and name and value prepared for target. The input is not modified.
func Clean(snippets []models.Snippet, target CleanTarget, cctx CleanContext) []models.Snippet {
	replacer := cctx.replacer()

	out := make([]models.Snippet, len(snippets))
	for i, snippet := range snippets {
		if snippet.UserID != nil {
			owner := *snippet.UserID
			snippet.UserID = &owner
		}
		snippet.Value = replacer.Replace(snippet.Value)

		switch target {
		case CleanTargetRaw:
		case CleanTargetView:
			snippet.Name = html.EscapeString(snippet.Name)
			snippet.Value = nl2br(html.EscapeString(snippet.Value))
		default:
			snippet.Name = html.EscapeString(snippet.Name)
			snippet.Value = html.EscapeString(snippet.Value)
		}
		out[i] = snippet
	}
	return out
}

var newlineReplacer = strings.NewReplacer("\r\n", "<br />\n", "\n", "<br />\n", "\r", "<br />\n")

func nl2br(value string) string {
	return newlineReplacer.Replace(value)
}
