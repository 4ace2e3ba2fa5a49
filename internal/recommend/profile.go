package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spacesedan/trendlens/internal/models"
	"github.com/spacesedan/trendlens/internal/textclean"
)

var errEmptySummary = errors.New("summarizer returned no usable text")

// ProfileText is the text a profile embedding is built from. When enrichment
// was attempted and failed, Enriched is false and FallbackReason says why.
type ProfileText struct {
	Text           string
	Enriched       bool
	FallbackReason error
}

func listOrAny(values []string) string {
	if len(values) == 0 {
		return "any"
	}
	return strings.Join(values, ", ")
}

// BuildProfileText renders preferences as the plain template sentence.
func BuildProfileText(prefs models.UserPreferences) string {
	return fmt.Sprintf("User interested in %s. Preferred sources: %s. Preferred content types: %s.",
		listOrAny(prefs.Interests), listOrAny(prefs.Sources), listOrAny(prefs.ContentTypes))
}

func enrichmentPrompt(template string) string {
	return "Describe in natural prose the kind of online content (articles, repositories, posts, launches) " +
		"this user would find most valuable.\n\nProfile: " + template
}

// EnrichProfile asks the summarizer for a prose profile and falls back to the
// template sentence on any failure. It never returns an error.
func EnrichProfile(ctx context.Context, summarizer Summarizer, prefs models.UserPreferences) ProfileText {
	template := BuildProfileText(prefs)
	if summarizer == nil {
		return ProfileText{Text: template}
	}

	prose, err := summarizer.Summarize(ctx, enrichmentPrompt(template))
	if err != nil {
		return ProfileText{Text: template, FallbackReason: err}
	}

	prose = textclean.MarkdownToText(prose)
	if prose == "" {
		return ProfileText{Text: template, FallbackReason: errEmptySummary}
	}
	return ProfileText{Text: prose, Enriched: true}
}

func logProfileText(userID string, pt ProfileText) {
	if pt.Enriched {
		slog.Info("[Ranker] Using enriched profile text",
			slog.String("user_id", userID),
			slog.Int("length", len(pt.Text)))
		return
	}
	if pt.FallbackReason != nil {
		slog.Warn("[Ranker] Profile enrichment failed, using template text",
			slog.String("user_id", userID),
			slog.String("reason", pt.FallbackReason.Error()))
		return
	}
	slog.Info("[Ranker] Using template profile text",
		slog.String("user_id", userID))
}
