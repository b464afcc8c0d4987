// Package gate runs imported records through an optional three-stage LLM
// pipeline: validity filter, content enhancer, and feature/bug categorizer.
// Ambiguous answers never fail a row; each stage has a documented fallback.
package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/lifenautjoe/userfeed-canny-importer/internal/source"
)

// Category is the board a record lands on.
type Category string

const (
	CategoryFeature Category = "feature"
	CategoryBug     Category = "bug"
)

// Classifier is a single request/response exchange with the language-model
// service. system carries the instruction, prompt the record under review.
type Classifier interface {
	Classify(ctx context.Context, system, prompt string) (string, error)
}

// Options toggles the individual stages. A disabled stage falls back
// deterministically instead of calling the service.
type Options struct {
	FilterInvalid   bool
	Enhance         bool
	Categorize      bool
	PlatformDetails string
}

// Gate applies the pipeline stages in fixed order.
type Gate struct {
	classifier Classifier
	opts       Options
}

// New builds a gate over the given classifier.
func New(classifier Classifier, opts Options) *Gate {
	return &Gate{classifier: classifier, opts: opts}
}

const filterSystem = `You review feedback records before they are imported into a product feedback board. Given the platform description and a record, answer with a single word: "yes" if the record is a plausible feature request or bug report for this platform, "no" if it is spam, a test entry, or otherwise invalid. Answer yes or no only.`

const enhanceSystem = `You rewrite feedback records for clarity before they are imported into a product feedback board. Keep the meaning intact, fix grammar, and make the title concise.

Format your response EXACTLY like this:
TITLE: <rewritten title>
DESCRIPTION: <rewritten description>`

const categorizeSystem = `You classify feedback records for a product feedback board. Answer with a single word: "bug" if the record reports something broken, "feature" otherwise. Answer bug or feature only.`

// Filter returns false when the record should be skipped as invalid.
// Only an exact case-insensitive leading "no" rejects; any other answer,
// including an empty or ambiguous one, fails open toward importing.
func (g *Gate) Filter(ctx context.Context, rec source.Record) (bool, error) {
	if !g.opts.FilterInvalid {
		return true, nil
	}

	prompt := fmt.Sprintf("Platform: %s\n\nTitle: %s\nDescription: %s", g.opts.PlatformDetails, rec.Title, rec.Description)
	answer, err := g.classifier.Classify(ctx, filterSystem, prompt)
	if err != nil {
		return false, fmt.Errorf("validity filter: %w", err)
	}

	return !strings.EqualFold(firstLine(answer), "no"), nil
}

// Enhance returns a copy of rec with a rewritten title and description. The
// original title and description are appended verbatim to the enhanced
// description so no information is lost. If the response cannot be parsed
// into the expected shape the record is returned unmodified.
func (g *Gate) Enhance(ctx context.Context, rec source.Record) (source.Record, error) {
	if !g.opts.Enhance {
		return rec, nil
	}

	prompt := fmt.Sprintf("Title: %s\nDescription: %s", rec.Title, rec.Description)
	answer, err := g.classifier.Classify(ctx, enhanceSystem, prompt)
	if err != nil {
		return source.Record{}, fmt.Errorf("enhancer: %w", err)
	}

	title, description, ok := parseEnhanced(answer)
	if !ok {
		return rec, nil
	}

	enhanced := rec
	enhanced.Title = title
	enhanced.Description = fmt.Sprintf("%s\n\n---\nOriginal title: %s\nOriginal description: %s",
		description, rec.Title, rec.Description)
	return enhanced, nil
}

// Categorize classifies the (possibly enhanced) record as a feature or a
// bug. Only an exact case-insensitive "bug" yields CategoryBug; every other
// answer falls back to CategoryFeature, as does the stage being disabled.
func (g *Gate) Categorize(ctx context.Context, rec source.Record) (Category, error) {
	if !g.opts.Categorize {
		return CategoryFeature, nil
	}

	prompt := fmt.Sprintf("Title: %s\nDescription: %s", rec.Title, rec.Description)
	answer, err := g.classifier.Classify(ctx, categorizeSystem, prompt)
	if err != nil {
		return "", fmt.Errorf("categorizer: %w", err)
	}

	if strings.EqualFold(firstLine(answer), "bug") {
		return CategoryBug, nil
	}
	return CategoryFeature, nil
}

// firstLine returns the first non-empty line of a response, trimmed. Only
// the first token/line of a verdict is semantically meaningful.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

// parseEnhanced extracts the TITLE:/DESCRIPTION: lines from an enhancer
// response. The description continues through any remaining lines.
func parseEnhanced(text string) (title, description string, ok bool) {
	lines := strings.Split(text, "\n")
	var descLines []string
	inDescription := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "TITLE:"):
			title = strings.TrimSpace(strings.TrimPrefix(trimmed, "TITLE:"))
			inDescription = false
		case strings.HasPrefix(trimmed, "DESCRIPTION:"):
			descLines = append(descLines, strings.TrimSpace(strings.TrimPrefix(trimmed, "DESCRIPTION:")))
			inDescription = true
		case inDescription:
			descLines = append(descLines, line)
		}
	}
	description = strings.TrimSpace(strings.Join(descLines, "\n"))
	if title == "" || description == "" {
		return "", "", false
	}
	return title, description, true
}
