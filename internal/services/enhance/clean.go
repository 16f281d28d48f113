package enhance

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
)

// Filler tokens stripped from raw transcripts. Matched case-insensitively on
// word boundaries.
var fillerWords = []string{
	"um", "uh", "uhm", "erm", "hmm",
	"you know", "i mean", "sort of", "kind of like",
}

var (
	fillerPattern     *regexp.Regexp
	whitespacePattern = regexp.MustCompile(`\s+`)
	spaceBeforePunct  = regexp.MustCompile(`\s+([,.!?;:])`)
)

func init() {
	escaped := make([]string, len(fillerWords))
	for i, w := range fillerWords {
		escaped[i] = regexp.QuoteMeta(w)
	}
	fillerPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b[,]?`)
}

// CleanStage normalizes a raw transcript: filler words out, whitespace
// collapsed, sentences capitalized. Unbilled; on failure the raw transcript
// is used unchanged.
type CleanStage struct{}

// NewCleanStage creates the cleaning stage.
func NewCleanStage() *CleanStage {
	return &CleanStage{}
}

func (s *CleanStage) Name() string { return StageClean }

func (s *CleanStage) Run(ctx context.Context, d *Draft) error {
	cleaned := CleanTranscript(d.Raw)
	if cleaned == "" && strings.TrimSpace(d.Raw) != "" {
		return errors.NewEnhancementError("cleaning removed the entire transcript", "CLEAN_EMPTY_RESULT", nil)
	}
	d.Cleaned = cleaned
	return nil
}

// CleanTranscript applies the normalization rules to text.
func CleanTranscript(text string) string {
	out := fillerPattern.ReplaceAllString(text, " ")
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	out = whitespacePattern.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)
	return capitalizeSentences(out)
}

// capitalizeSentences upper-cases the first letter after each sentence end.
func capitalizeSentences(text string) string {
	runes := []rune(text)
	capitalize := true
	for i, r := range runes {
		if capitalize && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			capitalize = false
			continue
		}
		switch r {
		case '.', '!', '?':
			capitalize = true
		}
	}
	return string(runes)
}
