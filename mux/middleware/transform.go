package middleware

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/agent-mux/agent-mux/mux"
)

// Metadata keys written by Transformation.
const (
	MetaContainsEmail       = "ContainsEmail"
	MetaEmailCount          = "EmailCount"
	MetaContainsPhone       = "ContainsPhone"
	MetaPhoneCount          = "PhoneCount"
	MetaDetectedLanguage    = "DetectedLanguage"
	MetaProcessingTimestamp = "ProcessingTimestamp"
	MetaDetectedIntents     = "DetectedIntents"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)
)

// dangerousFragments are removed from content by exact-case match. Mixed
// or upper case variants are deliberately left alone; this matches the
// documented sanitization behavior and is covered by tests.
var dangerousFragments = []string{"<script>", "</script>", "javascript:", "onerror="}

// stopwords per language, used by the tiny frequency-vote detector.
// English wins ties and is the fallback.
var stopwords = map[string][]string{
	"en": {"the", "and", "is", "are", "you", "for", "with", "this", "that"},
	"es": {"el", "la", "los", "las", "es", "por", "para", "con", "gracias", "hola"},
	"fr": {"le", "la", "les", "est", "pour", "avec", "merci", "bonjour", "vous"},
	"de": {"der", "die", "das", "ist", "und", "für", "mit", "danke", "hallo"},
}

// intentKeywords maps intent names to trigger words checked against the
// lower-cased subject and content.
var intentKeywords = map[string][]string{
	"question":  {"how", "what", "when", "where", "why", "?"},
	"complaint": {"unhappy", "disappointed", "terrible", "broken", "refund", "complaint"},
	"purchase":  {"buy", "purchase", "order", "price", "quote"},
	"support":   {"help", "issue", "problem", "error", "support"},
}

// intentOrder fixes the output ordering of DetectedIntents.
var intentOrder = []string{"question", "complaint", "purchase", "support"}

// Transformation normalizes and annotates message content:
//
//   - trims surrounding whitespace from content
//   - removes "<script>", "</script>", "javascript:", "onerror=" by
//     exact-case replacement
//   - detects email addresses and phone numbers, writing
//     ContainsEmail/EmailCount and ContainsPhone/PhoneCount
//   - guesses the language from a stopword vote into DetectedLanguage
//   - records ProcessingTimestamp (RFC 3339 UTC) from the injected clock
//   - writes DetectedIntents as a comma-separated string
func Transformation(clock mux.Clock) mux.Middleware {
	if clock == nil {
		clock = mux.SystemClock()
	}
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		msg.Content = strings.TrimSpace(msg.Content)
		for _, frag := range dangerousFragments {
			msg.Content = strings.ReplaceAll(msg.Content, frag, "[removed]")
		}

		emails := emailPattern.FindAllString(msg.Content, -1)
		msg.SetMetadata(MetaContainsEmail, len(emails) > 0)
		msg.SetMetadata(MetaEmailCount, len(emails))

		phones := phonePattern.FindAllString(msg.Content, -1)
		msg.SetMetadata(MetaContainsPhone, len(phones) > 0)
		msg.SetMetadata(MetaPhoneCount, len(phones))

		msg.SetMetadata(MetaDetectedLanguage, detectLanguage(msg.Content))
		msg.SetMetadata(MetaProcessingTimestamp, clock.Now().UTC().Format(time.RFC3339))
		msg.SetMetadata(MetaDetectedIntents, strings.Join(detectIntents(msg.Subject, msg.Content), ","))

		return next(ctx, msg)
	}
}

func detectLanguage(content string) string {
	words := strings.Fields(strings.ToLower(content))
	counts := make(map[string]int, len(stopwords))
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'")
		for lang, stops := range stopwords {
			for _, s := range stops {
				if w == s {
					counts[lang]++
				}
			}
		}
	}
	best, bestCount := "en", counts["en"]
	for _, lang := range []string{"es", "fr", "de"} {
		if counts[lang] > bestCount {
			best, bestCount = lang, counts[lang]
		}
	}
	return best
}

func detectIntents(subject, content string) []string {
	text := strings.ToLower(subject + " " + content)
	var hits []string
	for _, intent := range intentOrder {
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(text, kw) {
				hits = append(hits, intent)
				break
			}
		}
	}
	return hits
}
