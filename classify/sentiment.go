package classify

import (
	"math"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/newscardbot/fb-kpi-tracker/models"
)

// Sentiment classes.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

type wordsFile struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// Words is the rules-based sentiment classifier over configured word lists.
type Words struct {
	positive []string
	negative []string
	log      *logrus.Logger
}

// LoadWords loads the sentiment word lists. Never fails: a missing or
// unparseable file yields empty lists and everything classifies neutral.
func LoadWords(path string, log *logrus.Logger) *Words {
	w := &Words{log: log}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to read sentiment words, everything will be neutral")
		return w
	}

	var file wordsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to parse sentiment words, everything will be neutral")
		return w
	}

	w.positive = lowerAll(file.Positive)
	w.negative = lowerAll(file.Negative)

	log.WithFields(logrus.Fields{
		"positive_words": len(w.positive),
		"negative_words": len(w.negative),
	}).Info("Sentiment words loaded")
	return w
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			out = append(out, word)
		}
	}
	return out
}

// Analyze classifies a single text: strictly more positive hits than
// negative ⇒ positive, strictly more negative ⇒ negative, anything else
// (mixed, no hits, empty text) ⇒ neutral.
func (w *Words) Analyze(text string) string {
	if text == "" {
		return Neutral
	}

	textLower := strings.ToLower(text)
	posCount := countHits(textLower, w.positive)
	negCount := countHits(textLower, w.negative)

	switch {
	case posCount > negCount:
		return Positive
	case negCount > posCount:
		return Negative
	default:
		return Neutral
	}
}

func countHits(textLower string, words []string) int {
	count := 0
	for _, word := range words {
		if strings.Contains(textLower, word) {
			count++
		}
	}
	return count
}

// AnalyzeBatch classifies each text independently and aggregates counts and
// percentages. Available is false only for empty input, so callers can tell
// "no comments found" apart from "all comments neutral".
func (w *Words) AnalyzeBatch(texts []string) models.SentimentSummary {
	if len(texts) == 0 {
		return models.SentimentSummary{Available: false}
	}

	summary := models.SentimentSummary{Total: len(texts), Available: true}
	for _, text := range texts {
		switch w.Analyze(text) {
		case Positive:
			summary.Positive++
		case Negative:
			summary.Negative++
		default:
			summary.Neutral++
		}
	}

	total := float64(summary.Total)
	summary.PositivePct = round1(float64(summary.Positive) / total * 100)
	summary.NegativePct = round1(float64(summary.Negative) / total * 100)
	summary.NeutralPct = round1(float64(summary.Neutral) / total * 100)

	return summary
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
