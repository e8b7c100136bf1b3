// Package classify provides the keyword-based topic and sentiment
// classifiers. Dictionaries come from YAML config files loaded once at
// startup; a missing or corrupt file degrades to empty dictionaries, which
// classifies everything as "other" / neutral instead of failing report
// generation.
package classify

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// TopicOther is returned when no keyword matches or the text is empty.
const TopicOther = "other"

type topicEntry struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type topicsFile struct {
	Topics []topicEntry `yaml:"topics"`
}

// Topics classifies text into configured topics by keyword matching.
// The configured order matters: it breaks score ties.
type Topics struct {
	order    []string
	keywords map[string][]string
	log      *logrus.Logger
}

// LoadTopics loads the topic keyword dictionary. Never fails: a missing or
// unparseable file yields an empty dictionary and a logged warning.
func LoadTopics(path string, log *logrus.Logger) *Topics {
	t := &Topics{keywords: make(map[string][]string), log: log}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to read topic keywords, classifying everything as other")
		return t
	}

	var file topicsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to parse topic keywords, classifying everything as other")
		return t
	}

	for _, entry := range file.Topics {
		if entry.Name == "" {
			continue
		}
		lowered := make([]string, 0, len(entry.Keywords))
		for _, kw := range entry.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				lowered = append(lowered, kw)
			}
		}
		t.order = append(t.order, entry.Name)
		t.keywords[entry.Name] = lowered
	}

	log.WithField("topics", len(t.order)).Info("Topic keywords loaded")
	return t
}

// Classify returns the topic with the most keyword hits in text
// (case-insensitive substring matches). Ties go to the topic configured
// first; no hits or empty text returns TopicOther.
func (t *Topics) Classify(text string) string {
	if text == "" {
		return TopicOther
	}

	textLower := strings.ToLower(text)
	bestTopic := TopicOther
	bestScore := 0

	for _, topic := range t.order {
		score := 0
		for _, kw := range t.keywords[topic] {
			if strings.Contains(textLower, kw) {
				score++
			}
		}
		// strictly greater keeps the first-configured topic on ties
		if score > bestScore {
			bestScore = score
			bestTopic = topic
		}
	}

	return bestTopic
}

// Count returns how many topics are configured.
func (t *Topics) Count() int {
	return len(t.order)
}
