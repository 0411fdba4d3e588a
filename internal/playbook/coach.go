package playbook

import (
	"fmt"
	"strings"
)

// fallbackGuidance is the reply when no paragraph clears the threshold.
const fallbackGuidance = "Restate your interest in the role, anchor on your target with market data, and ask an open question about their flexibility."

// Coach turns a practice line into a reply backed by the playbook.
type Coach struct {
	Index Index
	// Threshold is the minimum match score for a paragraph to be quoted.
	Threshold float64
}

// NewCoach returns a Coach with the default threshold.
func NewCoach(idx Index) *Coach {
	return &Coach{Index: idx, Threshold: 0.15}
}

// Reply returns coaching text for line and the score of the paragraph it
// quotes. score is nil when the fallback guidance was used.
func (c *Coach) Reply(line string) (reply string, topic string, score *float64) {
	line = strings.TrimSpace(line)
	if c == nil || c.Index == nil || line == "" {
		return fallbackGuidance, "", nil
	}
	matches := c.Index.TopK(line, 1)
	if len(matches) == 0 || matches[0].Score < c.Threshold {
		return fallbackGuidance, "", nil
	}
	m := matches[0]
	v := m.Score
	return fmt.Sprintf("%s: %s", m.Topic, m.Guidance), m.Topic, &v
}
