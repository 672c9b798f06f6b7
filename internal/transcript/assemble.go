// Package transcript assembles recognized ASR segments into one utterance.
package transcript

import "strings"

// Assemble joins final ASR segments and collapses whitespace.
func Assemble(finalSegments []string) string {
	if len(finalSegments) == 0 {
		return ""
	}
	joined := strings.Join(finalSegments, " ")
	return strings.Join(strings.Fields(joined), " ")
}

// Collector accumulates streaming results for one utterance.
// Finals win; the latest interim is only used when no final ever arrived.
type Collector struct {
	finals  []string
	interim string
}

// Add records one streaming result.
func (c *Collector) Add(text string, isFinal bool) {
	if isFinal {
		c.interim = ""
		c.finals = appendSegment(c.finals, text)
		return
	}
	c.interim = cleanSegment(text)
}

// Segments returns the final segments, or the latest interim when none arrived.
func (c *Collector) Segments() []string {
	if len(c.finals) == 0 {
		if c.interim == "" {
			return nil
		}
		return []string{c.interim}
	}
	out := make([]string, len(c.finals))
	copy(out, c.finals)
	return out
}
