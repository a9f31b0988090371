package memory

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/store"
)

// Hit is a search match and the tier it came from.
type Hit struct {
	Tier   string       `json:"tier"`
	Packet model.Packet `json:"packet"`
}

// Search returns Short-Term entries whose text contains query
// (case-insensitive), followed by matching Long-Term entries. The archive
// is not searched; use FetchArchiveByTags.
func (c *Coordinator) Search(query string) []model.Packet {
	hits := c.searchHits(query)
	out := make([]model.Packet, len(hits))
	for i, h := range hits {
		out[i] = h.Packet
	}
	return out
}

func (c *Coordinator) searchHits(query string) []Hit {
	q := strings.ToLower(query)
	var hits []Hit
	for _, p := range c.short.All() {
		if strings.Contains(strings.ToLower(p.Text), q) {
			hits = append(hits, Hit{Tier: store.TierShortTerm, Packet: p})
		}
	}
	for _, p := range c.long.Query(query) {
		hits = append(hits, Hit{Tier: store.TierLongTerm, Packet: p})
	}
	return hits
}

// ContextItem is one packet selected for a context window.
type ContextItem struct {
	Tier     string  `json:"tier"`
	Text     string  `json:"text"`
	Salience float64 `json:"salience"`
	Score    float64 `json:"score"`
	Excerpt  bool    `json:"excerpt,omitempty"`
}

// ContextResult is the packed context for a query.
type ContextResult struct {
	Budget int           `json:"budget"`
	Used   int           `json:"used"`
	Items  []ContextItem `json:"items"`
}

// Context packs search hits for query into a budget of roughly budget
// tokens (4 chars per token), best first. Hits are ranked by a blend of
// match, recency and salience; the last one that does not fit is excerpted
// when at least 100 chars remain.
func (c *Coordinator) Context(query string, budget int) *ContextResult {
	if budget <= 0 {
		budget = 4000
	}
	charBudget := budget * 4
	result := &ContextResult{Budget: budget, Items: []ContextItem{}}

	hits := c.searchHits(query)
	if len(hits) == 0 {
		return result
	}

	now := c.clock()
	type scored struct {
		hit   Hit
		score float64
	}
	candidates := make([]scored, 0, len(hits))
	for _, h := range hits {
		age := now.Sub(h.Packet.Time()).Hours() / 24.0
		if age < 0 {
			age = 0
		}
		recency := math.Exp(-0.1 * age)
		score := 0.4 + recency*0.3 + h.Packet.Salience*0.3
		candidates = append(candidates, scored{hit: h, score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	used := 0
	for _, cand := range candidates {
		text := cand.hit.Packet.Text
		item := ContextItem{
			Tier:     cand.hit.Tier,
			Text:     text,
			Salience: cand.hit.Packet.Salience,
			Score:    math.Round(cand.score*100) / 100,
		}
		if used+len(text) <= charBudget {
			result.Items = append(result.Items, item)
			used += len(text)
			continue
		}
		if remaining := charBudget - used; remaining >= 100 {
			cut := remaining
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			item.Text = text[:cut] + "..."
			item.Excerpt = true
			result.Items = append(result.Items, item)
			used += len(item.Text)
		}
		break
	}
	result.Used = used / 4
	return result
}
