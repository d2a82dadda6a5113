package pipeline

import (
	"strings"
	"unicode"

	"github.com/scoutline-hq/prospect-discovery/internal/logger"
)

// Enricher derives additional signal from cleaned payloads: text sentiment,
// entities and topics, engagement trends and network metrics. Enrichment is
// strictly additive; it never removes or rewrites cleaned fields.
type Enricher struct {
	log logger.Logger
}

// NewEnricher builds an enricher.
func NewEnricher(log logger.Logger) *Enricher {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Enricher{log: log}
}

// Enrich returns a copy of the payload with derived fields added.
func (e *Enricher) Enrich(data map[string]any) map[string]any {
	return map[string]any{
		"basic_info": e.enrichBasicInfo(asMap(data["basic_info"])),
		"content":    e.enrichContent(asSlice(data["content"])),
		"engagement": e.enrichEngagement(asMap(data["engagement"])),
		"network":    e.enrichNetwork(asMap(data["network"])),
	}
}

func (e *Enricher) enrichBasicInfo(info map[string]any) map[string]any {
	out := copyMap(info)
	if bio := asString(info["bio"]); bio != "" {
		out["bio_sentiment"] = analyzeSentiment(bio)
	}
	if location := asString(info["location"]); location != "" {
		out["location_entities"] = extractEntities(location)
	}
	if interests := asString(info["interests"]); interests != "" {
		out["interest_topics"] = extractTopics(interests)
	}
	out["demographics"] = map[string]any{
		"location":  asString(info["location"]),
		"interests": extractTopics(asString(info["interests"])),
	}
	return out
}

func (e *Enricher) enrichContent(content []any) []any {
	out := make([]any, 0, len(content))
	for _, raw := range content {
		item := copyMap(asMap(raw))
		if text := asString(item["text"]); text != "" {
			item["sentiment"] = analyzeSentiment(text)
			item["entities"] = extractEntities(text)
			item["topics"] = extractTopics(text)
		}
		if engagement := asMap(item["engagement"]); engagement != nil {
			item["engagement_analysis"] = map[string]any{
				"trends":  engagementTrends(engagement),
				"quality": engagementQuality(engagement),
			}
		}
		out = append(out, item)
	}
	return out
}

func (e *Enricher) enrichEngagement(engagement map[string]any) map[string]any {
	out := copyMap(engagement)
	out["trends"] = engagementTrends(engagement)
	out["quality"] = engagementQuality(engagement)
	return out
}

func (e *Enricher) enrichNetwork(network map[string]any) map[string]any {
	out := copyMap(network)
	conns := asSlice(network["connections"])
	if conns == nil {
		return out
	}
	// Recompute metrics from the connection list; scraped metrics are often
	// stale or missing entirely.
	out["metrics"] = networkMetrics(conns)
	return out
}

// engagementTrends derives ratio metrics from raw engagement counters.
func engagementTrends(engagement map[string]any) map[string]any {
	trends := map[string]any{
		"growth_rate":       0.0,
		"engagement_rate":   0.0,
		"viral_coefficient": 0.0,
	}
	followers, _ := toFloat(engagement["followers"])
	if following, _ := toFloat(engagement["following"]); following > 0 {
		trends["growth_rate"] = followers / following
	}
	if followers > 0 {
		if likes, _ := toFloat(engagement["likes"]); likes >= 0 {
			trends["engagement_rate"] = likes / followers
		}
		if shares, _ := toFloat(engagement["shares"]); shares >= 0 {
			trends["viral_coefficient"] = shares / followers
		}
	}
	return trends
}

// engagementQuality weighs interaction counters into a single quality score.
func engagementQuality(engagement map[string]any) map[string]any {
	likes, _ := toFloat(engagement["likes"])
	comments, _ := toFloat(engagement["comments"])
	shares, _ := toFloat(engagement["shares"])
	return map[string]any{
		"score": likes*0.4 + comments*0.4 + shares*0.2,
	}
}

// networkMetrics computes structural metrics over the connection list.
// Centrality is the mean connection strength; clustering is the share of
// strong (>= 0.5) connections.
func networkMetrics(conns []any) map[string]any {
	n := len(conns)
	metrics := map[string]any{
		"size":       int64(n),
		"density":    0.0,
		"centrality": 0.0,
		"clustering": 0.0,
	}
	if n == 0 {
		return metrics
	}
	if n > 1 {
		metrics["density"] = float64(n) / float64(n*(n-1))
	}

	var totalStrength float64
	strong := 0
	for _, raw := range conns {
		strength, _ := toFloat(asMap(raw)["strength"])
		totalStrength += strength
		if strength >= 0.5 {
			strong++
		}
	}
	metrics["centrality"] = totalStrength / float64(n)
	metrics["clustering"] = float64(strong) / float64(n)
	return metrics
}

// sentimentLexicon covers the vocabulary that actually shows up in bios and
// short posts. It is intentionally small; scoring only needs a coarse signal.
var sentimentLexicon = map[string]float64{
	"love": 1, "great": 1, "awesome": 1, "amazing": 1, "excellent": 1,
	"good": 0.7, "happy": 0.7, "best": 0.7, "win": 0.7, "beautiful": 0.7,
	"helpful": 0.5, "nice": 0.5, "fun": 0.5, "enjoy": 0.5, "passionate": 0.5,
	"bad": -0.7, "hate": -1, "terrible": -1, "awful": -1, "worst": -1,
	"sad": -0.5, "angry": -0.7, "boring": -0.5, "poor": -0.5, "scam": -1,
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "have": true,
	"i": true, "in": true, "is": true, "it": true, "its": true, "my": true,
	"of": true, "on": true, "or": true, "our": true, "that": true, "the": true,
	"to": true, "was": true, "we": true, "with": true, "you": true, "your": true,
}

// analyzeSentiment scores text against the lexicon. Compound is the net
// sentiment over all tokens, clamped to [-1, 1].
func analyzeSentiment(text string) map[string]any {
	tokens := tokenize(text)
	var positive, negative int
	var compound float64
	for _, tok := range tokens {
		weight, ok := sentimentLexicon[tok]
		if !ok {
			continue
		}
		compound += weight
		if weight > 0 {
			positive++
		} else {
			negative++
		}
	}
	if n := len(tokens); n > 0 {
		compound /= float64(n)
	}
	if compound > 1 {
		compound = 1
	}
	if compound < -1 {
		compound = -1
	}
	return map[string]any{
		"positive": positive,
		"negative": negative,
		"neutral":  len(tokens) - positive - negative,
		"compound": compound,
	}
}

// extractEntities finds capitalized token runs, a cheap stand-in for named
// entity recognition that works well enough on profile text.
func extractEntities(text string) []any {
	var entities []any
	var current []string
	flush := func() {
		if len(current) > 0 {
			entities = append(entities, map[string]any{
				"text":  strings.Join(current, " "),
				"label": "entity",
			})
			current = nil
		}
	}
	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		if len(runes) > 1 && unicode.IsUpper(runes[0]) && !stopwords[strings.ToLower(word)] {
			current = append(current, word)
			continue
		}
		flush()
	}
	flush()
	return entities
}

// extractTopics returns the distinct non-stopword tokens in order of first
// appearance.
func extractTopics(text string) []any {
	seen := map[string]bool{}
	var topics []any
	for _, tok := range tokenize(text) {
		if stopwords[tok] || len(tok) < 3 || seen[tok] {
			continue
		}
		seen[tok] = true
		topics = append(topics, tok)
	}
	return topics
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
