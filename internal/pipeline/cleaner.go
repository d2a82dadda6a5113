package pipeline

import (
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/scoutline-hq/prospect-discovery/internal/logger"
	"golang.org/x/text/unicode/norm"
)

// Cleaner normalizes raw scraped payloads into a predictable shape. Cleaning
// never fails: unparseable values degrade to zero values, and cleaning an
// already clean payload is a no-op.
type Cleaner struct {
	log logger.Logger
}

// NewCleaner builds a cleaner.
func NewCleaner(log logger.Logger) *Cleaner {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Cleaner{log: log}
}

var (
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonDigitRe   = regexp.MustCompile(`[^\d.]`)
)

// dateFormats are tried in order; the first match wins.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"January 2, 2006",
	"2 January 2006",
}

// Clean returns the cleaned form of a profile payload with its four
// canonical sections.
func (c *Cleaner) Clean(data map[string]any) map[string]any {
	return map[string]any{
		"basic_info": c.cleanBasicInfo(asMap(data["basic_info"])),
		"content":    c.cleanContent(asSlice(data["content"])),
		"engagement": c.cleanEngagement(asMap(data["engagement"])),
		"network":    c.cleanNetwork(asMap(data["network"])),
	}
}

func (c *Cleaner) cleanBasicInfo(info map[string]any) map[string]any {
	out := map[string]any{}
	for _, field := range []string{"name", "username", "bio", "location", "interests"} {
		if v, ok := info[field]; ok {
			out[field] = c.CleanText(asString(v))
		}
	}
	if v, ok := info["website"]; ok {
		if u := c.CleanURL(asString(v)); u != "" {
			out["website"] = u
		}
	}
	for _, field := range []string{"followers", "following", "posts"} {
		if v, ok := info[field]; ok {
			out[field] = c.CleanCount(v)
		}
	}
	for _, field := range []string{"join_date", "last_active"} {
		if v, ok := info[field]; ok {
			if d := c.CleanDate(asString(v)); d != "" {
				out[field] = d
			}
		}
	}
	for _, field := range []string{"profile_picture", "banner_image"} {
		if v, ok := info[field]; ok {
			if u := c.CleanURL(asString(v)); u != "" {
				out[field] = u
			}
		}
	}
	if v, ok := info["email"]; ok {
		out["email"] = strings.TrimSpace(asString(v))
	}
	return out
}

func (c *Cleaner) cleanContent(content []any) []any {
	out := make([]any, 0, len(content))
	for _, raw := range content {
		item := asMap(raw)
		cleaned := map[string]any{
			"text":       c.CleanText(asString(item["text"])),
			"media":      c.cleanMedia(asSlice(item["media"])),
			"engagement": c.cleanEngagement(asMap(item["engagement"])),
			"metadata":   c.cleanMetadata(asMap(item["metadata"])),
		}
		if t := asString(item["type"]); t != "" {
			cleaned["type"] = t
		}
		if id := asString(item["id"]); id != "" {
			cleaned["id"] = id
		}
		out = append(out, cleaned)
	}
	return out
}

func (c *Cleaner) cleanEngagement(engagement map[string]any) map[string]any {
	out := map[string]any{}
	for _, metric := range []string{"likes", "comments", "shares", "views", "clicks", "conversions", "followers", "following"} {
		if v, ok := engagement[metric]; ok {
			out[metric] = c.CleanCount(v)
		}
	}
	for _, metric := range []string{"engagement_rate", "quality_score", "click_through_rate", "conversion_rate", "response_rate"} {
		if v, ok := engagement[metric]; ok {
			out[metric] = c.CleanScore(v)
		}
	}
	if v, ok := engagement["avg_response_time"]; ok {
		f, _ := toFloat(v)
		out["avg_response_time"] = math.Max(f, 0)
	}
	return out
}

func (c *Cleaner) cleanNetwork(network map[string]any) map[string]any {
	out := map[string]any{}
	if conns := asSlice(network["connections"]); conns != nil {
		cleaned := make([]any, 0, len(conns))
		for _, raw := range conns {
			cleaned = append(cleaned, c.cleanConnection(asMap(raw)))
		}
		out["connections"] = cleaned
	}
	if metrics := asMap(network["metrics"]); metrics != nil {
		out["metrics"] = map[string]any{
			"size":       c.CleanCount(metrics["size"]),
			"density":    c.CleanScore(metrics["density"]),
			"centrality": c.CleanScore(metrics["centrality"]),
			"clustering": c.CleanScore(metrics["clustering"]),
		}
	}
	return out
}

func (c *Cleaner) cleanConnection(conn map[string]any) map[string]any {
	connType := asString(conn["type"])
	if connType == "" {
		connType = "unknown"
	}
	return map[string]any{
		"id":       asString(conn["id"]),
		"type":     connType,
		"strength": c.CleanScore(conn["strength"]),
		"metadata": c.cleanMetadata(asMap(conn["metadata"])),
	}
}

func (c *Cleaner) cleanMedia(media []any) []any {
	out := make([]any, 0, len(media))
	for _, raw := range media {
		item := asMap(raw)
		mediaType := asString(item["type"])
		if mediaType == "" {
			mediaType = "unknown"
		}
		out = append(out, map[string]any{
			"type":     mediaType,
			"url":      c.CleanURL(asString(item["url"])),
			"metadata": c.cleanMetadata(asMap(item["metadata"])),
		})
	}
	return out
}

func (c *Cleaner) cleanMetadata(metadata map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range metadata {
		switch v := value.(type) {
		case string:
			out[key] = c.CleanText(v)
		case map[string]any:
			out[key] = c.cleanMetadata(v)
		case []any:
			items := make([]any, 0, len(v))
			for _, it := range v {
				switch inner := it.(type) {
				case map[string]any:
					items = append(items, c.cleanMetadata(inner))
				case string:
					items = append(items, c.CleanText(inner))
				default:
					items = append(items, inner)
				}
			}
			out[key] = items
		default:
			if isNumeric(value) {
				f, _ := toFloat(value)
				out[key] = f
			} else {
				out[key] = value
			}
		}
	}
	return out
}

// CleanText strips markup, normalizes unicode, scrubs punctuation and
// collapses whitespace.
func (c *Cleaner) CleanText(text string) string {
	if text == "" {
		return ""
	}
	if strings.ContainsAny(text, "<>") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			text = doc.Text()
		}
	}
	text = html.UnescapeString(text)
	text = norm.NFKC.String(text)
	text = nonWordRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CleanCount parses display counts like "12.5k" or "1,234" into integers.
// Unparseable input becomes 0.
func (c *Cleaner) CleanCount(v any) int64 {
	if f, ok := toFloat(v); ok {
		if s, isStr := v.(string); !isStr || !strings.ContainsAny(s, "kKmMbB") {
			return int64(f)
		}
	}
	s, ok := v.(string)
	if !ok {
		return 0
	}
	s = strings.TrimSpace(strings.ToLower(s))
	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier = 1e3
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		multiplier = 1e6
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "b"):
		multiplier = 1e9
		s = strings.TrimSuffix(s, "b")
	}
	s = nonDigitRe.ReplaceAllString(s, "")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f * multiplier)
}

// CleanDate parses common display date formats into ISO 8601 (yyyy-mm-dd).
// Unrecognized input yields an empty string.
func (c *Cleaner) CleanDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// CleanURL canonicalizes a URL: query and fragment dropped, https assumed,
// trailing slash removed.
func (c *Cleaner) CleanURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return strings.TrimRight(u, "/")
}

// CleanScore coerces ratios given as numbers, percentages ("85%") or
// fractions ("3/4") into a float clamped to [0, 1].
func (c *Cleaner) CleanScore(v any) float64 {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		if strings.Contains(s, "%") {
			f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
			if err != nil {
				return 0
			}
			return clamp01(f / 100)
		}
		if strings.Contains(s, "/") {
			parts := strings.SplitN(s, "/", 2)
			num, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			denom, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err1 != nil || err2 != nil || denom == 0 {
				return 0
			}
			return clamp01(num / denom)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return clamp01(f)
	default:
		f, ok := toFloat(v)
		if !ok {
			return 0
		}
		return clamp01(f)
	}
}

func clamp01(f float64) float64 {
	return math.Min(math.Max(f, 0), 1)
}
