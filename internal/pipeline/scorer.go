package pipeline

import (
	"github.com/scoutline-hq/prospect-discovery/internal/config"
	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"github.com/scoutline-hq/prospect-discovery/internal/logger"
)

// Scorer rates enriched prospects across five dimensions and combines them
// into a weighted composite. All scores land in [0, 1]; the normalization
// ceilings are tuning knobs carried in configuration.
type Scorer struct {
	cfg config.ScoringConfig
	log logger.Logger
}

// dimensionWeights is the fixed contribution of each dimension to the
// composite score.
var dimensionWeights = domain.DimensionScores{
	AudienceQuality:      0.25,
	ContentRelevance:     0.25,
	InfluenceLevel:       0.20,
	ConversionPotential:  0.15,
	EngagementPropensity: 0.15,
}

// NewScorer builds a scorer with the given normalization bounds.
func NewScorer(cfg config.ScoringConfig, log logger.Logger) *Scorer {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Scorer{cfg: cfg, log: log}
}

// Score rates one enriched payload.
func (s *Scorer) Score(data map[string]any) domain.ProspectScoreResult {
	dims := domain.DimensionScores{
		AudienceQuality:      s.scoreAudienceQuality(data),
		ContentRelevance:     s.scoreContentRelevance(data),
		InfluenceLevel:       s.scoreInfluenceLevel(data),
		ConversionPotential:  s.scoreConversionPotential(data),
		EngagementPropensity: s.scoreEngagementPropensity(data),
	}

	composite := dims.AudienceQuality*dimensionWeights.AudienceQuality +
		dims.ContentRelevance*dimensionWeights.ContentRelevance +
		dims.InfluenceLevel*dimensionWeights.InfluenceLevel +
		dims.ConversionPotential*dimensionWeights.ConversionPotential +
		dims.EngagementPropensity*dimensionWeights.EngagementPropensity

	return domain.ProspectScoreResult{
		Composite:  clamp01(composite),
		Dimensions: dims,
		Weights:    dimensionWeights,
	}
}

func (s *Scorer) scoreAudienceQuality(data map[string]any) float64 {
	metrics := asMap(asMap(data["network"])["metrics"])

	size, _ := toFloat(metrics["size"])
	density, _ := toFloat(metrics["density"])
	centrality, _ := toFloat(metrics["centrality"])
	clustering, _ := toFloat(metrics["clustering"])

	return normalize(size, s.cfg.MaxNetworkSize)*0.3 +
		clamp01(density)*0.2 +
		clamp01(centrality)*0.3 +
		clamp01(clustering)*0.2
}

func (s *Scorer) scoreContentRelevance(data map[string]any) float64 {
	content := asSlice(data["content"])
	if len(content) == 0 {
		return 0
	}

	var totalEngagement float64
	var totalQuality float64
	types := map[string]bool{}
	for _, raw := range content {
		item := asMap(raw)
		engagement := asMap(item["engagement"])
		likes, _ := toFloat(engagement["likes"])
		comments, _ := toFloat(engagement["comments"])
		shares, _ := toFloat(engagement["shares"])
		totalEngagement += likes + comments + shares

		if t := asString(item["type"]); t != "" {
			types[t] = true
		}

		quality := 0.0
		if asString(item["text"]) != "" {
			quality += 0.3
		}
		if len(asSlice(item["media"])) > 0 {
			quality += 0.3
		}
		if likes > 0 {
			quality += 0.2
		}
		if comments > 0 {
			quality += 0.2
		}
		totalQuality += quality
	}

	n := float64(len(content))
	avgEngagement := totalEngagement / n
	avgQuality := totalQuality / n
	diversity := clamp01(float64(len(types)) / s.cfg.ContentTypeCount)

	return normalize(n, s.cfg.MaxPosts)*0.3 +
		normalize(avgEngagement, s.cfg.MaxAvgEngagement)*0.3 +
		diversity*0.2 +
		avgQuality*0.2
}

func (s *Scorer) scoreInfluenceLevel(data map[string]any) float64 {
	engagement := asMap(data["engagement"])
	metrics := asMap(asMap(data["network"])["metrics"])

	followers, _ := toFloat(engagement["followers"])
	rate, _ := toFloat(engagement["engagement_rate"])
	centrality, _ := toFloat(metrics["centrality"])

	// Raw engagement rates live near zero, so the rate term is measured
	// against the configured good-rate threshold: at or above it earns the
	// full term.
	return normalize(followers, s.cfg.MaxFollowers)*0.4 +
		normalize(rate, s.cfg.GoodEngagementRate)*0.3 +
		clamp01(centrality)*0.3
}

func (s *Scorer) scoreConversionPotential(data map[string]any) float64 {
	engagement := asMap(data["engagement"])
	content := asSlice(data["content"])

	ctr, _ := toFloat(engagement["click_through_rate"])
	conversionRate, _ := toFloat(engagement["conversion_rate"])

	var totalPotential float64
	for _, raw := range content {
		item := asMap(raw)
		itemEngagement := asMap(item["engagement"])
		potential := 0.0
		if asString(item["type"]) == "promotional" {
			potential += 0.4
		}
		if clicks, _ := toFloat(itemEngagement["clicks"]); clicks > 0 {
			potential += 0.3
		}
		if conversions, _ := toFloat(itemEngagement["conversions"]); conversions > 0 {
			potential += 0.3
		}
		totalPotential += potential
	}
	avgPotential := 0.0
	if len(content) > 0 {
		avgPotential = totalPotential / float64(len(content))
	}

	return clamp01(ctr)*0.3 + clamp01(conversionRate)*0.3 + avgPotential*0.4
}

func (s *Scorer) scoreEngagementPropensity(data map[string]any) float64 {
	engagement := asMap(data["engagement"])
	content := asSlice(data["content"])

	responseRate, _ := toFloat(engagement["response_rate"])
	responseTime, _ := toFloat(engagement["avg_response_time"])

	var totalEngagement float64
	for _, raw := range content {
		itemEngagement := asMap(asMap(raw)["engagement"])
		score := 0.0
		if likes, _ := toFloat(itemEngagement["likes"]); likes > 0 {
			score += 0.3
		}
		if comments, _ := toFloat(itemEngagement["comments"]); comments > 0 {
			score += 0.4
		}
		if shares, _ := toFloat(itemEngagement["shares"]); shares > 0 {
			score += 0.3
		}
		totalEngagement += score
	}
	avgEngagement := 0.0
	if len(content) > 0 {
		avgEngagement = totalEngagement / float64(len(content))
	}

	// Faster responders score higher, so the response time term is inverted.
	return clamp01(responseRate)*0.3 +
		(1-normalize(responseTime, s.cfg.MaxResponseTimeHours))*0.2 +
		avgEngagement*0.5
}

// normalize maps value from [0, max] onto [0, 1], clamping out-of-range input.
func normalize(value, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return clamp01(value / max)
}
