package pipeline

import (
	"fmt"
	"regexp"

	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"github.com/scoutline-hq/prospect-discovery/internal/logger"
)

// Validator checks cleaned payloads for structural problems. Errors mark a
// section invalid; warnings flag quality issues without rejecting data.
type Validator struct {
	log logger.Logger
}

// NewValidator builds a validator.
func NewValidator(log logger.Logger) *Validator {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Validator{log: log}
}

// Report carries per-section validation outcomes. Only an invalid basic_info
// section makes the whole record unusable.
type Report struct {
	BasicInfo  domain.ValidationResult `json:"basic_info"`
	Content    domain.ValidationResult `json:"content"`
	Engagement domain.ValidationResult `json:"engagement"`
	Network    domain.ValidationResult `json:"network"`
}

// Merged flattens the per-section results into one.
func (r Report) Merged() domain.ValidationResult {
	merged := domain.ValidationResult{IsValid: true}
	for _, section := range []domain.ValidationResult{r.BasicInfo, r.Content, r.Engagement, r.Network} {
		if !section.IsValid {
			merged.IsValid = false
		}
		merged.Errors = append(merged.Errors, section.Errors...)
		merged.Warnings = append(merged.Warnings, section.Warnings...)
	}
	return merged
}

var (
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	urlRe   = regexp.MustCompile(`^https?://[a-zA-Z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+$`)
)

const (
	maxBioLength         = 1000
	maxContentTextLength = 5000
)

// Validate checks every section of a cleaned payload.
func (v *Validator) Validate(data map[string]any) Report {
	return Report{
		BasicInfo:  v.validateBasicInfo(asMap(data["basic_info"])),
		Content:    v.validateContent(asSlice(data["content"])),
		Engagement: v.validateEngagement(asMap(data["engagement"])),
		Network:    v.validateNetwork(asMap(data["network"])),
	}
}

func (v *Validator) validateBasicInfo(info map[string]any) domain.ValidationResult {
	res := domain.ValidationResult{IsValid: true}

	for _, field := range []string{"username", "name"} {
		if asString(info[field]) == "" {
			res.IsValid = false
			res.Errors = append(res.Errors, fmt.Sprintf("missing required field: %s", field))
		}
	}

	if email := asString(info["email"]); email != "" && !emailRe.MatchString(email) {
		res.IsValid = false
		res.Errors = append(res.Errors, "invalid email format")
	}
	if website := asString(info["website"]); website != "" && !urlRe.MatchString(website) {
		res.IsValid = false
		res.Errors = append(res.Errors, "invalid website URL")
	}

	if bio := asString(info["bio"]); len(bio) > maxBioLength {
		res.Warnings = append(res.Warnings, "bio exceeds recommended length")
	}
	return res
}

func (v *Validator) validateContent(content []any) domain.ValidationResult {
	res := domain.ValidationResult{IsValid: true}

	for i, raw := range content {
		item := asMap(raw)
		if len(asString(item["text"])) > maxContentTextLength {
			res.Warnings = append(res.Warnings, fmt.Sprintf("content %d: text exceeds recommended length", i))
		}
		for _, rawMedia := range asSlice(item["media"]) {
			media := asMap(rawMedia)
			if asString(media["type"]) == "" || asString(media["url"]) == "" {
				res.IsValid = false
				res.Errors = append(res.Errors, fmt.Sprintf("content %d: invalid media format", i))
			}
		}
	}
	return res
}

func (v *Validator) validateEngagement(engagement map[string]any) domain.ValidationResult {
	res := domain.ValidationResult{IsValid: true}

	for _, field := range []string{"likes", "comments", "shares", "views"} {
		value, ok := engagement[field]
		if !ok {
			continue
		}
		f, numeric := toFloat(value)
		if !numeric || !isNumeric(value) {
			res.IsValid = false
			res.Errors = append(res.Errors, fmt.Sprintf("invalid %s value: must be numeric", field))
			continue
		}
		if f < 0 {
			res.IsValid = false
			res.Errors = append(res.Errors, fmt.Sprintf("invalid %s value: must be non-negative", field))
		}
	}

	if value, ok := engagement["engagement_rate"]; ok {
		f, numeric := toFloat(value)
		if !numeric || !isNumeric(value) || f < 0 || f > 1 {
			res.IsValid = false
			res.Errors = append(res.Errors, "invalid engagement rate: must be between 0 and 1")
		}
	}
	return res
}

func (v *Validator) validateNetwork(network map[string]any) domain.ValidationResult {
	res := domain.ValidationResult{IsValid: true}

	for i, raw := range asSlice(network["connections"]) {
		conn := asMap(raw)
		if asString(conn["id"]) == "" || asString(conn["type"]) == "" {
			res.IsValid = false
			res.Errors = append(res.Errors, fmt.Sprintf("connection %d: invalid format", i))
		}
	}

	if metrics := asMap(network["metrics"]); metrics != nil {
		if _, hasSize := metrics["size"]; !hasSize {
			res.IsValid = false
			res.Errors = append(res.Errors, "network metrics missing size")
		}
		if _, hasDensity := metrics["density"]; !hasDensity {
			res.IsValid = false
			res.Errors = append(res.Errors, "network metrics missing density")
		}
	}
	return res
}
