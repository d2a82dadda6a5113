package pipeline

import (
	"strings"
	"testing"
)

func TestValidateRequiresIdentityFields(t *testing.T) {
	v := NewValidator(nil)

	report := v.Validate(map[string]any{
		"basic_info": map[string]any{"bio": "just a bio"},
	})
	if report.BasicInfo.IsValid {
		t.Fatal("expected invalid basic_info without username and name")
	}
	if len(report.BasicInfo.Errors) != 2 {
		t.Fatalf("expected two missing-field errors, got %v", report.BasicInfo.Errors)
	}
}

func TestValidateEmailAndWebsiteFormats(t *testing.T) {
	v := NewValidator(nil)

	report := v.Validate(map[string]any{
		"basic_info": map[string]any{
			"username": "jane",
			"name":     "Jane",
			"email":    "not-an-email",
			"website":  "ftp://example.com",
		},
	})
	if report.BasicInfo.IsValid {
		t.Fatal("expected invalid basic_info")
	}
	joined := strings.Join(report.BasicInfo.Errors, "; ")
	if !strings.Contains(joined, "email") || !strings.Contains(joined, "website") {
		t.Fatalf("expected email and website errors, got %v", report.BasicInfo.Errors)
	}
}

func TestValidateLongBioIsWarningOnly(t *testing.T) {
	v := NewValidator(nil)

	report := v.Validate(map[string]any{
		"basic_info": map[string]any{
			"username": "jane",
			"name":     "Jane",
			"bio":      strings.Repeat("x", 1001),
		},
	})
	if !report.BasicInfo.IsValid {
		t.Fatalf("long bio should not invalidate: %v", report.BasicInfo.Errors)
	}
	if len(report.BasicInfo.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", report.BasicInfo.Warnings)
	}
}

func TestValidateEngagementBounds(t *testing.T) {
	v := NewValidator(nil)

	report := v.Validate(map[string]any{
		"engagement": map[string]any{
			"likes":           -5,
			"comments":        "lots",
			"engagement_rate": 1.5,
		},
	})
	if report.Engagement.IsValid {
		t.Fatal("expected invalid engagement")
	}
	if len(report.Engagement.Errors) != 3 {
		t.Fatalf("expected three errors, got %v", report.Engagement.Errors)
	}
}

func TestValidateNetworkStructure(t *testing.T) {
	v := NewValidator(nil)

	report := v.Validate(map[string]any{
		"network": map[string]any{
			"connections": []any{
				map[string]any{"id": "c1", "type": "follower"},
				map[string]any{"type": "follower"},
			},
			"metrics": map[string]any{"size": 2},
		},
	})
	if report.Network.IsValid {
		t.Fatal("expected invalid network")
	}
	joined := strings.Join(report.Network.Errors, "; ")
	if !strings.Contains(joined, "connection 1") || !strings.Contains(joined, "density") {
		t.Fatalf("unexpected network errors: %v", report.Network.Errors)
	}
}

func TestMergedAggregatesSections(t *testing.T) {
	v := NewValidator(nil)

	report := v.Validate(map[string]any{
		"basic_info": map[string]any{"username": "jane", "name": "Jane"},
		"engagement": map[string]any{"likes": -1},
	})
	merged := report.Merged()
	if merged.IsValid {
		t.Fatal("merged result should be invalid")
	}
	if len(merged.Errors) != 1 {
		t.Fatalf("expected one merged error, got %v", merged.Errors)
	}
}
