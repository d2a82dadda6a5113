package pipeline

import (
	"errors"
	"testing"

	"github.com/scoutline-hq/prospect-discovery/internal/domain"
)

func validRawData() map[string]any {
	return map[string]any{
		"basic_info": map[string]any{
			"username":  "jane_doe",
			"name":      "<b>Jane Doe</b>",
			"bio":       "I love great tech and travel",
			"followers": "12.5k",
		},
		"content": []any{
			map[string]any{
				"id":   "p1",
				"type": "promotional",
				"text": "Check out this amazing product",
				"engagement": map[string]any{
					"likes":    "1,200",
					"comments": 30,
					"shares":   "4",
				},
			},
		},
		"engagement": map[string]any{
			"followers":       "12.5k",
			"following":       500,
			"likes":           "1,200",
			"engagement_rate": "4%",
		},
		"network": map[string]any{
			"connections": []any{
				map[string]any{"id": "c1", "type": "follower", "strength": 0.8},
				map[string]any{"id": "c2", "type": "follower", "strength": 0.3},
			},
		},
	}
}

func TestProcessProducesScoredProspect(t *testing.T) {
	p := New(testScoringConfig(), nil, nil)

	rec := domain.NewRawRecord("twitter", validRawData(), "task-1")
	prospect, err := p.Process(rec)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if prospect.TaskID != "task-1" || prospect.Source != "twitter" {
		t.Fatalf("provenance lost: %+v", prospect)
	}
	if !prospect.Validation.IsValid {
		t.Fatalf("expected valid prospect, errors %v", prospect.Validation.Errors)
	}
	if prospect.Score.Composite <= 0 || prospect.Score.Composite > 1 {
		t.Fatalf("composite out of range: %v", prospect.Score.Composite)
	}
	if prospect.ScoredAt.IsZero() {
		t.Fatal("missing scored timestamp")
	}

	info := asMap(asMap(prospect.Data)["basic_info"])
	if info["name"] != "Jane Doe" {
		t.Fatalf("expected cleaned name, got %v", info["name"])
	}
	if info["followers"] != int64(12500) {
		t.Fatalf("expected parsed follower count, got %v", info["followers"])
	}
}

func TestProcessRejectsRecordWithoutIdentity(t *testing.T) {
	p := New(testScoringConfig(), nil, nil)

	rec := domain.NewRawRecord("twitter", map[string]any{
		"basic_info": map[string]any{"bio": "no name here"},
	}, "task-2")

	_, err := p.Process(rec)
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestProcessRejectsNilRecord(t *testing.T) {
	p := New(testScoringConfig(), nil, nil)
	if _, err := p.Process(nil); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestProcessDoesNotMutateRawRecord(t *testing.T) {
	p := New(testScoringConfig(), nil, nil)

	raw := validRawData()
	rec := domain.NewRawRecord("twitter", raw, "task-3")
	if _, err := p.Process(rec); err != nil {
		t.Fatalf("process: %v", err)
	}

	info := asMap(rec.RawData["basic_info"])
	if info["name"] != "<b>Jane Doe</b>" {
		t.Fatalf("raw record mutated: %v", info["name"])
	}
	if info["followers"] != "12.5k" {
		t.Fatalf("raw record mutated: %v", info["followers"])
	}
}

func TestPartialValidationIssuesStillScore(t *testing.T) {
	p := New(testScoringConfig(), nil, nil)

	data := validRawData()
	// An invalid connection makes the network section invalid without
	// touching basic_info; the record must still come through flagged.
	network := asMap(data["network"])
	network["connections"] = append(asSlice(network["connections"]), map[string]any{"type": "follower"})

	prospect, err := p.Process(domain.NewRawRecord("twitter", data, "task-4"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if prospect.Validation.IsValid {
		t.Fatal("expected flagged validation result")
	}
	if len(prospect.Validation.Errors) == 0 {
		t.Fatal("expected validation errors carried on the prospect")
	}
}
