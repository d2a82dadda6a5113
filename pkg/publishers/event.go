package publishers

import (
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/domain"
)

// Event represents the payload published downstream for a scored prospect.
type Event struct {
	TaskID      string          `json:"task_id"`
	Platform    string          `json:"platform"`
	Target      string          `json:"target"`
	Prospect    domain.Prospect `json:"prospect"`
	PublishedAt time.Time       `json:"published_at"`
}

// NewEvent constructs an Event for the given platform target + prospect.
func NewEvent(platform, target string, prospect domain.Prospect) Event {
	return Event{
		TaskID:      prospect.TaskID,
		Platform:    platform,
		Target:      target,
		Prospect:    prospect,
		PublishedAt: time.Now().UTC(),
	}
}
