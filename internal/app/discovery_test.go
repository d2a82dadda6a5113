package app

import (
	"context"
	"testing"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/config"
	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"github.com/scoutline-hq/prospect-discovery/internal/logger"
	"github.com/scoutline-hq/prospect-discovery/internal/monitoring"
	"github.com/scoutline-hq/prospect-discovery/internal/pipeline"
	"github.com/scoutline-hq/prospect-discovery/internal/scheduler"
	"github.com/scoutline-hq/prospect-discovery/internal/storage"
	"github.com/scoutline-hq/prospect-discovery/internal/tasks"
	"github.com/scoutline-hq/prospect-discovery/pkg/publishers"
)

type capturePublisher struct {
	events []publishers.Event
}

func (c *capturePublisher) ID() string   { return "capture" }
func (c *capturePublisher) Type() string { return "test" }
func (c *capturePublisher) Publish(_ context.Context, evt publishers.Event) error {
	c.events = append(c.events, evt)
	return nil
}

func newTestDiscovery(t *testing.T, pub publishers.Publisher) *Discovery {
	t.Helper()
	store, err := storage.NewStore("none", "", storage.Options{})
	if err != nil {
		t.Fatalf("init storage: %v", err)
	}

	taskMgr := tasks.New(nil, nil)
	d := &Discovery{
		cfg:      &config.Config{},
		tasks:    taskMgr,
		pipe:     pipeline.New(config.ScoringConfig{MaxNetworkSize: 1000, MaxPosts: 100, MaxAvgEngagement: 1000, MaxFollowers: 1000, MaxResponseTimeHours: 24, ContentTypeCount: 5}, nil, nil),
		fanout:   publishers.NewFanout([]publishers.Publisher{pub}),
		store:    store,
		interval: time.Hour,
		log:      &logger.NopLogger{},
		sink:     monitoring.Nop{},
	}
	d.sched = scheduler.New(scheduler.Options{
		Tasks:  taskMgr,
		Config: config.SchedulerConfig{},
	})
	return d
}

func TestHandleRecordPublishesScoredProspect(t *testing.T) {
	pub := &capturePublisher{}
	d := newTestDiscovery(t, pub)

	task := domain.ScrapeTask{ID: "task-1", Platform: "twitter", Target: "janedoe"}
	rec := domain.NewRawRecord("twitter", map[string]any{
		"basic_info": map[string]any{
			"username":  "janedoe",
			"name":      "Jane Doe",
			"followers": "12.5k",
		},
	}, task.ID)

	d.handleRecord(context.Background(), task, rec)

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.TaskID != "task-1" || evt.Platform != "twitter" || evt.Target != "janedoe" {
		t.Fatalf("unexpected event identity: %+v", evt)
	}
	if evt.Prospect.Score.Composite < 0 || evt.Prospect.Score.Composite > 1 {
		t.Fatalf("composite score out of range: %v", evt.Prospect.Score.Composite)
	}
}

func TestHandleRecordDropsInvalidRecord(t *testing.T) {
	pub := &capturePublisher{}
	d := newTestDiscovery(t, pub)

	task := domain.ScrapeTask{ID: "task-2", Platform: "twitter", Target: "ghost"}
	rec := domain.NewRawRecord("twitter", map[string]any{
		"basic_info": map[string]any{"bio": "no identity fields"},
	}, task.ID)

	d.handleRecord(context.Background(), task, rec)

	if len(pub.events) != 0 {
		t.Fatalf("expected invalid record to be dropped, got %d events", len(pub.events))
	}
}
