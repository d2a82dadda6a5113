package publishers

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// gcpPubSubSender delivers events to a Google Cloud Pub/Sub topic.
type gcpPubSubSender struct {
	topic *pubsub.Topic
	log   Logger
}

// newPubSubPublisher creates a new Pub/Sub publisher with the given configuration.
func newPubSubPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.PubSub == nil {
		return nil, fmt.Errorf("publisher %q missing pubsub configuration", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sender, err := newGCPPubSubSender(ctx, cfg.PubSub, log)
	if err != nil {
		return nil, err
	}

	return &senderPublisher{
		id:  cfg.ID,
		typ: TypePubSub,
		s:   sender,
	}, nil
}

func newGCPPubSubSender(ctx context.Context, cfg *GCPQueueConfig, log Logger) (*gcpPubSubSender, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &gcpPubSubSender{
		topic: client.Topic(cfg.Topic),
		log:   ensureLogger(log),
	}, nil
}

// Send delivers the event to the configured Pub/Sub topic. It waits for the
// server acknowledgement so delivery failures surface to the fanout.
func (s *gcpPubSubSender) Send(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"platform": evt.Platform,
		},
	})

	if _, err := result.Get(ctx); err != nil {
		s.log.ErrorObj("pubsub publisher send failed", "publisher_pubsub_error", map[string]any{
			"topic":   s.topic.ID(),
			"task_id": evt.TaskID,
			"error":   err.Error(),
		})
		return fmt.Errorf("publish message to pubsub: %w", err)
	}
	s.log.DebugObj("pubsub publisher delivered event", "publisher_pubsub_delivery", map[string]any{
		"task_id": evt.TaskID,
	})
	return nil
}
