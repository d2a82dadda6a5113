package publishers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsClient defines the minimal subset of the SNS client used by awsSNSSender.
type snsClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// awsSNSSender delivers events to an AWS SNS topic.
type awsSNSSender struct {
	topicARN string
	client   snsClient
	log      Logger
}

// newSNSPublisher creates a new SNS publisher with the given configuration.
func newSNSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.SNS == nil {
		return nil, fmt.Errorf("publisher %q missing sns configuration", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.SNS.Region, cfg.SNS.Credentials)
	if err != nil {
		return nil, err
	}

	return &senderPublisher{
		id:  cfg.ID,
		typ: TypeSNS,
		s: &awsSNSSender{
			topicARN: cfg.SNS.TopicARN,
			client:   sns.NewFromConfig(awsCfg),
			log:      ensureLogger(log),
		},
	}, nil
}

// Send delivers the event to the configured SNS topic.
func (s *awsSNSSender) Send(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"platform": {
				DataType:    aws.String("String"),
				StringValue: aws.String(evt.Platform),
			},
		},
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		s.log.ErrorObj("sns publisher send failed", "publisher_sns_error", map[string]any{
			"topic_arn": s.topicARN,
			"task_id":   evt.TaskID,
			"error":     err.Error(),
		})
		return fmt.Errorf("publish message to sns: %w", err)
	}
	s.log.DebugObj("sns publisher delivered event", "publisher_sns_delivery", map[string]any{
		"task_id": evt.TaskID,
	})
	return nil
}
