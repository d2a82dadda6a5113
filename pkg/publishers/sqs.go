package publishers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsClient defines the minimal subset of the SQS client used by awsSQSSender.
type sqsClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// awsSQSSender delivers events to an AWS SQS queue.
type awsSQSSender struct {
	queueURL string
	client   sqsClient
	log      Logger
}

// newSQSPublisher creates a new SQS publisher with the given configuration.
func newSQSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.SQS == nil {
		return nil, fmt.Errorf("publisher %q missing sqs configuration", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.SQS.Region, cfg.SQS.Credentials)
	if err != nil {
		return nil, err
	}

	return &senderPublisher{
		id:  cfg.ID,
		typ: TypeSQS,
		s: &awsSQSSender{
			queueURL: cfg.SQS.QueueURL,
			client:   sqs.NewFromConfig(awsCfg),
			log:      ensureLogger(log),
		},
	}, nil
}

// Send delivers the event to the configured SQS queue.
func (s *awsSQSSender) Send(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"platform": {
				DataType:    aws.String("String"),
				StringValue: aws.String(evt.Platform),
			},
		},
	}

	if _, err := s.client.SendMessage(ctx, input); err != nil {
		s.log.ErrorObj("sqs publisher send failed", "publisher_sqs_error", map[string]any{
			"queue_url": s.queueURL,
			"task_id":   evt.TaskID,
			"error":     err.Error(),
		})
		return fmt.Errorf("send message to sqs: %w", err)
	}
	s.log.DebugObj("sqs publisher delivered event", "publisher_sqs_delivery", map[string]any{
		"task_id": evt.TaskID,
	})
	return nil
}
