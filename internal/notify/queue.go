package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// QueueNotifier publishes escalations to SQS for downstream ticketing workers.
type QueueNotifier struct {
	client   sqsAPI
	queueURL string
}

func NewQueueNotifier(client sqsAPI, queueURL string) *QueueNotifier {
	if client == nil || queueURL == "" {
		return nil
	}
	return &QueueNotifier{client: client, queueURL: queueURL}
}

func (q *QueueNotifier) Escalate(ctx context.Context, esc Escalation) error {
	if q == nil {
		return errors.New("notify: queue notifier not configured")
	}
	esc = esc.withDefaults()
	body, err := json.Marshal(esc)
	if err != nil {
		return fmt.Errorf("notify: marshal escalation: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String("ticket.escalated")},
			"ticket_id":  {DataType: aws.String("String"), StringValue: aws.String(esc.TicketID)},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: failed to send SQS message: %w", err)
	}
	return nil
}
