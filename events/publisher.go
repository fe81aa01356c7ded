package events

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Publisher publishes raw messages to a topic.
type Publisher interface {
	Publish(ctx context.Context, topicArn string, message []byte) error
}

type SNSPublisher struct {
	client *sns.Client
}

// NewSNSPublisher builds the SNS client. AWS_ENDPOINT overrides the endpoint
// so local stacks (LocalStack) can receive the events.
func NewSNSPublisher(cfg sdkaws.Config) *SNSPublisher {
	client := sns.NewFromConfig(cfg, func(o *sns.Options) {
		if endpoint := os.Getenv("AWS_ENDPOINT"); endpoint != "" {
			o.BaseEndpoint = sdkaws.String(endpoint)
		}
	})
	return &SNSPublisher{client: client}
}

func (p *SNSPublisher) Publish(ctx context.Context, topicArn string, message []byte) error {
	if topicArn == "" {
		return fmt.Errorf("empty topicArn")
	}
	body := string(message)
	_, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: &topicArn,
		Message:  &body,
	})
	if err != nil {
		return fmt.Errorf("sns publish failed for topic %s: %w", topicArn, err)
	}
	return nil
}

// LoadAWSConfig loads the default AWS config (env credentials and region).
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}
