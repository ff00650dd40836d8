package sns

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/notify-gateway/internal/config"
)

// Publisher sends SMS messages and push payloads via AWS SNS.
type Publisher interface {
	SendSMS(ctx context.Context, to, message string) error
	PublishToTarget(ctx context.Context, targetARN, message string) error
}

type publisher struct {
	client *sns.Client
}

func NewPublisher(cfg *config.Config) (Publisher, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	clientOpts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}

	return &publisher{client: sns.NewFromConfig(awsCfg, clientOpts...)}, nil
}

func (p *publisher) SendSMS(ctx context.Context, to, message string) error {
	_, err := p.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: &to,
		Message:     &message,
	})
	return err
}

// PublishToTarget delivers a push payload to a platform endpoint ARN.
func (p *publisher) PublishToTarget(ctx context.Context, targetARN, message string) error {
	_, err := p.client.Publish(ctx, &sns.PublishInput{
		TargetArn: &targetARN,
		Message:   &message,
	})
	return err
}
