package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

const cloudWatchScheme = "cloudwatch://"

// DefaultLookback is how far back a CloudWatch fetch reaches.
const DefaultLookback = time.Hour

// LogsClient is the subset of the CloudWatch Logs API we use.
type LogsClient interface {
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// NewCloudWatchClient loads AWS configuration with optional region and shared
// profile overrides and returns a CloudWatch Logs client.
func NewCloudWatchClient(ctx context.Context, region, profile string) (*cloudwatchlogs.Client, error) {
	var cfgOpts []func(*config.LoadOptions) error
	if region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(region))
	}
	if profile != "" {
		cfgOpts = append(cfgOpts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, err
	}
	return cloudwatchlogs.NewFromConfig(cfg), nil
}

// CloudWatchSource reads the events of one log group written during the last
// lookback window. Each event message is emitted as-is, so a group fed by the
// telemetry collector yields the same text as the flat file.
type CloudWatchSource struct {
	client   LogsClient
	group    string
	lookback time.Duration
	now      func() time.Time
}

func NewCloudWatchSource(client LogsClient, group string, lookback time.Duration) *CloudWatchSource {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &CloudWatchSource{client: client, group: group, lookback: lookback, now: time.Now}
}

func (s *CloudWatchSource) String() string { return cloudWatchScheme + s.group }

func (s *CloudWatchSource) Fetch(ctx context.Context) (string, error) {
	if s.group == "" {
		return "", fmt.Errorf("cloudwatch: empty log group")
	}
	end := s.now()
	start := end.Add(-s.lookback)

	var b strings.Builder
	var next *string
	for {
		out, err := s.client.FilterLogEvents(ctx, &cloudwatchlogs.FilterLogEventsInput{
			LogGroupName: aws.String(s.group),
			StartTime:    aws.Int64(start.UnixMilli()),
			EndTime:      aws.Int64(end.UnixMilli()),
			NextToken:    next,
			Interleaved:  aws.Bool(true),
		})
		if err != nil {
			return "", fmt.Errorf("cloudwatch %s: %w", s.group, err)
		}
		for _, e := range out.Events {
			msg := strings.TrimRight(aws.ToString(e.Message), "\n")
			if msg == "" {
				continue
			}
			b.WriteString(msg)
			b.WriteByte('\n')
		}
		if out.NextToken == nil || (next != nil && aws.ToString(out.NextToken) == aws.ToString(next)) {
			break
		}
		next = out.NextToken
	}
	return b.String(), nil
}
