package external

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// putTimeout bounds each metric emission so a slow CloudWatch endpoint can
// never back up request handling.
const putTimeout = 5 * time.Second

// CloudWatchMetrics records API request telemetry to CloudWatch. It
// implements core.MetricsCollector.
//
// Emission is fire-and-forget: RecordRequest is called on the request path,
// so failures are logged and dropped rather than propagated.
type CloudWatchMetrics struct {
	client    *cloudwatch.Client
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a collector publishing under the given
// namespace.
func NewCloudWatchMetrics(ctx context.Context, region, namespace string, logger *slog.Logger) (*CloudWatchMetrics, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{
		client:    cloudwatch.NewFromConfig(awsCfg),
		namespace: namespace,
		logger:    logger,
	}, nil
}

// RecordRequest publishes latency and count datums for a completed request.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String("Method"), Value: aws.String(method)},
		{Name: aws.String("Endpoint"), Value: aws.String(endpoint)},
		{Name: aws.String("Status"), Value: aws.String(status)},
	}
	now := time.Now()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
		defer cancel()

		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace: aws.String(m.namespace),
			MetricData: []cwtypes.MetricDatum{
				{
					MetricName: aws.String("APILatency"),
					Dimensions: dims,
					Timestamp:  aws.Time(now),
					Unit:       cwtypes.StandardUnitMilliseconds,
					Value:      aws.Float64(float64(duration.Milliseconds())),
				},
				{
					MetricName: aws.String("APIRequestCount"),
					Dimensions: dims,
					Timestamp:  aws.Time(now),
					Unit:       cwtypes.StandardUnitCount,
					Value:      aws.Float64(1),
				},
			},
		})
		if err != nil {
			m.logger.Warn("failed to publish request metrics", slog.String("error", err.Error()))
		}
	}()
}
