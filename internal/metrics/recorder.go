// Package metrics publishes business counters (orders, payments, reviews) to CloudWatch.
package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/imrishuroy/go-ebook-store/internal/aws"
)

// Metric names.
const (
	OrderCreated       = "OrderCreated"
	PaymentInitiated   = "PaymentInitiated"
	PaymentConfirmed   = "PaymentConfirmed"
	PaymentCancelled   = "PaymentCancelled"
	GatewayFailure     = "GatewayFailure"
	DeliverySkipped    = "DeliverySkipped"
	ReviewSubmitted    = "ReviewSubmitted"
	ReviewsModerated   = "ReviewsModerated"
	DownloadsCompleted = "DownloadsCompleted"
)

// Recorder counts events. Implementations must never fail the caller.
type Recorder interface {
	Count(ctx context.Context, name string, value float64, dims ...string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Count(context.Context, string, float64, ...string) {}

// CloudWatchRecorder sends each count as a single PutMetricData call.
type CloudWatchRecorder struct {
	client    aws.CloudWatchAPI
	namespace string
	log       *log.Helper
	nowFunc   func() time.Time
}

// NewCloudWatchRecorder returns a recorder writing into namespace.
func NewCloudWatchRecorder(client aws.CloudWatchAPI, namespace string, logger log.Logger) *CloudWatchRecorder {
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		log:       log.NewHelper(log.With(logger, "module", "metrics")),
		nowFunc:   time.Now,
	}
}

// Count records value under name. dims are key/value pairs; a trailing odd key is ignored.
func (r *CloudWatchRecorder) Count(ctx context.Context, name string, value float64, dims ...string) {
	datum := cwtypes.MetricDatum{
		MetricName: &name,
		Value:      &value,
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  timePtr(r.nowFunc()),
	}
	for i := 0; i+1 < len(dims); i += 2 {
		k, v := dims[i], dims[i+1]
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{Name: &k, Value: &v})
	}

	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &r.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		r.log.Warnf("put metric %s: %v", name, err)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
