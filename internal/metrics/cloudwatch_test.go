package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrasol/internal/precompute"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, m.err
}

func sampleStats() precompute.RunStats {
	return precompute.RunStats{
		TargetDate:      time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC),
		PatiosTotal:     120,
		PatiosProcessed: 118,
		PatioFailures:   2,
		RowsWritten:     16992,
		Duration:        95 * time.Second,
	}
}

func TestPublishRunMetrics(t *testing.T) {
	client := &mockCloudWatch{}
	m := NewRunMetrics(client, nil)

	m.PublishRunMetrics(context.Background(), sampleStats())

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	assert.Equal(t, Namespace, *input.Namespace)
	require.Len(t, input.MetricData, 4)

	byName := map[string]float64{}
	for _, d := range input.MetricData {
		byName[*d.MetricName] = *d.Value
		require.Len(t, d.Dimensions, 1)
		assert.Equal(t, "2025-06-21", *d.Dimensions[0].Value)
	}
	assert.Equal(t, 95000.0, byName[metricRunDuration])
	assert.Equal(t, 118.0, byName[metricPatiosProcessed])
	assert.Equal(t, 2.0, byName[metricPatioFailures])
	assert.Equal(t, 16992.0, byName[metricRowsWritten])
}

func TestPublishRunMetricsSwallowsErrors(t *testing.T) {
	client := &mockCloudWatch{err: errors.New("throttled")}
	m := NewRunMetrics(client, nil)

	// Must not panic or propagate.
	m.PublishRunMetrics(context.Background(), sampleStats())
	assert.Len(t, client.inputs, 1)
}
