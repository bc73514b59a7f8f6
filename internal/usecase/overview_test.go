package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverviewReportsPartsIndependently(t *testing.T) {
	a, _ := engineAnalytics(t, syntheticRecords(60))

	ov, err := NewOverviewUseCase(a).GetOverview(context.Background(), OverviewParams{})
	require.NoError(t, err)
	assert.Equal(t, testNow, ov.GeneratedAt)
	assert.Nil(t, ov.Forecast)
	assert.Contains(t, ov.Errors, "forecast")
	require.NotNil(t, ov.Trends)
	require.NotNil(t, ov.Anomalies)
	assert.Equal(t, 2.0, ov.Anomalies.Threshold)
}

func TestOverviewComplete(t *testing.T) {
	a, e := engineAnalytics(t, syntheticRecords(60))
	_, err := NewModelTrainer(a, e, time.Minute, nil).Train(context.Background())
	require.NoError(t, err)

	ov, err := NewOverviewUseCase(a).GetOverview(context.Background(), OverviewParams{Days: 14})
	require.NoError(t, err)
	assert.Nil(t, ov.Errors)
	require.NotNil(t, ov.Forecast)
	assert.Len(t, ov.Forecast.Predictions, 2)
}
