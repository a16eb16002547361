package worker_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqdesk/aqdesk/internal/worker"
)

func newDispatcher(svc *fakeService, configured ...int) *worker.Dispatcher {
	job := newJob(svc, worker.RefreshConfig{StationIDs: configured})
	return worker.NewDispatcher(job, zerolog.Nop())
}

func TestDispatcher_StationRefresh(t *testing.T) {
	svc := newFakeService()
	d := newDispatcher(svc, 14)

	result, err := d.Handle(context.Background(), []byte(`{"job_type":"station_refresh","station_ids":[16,114]}`))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Successful)
	assert.ElementsMatch(t, []int{16, 114}, svc.sensorCalls)
}

func TestDispatcher_StationRefreshDefaultsToConfigured(t *testing.T) {
	svc := newFakeService()
	d := newDispatcher(svc, 14)

	result, err := d.Handle(context.Background(), []byte(`{"job_type":"station_refresh"}`))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stations)
	assert.Equal(t, []int{14}, svc.sensorCalls)
}

func TestDispatcher_FullRefresh(t *testing.T) {
	svc := newFakeService()
	svc.stations = []int{14, 16}
	d := newDispatcher(svc)

	result, err := d.Handle(context.Background(), []byte(`{"job_type":"full_refresh"}`))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stations)
}

func TestDispatcher_RejectsBadMessages(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"invalid json", `{"job_type":`, worker.ErrMalformedMessage},
		{"wrong field type", `{"job_type":"station_refresh","station_ids":"14"}`, worker.ErrMalformedMessage},
		{"unknown job", `{"job_type":"reindex"}`, worker.ErrUnknownJob},
		{"missing job", `{}`, worker.ErrUnknownJob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			_, err := newDispatcher(svc, 14).Handle(context.Background(), []byte(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, svc.sensorCalls)
		})
	}
}

func TestDispatcher_TooManyFailures(t *testing.T) {
	svc := newFakeService()
	svc.sensorErr[14] = errUpstream
	svc.sensorErr[16] = errUpstream

	result, err := newDispatcher(svc).Handle(context.Background(), []byte(`{"job_type":"station_refresh","station_ids":[14,16,114]}`))
	require.Error(t, err)

	assert.Contains(t, err.Error(), "too many refresh failures: 2/3")
	assert.Equal(t, 2, result.Failed)
}
