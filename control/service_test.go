package control

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semstreams-fix/errors"
	"github.com/c360/semstreams-fix/lifecycle"
	"github.com/c360/semstreams-fix/metric"
	"github.com/c360/semstreams-fix/pkg/clock"
	mocks "github.com/c360/semstreams-fix/testutil"
)

func newService(t *testing.T) (*Service, *lifecycle.Controller, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctl := lifecycle.New(mocks.NewFakeEngine(), lifecycle.WithClock(clk))
	return NewService(Config{Prefix: "fix.control"}, ctl, nil, nil), ctl, clk
}

func TestStartAndStop(t *testing.T) {
	svc, ctl, _ := newService(t)

	resp, err := svc.Handle(OpStart, nil)
	require.NoError(t, err)
	assert.Equal(t, Response{Status: StatusSuccess, Message: "Successfully started"}, resp)
	assert.True(t, ctl.IsRunning())

	resp, err = svc.Handle(OpStart, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, Response{Status: StatusFailure, Message: "Already running"}, resp)

	resp, err = svc.Handle(OpStop, nil)
	require.NoError(t, err)
	assert.Equal(t, Response{Status: StatusSuccess, Message: "Successfully stopped"}, resp)
	assert.False(t, ctl.IsRunning())

	resp, err = svc.Handle(OpStop, nil)
	require.NoError(t, err)
	assert.Equal(t, Response{Status: StatusFailure, Message: "Already stopped"}, resp)
}

func TestStartWithScheduledStop(t *testing.T) {
	svc, ctl, clk := newService(t)

	resp, err := svc.Handle(OpStart, []byte(`{"stop_after": 30}`))
	require.NoError(t, err)
	assert.Equal(t, Response{Status: StatusSuccess, Message: "Started with scheduled stop after 30 seconds"}, resp)

	clk.Advance(30 * time.Second)
	assert.False(t, ctl.IsRunning())
}

func TestStartRejectsNegativeStopAfter(t *testing.T) {
	svc, ctl, _ := newService(t)

	resp, err := svc.Handle(OpStart, []byte(`{"stop_after": -5}`))
	require.NoError(t, err)
	assert.Equal(t, Response{Status: StatusFailure, Message: "stop_after must be non-negative"}, resp)
	assert.False(t, ctl.IsRunning())
}

func TestMalformedRequestIsInternalError(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Handle(OpStart, []byte(`{"stop_after": "soon"}`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

type brokenController struct{}

func (brokenController) Start(context.Context, int) error { return stderrors.New("engine unreachable") }
func (brokenController) Stop(context.Context) error { panic("stop exploded") }

func TestUnexpectedErrorsAndPanics(t *testing.T) {
	svc := NewService(Config{Prefix: "fix.control"}, brokenController{}, nil, nil)

	_, err := svc.Handle(OpStart, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine unreachable")

	_, err = svc.Handle(OpStop, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop exploded")

	// The panic released the lock.
	_, err = svc.Handle(OpStart, nil)
	assert.Error(t, err)
}

func TestUnknownOperation(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Handle("pause", nil)
	assert.Error(t, err)
}

func TestConcurrentRequestsAreSerialized(t *testing.T) {
	svc, _, _ := newService(t)

	var wg sync.WaitGroup
	results := make(chan Response, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.Handle(OpStart, nil)
			if err == nil {
				results <- resp
			}
		}()
	}
	wg.Wait()
	close(results)

	var started int
	for resp := range results {
		if resp.Status == StatusSuccess {
			started++
		}
	}
	assert.Equal(t, 1, started)
}

func TestRecordsMetrics(t *testing.T) {
	m := metric.NewMetrics()
	ctl := lifecycle.New(mocks.NewFakeEngine())
	svc := NewService(Config{Prefix: "fix.control"}, ctl, m, nil)

	resp, err := svc.Handle(OpStart, nil)
	require.NoError(t, err)
	svc.record(OpStart, resp.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ControlRequests.WithLabelValues(OpStart, "success")))
}

func TestDefaultsAndSubjects(t *testing.T) {
	svc := NewService(Config{Prefix: "fix.control"}, brokenController{}, nil, nil)
	assert.Equal(t, DefaultName, svc.cfg.Name)
	assert.Equal(t, DefaultVersion, svc.cfg.Version)
	assert.Equal(t, "fix.control.start", svc.Subject(OpStart))
	assert.Equal(t, "fix.control.stop", svc.Subject(OpStop))

	assert.NoError(t, svc.Stop())
	assert.Error(t, svc.Run(nil))
}
