package permission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yelzgniq/cap-android-steps/internal/adapters/hostperm"
	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

func TestRequestGrantedWithoutRuntimePermissions(t *testing.T) {
	b, err := NewBroker(hostperm.AutoGrant{}, &nopObs{})
	require.NoError(t, err)

	res, err := b.Request(context.Background(), domain.ActivityRecognition)
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.True(t, b.Granted(domain.ActivityRecognition))
	assert.Equal(t, 0, b.Pending())
}

func TestRequestAlreadyGrantedSkipsPrompt(t *testing.T) {
	host := hostperm.NewDeferred(1)
	host.Record([]string{domain.ActivityRecognition}, []domain.PermissionState{domain.PermissionGranted})
	b, err := NewBroker(host, &nopObs{})
	require.NoError(t, err)

	res, err := b.Request(context.Background(), domain.ActivityRecognition)
	require.NoError(t, err)
	assert.True(t, res.Granted)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = host.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "no prompt expected")
}

func TestRequestResolvedByHostResult(t *testing.T) {
	host := hostperm.NewDeferred(1)
	b, err := NewBroker(host, &nopObs{})
	require.NoError(t, err)

	var restarted int
	b.OnGranted(func() error {
		restarted++
		return nil
	})

	result := make(chan domain.PermissionResult, 1)
	go func() {
		res, err := b.Request(context.Background(), domain.ActivityRecognition)
		assert.NoError(t, err)
		result <- res
	}()

	prompt := nextPrompt(t, host)
	assert.Equal(t, FirstRequestCode, prompt.RequestCode)

	grants := []domain.PermissionState{domain.PermissionGranted}
	host.Record(prompt.Permissions, grants)
	require.True(t, b.HandleResult(prompt.RequestCode, prompt.Permissions, grants))

	select {
	case res := <-result:
		assert.True(t, res.Granted)
	case <-time.After(time.Second):
		t.Fatal("request was not resolved")
	}
	assert.Equal(t, 1, restarted)
	assert.Equal(t, 0, b.Pending())

	assert.False(t, b.HandleResult(prompt.RequestCode, prompt.Permissions, grants), "second result must not resolve again")
	assert.Equal(t, 1, restarted)
}

func TestRequestDenied(t *testing.T) {
	host := hostperm.NewDeferred(1)
	b, err := NewBroker(host, &nopObs{})
	require.NoError(t, err)

	result := make(chan domain.PermissionResult, 1)
	go func() {
		res, _ := b.Request(context.Background(), domain.ActivityRecognition)
		result <- res
	}()

	prompt := nextPrompt(t, host)
	require.True(t, b.HandleResult(prompt.RequestCode, prompt.Permissions, []domain.PermissionState{domain.PermissionDenied}))
	assert.False(t, (<-result).Granted)
}

func TestRequestGrantedButSensorMissing(t *testing.T) {
	host := hostperm.NewDeferred(1)
	b, err := NewBroker(host, &nopObs{})
	require.NoError(t, err)
	b.OnGranted(func() error { return ErrSensorUnavailable })

	errs := make(chan error, 1)
	go func() {
		_, err := b.Request(context.Background(), domain.ActivityRecognition)
		errs <- err
	}()

	prompt := nextPrompt(t, host)
	b.HandleResult(prompt.RequestCode, prompt.Permissions, []domain.PermissionState{domain.PermissionGranted})
	assert.ErrorIs(t, <-errs, ErrSensorUnavailable)
}

func TestHandleResultUnknownCode(t *testing.T) {
	obs := &nopObs{}
	b, err := NewBroker(hostperm.NewDeferred(1), obs)
	require.NoError(t, err)

	assert.False(t, b.HandleResult(999, nil, nil))
	assert.Contains(t, obs.infos(), "permission_result_unmatched")
}

func TestOverlappingRequestsGetDistinctCodes(t *testing.T) {
	host := hostperm.NewDeferred(4)
	b, err := NewBroker(host, &nopObs{})
	require.NoError(t, err)

	results := make(chan domain.PermissionResult, 2)
	for i := 0; i < 2; i++ {
		go func() {
			res, _ := b.Request(context.Background(), domain.ActivityRecognition)
			results <- res
		}()
	}

	p1 := nextPrompt(t, host)
	p2 := nextPrompt(t, host)
	require.NotEqual(t, p1.RequestCode, p2.RequestCode)

	b.HandleResult(p1.RequestCode, p1.Permissions, []domain.PermissionState{domain.PermissionDenied})
	b.HandleResult(p2.RequestCode, p2.Permissions, []domain.PermissionState{domain.PermissionGranted})

	var granted int
	for i := 0; i < 2; i++ {
		if (<-results).Granted {
			granted++
		}
	}
	assert.Equal(t, 1, granted)
}

func TestRequestCancelledRemovesPendingEntry(t *testing.T) {
	host := hostperm.NewDeferred(1)
	b, err := NewBroker(host, &nopObs{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := b.Request(ctx, domain.ActivityRecognition)
		errs <- err
	}()

	prompt := nextPrompt(t, host)
	cancel()
	require.ErrorIs(t, <-errs, context.Canceled)
	assert.Equal(t, 0, b.Pending())
	assert.False(t, b.HandleResult(prompt.RequestCode, prompt.Permissions, []domain.PermissionState{domain.PermissionGranted}))
}

func TestRequestPromptFailure(t *testing.T) {
	b, err := NewBroker(failingHost{}, &nopObs{})
	require.NoError(t, err)

	_, err = b.Request(context.Background(), domain.ActivityRecognition)
	require.Error(t, err)
	assert.Equal(t, 0, b.Pending())
}

func nextPrompt(t *testing.T, host *hostperm.Deferred) domain.PermissionRequest {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, err := host.Next(ctx)
	require.NoError(t, err)
	return p
}

type failingHost struct{}

func (failingHost) RuntimePermissionsRequired() bool { return true }

func (failingHost) Check(string) domain.PermissionState { return domain.PermissionPrompt }

func (failingHost) Prompt(context.Context, int, []string) error {
	return errors.New("no activity attached")
}

type nopObs struct {
	mu   sync.Mutex
	msgs []string
}

func (o *nopObs) infos() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.msgs...)
}

func (o *nopObs) LogInfo(msg string, _ ...ports.Field) {
	o.mu.Lock()
	o.msgs = append(o.msgs, msg)
	o.mu.Unlock()
}
func (o *nopObs) LogWarn(string, ...ports.Field)                        {}
func (o *nopObs) LogError(string, error, ...ports.Field)                {}
func (o *nopObs) LogCritical(string, error, ...ports.Field)             {}
func (o *nopObs) IncCounter(string, float64)                            {}
func (o *nopObs) ObserveLatency(string, float64)                        {}
func (o *nopObs) SetGauge(string, float64)                              {}
func (o *nopObs) RecordDLQ(ports.WALEntryID, *domain.StepSample, error) {}
