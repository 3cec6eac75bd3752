package hostperm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
)

func TestAutoGrant(t *testing.T) {
	var h AutoGrant
	assert.False(t, h.RuntimePermissionsRequired())
	assert.Equal(t, domain.PermissionGranted, h.Check(domain.ActivityRecognition))
	assert.NoError(t, h.Prompt(context.Background(), 1, nil))
}

func TestDeferredPromptAndRecord(t *testing.T) {
	h := NewDeferred(1)
	assert.Equal(t, domain.PermissionPrompt, h.Check(domain.ActivityRecognition))

	require.NoError(t, h.Prompt(context.Background(), 101, []string{domain.ActivityRecognition}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, err := h.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 101, p.RequestCode)
	assert.Equal(t, []string{domain.ActivityRecognition}, p.Permissions)

	h.Record(p.Permissions, []domain.PermissionState{domain.PermissionGranted})
	assert.Equal(t, domain.PermissionGranted, h.Check(domain.ActivityRecognition))
}

func TestDeferredPromptHonoursContextWhenBacklogFull(t *testing.T) {
	h := NewDeferred(1)
	require.NoError(t, h.Prompt(context.Background(), 1, []string{"a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := h.Prompt(ctx, 2, []string{"a"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeferredNextCancelled(t *testing.T) {
	h := NewDeferred(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
