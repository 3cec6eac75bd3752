// Package hostperm provides ports.PermissionHost implementations.
package hostperm

import (
	"context"
	"sync"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

// AutoGrant is a host without runtime permissions; everything is granted.
type AutoGrant struct{}

func (AutoGrant) RuntimePermissionsRequired() bool { return false }

func (AutoGrant) Check(string) domain.PermissionState { return domain.PermissionGranted }

func (AutoGrant) Prompt(context.Context, int, []string) error { return nil }

// Deferred queues prompts for an external shell (the app hosting the bridge)
// which pulls them with Next and reports the user's choice with Record.
type Deferred struct {
	mu      sync.Mutex
	states  map[string]domain.PermissionState
	prompts chan domain.PermissionRequest
}

func NewDeferred(backlog int) *Deferred {
	if backlog <= 0 {
		backlog = 16
	}
	return &Deferred{
		states:  make(map[string]domain.PermissionState),
		prompts: make(chan domain.PermissionRequest, backlog),
	}
}

func (d *Deferred) RuntimePermissionsRequired() bool { return true }

func (d *Deferred) Check(permission string) domain.PermissionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.states[permission]
}

func (d *Deferred) Prompt(ctx context.Context, requestCode int, permissions []string) error {
	p := domain.PermissionRequest{
		RequestCode: requestCode,
		Permissions: append([]string(nil), permissions...),
	}
	select {
	case d.prompts <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next blocks until a prompt is queued or ctx is done.
func (d *Deferred) Next(ctx context.Context) (domain.PermissionRequest, error) {
	select {
	case p := <-d.prompts:
		return p, nil
	case <-ctx.Done():
		return domain.PermissionRequest{}, ctx.Err()
	}
}

// Record stores the states the shell reported, index-aligned with permissions.
func (d *Deferred) Record(permissions []string, grants []domain.PermissionState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, perm := range permissions {
		if i >= len(grants) {
			break
		}
		d.states[perm] = grants[i]
	}
}

var (
	_ ports.PermissionHost = AutoGrant{}
	_ ports.PermissionHost = (*Deferred)(nil)
)
