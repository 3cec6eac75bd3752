// Package permission correlates asynchronous runtime-permission results from
// the host with the callers waiting on them.
package permission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cornelk/hashmap"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

// FirstRequestCode is the request code handed out to the first prompt.
const FirstRequestCode = 100

// ErrSensorUnavailable is returned by an OnGranted hook when there is no step
// sensor to start listening to.
var ErrSensorUnavailable = errors.New("step sensor not available on this device")

// GrantedFunc runs after the host granted the permission, before the waiting
// caller is resolved.
type GrantedFunc func() error

type outcome struct {
	result domain.PermissionResult
	err    error
}

type pending struct {
	permission string
	done       chan outcome
	once       sync.Once
}

func (p *pending) resolve(o outcome) {
	p.once.Do(func() {
		p.done <- o
		close(p.done)
	})
}

// Broker hands out a unique request code per prompt, so overlapping requests
// never share a pending entry.
type Broker struct {
	host      ports.PermissionHost
	obs       ports.Observability
	onGranted GrantedFunc

	pending  *hashmap.Map[int, *pending]
	nextCode atomic.Int64
}

func NewBroker(host ports.PermissionHost, obs ports.Observability) (*Broker, error) {
	if host == nil {
		return nil, fmt.Errorf("permission host is required")
	}
	if obs == nil {
		return nil, fmt.Errorf("observability is required")
	}
	b := &Broker{
		host:    host,
		obs:     obs,
		pending: hashmap.New[int, *pending](),
	}
	b.nextCode.Store(FirstRequestCode - 1)
	return b, nil
}

// OnGranted installs the hook run when a prompt comes back granted.
func (b *Broker) OnGranted(fn GrantedFunc) {
	b.onGranted = fn
}

// Granted reports whether permission is usable right now.
func (b *Broker) Granted(permission string) bool {
	if !b.host.RuntimePermissionsRequired() {
		return true
	}
	return b.host.Check(permission) == domain.PermissionGranted
}

// Request resolves immediately when the permission is not needed or already
// granted; otherwise it prompts through the host and waits for HandleResult.
func (b *Broker) Request(ctx context.Context, permission string) (domain.PermissionResult, error) {
	b.obs.IncCounter("capsteps_permission_requests_total", 1)

	if b.Granted(permission) {
		return domain.PermissionResult{Granted: true}, nil
	}

	code := int(b.nextCode.Add(1))
	p := &pending{permission: permission, done: make(chan outcome, 1)}
	b.pending.Set(code, p)

	b.obs.LogWarn("permission_prompt",
		ports.Field{Key: "permission", Value: permission},
		ports.Field{Key: "request_code", Value: code})

	if err := b.host.Prompt(ctx, code, []string{permission}); err != nil {
		b.pending.Del(code)
		return domain.PermissionResult{}, fmt.Errorf("prompt %s: %w", permission, err)
	}

	select {
	case o := <-p.done:
		return o.result, o.err
	case <-ctx.Done():
		b.pending.Del(code)
		return domain.PermissionResult{}, ctx.Err()
	}
}

// HandleResult delivers the host's answer for requestCode. It returns false
// when no caller is waiting on that code.
func (b *Broker) HandleResult(requestCode int, permissions []string, grants []domain.PermissionState) bool {
	p, ok := b.pending.Get(requestCode)
	if !ok || !b.pending.Del(requestCode) {
		b.obs.LogInfo("permission_result_unmatched", ports.Field{Key: "request_code", Value: requestCode})
		return false
	}

	granted := len(grants) > 0 && grants[0] == domain.PermissionGranted
	b.obs.LogInfo("permission_result",
		ports.Field{Key: "request_code", Value: requestCode},
		ports.Field{Key: "permissions", Value: permissions},
		ports.Field{Key: "granted", Value: granted})

	if !granted {
		p.resolve(outcome{result: domain.PermissionResult{Granted: false}})
		return true
	}

	if b.onGranted != nil {
		if err := b.onGranted(); err != nil {
			p.resolve(outcome{err: err})
			return true
		}
	}
	p.resolve(outcome{result: domain.PermissionResult{Granted: true}})
	return true
}

// Pending reports how many requests are still waiting on the host.
func (b *Broker) Pending() int {
	return b.pending.Len()
}
