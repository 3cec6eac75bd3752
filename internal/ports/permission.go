package ports

import (
	"context"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
)

// PermissionHost is the platform side of the runtime permission flow.
// Prompt only asks the host to show the request; the outcome arrives later
// through the broker's HandleResult with the same request code.
type PermissionHost interface {
	RuntimePermissionsRequired() bool
	Check(permission string) domain.PermissionState
	Prompt(ctx context.Context, requestCode int, permissions []string) error
}
