package driven

import "context"

// CIClient defines the driven port for controlling the CI run the bridge is
// executing inside.
type CIClient interface {
	// CancelCurrentRun asks the CI platform to cancel the run this process
	// belongs to. Used when a sync request arrives inside the minimum sync
	// interval.
	CancelCurrentRun(ctx context.Context) error
}
