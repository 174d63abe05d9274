package audiocore

import "time"

const (
	// DefaultPeriodFrames is the live period size when none is configured
	DefaultPeriodFrames = 512

	// MaxMixerBuses is the input bus limit of a mixer; connections to
	// higher buses fail with ErrBusOutOfRange
	MaxMixerBuses = 4096

	// DefaultMaxOfflineFrames is the largest offline render request
	DefaultMaxOfflineFrames = 4096

	// DefaultMaxStalls bounds consecutive offline renders without progress
	DefaultMaxStalls = 100

	// DefaultRetryBackoff is the pause after a render that could not run
	DefaultRetryBackoff = 5 * time.Millisecond

	// DefaultRecoveryInbox is the recovery event channel capacity
	DefaultRecoveryInbox = 16

	// DefaultMinRestartInterval paces recovery restarts
	DefaultMinRestartInterval = time.Second

	// DefaultDeviceCacheTTL is how long device listings are cached
	DefaultDeviceCacheTTL = 30 * time.Second
)
