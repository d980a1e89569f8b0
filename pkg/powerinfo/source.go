package powerinfo

import "context"

// Source is a device-signal collaborator: it reports the tracked device's
// state and percentage and answers on-demand queries.
type Source interface {
	Device() Device
	// Read returns the current state and percentage.
	Read(ctx context.Context) (Update, error)
	// Subscribe delivers changes until ctx is done or the device goes away.
	// The channel is closed in both cases.
	Subscribe(ctx context.Context) (<-chan Update, error)
	// Query refreshes the device and returns a full reading.
	Query(ctx context.Context) (*Info, error)
	// Icon returns the device's icon name, or "" when it has none.
	Icon(ctx context.Context) string
	Close() error
}
