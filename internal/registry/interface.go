package registry

import "context"

// Presence tracks which rooms have at least one live session on some
// instance.
type Presence interface {
	Register(ctx context.Context, roomID string) error
	Deregister(ctx context.Context, roomID string) error
	Online(ctx context.Context, roomIDs []string) (map[string]bool, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}

// Noop is used when presence is disabled. Every room reads as offline.
type Noop struct{}

func (Noop) Register(ctx context.Context, roomID string) error   { return nil }
func (Noop) Deregister(ctx context.Context, roomID string) error { return nil }

func (Noop) Online(ctx context.Context, roomIDs []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (Noop) StartHeartbeat(ctx context.Context) error { return nil }
func (Noop) StopHeartbeat()                           {}
func (Noop) Close() error                             { return nil }
