package remote

import (
	"context"
	"errors"
)

// ErrOffline is returned by the Offline client for every operation.
var ErrOffline = errors.New("remote store not configured")

// Offline is a Client for running without a remote store. Every call fails
// with ErrOffline, so incremental creates keep their placeholder ids and
// best-effort pushes fall through to their logged-failure path.
type Offline struct{}

// Select implements Client.
func (Offline) Select(context.Context, string, Filters) ([]Record, error) {
	return nil, ErrOffline
}

// Insert implements Client.
func (Offline) Insert(context.Context, string, Record) ([]Record, error) {
	return nil, ErrOffline
}

// Upsert implements Client.
func (Offline) Upsert(context.Context, string, Record, string) ([]Record, error) {
	return nil, ErrOffline
}

// Delete implements Client.
func (Offline) Delete(context.Context, string, Filters) error {
	return ErrOffline
}
