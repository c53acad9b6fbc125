// Package storage persists the notification state.
package storage

import (
	"context"

	"github.com/Aprilius996/ofac-monitor/internal/model"
)

// Storage loads and saves the single process-wide notification state.
// Save must be atomic: after a crash the store holds either the previous
// or the new state, never a mix.
type Storage interface {
	Load(ctx context.Context) (*model.State, error)
	Save(ctx context.Context, state *model.State) error
	Close() error
}
