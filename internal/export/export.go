// Package export defines outbound ports that receive the normalized
// acquisitions table after every board refresh.
package export

import (
	"context"

	"precatorios/internal/core"
)

// Exporter writes the full acquisitions table to an external destination.
// Implementations replace the previous contents.
type Exporter interface {
	Export(ctx context.Context, records []core.Acquisition) error
}

// Nop discards exports. Used when no destination is configured.
type Nop struct{}

func (Nop) Export(context.Context, []core.Acquisition) error { return nil }
