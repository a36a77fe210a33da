package notify

import (
	"context"

	"github.com/obrasai/vigia/pkg/model"
)

// Event is a deviation-alert notification handed to downstream channels.
type Event struct {
	Alerta   model.DeviationAlert `json:"alerta"`
	ObraNome string               `json:"obra_nome"`
	Novo     bool                 `json:"novo"` // false when an existing alert was refreshed
}

// Notifier delivers alert events to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an event. Implementations must be safe for concurrent use.
	Send(ctx context.Context, event Event) error
}
