package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names what happened to an import.
type Action string

const (
	ActionImportCreated  Action = "import_created"
	ActionCitizenPatched Action = "citizen_patched"
)

// Event is emitted after a successful write. It carries ids and counts only,
// never citizen personal data.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	ImportID  int64     `json:"import_id"`
	// CitizenID is set for citizen-level actions.
	CitizenID *int64 `json:"citizen_id,omitempty"`
	// Citizens is the size of a created import.
	Citizens int `json:"citizens,omitempty"`
	// EdgesChanged counts reciprocal relative records rewritten by a patch.
	EdgesChanged int    `json:"edges_changed,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

// Store is an append-only audit sink.
type Store interface {
	Append(ctx context.Context, event Event) error
}
