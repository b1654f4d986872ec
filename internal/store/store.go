package store

import (
	"context"
	"errors"
	"time"

	"github.com/civicsignal/billscan-cli/internal/model"
)

// ErrNotFound is returned when no persisted state exists for the requested
// bill id.
var ErrNotFound = errors.New("store: bill not found")

// BillInfo summarizes a stored bill for listings.
type BillInfo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Sections  int       `json:"sections"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the persistence interface for bill documents. SaveBill
// always serializes the entire in-memory document; a failed save must not
// leave a partially-written document behind.
type Store interface {
	LoadBill(ctx context.Context, id string) (*model.Bill, error)
	SaveBill(ctx context.Context, bill *model.Bill) error
	ListBills(ctx context.Context) ([]BillInfo, error)
	DeleteBill(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
