package services

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the persistence collaborator of the engine. Reads return
// ErrNotFound for missing records. Implementations must enforce link
// uniqueness per material and report a violation as ErrLinkExists.
type Store interface {
	Tender(ctx context.Context, id string) (Tender, error)
	UpdateTenderRates(ctx context.Context, tenderID string, rates RateTable) error

	Position(ctx context.Context, id string) (Position, error)
	PositionsByTender(ctx context.Context, tenderID string) ([]Position, error)
	UpdatePositionTotal(ctx context.Context, positionID string, total decimal.Decimal) error

	Item(ctx context.Context, id string) (BOQItem, error)
	ItemsByPosition(ctx context.Context, positionID string) ([]BOQItem, error)
	CreateItem(ctx context.Context, item *BOQItem) error
	UpdateItem(ctx context.Context, item *BOQItem) error

	Link(ctx context.Context, id string) (WorkMaterialLink, error)
	// LinkByMaterial returns nil without error when the material is unlinked.
	LinkByMaterial(ctx context.Context, materialID string) (*WorkMaterialLink, error)
	LinksByWork(ctx context.Context, workID string) ([]WorkMaterialLink, error)
	LinksByPosition(ctx context.Context, positionID string) ([]WorkMaterialLink, error)
	CreateLink(ctx context.Context, link *WorkMaterialLink) error
	UpdateLink(ctx context.Context, link *WorkMaterialLink) error
	DeleteLink(ctx context.Context, id string) error

	// RunInTransaction runs fn against a transactional Store. Any error
	// returned by fn rolls back every write made through it.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error
}
