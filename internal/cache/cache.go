// Package cache keeps the latest snapshot of every business dataset in memory.
// Snapshots are swapped atomically; there is no TTL, a slot is reloaded only
// when empty or when an operator (or the refresh schedule) asks for it.
package cache

import (
	"context"

	"crm_assistant_backend/internal/datasets"
	"crm_assistant_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

// Loader produces fresh tables; ingest.Pipeline implements it.
type Loader interface {
	Ledger(ctx context.Context) *datasets.Table[datasets.LedgerEntry]
	Customers(ctx context.Context) *datasets.Table[datasets.CustomerRecord]
	Inventory(ctx context.Context) *datasets.InventoryTable
	Suppliers(ctx context.Context) *datasets.Table[datasets.Supplier]
	Sales(ctx context.Context) *datasets.Table[datasets.SaleRow]
	Collections(ctx context.Context) *datasets.Table[datasets.CollectionRow]
	SupplementarySales(ctx context.Context) *datasets.Table[datasets.SupplementaryRow]
	PriceList(ctx context.Context) *datasets.Table[datasets.PriceEntry]
}

// Cache holds one slot per dataset.
type Cache struct {
	Ledger             *Slot[*datasets.Table[datasets.LedgerEntry]]
	Customers          *Slot[*datasets.Table[datasets.CustomerRecord]]
	Inventory          *Slot[*datasets.InventoryTable]
	Suppliers          *Slot[*datasets.Table[datasets.Supplier]]
	Sales              *Slot[*datasets.Table[datasets.SaleRow]]
	Collections        *Slot[*datasets.Table[datasets.CollectionRow]]
	SupplementarySales *Slot[*datasets.Table[datasets.SupplementaryRow]]
	Prices             *Slot[*datasets.Table[datasets.PriceEntry]]

	log *logger.Logger
}

// New creates an empty cache backed by loader. A nil loader yields slots that
// stay empty until Set is called.
func New(loader Loader, log *logger.Logger) *Cache {
	if loader == nil {
		loader = nopLoader{}
	}
	return &Cache{
		Ledger:             NewSlot(string(datasets.Ledger), loader.Ledger),
		Customers:          NewSlot(string(datasets.Customers), loader.Customers),
		Inventory:          NewSlot(string(datasets.Inventory), loader.Inventory),
		Suppliers:          NewSlot(string(datasets.Suppliers), loader.Suppliers),
		Sales:              NewSlot(string(datasets.Sales), loader.Sales),
		Collections:        NewSlot(string(datasets.Collections), loader.Collections),
		SupplementarySales: NewSlot(string(datasets.SupplementarySales), loader.SupplementarySales),
		Prices:             NewSlot(string(datasets.Prices), loader.PriceList),
		log:                log,
	}
}

type warmable interface {
	Name() string
	Stats() SlotStats
	warm(ctx context.Context) bool
	refresh(ctx context.Context) bool
}

func (s *Slot[T]) warm(ctx context.Context) bool {
	_, ok := s.Get(ctx)
	return ok
}

func (s *Slot[T]) refresh(ctx context.Context) bool {
	return s.Refresh(ctx)
}

func (c *Cache) slots() []warmable {
	return []warmable{
		c.Ledger, c.Customers, c.Inventory, c.Suppliers,
		c.Sales, c.Collections, c.SupplementarySales, c.Prices,
	}
}

// Warm loads every empty slot concurrently and returns the names of slots
// that are still empty afterwards.
func (c *Cache) Warm(ctx context.Context) []string {
	return c.each(ctx, func(ctx context.Context, s warmable) bool { return s.warm(ctx) })
}

// Refresh forces a reload of every slot. Slots whose reload fails keep their
// previous snapshot; their names are returned.
func (c *Cache) Refresh(ctx context.Context) []string {
	return c.each(ctx, func(ctx context.Context, s warmable) bool { return s.refresh(ctx) })
}

// Stats reports every slot in load order.
func (c *Cache) Stats() []SlotStats {
	slots := c.slots()
	out := make([]SlotStats, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Stats())
	}
	return out
}

func (c *Cache) each(ctx context.Context, fn func(context.Context, warmable) bool) []string {
	slots := c.slots()
	ok := make([]bool, len(slots))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range slots {
		g.Go(func() error {
			ok[i] = fn(gctx, s)
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for i, s := range slots {
		if !ok[i] {
			failed = append(failed, s.Name())
		}
	}
	if len(failed) > 0 && c.log != nil {
		c.log.Warn("datasets unavailable after load", "datasets", failed)
	}
	return failed
}

type nopLoader struct{}

func (nopLoader) Ledger(context.Context) *datasets.Table[datasets.LedgerEntry] { return nil }

func (nopLoader) Customers(context.Context) *datasets.Table[datasets.CustomerRecord] { return nil }

func (nopLoader) Inventory(context.Context) *datasets.InventoryTable { return nil }

func (nopLoader) Suppliers(context.Context) *datasets.Table[datasets.Supplier] { return nil }

func (nopLoader) Sales(context.Context) *datasets.Table[datasets.SaleRow] { return nil }

func (nopLoader) Collections(context.Context) *datasets.Table[datasets.CollectionRow] { return nil }

func (nopLoader) SupplementarySales(context.Context) *datasets.Table[datasets.SupplementaryRow] {
	return nil
}

func (nopLoader) PriceList(context.Context) *datasets.Table[datasets.PriceEntry] { return nil }
