// Package ingest turns raw dataset extracts into normalized tables.
//
// Every load either produces a table or an empty table plus a logged failure:
// missing configuration, transport errors and parse errors never escape the
// pipeline, so callers only ever see "data" or "no data".
package ingest

import (
	"context"
	"time"

	"crm_assistant_backend/internal/datasets"
	"crm_assistant_backend/platform/apperr"
	"crm_assistant_backend/platform/config"
	"crm_assistant_backend/platform/logger"
	"crm_assistant_backend/platform/retry"
)

// Fetcher retrieves the raw bytes of one extract by its configured path.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Observer receives the outcome of every load. Optional.
type Observer interface {
	ObserveIngestion(dataset string, rows int, elapsed time.Duration, err error)
}

const defaultFetchTimeout = 60 * time.Second

// Pipeline loads each dataset on demand.
type Pipeline struct {
	fetcher  Fetcher
	cfg      config.DatasetConfig
	log      *logger.Logger
	observer Observer
}

// New creates a pipeline. fetcher may be nil, in which case every load is
// reported as unavailable.
func New(fetcher Fetcher, cfg config.DatasetConfig, log *logger.Logger) *Pipeline {
	return &Pipeline{fetcher: fetcher, cfg: cfg, log: log}
}

// SetObserver wires an ingestion observer (metrics).
func (p *Pipeline) SetObserver(o Observer) {
	p.observer = o
}

// Ledger loads the accounts-receivable ledger.
func (p *Pipeline) Ledger(ctx context.Context) *datasets.Table[datasets.LedgerEntry] {
	return load(ctx, p, datasets.Ledger, parseLedger)
}

// Customers loads the customer master.
func (p *Pipeline) Customers(ctx context.Context) *datasets.Table[datasets.CustomerRecord] {
	return load(ctx, p, datasets.Customers, parseCustomers)
}

// Suppliers loads the reference-to-supplier sheet.
func (p *Pipeline) Suppliers(ctx context.Context) *datasets.Table[datasets.Supplier] {
	return load(ctx, p, datasets.Suppliers, parseSuppliers)
}

// Sales loads the full sales history.
func (p *Pipeline) Sales(ctx context.Context) *datasets.Table[datasets.SaleRow] {
	return load(ctx, p, datasets.Sales, parseSales)
}

// Collections loads collected payments.
func (p *Pipeline) Collections(ctx context.Context) *datasets.Table[datasets.CollectionRow] {
	return load(ctx, p, datasets.Collections, parseCollections)
}

// SupplementarySales loads the supplementary sales sheet.
func (p *Pipeline) SupplementarySales(ctx context.Context) *datasets.Table[datasets.SupplementaryRow] {
	return load(ctx, p, datasets.SupplementarySales, parseSupplementary)
}

// PriceList loads the price master.
func (p *Pipeline) PriceList(ctx context.Context) *datasets.Table[datasets.PriceEntry] {
	return load(ctx, p, datasets.Prices, parsePrices)
}

// Inventory loads and pivots the per-store stock extract.
func (p *Pipeline) Inventory(ctx context.Context) *datasets.InventoryTable {
	start := time.Now()
	table, err := func() (*datasets.InventoryTable, error) {
		data, err := p.fetch(ctx, datasets.Inventory)
		if err != nil {
			return nil, err
		}
		t, err := parseInventory(data)
		if err != nil {
			return nil, apperr.Parse("parse inventory", err).WithOp("ingest.Inventory")
		}
		return t, nil
	}()
	if err != nil {
		table = &datasets.InventoryTable{}
	}
	table.LoadedAt = time.Now()
	p.report(datasets.Inventory, table.Len(), time.Since(start), err)
	return table
}

func load[T any](ctx context.Context, p *Pipeline, name datasets.Name, parse func([]byte) ([]T, error)) *datasets.Table[T] {
	start := time.Now()

	rows, err := func() ([]T, error) {
		data, err := p.fetch(ctx, name)
		if err != nil {
			return nil, err
		}
		rows, err := parse(data)
		if err != nil {
			return nil, apperr.Parse("parse "+string(name), err).WithOp("ingest." + string(name))
		}
		return rows, nil
	}()

	table := datasets.NewTable(rows)
	if err != nil {
		table = datasets.NewTable[T](nil)
	}
	p.report(name, table.Len(), time.Since(start), err)
	return table
}

func (p *Pipeline) fetch(ctx context.Context, name datasets.Name) ([]byte, error) {
	op := "ingest." + string(name)
	path := p.cfg.GetDatasetPath(string(name))
	if path == "" {
		return nil, apperr.Unavailable("dataset path not configured", nil).WithOp(op)
	}
	if p.fetcher == nil {
		return nil, apperr.Unavailable("no dataset source configured", nil).WithOp(op)
	}

	timeout := p.cfg.GetFetchTimeout()
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	var data []byte
	err := retry.Once(ctx, p.log, "fetch "+string(name), func(ctx context.Context) error {
		fctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		b, err := p.fetcher.Fetch(fctx, path)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, apperr.Unavailable("fetch extract", err).WithOp(op)
	}
	return data, nil
}

func (p *Pipeline) report(name datasets.Name, rows int, elapsed time.Duration, err error) {
	if p.log != nil {
		p.log.Ingestion(string(name), rows, elapsed, err)
		// A fetch failure heals on the next refresh; a parse failure needs a fixed extract.
		if apperr.Is(err, apperr.KindParse) {
			p.log.Error("dataset extract rejected", "dataset", string(name), "error", err)
		}
	}
	if p.observer != nil {
		p.observer.ObserveIngestion(string(name), rows, elapsed, err)
	}
}
