// Package datasets defines the typed, normalized tables the assistant answers from.
// Every row carries at least one canonical join key produced by textnorm.Key.
package datasets

import (
	"time"
)

// Name identifies one business dataset.
type Name string

const (
	Ledger             Name = "ledger"
	Customers          Name = "customers"
	Inventory          Name = "inventory"
	Suppliers          Name = "suppliers"
	Sales              Name = "sales"
	Collections        Name = "collections"
	SupplementarySales Name = "supplementary_sales"
	Prices             Name = "prices"
)

// All lists every dataset in load order.
var All = []Name{Ledger, Customers, Inventory, Suppliers, Sales, Collections, SupplementarySales, Prices}

// Table is an immutable snapshot of one dataset. Tables are rebuilt wholesale
// and never mutated after construction.
type Table[T any] struct {
	Rows     []T
	LoadedAt time.Time
}

// NewTable builds a table stamped with the current time.
func NewTable[T any](rows []T) *Table[T] {
	return &Table[T]{Rows: rows, LoadedAt: time.Now()}
}

// Len returns the number of rows, tolerating a nil table.
func (t *Table[T]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table[T]) Empty() bool {
	return t.Len() == 0
}

// LedgerEntry is one open accounts-receivable document.
type LedgerEntry struct {
	Series       string
	Number       float64
	IssuedAt     string
	DueAt        string
	CustomerCode string
	CustomerName string
	TaxID        string
	City         string
	Province     string
	Phone1       string
	Phone2       string
	SalesRep     string
	Authorizer   string
	Email        string
	Amount       float64
	Discount     float64
	CreditLimit  float64
	DaysOverdue  float64
	SalesRepKey  string
	TaxIDKey     string
	CustomerKey  string
	Zone         string
	Aging        AgingBucket
}

// Overdue reports whether the document is past its due date.
func (e LedgerEntry) Overdue() bool {
	return e.DaysOverdue > 0
}

// CustomerRecord is one entry of the customer master.
type CustomerRecord struct {
	TaxID    string
	Name     string
	TaxIDKey string
	NameKey  string
}

// ProductStock is one product pivoted across stores.
type ProductStock struct {
	Reference      string
	Description    string
	ReferenceKey   string
	DescriptionKey string
	Brand          string
	Department     string

	// Stock holds units per store name; absent stores are zero-filled.
	Stock    map[string]float64
	UnitCost float64
}

// TotalStock sums units across all stores.
func (p ProductStock) TotalStock() float64 {
	var total float64
	for _, v := range p.Stock {
		total += v
	}
	return total
}

// InventoryTable is the pivoted inventory plus the store columns seen during ingestion.
type InventoryTable struct {
	Products []ProductStock
	Stores   []string
	LoadedAt time.Time
}

// Len returns the number of products, tolerating a nil table.
func (t *InventoryTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Products)
}

// Supplier links a product reference to its supplier.
type Supplier struct {
	SKU          string
	SKUKey       string
	Supplier     string
	SupplierCode string
}

// SaleRow is one invoiced sales line.
type SaleRow struct {
	Year          int
	Month         int
	SoldAt        time.Time
	Series        string
	DocumentType  string
	SalesRepCode  string
	SalesRep      string
	CustomerID    string
	CustomerName  string
	ItemCode      string
	ItemName      string
	Category      string
	Line          string
	Brand         string
	Amount        float64
	Units         float64
	UnitCost      float64
	SuperCategory string
	CustomerIDKey string
	CustomerKey   string
	ItemKey       string
}

// CollectionRow is one payment collected by a sales rep.
type CollectionRow struct {
	Year         int
	Month        int
	CollectedAt  time.Time
	SalesRepCode string
	Amount       float64
}

// SupplementaryRow is one row of the supplementary sales spreadsheet. Columns
// are kept by normalized header name; CustomerID is the "ID CLIENTE" column.
type SupplementaryRow struct {
	CustomerID    string
	CustomerIDKey string
	Fields        map[string]string
}

// PriceEntry is one item of the price master.
type PriceEntry struct {
	Reference      string
	Description    string
	ReferenceKey   string
	DescriptionKey string
	ListPrice      float64
}
