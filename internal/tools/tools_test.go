package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"crm_assistant_backend/internal/cache"
	"crm_assistant_backend/internal/datasets"
	"crm_assistant_backend/platform/config"
	"crm_assistant_backend/platform/logger"
	"crm_assistant_backend/platform/textnorm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const portal = "https://pagos.example.com/recaudo"

func ledgerRow(taxID, code, name string, amount, days float64) datasets.LedgerEntry {
	return datasets.LedgerEntry{
		TaxID:        taxID,
		CustomerCode: code,
		CustomerName: name,
		Amount:       amount,
		DaysOverdue:  days,
		TaxIDKey:     textnorm.Key(taxID),
		CustomerKey:  textnorm.Key(code),
	}
}

func newTestService(t *testing.T) (*Service, *cache.Cache) {
	t.Helper()
	c := cache.New(nil, logger.Discard())
	cfg := &config.Config{PurchaseHistoryDays: 60, PaymentPortalURL: portal}
	return NewService(c, cfg, logger.Discard()), c
}

func TestAccountStatusSumsOpenAndOverdue(t *testing.T) {
	svc, c := newTestService(t)
	c.Ledger.Set(datasets.NewTable([]datasets.LedgerEntry{
		ledgerRow("800.123", "C1", "FERRETERIA CENTRAL", 100, 10),
		ledgerRow("800.123", "C1", "FERRETERIA CENTRAL", 50, 0),
		ledgerRow("900.555", "C2", "OTRO", 999, 40),
	}))

	got := svc.AccountStatus(context.Background(), "800123", "c1")

	assert.Contains(t, got, "FERRETERIA CENTRAL")
	assert.Contains(t, got, "deuda total es de $150")
	assert.Contains(t, got, "$100 está vencido")
	assert.Contains(t, got, "10 días")
	assert.Contains(t, got, portal)
}

func TestAccountStatusWithoutOverdue(t *testing.T) {
	svc, c := newTestService(t)
	c.Ledger.Set(datasets.NewTable([]datasets.LedgerEntry{
		ledgerRow("800123", "C1", "CLIENTE AL DIA", 80, 0),
		ledgerRow("800123", "C1", "CLIENTE AL DIA", 20, -5),
	}))

	got := svc.AccountStatus(context.Background(), "800123", "C1")

	assert.Contains(t, got, "Felicitaciones")
	assert.Contains(t, got, "$100")
	assert.NotContains(t, got, portal)
}

func TestCredentialFailuresAreIndistinguishable(t *testing.T) {
	svc, c := newTestService(t)
	c.Ledger.Set(datasets.NewTable([]datasets.LedgerEntry{
		ledgerRow("800123", "C1", "CLIENTE", 100, 10),
	}))
	c.Sales.Set(datasets.NewTable([]datasets.SaleRow{
		{CustomerIDKey: "C1", ItemName: "BROCHA", Amount: 10, SoldAt: time.Now()},
	}))
	ctx := context.Background()

	cases := [][2]string{{"999", "C1"}, {"800123", "C9"}, {"999", "C9"}}

	status := svc.AccountStatus(ctx, cases[0][0], cases[0][1])
	history := svc.PurchaseHistory(ctx, cases[0][0], cases[0][1])
	for _, tc := range cases[1:] {
		assert.Equal(t, status, svc.AccountStatus(ctx, tc[0], tc[1]))
		assert.Equal(t, history, svc.PurchaseHistory(ctx, tc[0], tc[1]))
	}
	assert.Equal(t, msgCredentialsMismatch, status)
	assert.Equal(t, msgHistoryMismatch, history)
}

func TestAccountStatusRequiresBothCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	assert.Equal(t, msgMissingCredentials, svc.AccountStatus(context.Background(), "800123", " "))
}

func TestAccountStatusUnavailableLedger(t *testing.T) {
	svc, _ := newTestService(t)
	got := svc.AccountStatus(context.Background(), "800123", "C1")
	assert.Contains(t, got, "no han podido ser cargados")
}

func TestVerifyCustomer(t *testing.T) {
	svc, c := newTestService(t)
	c.Customers.Set(datasets.NewTable([]datasets.CustomerRecord{
		{TaxID: "800.123.456", Name: "PINTURAS DEL CAFE", TaxIDKey: textnorm.Key("800.123.456")},
	}))
	ctx := context.Background()

	assert.Contains(t, svc.VerifyCustomer(ctx, "800123456"), "PINTURAS DEL CAFE")
	assert.Contains(t, svc.VerifyCustomer(ctx, "111"), "No te encontré")
	assert.Contains(t, svc.VerifyCustomer(ctx, ""), "Necesito el NIT")
}

func TestStockLookupReportsOnlyStockedStores(t *testing.T) {
	svc, c := newTestService(t)
	c.Inventory.Set(&datasets.InventoryTable{
		Stores: []string{"CEDI", "Olaya"},
		Products: []datasets.ProductStock{
			{
				Reference:      "P-100",
				Description:    "VINILO BLANCO 1 GAL",
				ReferenceKey:   textnorm.Key("P-100"),
				DescriptionKey: textnorm.Key("VINILO BLANCO 1 GAL"),
				Stock:          map[string]float64{"CEDI": 3, "Olaya": 0},
			},
		},
	})

	got := svc.StockLookup(context.Background(), "vinilo blanco")

	assert.Contains(t, got, "total de 3 unidades")
	assert.Contains(t, got, "* 3 unidades en CEDI")
	assert.NotContains(t, got, "Olaya")
}

func TestStockLookupOutOfStockAndMiss(t *testing.T) {
	svc, c := newTestService(t)
	c.Inventory.Set(&datasets.InventoryTable{
		Stores: []string{"CEDI"},
		Products: []datasets.ProductStock{
			{Reference: "R1", Description: "LIJA 120", ReferenceKey: "R1", DescriptionKey: "LIJA 120", Stock: map[string]float64{"CEDI": 0}},
		},
	})
	ctx := context.Background()

	assert.Contains(t, svc.StockLookup(ctx, "r1"), "agotado")
	assert.Contains(t, svc.StockLookup(ctx, "martillo"), "No encontré ningún producto")
}

func TestPriceLookup(t *testing.T) {
	svc, c := newTestService(t)
	c.Prices.Set(datasets.NewTable([]datasets.PriceEntry{
		{Reference: "A1", Description: "RODILLO 9", ReferenceKey: "A1", DescriptionKey: "RODILLO 9", ListPrice: 0},
		{Reference: "B2", Description: "BROCHA 2", ReferenceKey: "B2", DescriptionKey: "BROCHA 2", ListPrice: 850},
		{Reference: "B3", Description: "BROCHA 3", ReferenceKey: "B3", DescriptionKey: "BROCHA 3", ListPrice: 990},
	}))
	ctx := context.Background()

	assert.Contains(t, svc.PriceLookup(ctx, "rodillo"), "no tiene un precio de lista asignado")
	assert.Contains(t, svc.PriceLookup(ctx, "brocha"), "$850")
	assert.Contains(t, svc.PriceLookup(ctx, "b3"), "$990")
	assert.Contains(t, svc.PriceLookup(ctx, "espatula"), "No encontré un precio")
}

func TestPurchaseHistoryWindowAndTopItems(t *testing.T) {
	svc, c := newTestService(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	c.Ledger.Set(datasets.NewTable([]datasets.LedgerEntry{
		ledgerRow("800123", "C1", "CLIENTE", 10, 0),
		ledgerRow("700111", "C2", "SIN COMPRAS", 10, 0),
		ledgerRow("600222", "C3", "ANTIGUO", 10, 0),
	}))
	recent := now.AddDate(0, 0, -5)
	c.Sales.Set(datasets.NewTable([]datasets.SaleRow{
		{CustomerIDKey: "C1", ItemName: "ESTUCO", Amount: 100, SoldAt: recent},
		{CustomerIDKey: "C1", ItemName: "BROCHA", Amount: 200, SoldAt: recent},
		{CustomerIDKey: "C1", ItemName: "LIJA", Amount: 100, SoldAt: recent},
		{CustomerIDKey: "C1", ItemName: "TINER", Amount: 50, SoldAt: recent},
		{CustomerIDKey: "C1", ItemName: "VINILO", Amount: 500, SoldAt: now.AddDate(0, 0, -90)},
		{CustomerIDKey: "C3", ItemName: "VINILO", Amount: 500, SoldAt: now.AddDate(0, 0, -61)},
	}))
	ctx := context.Background()

	got := svc.PurchaseHistory(ctx, "800123", "C1")
	assert.Contains(t, got, "total de $450")
	assert.NotContains(t, got, "VINILO")
	assert.NotContains(t, got, "TINER")

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "* BROCHA ($200)", lines[1])
	assert.Equal(t, "* ESTUCO ($100)", lines[2])
	assert.Equal(t, "* LIJA ($100)", lines[3])

	assert.Contains(t, svc.PurchaseHistory(ctx, "700111", "C2"), "no encuentro un historial")
	assert.Contains(t, svc.PurchaseHistory(ctx, "600222", "C3"), "últimos 60 días")
}

func TestPurchaseHistoryFailsClosedWithoutLedger(t *testing.T) {
	svc, c := newTestService(t)
	c.Sales.Set(datasets.NewTable([]datasets.SaleRow{
		{CustomerIDKey: "C1", ItemName: "BROCHA", Amount: 10, SoldAt: time.Now()},
	}))

	got := svc.PurchaseHistory(context.Background(), "800123", "C1")
	assert.Contains(t, got, "No puedo validar tu identidad")
}
