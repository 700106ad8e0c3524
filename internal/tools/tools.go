// Package tools implements the read-only business queries the language model
// may invoke: customer verification, account status, stock, price and purchase
// history. Every query answers with a user-facing Spanish sentence.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"crm_assistant_backend/internal/cache"
	"crm_assistant_backend/internal/datasets"
	"crm_assistant_backend/platform/config"
	"crm_assistant_backend/platform/logger"
	"crm_assistant_backend/platform/textnorm"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	defaultHistoryDays = 60
	topItems           = 3
)

// Messages shared by the two credential-protected tools. A wrong tax id, a
// wrong customer code and both wrong must read the same.
const (
	msgCredentialsMismatch = "Las credenciales no coinciden o no hay un estado de cuenta activo con esos datos. Por favor, verifica el NIT y el Código de Cliente."
	msgHistoryMismatch     = "Las credenciales no coinciden. No puedo mostrar el historial de compras."
	msgMissingCredentials  = "Error: Faltan el NIT o el Código de Cliente para realizar la consulta."
)

// Service answers tool calls from the business cache.
type Service struct {
	cache       *cache.Cache
	historyDays int
	portalURL   string
	now         func() time.Time
	printer     *message.Printer
	log         *logger.Logger
}

// NewService creates the query service. cfg may be nil, in which case the
// purchase window defaults to 60 days and no payment link is offered.
func NewService(c *cache.Cache, cfg config.AssistantConfig, log *logger.Logger) *Service {
	s := &Service{
		cache:       c,
		historyDays: defaultHistoryDays,
		now:         time.Now,
		printer:     message.NewPrinter(language.LatinAmericanSpanish),
		log:         log,
	}
	if cfg != nil {
		if d := cfg.GetPurchaseHistoryDays(); d > 0 {
			s.historyDays = d
		}
		s.portalURL = strings.TrimSpace(cfg.GetPaymentPortalURL())
	}
	return s
}

// SetClock overrides the time source used for the purchase window.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) money(v float64) string {
	return "$" + s.printer.Sprintf("%.0f", v)
}

func (s *Service) units(v float64) string {
	return s.printer.Sprintf("%.0f", v)
}

// VerifyCustomer looks a tax id up in the customer master.
func (s *Service) VerifyCustomer(ctx context.Context, taxID string) string {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return "Error: Necesito el NIT para poder buscarte."
	}

	customers, ok := s.cache.Customers.Get(ctx)
	if !ok {
		return "Lo siento, no puedo acceder a la base de datos de clientes en este momento."
	}

	key := textnorm.Key(taxID)
	for _, c := range customers.Rows {
		if c.TaxIDKey != key {
			continue
		}
		name := c.Name
		if name == "" {
			name = "Cliente"
		}
		return fmt.Sprintf("¡Hola %s! Sí te encontré en nuestra base de datos. ¿En qué te puedo ayudar hoy? ¿Quizás consultar tu estado de cuenta o el stock de un producto?", name)
	}
	return fmt.Sprintf("No te encontré en nuestra base de clientes con el NIT %s. ¿El NIT es correcto? Si eres nuevo, ¡bienvenido a Ferreinox!", taxID)
}

// AccountStatus reports the open balance of a customer proven by tax id and customer code.
func (s *Service) AccountStatus(ctx context.Context, taxID, code string) string {
	if strings.TrimSpace(taxID) == "" || strings.TrimSpace(code) == "" {
		return msgMissingCredentials
	}

	ledger, ok := s.cache.Ledger.Get(ctx)
	if !ok {
		return "Los datos de cartera no han podido ser cargados. Intenta más tarde."
	}

	rows := matchCredentials(ledger.Rows, taxID, code)
	if len(rows) == 0 {
		return msgCredentialsMismatch
	}

	var total, overdue, maxDays float64
	for _, r := range rows {
		total += r.Amount
		if r.Overdue() {
			overdue += r.Amount
			if r.DaysOverdue > maxDays {
				maxDays = r.DaysOverdue
			}
		}
	}
	name := rows[0].CustomerName

	if overdue > 0 {
		reply := fmt.Sprintf(
			"Hola %s. Tu *deuda total es de %s*. De este monto, *%s está vencido*. La factura con más antigüedad tiene %d días vencida.",
			name, s.money(total), s.money(overdue), int(maxDays),
		)
		if s.portalURL != "" {
			reply += " Puedes pagar en nuestro portal: " + s.portalURL
		}
		return reply
	}
	return fmt.Sprintf(
		"¡Hola %s! ¡Felicitaciones! *No tienes facturas vencidas*. Tu cartera total activa es de %s.",
		name, s.money(total),
	)
}

// StockLookup reports units per store for the first product matching term.
func (s *Service) StockLookup(ctx context.Context, term string) string {
	key := textnorm.Key(term)
	if key == "" {
		return "Error: Necesito el nombre o la referencia del producto."
	}

	inventory, ok := s.cache.Inventory.Get(ctx)
	if !ok {
		return "Lo siento, no puedo acceder a la información de inventario en este momento."
	}

	var product *datasets.ProductStock
	for i := range inventory.Products {
		p := &inventory.Products[i]
		if matchesProduct(p.ReferenceKey, p.DescriptionKey, key) {
			product = p
			break
		}
	}
	if product == nil {
		return fmt.Sprintf("No encontré ningún producto que coincida con '%s'.", strings.TrimSpace(term))
	}
	if len(inventory.Stores) == 0 {
		return fmt.Sprintf("Encontré el producto '%s', pero no tengo información de stock por tienda.", product.Description)
	}

	var total float64
	var lines []string
	for _, store := range inventory.Stores {
		units := product.Stock[store]
		if units <= 0 {
			continue
		}
		total += units
		lines = append(lines, fmt.Sprintf("* %s unidades en %s", s.units(units), store))
	}

	if total <= 0 {
		return fmt.Sprintf("Ups, parece que el producto '%s' (Ref: %s) está agotado en todas las tiendas en este momento.", product.Description, product.Reference)
	}
	return fmt.Sprintf(
		"¡Buenas noticias! Para '%s' (Ref: %s) tenemos un total de %s unidades, distribuidas así:\n%s",
		product.Description, product.Reference, s.units(total), strings.Join(lines, "\n"),
	)
}

// PriceLookup reports the list price of the first price-master item matching term.
func (s *Service) PriceLookup(ctx context.Context, term string) string {
	key := textnorm.Key(term)
	if key == "" {
		return "Error: Necesito el nombre o la referencia del producto."
	}

	prices, ok := s.cache.Prices.Get(ctx)
	if !ok {
		return "Lo siento, no puedo acceder a la lista de precios en este momento."
	}

	for _, p := range prices.Rows {
		if !matchesProduct(p.ReferenceKey, p.DescriptionKey, key) {
			continue
		}
		name := p.Description
		if name == "" {
			name = "Producto"
		}
		if p.ListPrice > 0 {
			return fmt.Sprintf("El precio de lista para '%s' (Ref: %s) es de %s (antes de IVA).", name, p.Reference, s.money(p.ListPrice))
		}
		return fmt.Sprintf("Encontré el producto '%s', pero no tiene un precio de lista asignado.", name)
	}
	return fmt.Sprintf("No encontré un precio para '%s'.", strings.TrimSpace(term))
}

// PurchaseHistory summarizes the recent purchases of a customer proven by tax id
// and customer code. Identity is re-checked against the ledger on every call.
func (s *Service) PurchaseHistory(ctx context.Context, taxID, code string) string {
	if strings.TrimSpace(taxID) == "" || strings.TrimSpace(code) == "" {
		return msgMissingCredentials
	}

	ledger, ok := s.cache.Ledger.Get(ctx)
	if !ok {
		return "Error: No puedo validar tu identidad (Cartera no disponible)."
	}
	rows := matchCredentials(ledger.Rows, taxID, code)
	if len(rows) == 0 {
		return msgHistoryMismatch
	}
	customerKey := rows[0].CustomerKey

	sales, ok := s.cache.Sales.Get(ctx)
	if !ok {
		return "Estoy teniendo problemas para acceder al historial de ventas. Intenta más tarde."
	}

	cutoff := s.now().AddDate(0, 0, -s.historyDays)
	var seen bool
	var total float64
	var items []itemTotal
	index := make(map[string]int)

	for _, sale := range sales.Rows {
		if sale.CustomerIDKey != customerKey {
			continue
		}
		seen = true
		if !sale.SoldAt.After(cutoff) {
			continue
		}
		total += sale.Amount
		i, ok := index[sale.ItemName]
		if !ok {
			i = len(items)
			index[sale.ItemName] = i
			items = append(items, itemTotal{name: sale.ItemName})
		}
		items[i].amount += sale.Amount
	}

	if !seen {
		return "¡Hola! Veo que tus credenciales son correctas, pero no encuentro un historial de compras para ti."
	}
	if len(items) == 0 {
		return fmt.Sprintf("No he encontrado compras en los últimos %d días. ¿Te gustaría consultar un rango de fechas anterior?", s.historyDays)
	}

	// Stable keeps first-seen order among equal totals.
	sort.SliceStable(items, func(a, b int) bool { return items[a].amount > items[b].amount })
	if len(items) > topItems {
		items = items[:topItems]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "En los últimos %d días, has comprado un total de %s. Tus productos más comprados fueron:\n", s.historyDays, s.money(total))
	for _, it := range items {
		fmt.Fprintf(&b, "* %s (%s)\n", it.name, s.money(it.amount))
	}
	return strings.TrimRight(b.String(), "\n")
}

type itemTotal struct {
	name   string
	amount float64
}

// matchCredentials returns the ledger rows whose tax id and customer code both
// equal the normalized inputs.
func matchCredentials(rows []datasets.LedgerEntry, taxID, code string) []datasets.LedgerEntry {
	taxKey := textnorm.Key(taxID)
	codeKey := textnorm.Key(code)
	var out []datasets.LedgerEntry
	for _, r := range rows {
		if r.TaxIDKey == taxKey && r.CustomerKey == codeKey {
			out = append(out, r)
		}
	}
	return out
}

func matchesProduct(referenceKey, descriptionKey, term string) bool {
	return referenceKey == term || textnorm.Contains(descriptionKey, term)
}
