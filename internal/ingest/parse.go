package ingest

import (
	"fmt"
	"sort"

	"crm_assistant_backend/internal/datasets"
	"crm_assistant_backend/platform/textnorm"
)

var ledgerSchema = Schema{
	Columns: []string{
		"Serie", "Numero", "Fecha Documento", "Fecha Vencimiento", "Cod Cliente",
		"NombreCliente", "Nit", "Poblacion", "Provincia", "Telefono1", "Telefono2",
		"NomVendedor", "Entidad Autoriza", "E-Mail", "Importe", "Descuento",
		"Cupo Aprobado", "Dias Vencido",
	},
	Delimiter: '|',
	Quoting:   true,
}

var inventorySchema = Schema{
	Columns: []string{
		"DEPARTAMENTO", "REFERENCIA", "DESCRIPCION", "MARCA", "PESO_ARTICULO",
		"UNIDADES_VENDIDAS", "STOCK", "COSTO_PROMEDIO_UND", "CODALMACEN",
		"LEAD_TIME_PROVEEDOR", "HISTORIAL_VENTAS",
	},
	Delimiter: '|',
	Quoting:   true,
}

var salesSchema = Schema{
	Columns: []string{
		"anio", "mes", "fecha_venta", "Serie", "TipoDocumento", "codigo_vendedor",
		"nomvendedor", "cliente_id", "nombre_cliente", "codigo_articulo", "nombre_articulo",
		"categoria_producto", "linea_producto", "marca_producto", "valor_venta",
		"unidades_vendidas", "costo_unitario", "super_categoria",
	},
	Delimiter: '|',
	Quoting:   false,
}

var collectionsSchema = Schema{
	Columns:   []string{"anio", "mes", "fecha_cobro", "codigo_vendedor", "valor_cobro"},
	Delimiter: '|',
	Quoting:   false,
}

var customersSchema = Schema{
	Delimiter: ',',
	Quoting:   true,
	Header:    true,
}

// columnIndex maps derived column names (textnorm.Column) to positions.
func columnIndex(columns []string) map[string]int {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[textnorm.Column(c)] = i
	}
	return idx
}

func parseLedger(data []byte) ([]datasets.LedgerEntry, error) {
	_, records, err := readRecords(data, ledgerSchema)
	if err != nil {
		return nil, err
	}
	col := columnIndex(ledgerSchema.Columns)

	rows := make([]datasets.LedgerEntry, 0, len(records))
	for _, r := range records {
		e := datasets.LedgerEntry{
			Series:       text(r[col["serie"]]),
			Number:       number(r[col["numero"]]),
			IssuedAt:     text(r[col["fecha_documento"]]),
			DueAt:        text(r[col["fecha_vencimiento"]]),
			CustomerCode: text(r[col["cod_cliente"]]),
			CustomerName: text(r[col["nombrecliente"]]),
			TaxID:        text(r[col["nit"]]),
			City:         text(r[col["poblacion"]]),
			Province:     text(r[col["provincia"]]),
			Phone1:       text(r[col["telefono1"]]),
			Phone2:       text(r[col["telefono2"]]),
			SalesRep:     text(r[col["nomvendedor"]]),
			Authorizer:   text(r[col["entidad_autoriza"]]),
			Email:        text(r[col["e_mail"]]),
			Amount:       number(r[col["importe"]]),
			Discount:     number(r[col["descuento"]]),
			CreditLimit:  number(r[col["cupo_aprobado"]]),
			DaysOverdue:  number(r[col["dias_vencido"]]),
		}
		if e.Number < 0 {
			e.Amount = -e.Amount
		}
		e.SalesRepKey = textnorm.Key(e.SalesRep)
		e.TaxIDKey = textnorm.Key(e.TaxID)
		e.CustomerKey = textnorm.Key(e.CustomerCode)
		e.Zone = datasets.ZoneFor(e.Series)
		e.Aging = datasets.AgingFor(e.DaysOverdue)
		rows = append(rows, e)
	}
	return rows, nil
}

func parseCustomers(data []byte) ([]datasets.CustomerRecord, error) {
	header, records, err := readRecords(data, customersSchema)
	if err != nil {
		return nil, err
	}
	s, err := newSheet(append([][]string{header}, records...))
	if err != nil {
		return nil, err
	}

	taxCol := s.col("NIT")
	if taxCol < 0 {
		taxCol = s.colContaining("NIT")
	}
	if taxCol < 0 {
		return nil, fmt.Errorf("customer master has no tax id column")
	}
	nameCol := s.col("NOMBRECLIENTE", "NOMBRE CLIENTE")
	if nameCol < 0 {
		nameCol = s.colContaining("NOMBRE")
	}

	rows := make([]datasets.CustomerRecord, 0, len(s.rows))
	for _, r := range s.rows {
		c := datasets.CustomerRecord{
			TaxID: cell(r, taxCol),
			Name:  cell(r, nameCol),
		}
		c.TaxIDKey = textnorm.Key(c.TaxID)
		c.NameKey = textnorm.Key(c.Name)
		rows = append(rows, c)
	}
	return rows, nil
}

type pivotKey struct {
	reference   string
	description string
}

type costAcc struct {
	sum   float64
	count int
}

// parseInventory pivots per-store stock rows into one product per
// (reference, description), summing duplicates and zero-filling absent stores.
// Unit cost is the mean of all parseable cost cells of the reference.
func parseInventory(data []byte) (*datasets.InventoryTable, error) {
	_, records, err := readRecords(data, inventorySchema)
	if err != nil {
		return nil, err
	}
	col := columnIndex(inventorySchema.Columns)

	products := make(map[pivotKey]*datasets.ProductStock)
	costs := make(map[string]*costAcc)
	storeSet := make(map[string]struct{})

	for _, r := range records {
		ref := text(r[col["referencia"]])
		desc := text(r[col["descripcion"]])
		store := datasets.StoreFor(text(r[col["codalmacen"]]))
		storeSet[store] = struct{}{}

		key := pivotKey{reference: ref, description: desc}
		p, ok := products[key]
		if !ok {
			p = &datasets.ProductStock{
				Reference:      ref,
				Description:    desc,
				ReferenceKey:   textnorm.Key(ref),
				DescriptionKey: textnorm.Key(desc),
				Brand:          text(r[col["marca"]]),
				Department:     text(r[col["departamento"]]),
				Stock:          make(map[string]float64),
			}
			products[key] = p
		}
		p.Stock[store] += number(r[col["stock"]])

		acc, ok := costs[ref]
		if !ok {
			acc = &costAcc{}
			costs[ref] = acc
		}
		if v, ok := parseNumber(r[col["costo_promedio_und"]]); ok {
			acc.sum += v
			acc.count++
		}
	}

	stores := make([]string, 0, len(storeSet))
	for s := range storeSet {
		stores = append(stores, s)
	}
	sort.Strings(stores)

	out := make([]datasets.ProductStock, 0, len(products))
	for _, p := range products {
		for _, s := range stores {
			if _, ok := p.Stock[s]; !ok {
				p.Stock[s] = 0
			}
		}
		if acc := costs[p.Reference]; acc != nil && acc.count > 0 {
			p.UnitCost = acc.sum / float64(acc.count)
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reference != out[j].Reference {
			return out[i].Reference < out[j].Reference
		}
		return out[i].Description < out[j].Description
	})

	return &datasets.InventoryTable{Products: out, Stores: stores}, nil
}

func parseSuppliers(data []byte) ([]datasets.Supplier, error) {
	s, err := readSheet(data)
	if err != nil {
		return nil, err
	}
	refCol := s.col("REFERENCIA", "SKU")
	if refCol < 0 {
		return nil, fmt.Errorf("supplier sheet has no REFERENCIA column")
	}
	supCol := s.col("PROVEEDOR")
	codeCol := s.col("COD PROVEEDOR")

	rows := make([]datasets.Supplier, 0, len(s.rows))
	for _, r := range s.rows {
		sku := cell(r, refCol)
		rows = append(rows, datasets.Supplier{
			SKU:          sku,
			SKUKey:       textnorm.Key(sku),
			Supplier:     cell(r, supCol),
			SupplierCode: cell(r, codeCol),
		})
	}
	return rows, nil
}

func parseSales(data []byte) ([]datasets.SaleRow, error) {
	_, records, err := readRecords(data, salesSchema)
	if err != nil {
		return nil, err
	}
	col := columnIndex(salesSchema.Columns)

	rows := make([]datasets.SaleRow, 0, len(records))
	for _, r := range records {
		s := datasets.SaleRow{
			Year:          integer(r[col["anio"]]),
			Month:         integer(r[col["mes"]]),
			SoldAt:        date(r[col["fecha_venta"]]),
			Series:        text(r[col["serie"]]),
			DocumentType:  text(r[col["tipodocumento"]]),
			SalesRepCode:  text(r[col["codigo_vendedor"]]),
			SalesRep:      text(r[col["nomvendedor"]]),
			CustomerID:    text(r[col["cliente_id"]]),
			CustomerName:  textnorm.Key(r[col["nombre_cliente"]]),
			ItemCode:      text(r[col["codigo_articulo"]]),
			ItemName:      textnorm.Key(r[col["nombre_articulo"]]),
			Category:      text(r[col["categoria_producto"]]),
			Line:          text(r[col["linea_producto"]]),
			Brand:         text(r[col["marca_producto"]]),
			Amount:        number(r[col["valor_venta"]]),
			Units:         number(r[col["unidades_vendidas"]]),
			UnitCost:      number(r[col["costo_unitario"]]),
			SuperCategory: text(r[col["super_categoria"]]),
		}
		s.CustomerIDKey = textnorm.Key(s.CustomerID)
		s.CustomerKey = s.CustomerName
		s.ItemKey = s.ItemName
		rows = append(rows, s)
	}
	return rows, nil
}

func parseCollections(data []byte) ([]datasets.CollectionRow, error) {
	_, records, err := readRecords(data, collectionsSchema)
	if err != nil {
		return nil, err
	}
	col := columnIndex(collectionsSchema.Columns)

	rows := make([]datasets.CollectionRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, datasets.CollectionRow{
			Year:         integer(r[col["anio"]]),
			Month:        integer(r[col["mes"]]),
			CollectedAt:  date(r[col["fecha_cobro"]]),
			SalesRepCode: text(r[col["codigo_vendedor"]]),
			Amount:       number(r[col["valor_cobro"]]),
		})
	}
	return rows, nil
}

func parseSupplementary(data []byte) ([]datasets.SupplementaryRow, error) {
	s, err := readSheet(data)
	if err != nil {
		return nil, err
	}
	idCol := s.col("ID CLIENTE", "CLIENTE ID")
	if idCol < 0 {
		return nil, fmt.Errorf("supplementary sheet has no ID CLIENTE column")
	}

	rows := make([]datasets.SupplementaryRow, 0, len(s.rows))
	for _, r := range s.rows {
		fields := make(map[string]string, len(s.keys))
		for i, k := range s.keys {
			if k == "" || i == idCol {
				continue
			}
			fields[k] = cell(r, i)
		}
		id := cell(r, idCol)
		rows = append(rows, datasets.SupplementaryRow{
			CustomerID:    id,
			CustomerIDKey: textnorm.Key(id),
			Fields:        fields,
		})
	}
	return rows, nil
}

func parsePrices(data []byte) ([]datasets.PriceEntry, error) {
	s, err := readSheet(data)
	if err != nil {
		return nil, err
	}
	refCol := s.col("REFERENCIA")
	descCol := s.col("DESCRIPCION")
	if descCol < 0 {
		descCol = s.colContaining("DESCRIPCION")
	}
	priceCol := s.col("PRECIO 1")
	if refCol < 0 && descCol < 0 {
		return nil, fmt.Errorf("price sheet has neither REFERENCIA nor DESCRIPCION columns")
	}

	rows := make([]datasets.PriceEntry, 0, len(s.rows))
	for _, r := range s.rows {
		p := datasets.PriceEntry{
			Reference:   cell(r, refCol),
			Description: cell(r, descCol),
			ListPrice:   number(cell(r, priceCol)),
		}
		p.ReferenceKey = textnorm.Key(p.Reference)
		p.DescriptionKey = textnorm.Key(p.Description)
		rows = append(rows, p)
	}
	return rows, nil
}
