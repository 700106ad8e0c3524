package datasets

import (
	"regexp"
	"slices"
)

// AgingBucket classifies a ledger document by days overdue.
type AgingBucket string

const (
	AgingCurrent AgingBucket = "current"
	Aging1To15   AgingBucket = "1-15"
	Aging16To30  AgingBucket = "16-30"
	Aging31To60  AgingBucket = "31-60"
	AgingOver60  AgingBucket = "60+"
)

// AgingFor returns the bucket for days overdue using half-open intervals
// (-inf,0], (0,15], (15,30], (30,60], (60,inf).
func AgingFor(days float64) AgingBucket {
	switch {
	case days <= 0:
		return AgingCurrent
	case days <= 15:
		return Aging1To15
	case days <= 30:
		return Aging16To30
	case days <= 60:
		return Aging31To60
	default:
		return AgingOver60
	}
}

// OtherZones is the zone of series codes that belong to no named zone.
const OtherZones = "OTRAS ZONAS"

type zone struct {
	name  string
	codes []string
}

// zones is checked in order; the first zone sharing a code wins.
var zones = []zone{
	{name: "PEREIRA", codes: []string{"155", "189", "158", "439"}},
	{name: "MANIZALES", codes: []string{"157", "238"}},
	{name: "ARMENIA", codes: []string{"156"}},
}

var digitRuns = regexp.MustCompile(`\d+`)

// ZoneFor derives the sales zone from a document series cell, which may carry
// several digit runs (e.g. "FV155-02"). Runs are compared as written.
func ZoneFor(series string) string {
	found := digitRuns.FindAllString(series, -1)
	if len(found) == 0 {
		return OtherZones
	}
	for _, z := range zones {
		for _, n := range found {
			if slices.Contains(z.codes, n) {
				return z.name
			}
		}
	}
	return OtherZones
}

// UnknownStore names inventory rows whose warehouse code is not mapped.
const UnknownStore = "Desconocido"

var storeNames = map[string]string{
	"155": "CEDI",
	"156": "ARMENIA",
	"157": "Manizales",
	"158": "Opalo",
	"189": "Olaya",
	"238": "Laureles",
	"439": "FerreBox",
}

// StoreFor maps a warehouse code to its store name.
func StoreFor(code string) string {
	if name, ok := storeNames[code]; ok {
		return name
	}
	return UnknownStore
}
