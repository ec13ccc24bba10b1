package sheetsync

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FieldSpec maps one canonical field key to the header spellings accepted
// for it, in preference order.
type FieldSpec struct {
	Key      string
	Synonyms []string
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeHeader strips diacritics, uppercases and collapses internal
// whitespace/hyphens to underscores, so "Horímetro - KM" and "HORIMETRO KM"
// compare equal.
func NormalizeHeader(header string) string {
	out, _, err := transform.String(stripAccents, header)
	if err != nil {
		out = header
	}
	out = strings.ToUpper(out)
	out = strings.ReplaceAll(out, "-", " ")
	return strings.Join(strings.Fields(out), "_")
}

// ResolveHeaders maps each field key to the column position of the first
// header cell whose normalized form exactly matches one of the field's
// synonyms. Absent fields map to -1; callers treat those columns as optional.
// Resolution is stateless and recomputed per call so header drift between
// syncs is tolerated.
func ResolveHeaders(headerRow []string, fields []FieldSpec) map[string]int {
	normalized := make([]string, len(headerRow))
	for i, cell := range headerRow {
		normalized[i] = NormalizeHeader(cell)
	}

	mapping := make(map[string]int, len(fields))
	for _, field := range fields {
		mapping[field.Key] = -1
		for _, synonym := range field.Synonyms {
			want := NormalizeHeader(synonym)
			found := false
			for idx, cell := range normalized {
				if cell != "" && cell == want {
					mapping[field.Key] = idx
					found = true
					break
				}
			}
			if found {
				break
			}
		}
	}
	return mapping
}

// FuelFieldSpecs describes the fuel-movement sheet and imported workbooks.
func FuelFieldSpecs() []FieldSpec {
	return []FieldSpec{
		{Key: "vehicle_code", Synonyms: []string{"Veículo", "Equipamento", "Código", "Cod Equipamento"}},
		{Key: "date", Synonyms: []string{"Data", "Data Abastecimento"}},
		{Key: "time", Synonyms: []string{"Hora", "Horário"}},
		{Key: "quantity", Synonyms: []string{"Quantidade", "Quantidade L", "Litros", "Qtde"}},
		{Key: "horimeter", Synonyms: []string{"Horímetro", "Horímetro KM", "KM"}},
		{Key: "operator", Synonyms: []string{"Operador", "Motorista"}},
	}
}

// VehicleFieldSpecs describes the vehicle registry tab used as the batch
// engine's cross-reference lookup.
func VehicleFieldSpecs() []FieldSpec {
	return []FieldSpec{
		{Key: "code", Synonyms: []string{"Código", "Veículo", "Equipamento"}},
		{Key: "company", Synonyms: []string{"Empresa", "Proprietário"}},
		{Key: "operator", Synonyms: []string{"Operador", "Motorista"}},
	}
}

// OrderFieldSpecs describes the maintenance-order destination tab.
func OrderFieldSpecs() []FieldSpec {
	return []FieldSpec{
		{Key: "order_number", Synonyms: []string{"OS", "Ordem de Serviço", "Nº OS", "Numero OS"}},
		{Key: "vehicle_code", Synonyms: []string{"Veículo", "Equipamento"}},
		{Key: "description", Synonyms: []string{"Descrição", "Serviço"}},
		{Key: "workshop", Synonyms: []string{"Oficina"}},
		{Key: "status", Synonyms: []string{"Status", "Situação"}},
		{Key: "entered_at", Synonyms: []string{"Entrada", "Data Entrada"}},
		{Key: "finalized_at", Synonyms: []string{"Saída", "Data Saída"}},
		{Key: "downtime", Synonyms: []string{"Tempo Parado", "Dias Parado"}},
		{Key: "company", Synonyms: []string{"Empresa"}},
		{Key: "operator", Synonyms: []string{"Operador", "Motorista"}},
	}
}
