package sheetsync

import "testing"

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Veículo", "VEICULO"},
		{"veiculo", "VEICULO"},
		{"  Horímetro - KM ", "HORIMETRO_KM"},
		{"HORIMETRO KM", "HORIMETRO_KM"},
		{"Ordem de Serviço", "ORDEM_DE_SERVICO"},
		{"Situação", "SITUACAO"},
		{"Nº OS", "Nº_OS"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeHeader(c.in); got != c.want {
			t.Fatalf("NormalizeHeader(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestResolveHeadersShuffled(t *testing.T) {
	header := []string{"Operador", "quantidade", "DATA", "hora", "horímetro", "Veiculo"}
	cols := ResolveHeaders(header, FuelFieldSpecs())

	want := map[string]int{
		"vehicle_code": 5,
		"date":         2,
		"time":         3,
		"quantity":     1,
		"horimeter":    4,
		"operator":     0,
	}
	for key, idx := range want {
		if cols[key] != idx {
			t.Fatalf("column %q = %d, want %d", key, cols[key], idx)
		}
	}
}

func TestResolveHeadersAbsentField(t *testing.T) {
	header := []string{"Veículo", "Data", "Quantidade"}
	cols := ResolveHeaders(header, FuelFieldSpecs())

	if cols["vehicle_code"] != 0 || cols["date"] != 1 || cols["quantity"] != 2 {
		t.Fatalf("unexpected mapping for present columns: %v", cols)
	}
	for _, key := range []string{"time", "horimeter", "operator"} {
		if cols[key] != -1 {
			t.Fatalf("absent column %q = %d, want -1", key, cols[key])
		}
	}
}

func TestResolveHeadersSynonymPreference(t *testing.T) {
	// Both "Veículo" and "Equipamento" are present; the first synonym wins.
	header := []string{"Equipamento", "Veículo", "Data", "Quantidade"}
	cols := ResolveHeaders(header, FuelFieldSpecs())
	if cols["vehicle_code"] != 1 {
		t.Fatalf("vehicle_code = %d, want 1 (first synonym preferred)", cols["vehicle_code"])
	}
}

func TestResolveHeadersIgnoresEmptyCells(t *testing.T) {
	header := []string{"", "", "Veículo"}
	cols := ResolveHeaders(header, FuelFieldSpecs())
	if cols["vehicle_code"] != 2 {
		t.Fatalf("vehicle_code = %d, want 2", cols["vehicle_code"])
	}
}
