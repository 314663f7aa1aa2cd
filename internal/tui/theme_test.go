package tui

import "testing"

func TestStatusSymbolMappings(t *testing.T) {
	tests := []struct {
		status string
		symbol string
	}{
		{"running", SymbolSuccess},
		{"stopped", SymbolBullet},
		{"unknown", SymbolWarning},
		{"", SymbolWarning},
	}
	for _, tt := range tests {
		if got := StatusSymbol(tt.status); got != tt.symbol {
			t.Fatalf("StatusSymbol(%q) = %q, want %q", tt.status, got, tt.symbol)
		}
	}
}
