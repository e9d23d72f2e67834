package main

import (
	"testing"

	"github.com/gagliardetto/solana-go"

	solsvc "github.com/solsweep/solsweep/service/solana"
)

func TestJQFilterMatching(t *testing.T) {
	closeable := solsvc.TokenAccountRecord{
		Address:   solana.MustPublicKeyFromBase58("7UX2i7SucgLMQcfZ75s3VXmZZY4YRUyJN9X1RgfMoDUi"),
		Mint:      solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
		Balance:   0,
		Lamports:  2_039_280,
		Closeable: true,
	}
	funded := solsvc.TokenAccountRecord{
		Address:   solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"),
		Mint:      solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
		Balance:   5_000,
		Lamports:  2_039_280,
		Closeable: false,
	}

	tests := []struct {
		name    string
		filters []string
		records []solsvc.TokenAccountRecord
		want    int
	}{
		{
			name:    "no filters keeps everything",
			filters: nil,
			records: []solsvc.TokenAccountRecord{closeable, funded},
			want:    2,
		},
		{
			name:    "closeable filter",
			filters: []string{".closeable"},
			records: []solsvc.TokenAccountRecord{closeable, funded},
			want:    1,
		},
		{
			name:    "mint equality filter",
			filters: []string{`.mint == "So11111111111111111111111111111111111111112"`},
			records: []solsvc.TokenAccountRecord{closeable, funded},
			want:    1,
		},
		{
			name:    "all filters must match",
			filters: []string{".closeable", `.mint == "So11111111111111111111111111111111111111112"`},
			records: []solsvc.TokenAccountRecord{closeable, funded},
			want:    0,
		},
		{
			name:    "numeric comparison",
			filters: []string{".lamports > 1000000"},
			records: []solsvc.TokenAccountRecord{closeable, funded},
			want:    2,
		},
		{
			name:    "filter yielding null drops the record",
			filters: []string{".no_such_field"},
			records: []solsvc.TokenAccountRecord{closeable, funded},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := compileJQFilters(tt.filters)
			if err != nil {
				t.Fatalf("failed to compile filters: %v", err)
			}

			kept, err := applyJQFilters(tt.records, compiled)
			if err != nil {
				t.Fatalf("failed to apply filters: %v", err)
			}
			if len(kept) != tt.want {
				t.Errorf("kept %d records, want %d", len(kept), tt.want)
			}
		})
	}
}

func TestCompileJQFiltersRejectsBadExpression(t *testing.T) {
	if _, err := compileJQFilters([]string{"not a valid ( filter"}); err == nil {
		t.Fatal("expected an error for an invalid jq expression")
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{"nil is falsy", nil, false},
		{"false is falsy", false, false},
		{"true is truthy", true, true},
		{"zero is truthy", 0, true},
		{"string is truthy", "x", true},
		{"empty object is truthy", map[string]interface{}{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTruthy(tt.value); got != tt.want {
				t.Errorf("isTruthy(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://api.mainnet-beta.solana.com", "api.mainnet-beta.solana.com"},
		{"https://mainnet.helius-rpc.com/?api-key=secret", "mainnet.helius-rpc.com"},
		{"not a url", "unknown"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		if got := endpointLabel(tt.url); got != tt.want {
			t.Errorf("endpointLabel(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
