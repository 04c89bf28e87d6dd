package main

import (
	"testing"

	"github.com/xyproto/xenonjit/executor"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    executor.Mode
		wantErr bool
	}{
		{"interpret", executor.ModeInterpret, false},
		{"jit", executor.ModeJIT, false},
		{"", 0, true},
		{"bogus", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMode(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseMode(%q) error = nil, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMode(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
