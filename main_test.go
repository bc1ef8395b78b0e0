// main_test.go
package main

import (
	"testing"

	"divvymon/config"
)

func TestPosterTestMode(t *testing.T) {
	tests := []struct {
		name    string
		posting bool
		test    bool
		forced  bool
		want    bool
	}{
		{"posting enabled", true, false, false, false},
		{"test mode always wins", true, true, false, true},
		{"posting disabled, no forced post", false, false, false, true},
		{"posting disabled but forced post requested", false, false, true, false},
		{"forced post in test mode", false, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Features: config.FeaturesConfig{
					PostingEnabled: tt.posting,
					TestMode:       tt.test,
				},
			}
			if got := posterTestMode(cfg, tt.forced); got != tt.want {
				t.Errorf("Expected %t, got %t", tt.want, got)
			}
		})
	}
}
