// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/luxfi/bridge"
)

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.addr != "127.0.0.1:56789" || cfg.transport != bridge.TransportTCP || cfg.level != logrus.InfoLevel {
		t.Errorf("defaults = %+v", cfg)
	}

	cfg, err = parseFlags([]string{"-url", "svc://0.0.0.0:7000", "-transport", "grpc", "-log-level", "debug", "-release-on-close"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.addr != "0.0.0.0:7000" || cfg.transport != bridge.TransportGRPC || cfg.level != logrus.DebugLevel || !cfg.releaseOnClose {
		t.Errorf("got %+v", cfg)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no port", []string{"-url", "svc://localhost"}},
		{"bad level", []string{"-log-level", "loud"}},
		{"bad transport", []string{"-transport", "smoke"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFlags(tt.args); err == nil {
				t.Errorf("parseFlags(%v) succeeded", tt.args)
			}
		})
	}
	if _, err := parseFlags([]string{"-transport", "smoke"}); !errors.Is(err, bridge.ErrUnknownTransport) {
		t.Errorf("got %v, want ErrUnknownTransport", err)
	}
}
