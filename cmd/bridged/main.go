// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// bridged serves the builtin object model over the bridge protocol.
//
// Usage:
//
//	bridged -url svc://127.0.0.1:56789 -transport tcp -admin 127.0.0.1:56790
//
// Only the host and port of -url are used. When the address is already in
// use bridged assumes another server owns it and exits successfully.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/luxfi/bridge"
	"github.com/luxfi/bridge/objectmodel"
)

const defaultURL = "svc://127.0.0.1:56789"

type config struct {
	addr           string
	transport      string
	admin          string
	level          logrus.Level
	releaseOnClose bool
}

func parseFlags(args []string) (*config, error) {
	fs := flag.NewFlagSet("bridged", flag.ContinueOnError)
	rawURL := fs.String("url", defaultURL, "Service URL to listen on")
	transport := fs.String("transport", bridge.DefaultTransport, fmt.Sprintf("Transport, one of %v", bridge.AvailableTransports()))
	admin := fs.String("admin", "", "Address for the JSON-RPC admin API (disabled when empty)")
	level := fs.String("log-level", "info", "Log level")
	release := fs.Bool("release-on-close", false, "Release a connection's objects when it closes (tcp only)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	addr, err := hostPort(*rawURL)
	if err != nil {
		return nil, err
	}
	lvl, err := logrus.ParseLevel(*level)
	if err != nil {
		return nil, err
	}
	if !bridge.HasTransport(*transport) {
		return nil, fmt.Errorf("%w: %s", bridge.ErrUnknownTransport, *transport)
	}
	return &config{
		addr:           addr,
		transport:      *transport,
		admin:          *admin,
		level:          lvl,
		releaseOnClose: *release,
	}, nil
}

// hostPort extracts host:port from a service URL such as svc://host:port.
func hostPort(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Host == "" || u.Port() == "" {
		return "", fmt.Errorf("invalid url %q: want scheme://host:port", raw)
	}
	return u.Host, nil
}

func run(ctx context.Context, cfg *config, log *logrus.Logger) error {
	reg := objectmodel.NewRegistry()
	if err := objectmodel.RegisterBuiltins(reg); err != nil {
		return err
	}

	opts := []bridge.ServerOption{
		bridge.WithServerTransport(cfg.transport),
		bridge.WithLogger(log),
	}
	if cfg.admin != "" {
		opts = append(opts, bridge.WithAdmin(cfg.admin))
	}
	if cfg.releaseOnClose {
		opts = append(opts, bridge.WithReleaseOnClose())
	}

	server, err := bridge.Listen(cfg.addr, reg, opts...)
	if err != nil {
		return err
	}
	defer server.Close()
	return server.Serve(ctx)
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logrus.New()
	log.SetLevel(cfg.level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch err := run(ctx, cfg, log); {
	case err == nil:
	case errors.Is(err, bridge.ErrAlreadyRunning):
		// Another server owns the port; clients can use it.
	default:
		log.WithError(err).Error("server failed")
		os.Exit(1)
	}
}
