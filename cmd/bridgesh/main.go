// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// bridgesh is an interactive client for a bridge server. Type help at the
// prompt for the command list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"

	"github.com/luxfi/bridge"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:56789", "Server address")
	transport := flag.String("transport", bridge.DefaultTransport, fmt.Sprintf("Transport, one of %v", bridge.AvailableTransports()))
	retries := flag.Int("retries", bridge.DefaultRetryAttempts, "Connection attempts")
	delay := flag.Duration("retry-delay", bridge.DefaultRetryDelay, "Delay between connection attempts")
	timeout := flag.Duration("timeout", 0, "Per-command timeout (0 waits forever)")
	level := flag.String("log-level", "warning", "Log level")
	flag.Parse()

	lvl, err := logrus.ParseLevel(*level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logrus.New()
	log.SetLevel(lvl)

	ctx := context.Background()
	client, err := bridge.Dial(ctx, *addr,
		bridge.WithTransport(*transport),
		bridge.WithRetry(*retries, *delay),
		bridge.WithDialLogger(log),
	)
	if err != nil {
		log.WithError(err).Error("connect failed")
		os.Exit(1)
	}
	defer client.Close()

	if err := repl(ctx, newShell(client, os.Stdout), *timeout); err != nil {
		log.WithError(err).Error("shell failed")
		os.Exit(1)
	}
}

func repl(ctx context.Context, sh *shell, timeout time.Duration) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(sh.complete)

	for {
		input, err := line.Prompt("bridge> ")
		switch {
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		line.AppendHistory(input)

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		err = sh.exec(callCtx, input)
		cancel()
		switch {
		case errors.Is(err, errQuit):
			return nil
		case bridge.IsTransport(err):
			return err
		case err != nil:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}
