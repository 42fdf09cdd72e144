// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"syscall"
	"time"

	rpc "github.com/gorilla/rpc/v2/json2"
	"github.com/sirupsen/logrus"
)

const (
	defaultAdminAttempts = 3
	defaultAdminBackoff  = 500 * time.Millisecond
	adminRequestTimeout  = 30 * time.Second
)

// adminHTTPClient returns a client that opens a new connection per request,
// so a connection the admin server dropped is never reused.
func adminHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   adminRequestTimeout,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
}

// CleanlyCloseBody drains body before closing it. Closing with unread data
// can make HTTP/2 servers send GOAWAY (golang/go#46071).
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// transient reports whether err is a connection failure that a fresh
// attempt may not hit: the admin server not listening yet, or dropping the
// connection mid-request.
func transient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	case errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ECONNABORTED):
		return true
	}
	return false
}

// SendJSONRequest calls method on the admin JSON-RPC 2.0 endpoint at uri and
// decodes the result into reply. Transient connection failures are retried
// with doubling backoff; anything else, including an error the service
// returns, fails at once.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	params interface{},
	reply interface{},
	options ...Option,
) error {
	body, err := rpc.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	ops := NewOptions(options)
	target := *uri
	target.RawQuery = ops.queryParams.Encode()

	log := logrus.WithFields(logrus.Fields{"method": method, "uri": target.String()})
	log.Debug("admin request")

	wait := ops.backoff
	var lastErr error
	for attempt := 1; attempt <= ops.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		err := postJSON(ctx, target.String(), ops.headers, body, reply)
		if err == nil {
			if attempt > 1 {
				log.WithField("attempt", attempt).Info("admin request succeeded after retry")
			}
			return nil
		}
		if !transient(err) {
			return err
		}
		lastErr = err
		log.WithError(err).WithField("attempt", attempt).Warn("admin request failed")
	}
	return fmt.Errorf("%s failed after %d attempts: %w", method, ops.attempts, lastErr)
}

// postJSON makes one attempt. Errors from the HTTP client are returned as is
// so transient can inspect them.
func postJSON(ctx context.Context, target string, headers http.Header, body []byte, reply interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header = headers.Clone()
	req.Header.Set("Content-Type", "application/json")

	resp, err := adminHTTPClient().Do(req)
	if err != nil {
		return err
	}
	defer CleanlyCloseBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("admin server answered %s", resp.Status)
	}
	if err := rpc.DecodeClientResponse(resp.Body, reply); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
