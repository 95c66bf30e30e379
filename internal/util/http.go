// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// UserAgent is sent with every request
var UserAgent = "pkgstore"

// HttpGetResponse performs a GET request, the returned cancel function must be called once the body is consumed.
//
// A zero timeout means the request is only bound by ctx
func HttpGetResponse(ctx context.Context, uri string, timeout time.Duration, hdr http.Header) (*http.Response, context.CancelFunc, error) {
	var cancel context.CancelFunc

	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	for k, vals := range hdr {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	return resp, cancel, nil
}

// RedactUrlCredentials renders u with any password replaced
func RedactUrlCredentials(u *url.URL) string {
	if u == nil {
		return ""
	}

	return u.Redacted()
}

// RedactUrlString redacts credentials in a string url, invalid urls are returned as a placeholder
func RedactUrlString(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Sprintf("<invalid url: %v>", err)
	}

	return RedactUrlCredentials(parsed)
}
