package serverlist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultMaxBodyBytes = 4 << 20

var ErrUnexpectedStatus = errors.New("unexpected status")

// FetchError is returned by FetchServers. Stage is one of "request",
// "status" or "decode".
type FetchError struct {
	Stage string
	URL   string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Client struct {
	http         *http.Client
	url          string
	timeout      time.Duration
	maxBodyBytes int64
	userAgent    string
}

func NewClient(url string, timeout time.Duration, maxBodyBytes int64, userAgent string) *Client {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Client{
		http:         &http.Client{},
		url:          url,
		timeout:      timeout,
		maxBodyBytes: maxBodyBytes,
		userAgent:    userAgent,
	}
}

func (c *Client) FetchServers(ctx context.Context) ([]Server, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, c.fail("request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail("request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, c.fail("status", fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, c.fail("request", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, c.fail("decode", fmt.Errorf("body exceeds %d bytes", c.maxBodyBytes))
	}

	servers, err := decode(body)
	if err != nil {
		return nil, c.fail("decode", err)
	}
	return servers, nil
}

func (c *Client) fail(stage string, err error) error {
	return &FetchError{Stage: stage, URL: c.url, Err: err}
}

func decode(body []byte) ([]Server, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("body is not a JSON object")
	}

	var list listResponse
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, err
	}
	// Only an explicit empty array clears the list; a missing or null
	// servers key is treated as a broken response.
	if list.Servers == nil {
		return nil, errors.New("missing servers array")
	}

	servers := make([]Server, 0, len(list.Servers))
	for i, srv := range list.Servers {
		if srv == nil {
			return nil, fmt.Errorf("servers[%d] is null", i)
		}
		if srv.Name == "" {
			return nil, fmt.Errorf("servers[%d] has no ServerName", i)
		}
		servers = append(servers, *srv)
	}
	return servers, nil
}
