package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/betagouv/zacharie-sub006/config"
)

// ErrUnauthorized signals that the authoritative store rejected the actor's
// credentials; the local actor identity must be invalidated.
var ErrUnauthorized = errors.New("transport: unauthorized")

// Envelope is the authoritative store's JSON response envelope
type Envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// OfflineEnvelope is the minimal response synthesized when both the network
// and the cache miss. It is never an error to the caller.
func OfflineEnvelope() []byte {
	return []byte(`{"ok":false,"data":null,"error":"offline"}`)
}

// RequestKey is the request identity used to key cached responses
func RequestKey(method, target string, query url.Values) string {
	if len(query) == 0 {
		return method + " " + target
	}
	return method + " " + target + "?" + query.Encode()
}

// Connectivity is the shared online/offline flag for one device. The sync
// engine flips it on explicit signals; the interception layer consults it
// before attempting the network.
type Connectivity struct {
	online atomic.Bool
}

// SetOnline marks the device online or offline
func (c *Connectivity) SetOnline(online bool) {
	c.online.Store(online)
}

// IsOnline reports the last known connectivity state
func (c *Connectivity) IsOnline() bool {
	return c.online.Load()
}

// Client speaks the authoritative store's HTTP contract
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the authoritative store with a bounded
// request timeout
func NewClient(cfg *config.APIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Get performs a read against the authoritative store and returns the raw
// body and status. A 401 returns ErrUnauthorized; other statuses are the
// caller's to classify, error bodies included.
func (c *Client) Get(ctx context.Context, target string, query url.Values) ([]byte, int, error) {
	u := c.baseURL + target
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to build request")
	}
	c.setHeaders(req, nil)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, resp.StatusCode, ErrUnauthorized
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "failed to read response body")
	}
	return body, resp.StatusCode, nil
}

// Send replays one mutation envelope verbatim against the authoritative store.
// It returns the response envelope and status; a duplicate-accepted response
// counts as success for the caller.
func (c *Client) Send(ctx context.Context, method, target string, headers map[string]string, payload []byte) (*Envelope, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+target, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to build request")
	}
	c.setHeaders(req, headers)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, resp.StatusCode, ErrUnauthorized
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "failed to read response body")
	}

	var envelope Envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, resp.StatusCode, errors.Wrap(err, "failed to decode response envelope")
		}
	}
	return &envelope, resp.StatusCode, nil
}

func (c *Client) setHeaders(req *http.Request, extra map[string]string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
}

// IsSuccess reports whether a replay response counts as accepted. The write
// endpoints upsert on deterministic business keys, so a duplicate-accepted
// conflict is a success.
func IsSuccess(status int) bool {
	return (status >= 200 && status < 300) || status == http.StatusConflict
}

// IsPermanentRejection reports whether the authoritative store rejected the
// mutation itself (validation or authorization), as opposed to a transient
// transport failure.
func IsPermanentRejection(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusConflict
}
