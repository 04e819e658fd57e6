// Package cloudflare implements a minimal client for the Cloudflare v4
// DNS records API: listing the records of a zone, and patching a single
// record's name and content.
//
// The client deliberately works on the raw response body instead of an
// SDK's typed decoding: the fetch contract fails the whole batch when a
// required field is missing from any element, and maps unrecognisable
// `proxied` values to "unknown" rather than zero values.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/cfsync/cfsync/pkg/record"
)

// DefaultBaseURL is the Cloudflare v4 API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// defaultTimeout bounds a single API call when no client is injected.
const defaultTimeout = 30 * time.Second

// Config holds everything needed to talk to the DNS records API.
type Config struct {
	// Email and APIKey are the X-Auth-Email / X-Auth-Key credentials.
	Email  string
	APIKey string
	// ZoneID selects the zone whose records are managed.
	ZoneID string
	// BaseURL overrides DefaultBaseURL (used by tests).
	BaseURL string
	// HTTPClient overrides the default HTTP client (used by tests).
	HTTPClient *http.Client
}

// Client calls the Cloudflare DNS records endpoints.
type Client struct {
	cfg  Config
	base string
	http *http.Client
}

// New returns a configured Client.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{cfg: cfg, base: strings.TrimRight(base, "/"), http: hc}
}

// envelope is the common Cloudflare response wrapper. Result stays raw
// so a missing or non-array value can be told apart from bad JSON.
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
}

// recordPayload is one element of the list response. Every field is a
// pointer (or raw) so that absence is detectable.
type recordPayload struct {
	ID      *string          `json:"id"`
	Name    *string          `json:"name"`
	Type    *string          `json:"type"`
	Content *string          `json:"content"`
	Proxied *json.RawMessage `json:"proxied"`
	TTL     *json.RawMessage `json:"ttl"`
}

// ListRecords fetches the zone's records and returns the "A" records in
// provider order, each with an undecided sync state. The whole fetch
// fails if the transport fails, the body is not JSON, the success
// indicator is absent, the result array is missing or invalid, or any
// element lacks a required field. Elements of other record types are
// silently excluded; an unrecognisable `proxied` value maps to unknown.
func (c *Client) ListRecords(ctx context.Context) ([]record.Record, error) {
	url := fmt.Sprintf("%s/zones/%s/dns_records", c.base, c.cfg.ZoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Reason: FetchTransport, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Reason: FetchTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Reason: FetchTransport, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &FetchError{Reason: FetchMalformedJSON, Err: err}
	}
	if !env.Success {
		return nil, &FetchError{Reason: FetchMissingSuccess, Body: string(body)}
	}
	if env.Result == nil {
		return nil, &FetchError{Reason: FetchMissingResult}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(env.Result, &elements); err != nil {
		return nil, &FetchError{Reason: FetchMissingResult, Err: err}
	}

	records := make([]record.Record, 0, len(elements))
	for _, el := range elements {
		rec, ok, err := parseRecord(el)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// parseRecord validates one list element. ok is false for record types
// other than "A". Field order matters: id, name, and type must be
// present before the type filter applies; content, proxied, and ttl are
// only required for admitted records.
func parseRecord(el json.RawMessage) (record.Record, bool, error) {
	var p recordPayload
	if err := json.Unmarshal(el, &p); err != nil {
		return record.Record{}, false, &FetchError{Reason: FetchMalformedRecord, Err: err}
	}
	if p.Name == nil {
		return record.Record{}, false, malformed("name")
	}
	if p.ID == nil {
		return record.Record{}, false, malformed("id")
	}
	if p.Type == nil {
		return record.Record{}, false, malformed("type")
	}
	if *p.Type != record.TypeA {
		return record.Record{}, false, nil
	}
	if p.Content == nil {
		return record.Record{}, false, malformed("content")
	}
	if p.Proxied == nil {
		return record.Record{}, false, malformed("proxied")
	}
	if p.TTL == nil {
		return record.Record{}, false, malformed("ttl")
	}

	ttl, err := strconv.ParseInt(unquote(*p.TTL), 10, 32)
	if err != nil {
		return record.Record{}, false, &FetchError{Reason: FetchMalformedRecord, Err: fmt.Errorf("ttl: %w", err)}
	}

	var proxied *bool
	switch unquote(*p.Proxied) {
	case "true":
		proxied = boolPtr(true)
	case "false":
		proxied = boolPtr(false)
	}

	return record.Record{
		Type:    *p.Type,
		Name:    *p.Name,
		Content: *p.Content,
		Proxied: proxied,
		TTL:     int32(ttl),
		ID:      *p.ID,
		Sync:    record.SyncUndecided,
	}, true, nil
}

// UpdateRecord patches one record's name and content to point at ip.
// There is no retry here; retries happen at cycle granularity.
func (c *Client) UpdateRecord(ctx context.Context, rec record.Record, ip netip.Addr) error {
	payload, err := json.Marshal(struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}{Name: rec.Name, Content: ip.String()})
	if err != nil {
		return &UpdateError{Reason: UpdateTransport, Err: err}
	}

	url := fmt.Sprintf("%s/zones/%s/dns_records/%s", c.base, c.cfg.ZoneID, rec.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		return &UpdateError{Reason: UpdateTransport, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &UpdateError{Reason: UpdateTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpdateError{Reason: UpdateBodyDecode, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || !env.Success {
		return &UpdateError{Reason: UpdateRejected, Body: string(body)}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-Auth-Email", c.cfg.Email)
	req.Header.Set("X-Auth-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// unquote strips surrounding quotes so both number and string encodings
// of a scalar compare the same way.
func unquote(raw json.RawMessage) string {
	return strings.ReplaceAll(string(raw), `"`, "")
}

func malformed(field string) error {
	return &FetchError{Reason: FetchMalformedRecord, Err: fmt.Errorf("missing field %q", field)}
}

func boolPtr(b bool) *bool { return &b }
