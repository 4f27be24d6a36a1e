package devialet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultTimeout bounds every request to the device.
const DefaultTimeout = 5 * time.Second

// maxResponseSize caps how much of a device response is read.
const maxResponseSize = 1 << 20

// Transport issues JSON requests against one device's IP Control API.
//
// It never retries: a failed request is reported once and the next poll
// cycle tries again.
//
// Thread Safety:
//   - Safe for concurrent use; polls and commands share one Transport.
type Transport struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewTransport returns a Transport for host ("192.168.1.20" or
// "192.168.1.20:8080"; a full http:// URL is also accepted).
//
// A nil client selects a pooled go-cleanhttp client. timeout <= 0 selects
// DefaultTimeout.
func NewTransport(host string, timeout time.Duration, client *http.Client) *Transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
		client.Timeout = timeout
	}

	base := strings.TrimRight(host, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Transport{
		baseURL: base + apiBase,
		client:  client,
		timeout: timeout,
	}
}

// BaseURL returns the API root, e.g. http://192.168.1.20/ipcontrol/v1.
func (t *Transport) BaseURL() string {
	return t.baseURL
}

// Request performs method on path with an optional JSON body and returns
// the raw JSON response. An empty 2xx body yields nil.
//
// Errors:
//   - *ConnectionError when the device cannot be reached or times out
//   - *DeviceError for non-2xx responses, malformed JSON, or a 2xx body
//     carrying an "error" object
func (t *Transport) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("devialet: encoding %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("devialet: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &ConnectionError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &ConnectionError{Method: method, Path: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		derr := &DeviceError{Path: path, StatusCode: resp.StatusCode}
		if env, ok := decodeErrorEnvelope(data); ok {
			derr.Code, derr.Message = env.Code, env.Message
		} else {
			derr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, derr
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, &DeviceError{Path: path, StatusCode: resp.StatusCode, Message: "malformed JSON response"}
	}
	if env, ok := decodeErrorEnvelope(data); ok {
		return nil, &DeviceError{Path: path, StatusCode: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	return json.RawMessage(data), nil
}

// Get fetches path and decodes the response into out.
func (t *Transport) Get(ctx context.Context, path string, out any) error {
	raw, err := t.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if raw == nil {
		return &DeviceError{Path: path, StatusCode: http.StatusOK, Message: "empty response"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DeviceError{Path: path, StatusCode: http.StatusOK, Message: "unexpected response shape: " + err.Error()}
	}
	return nil
}

// Post sends body to path, discarding the response. A nil body is sent
// as an empty JSON object, which the device expects on action endpoints.
func (t *Transport) Post(ctx context.Context, path string, body any) error {
	if body == nil {
		body = struct{}{}
	}
	_, err := t.Request(ctx, http.MethodPost, path, body)
	return err
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeErrorEnvelope recognises the device's error shape,
// {"error":{"code":"...","message":"...","details":{}}}. Any non-null
// "error" member counts, even when it is not an object.
func decodeErrorEnvelope(data []byte) (errorDetail, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return errorDetail{}, false
	}
	raw, ok := top["error"]
	if !ok || string(raw) == "null" {
		return errorDetail{}, false
	}

	var detail errorDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		detail.Message = string(raw)
	}
	return detail, true
}
