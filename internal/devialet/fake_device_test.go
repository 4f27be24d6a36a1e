package devialet

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordedRequest is one request seen by fakeDevice.
type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeDevice emulates the IP Control API. Routes are keyed by
// "METHOD /path" relative to /ipcontrol/v1.
type fakeDevice struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	routes   map[string]fakeResponse
	requests []recordedRequest
	dark     bool
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	f := &fakeDevice{t: t, routes: map[string]fakeResponse{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// newHealthyDevice serves a night-mode capable speaker on firmware 2.16.1.
func newHealthyDevice(t *testing.T) *fakeDevice {
	f := newFakeDevice(t)
	f.set("GET "+pathDevice, 200, `{"deviceId":"dev-1","deviceName":"Lounge","model":"Phantom I","serial":"SN123","release":{"canonicalVersion":"2.16.1"}}`)
	f.set("GET "+pathSystem, 200, `{"systemId":"sys-1","availableFeatures":["nightMode","reboot","equalizer"]}`)
	f.set("GET "+pathVolume, 200, `{"volume":35}`)
	f.set("GET "+pathCurrentSource, 200, `{"playingState":"playing","muteState":"unmuted","source":{"sourceId":"s-spotify","type":"spotifyconnect"},"metadata":{"title":"Song","artist":"Band","album":"Record"},"streamInfo":{"codec":"FLAC","lossless":true,"supported":true}}`)
	f.set("GET "+pathSources, 200, `{"sources":[{"sourceId":"s-spotify","type":"spotifyconnect"},{"sourceId":"s-optical","type":"optical"},{"sourceId":"s-bt","type":"bluetooth"},{"sourceId":"s-raat","type":"raat"}]}`)
	f.set("GET "+pathEqualizer, 200, `{"preset":"custom","customEqualization":{"low":{"gain":-2.5},"high":{"gain":3}}}`)
	f.set("GET "+pathNightMode, 200, `{"nightMode":"off"}`)
	return f
}

func (f *fakeDevice) set(route string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = fakeResponse{status: status, body: body}
}

// setDark makes the device drop every connection without answering, as a
// speaker that has powered down does.
func (f *fakeDevice) setDark(dark bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dark = dark
}

func (f *fakeDevice) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	dark := f.dark
	f.mu.Unlock()
	if dark {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return
			}
		}
		panic(http.ErrAbortHandler)
	}

	path := strings.TrimPrefix(r.URL.EscapedPath(), apiBase)

	rec := recordedRequest{Method: r.Method, Path: path}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		if err := json.Unmarshal(data, &rec.Body); err != nil {
			f.t.Errorf("request body for %s is not a JSON object: %s", path, data)
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	resp, ok := f.routes[r.Method+" "+path]
	f.mu.Unlock()

	if !ok {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":"NotFound","message":"no such path"}}`)
		return
	}
	if resp.status == -1 {
		// Hang long enough to trip the client timeout.
		time.Sleep(500 * time.Millisecond)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	io.WriteString(w, resp.body)
}

func (f *fakeDevice) posts() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.Method == http.MethodPost {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeDevice) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeDevice) countOf(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, f *fakeDevice) *Client {
	t.Helper()
	c, err := NewClient(Options{Host: f.server.URL, Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}
