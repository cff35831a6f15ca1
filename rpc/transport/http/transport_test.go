package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ValentinKolb/dRL/rpc/common"
)

// newTestServer starts an httptest server answering every request with "<shard>:<body>"
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := NewHttpServerTransport().(*httpServerTransport)
	st.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return []byte(fmt.Sprintf("%d:%s", shardId, req))
	})
	srv := httptest.NewServer(st.mux())
	t.Cleanup(srv.Close)
	return srv
}

func connect(t *testing.T, endpoints ...string) *httpClientTransport {
	t.Helper()
	ct := NewHttpClientTransport().(*httpClientTransport)
	if err := ct.Connect(common.ClientConfig{Endpoints: endpoints, TimeoutSecond: 5, RetryCount: 2}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = ct.Close() })
	return ct
}

func TestSendRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	ct := connect(t, srv.URL)

	resp, err := ct.Send(42, []byte("hello"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(resp) != "42:hello" {
		t.Errorf("unexpected response %q", resp)
	}
}

func TestSendConcurrent(t *testing.T) {
	srv := newTestServer(t)
	ct := connect(t, srv.URL, strings.TrimPrefix(srv.URL, "http://"))

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := []byte(fmt.Sprintf("req-%d", i))
			resp, err := ct.Send(uint64(i), body)
			if err != nil {
				errs <- err
				return
			}
			if want := fmt.Sprintf("%d:%s", i, body); string(resp) != want {
				errs <- fmt.Errorf("got %q, want %q", resp, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRetryOnNextEndpoint(t *testing.T) {
	srv := newTestServer(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	// one of the two attempts always hits the live server
	ct := connect(t, deadURL, srv.URL)
	for i := 0; i < 4; i++ {
		if _, err := ct.Send(1, []byte("x")); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}
}

func TestInvalidShard(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/not-a-number", "application/octet-stream", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	ct := connect(t, srv.URL)
	if _, err := ct.Send(1, []byte("x")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `drl_rpc_requests_total{transport="http"}`) {
		t.Errorf("request counter missing from /metrics:\n%s", body)
	}
}

func TestNotConnected(t *testing.T) {
	ct := NewHttpClientTransport()
	if _, err := ct.Send(1, nil); err == nil {
		t.Error("expected error for unconnected transport")
	}
	if err := ct.Connect(common.ClientConfig{}); err == nil {
		t.Error("expected error without endpoints")
	}
}
