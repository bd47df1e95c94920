package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"

	"murmur/arbiter/internal/config"
	"murmur/arbiter/internal/hostws"
	"murmur/arbiter/internal/trace"
)

func testConfig() config.Config {
	var c config.Config
	c.Arbiter.FillerWords = []string{"yeah", "okay", "uh-huh", "mhm"}
	c.Arbiter.CommandWords = []string{"stop", "wait", "no"}
	c.Arbiter.Threshold = 0.5
	c.Arbiter.WordWeight = 0.4
	c.Arbiter.ProsodyWeight = 0.3
	c.Arbiter.ContextWeight = 0.2
	c.Arbiter.UserWeight = 0.1
	c.Arbiter.SilenceGapMS = 2000
	c.Arbiter.Engine = "rule"
	c.Reconcile.TimeoutMS = 150
	c.Reconcile.TimeoutPolicy = "ignore"
	c.Host.TokenSecret = "testsecret"
	return c
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := NewHandlers(testConfig(), trace.New(), nil, hostws.NewRegistry())
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

func TestTraceUnknownSession404(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/sessions/unknown/trace")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateSessionThenTrace(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/sessions", "application/json", strings.NewReader(`{"user_id":"u1"}`))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var created struct {
		SessionID string `json:"session_id"`
		HostToken string `json:"host_token"`
	}
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if created.SessionID == "" || created.HostToken == "" {
		t.Fatalf("incomplete response: %+v", created)
	}

	resp, err = http.Get(srv.URL + "/v1/sessions/" + created.SessionID + "/trace")
	if err != nil {
		t.Fatalf("trace request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestDecideEndpoint(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		body string
		want string
	}{
		{`{"text":"yeah okay","agent_speaking":true,"final":true}`, "ignore"},
		{`{"text":"no stop","agent_speaking":true,"final":true}`, "interrupt"},
		{`{"text":"yeah","agent_speaking":false,"final":true}`, "respond"},
	}
	for _, tc := range cases {
		resp, err := http.Post(srv.URL+"/v1/decide", "application/json", strings.NewReader(tc.body))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		var out struct {
			Decision string `json:"decision"`
		}
		if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		resp.Body.Close()
		if out.Decision != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.body, tc.want, out.Decision)
		}
	}
}

func TestDecideRequestsAreIsolated(t *testing.T) {
	srv := newTestServer(t)

	// Repeated identical requests must not accumulate conversational state
	// (turn dominance would otherwise inflate the context score).
	body := `{"text":"yeah okay","agent_speaking":true,"final":true}`
	var first float64
	for i := 0; i < 5; i++ {
		resp, err := http.Post(srv.URL+"/v1/decide", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		var out struct {
			Reasoning struct {
				Confidence struct {
					ContextScore float64 `json:"context_score"`
				} `json:"confidence"`
			} `json:"reasoning"`
		}
		if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		resp.Body.Close()
		if i == 0 {
			first = out.Reasoning.Confidence.ContextScore
			continue
		}
		if out.Reasoning.Confidence.ContextScore != first {
			t.Fatalf("request %d context score %v differs from first %v", i, out.Reasoning.Confidence.ContextScore, first)
		}
	}
}

func TestDecideRejectsEmptyText(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/v1/decide", "application/json", strings.NewReader(`{"agent_speaking":true}`))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestThresholdValidation(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/threshold", strings.NewReader(`{"threshold":1.5}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range threshold, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPut, srv.URL+"/v1/threshold", strings.NewReader(`{"threshold":0.7}`))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
