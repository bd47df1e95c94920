package health

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"time"

	_ "modernc.org/sqlite"

	"murmur/arbiter/internal/config"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// CheckAll runs all health checks and returns combined status
func CheckAll(ctx context.Context, cfg config.Config) HealthStatus {
	checks := []CheckResult{
		checkProfileDB(ctx, cfg),
	}
	if cfg.Arbiter.Engine == "generative" {
		checks = append(checks, checkOpenAI(ctx, cfg))
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func checkProfileDB(ctx context.Context, cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "profile_db"}

	if cfg.Profile.DBPath == "" {
		// In-memory profiles need no backing store.
		result.OK = true
		result.Latency = time.Since(start)
		return result
	}

	db, err := sql.Open("sqlite", cfg.Profile.DBPath)
	if err != nil {
		result.Error = fmt.Sprintf("open failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		result.Error = fmt.Sprintf("ping failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}

	result.Latency = time.Since(start)
	result.OK = true
	return result
}

func checkOpenAI(ctx context.Context, cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "openai"}

	if cfg.OpenAI.APIKey == "" {
		result.Error = "OPENAI_API_KEY not set"
		result.Latency = time.Since(start)
		return result
	}

	// Lightweight authenticated call; proves the key without burning tokens.
	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.openai.com/v1/models?limit=1", nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	req.Header.Set("Authorization", "Bearer "+cfg.OpenAI.APIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.Latency = time.Since(start)

	if resp.StatusCode == 401 {
		result.Error = "invalid API key (401)"
		return result
	}
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
		return result
	}

	result.OK = true
	return result
}
