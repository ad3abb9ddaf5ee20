package main

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestServeIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	// Point the daemon at an empty stores root on a test port. The openai
	// embedding provider constructs without touching the network, and with
	// zero stores nothing ever calls it.
	t.Setenv("STOREFRONTD_STORES__ROOT", t.TempDir())
	t.Setenv("STOREFRONTD_SERVER__PORT", "18084")
	t.Setenv("STOREFRONTD_EMBEDDINGS__PROVIDER", "openai")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	// Wait for the server to start
	time.Sleep(500 * time.Millisecond)

	resp, err := http.Get("http://localhost:18084/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// Unknown store slugs are rejected at the webhook entrypoint.
	webhookResp, err := http.Post("http://localhost:18084/webhook/no-such-store", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /webhook/no-such-store failed: %v", err)
	}
	webhookResp.Body.Close()
	if webhookResp.StatusCode != http.StatusNotFound {
		t.Errorf("POST /webhook/no-such-store status = %d, want %d", webhookResp.StatusCode, http.StatusNotFound)
	}

	// Cancel context to shut the daemon down
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not shut down in time")
	}
}

func TestServeIntegration_InvalidConfig(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	t.Setenv("STOREFRONTD_EMBEDDINGS__PROVIDER", "no-such-provider")

	err := run(context.Background())
	if err == nil {
		t.Fatal("run() should fail with an unknown embeddings provider")
	}
	if !strings.Contains(err.Error(), "unknown embeddings provider") {
		t.Errorf("run() error = %v, want unknown provider failure", err)
	}
}
