package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pollranking/internal/config"
)

func TestLoadEnvFile(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored: %v", err)
	}
	if err := loadEnvFile(""); err != nil {
		t.Errorf("empty path should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("POLLRANKING_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("POLLRANKING_TEST_DOTENV", "")
	os.Unsetenv("POLLRANKING_TEST_DOTENV")

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}
	if got := os.Getenv("POLLRANKING_TEST_DOTENV"); got != "from-file" {
		t.Errorf("expected value from env file, got %q", got)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&config.LogConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "poll_id", "p1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"poll_id":"p1"`) {
		t.Errorf("expected JSON output, got %s", out)
	}

	if _, err := newLogger(&config.LogConfig{Level: "nope", Format: "json"}, &buf); err == nil {
		t.Error("invalid level should fail")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("POLLRANKING_TOKEN_SIGNING_KEY", "")

	var stderr bytes.Buffer
	err := run(context.Background(), []string{"-env-file", ""}, &stderr)
	if err == nil || !strings.Contains(err.Error(), "signing key") {
		t.Errorf("expected signing key error, got %v", err)
	}
}

func TestRun_BadFlag(t *testing.T) {
	var stderr bytes.Buffer
	if err := run(context.Background(), []string{"-bogus"}, &stderr); err == nil {
		t.Error("unknown flag should fail")
	}
}

func TestRun_StartsAndStops(t *testing.T) {
	t.Setenv("POLLRANKING_TOKEN_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("POLLRANKING_STORE_DRIVER", "memory")
	t.Setenv("POLLRANKING_HTTP_HOST", "127.0.0.1")
	t.Setenv("POLLRANKING_HTTP_PORT", "38471")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var stderr bytes.Buffer
	go func() { done <- run(ctx, []string{"-env-file", ""}, &stderr) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
