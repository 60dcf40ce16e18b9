package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/config"
	"github.com/dbehnke/dect-nwk/pkg/logger"
)

func TestServer_New(t *testing.T) {
	cfg := config.WebConfig{
		Enabled: true,
		Host:    "localhost",
		Port:    8080,
	}

	log := logger.New(logger.Config{Level: "info"})
	srv := NewServer(cfg, log, nil, nil)

	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	if srv.config.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", srv.config.Port)
	}
}

func TestServer_Disabled(t *testing.T) {
	srv := NewServer(config.WebConfig{Enabled: false}, nil, nil, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Errorf("Expected nil error for disabled server, got %v", err)
	}
}

func TestServer_HealthEndpoint(t *testing.T) {
	cfg := config.WebConfig{
		Enabled: true,
		Host:    "localhost",
		Port:    0, // Use any available port
	}

	log := logger.New(logger.Config{Level: "error"})
	srv := NewServer(cfg, log, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for srv.GetAddr() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	addr := srv.GetAddr()
	if addr == "" {
		t.Fatal("Server address is empty")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("Failed to request health endpoint: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	cancel()
	if err := <-errChan; err != nil && err != context.Canceled && err != http.ErrServerClosed {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestServer_BasicAuth(t *testing.T) {
	cfg := config.WebConfig{
		Enabled:      true,
		AuthRequired: true,
		Username:     "admin",
		Password:     "secret",
	}
	srv := NewServer(cfg, nil, &fakeSource{}, nil)
	h := srv.Handler()

	tests := []struct {
		name       string
		path       string
		user, pass string
		want       int
	}{
		{"health is open", "/health", "", "", http.StatusOK},
		{"no credentials", "/api/status", "", "", http.StatusUnauthorized},
		{"wrong password", "/api/status", "admin", "nope", http.StatusUnauthorized},
		{"valid credentials", "/api/status", "admin", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
