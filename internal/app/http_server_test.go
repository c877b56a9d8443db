package app

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

func TestMetricsServer_Endpoints(t *testing.T) {
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	srv := newMetricsServer(healthHandler)

	endpoints := map[string]string{
		"/metrics": "",
		"/healthz": `"status":"healthy"`,
		"/livez":   "ok",
		"/readyz":  "ready",
	}

	for path, want := range endpoints {
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		if w.Code != http.StatusOK {
			t.Errorf("%s returned status %d, expected 200", path, w.Code)
		}
		if want != "" && !strings.Contains(w.Body.String(), want) {
			t.Errorf("%s body %q does not contain %q", path, w.Body.String(), want)
		}
	}
}

func TestMetricsServer_NotReadyWhenStorageDown(t *testing.T) {
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func(context.Context) error {
		return errors.New("connection refused")
	}))
	srv := newMetricsServer(healthHandler)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("liveness must not depend on storage, got %d", w.Code)
	}
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	shutdownHTTP(nil, time.Second, log.WithField("test", "http-nil"))
}

func TestShutdownHTTP_WithServer(t *testing.T) {
	logger := log.WithField("test", "http-shutdown")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	srv := newMetricsServer(healthcheck.NewHandler(version.GetVersion()))

	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(listener)
	}()

	url := "http://" + listener.Addr().String() + "/livez"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("server should be running: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("expected 'ok' from /livez, got %q", string(body))
	}

	shutdownHTTP(srv, time.Second, logger)

	select {
	case err := <-served:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("expected ErrServerClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not stop after shutdownHTTP")
	}
}
