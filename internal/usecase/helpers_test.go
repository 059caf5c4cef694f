package usecase

import (
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/tenant-provisioner/internal/adapter/metrics"
	"github.com/user/tenant-provisioner/internal/vault"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *metrics.Metrics {
	return metrics.NewWith(prometheus.NewRegistry())
}

func testVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New("unit-test-vault-secret")
	if err != nil {
		t.Fatalf("failed to create vault: %v", err)
	}
	return v
}
