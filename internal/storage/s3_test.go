package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"alcyxob/physiotrack/internal/config"

	"go.uber.org/zap"
)

func TestGeneratePresignedDownloadURL_CustomEndpoint(t *testing.T) {
	store, err := NewS3Storage(context.Background(), config.S3Config{
		Endpoint:        "http://minio.local:9000",
		Region:          "us-east-1",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		BucketName:      "sheets",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := store.GeneratePresignedDownloadURL(context.Background(), "sheets/PHYA1/1.txt", time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Host != "minio.local:9000" {
		t.Errorf("expected custom endpoint host, got %s", u.Host)
	}
	if !strings.HasPrefix(u.Path, "/sheets/sheets/PHYA1/1.txt") {
		t.Errorf("expected path-style bucket addressing, got %s", u.Path)
	}
	if u.Query().Get("X-Amz-Expires") != "60" {
		t.Errorf("expected 60s expiry, got %s", u.Query().Get("X-Amz-Expires"))
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"", true, ""},
		{"minio.local:9000", false, "http://minio.local:9000"},
		{"minio.local:9000", true, "https://minio.local:9000"},
		{"http://minio.local:9000", true, "http://minio.local:9000"},
	}
	for _, tt := range tests {
		if got := endpointURL(tt.endpoint, tt.useSSL); got != tt.want {
			t.Errorf("endpointURL(%q, %v) = %q, want %q", tt.endpoint, tt.useSSL, got, tt.want)
		}
	}
}

func TestGeneratePresignedDownloadURL_BareEndpointHonoursUseSSL(t *testing.T) {
	store, err := NewS3Storage(context.Background(), config.S3Config{
		Endpoint:        "minio.local:9000",
		Region:          "us-east-1",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		BucketName:      "sheets",
		UseSSL:          false,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := store.GeneratePresignedDownloadURL(context.Background(), "sheets/PHYA1/1.txt", time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Scheme != "http" || u.Host != "minio.local:9000" {
		t.Errorf("expected http://minio.local:9000, got %s://%s", u.Scheme, u.Host)
	}
}
