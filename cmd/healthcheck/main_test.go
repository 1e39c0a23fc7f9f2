package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddr(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "", want: "127.0.0.1:8080"},
		{raw: "garbage", want: "127.0.0.1:8080"},
		{raw: "0.0.0.0:9090", want: "127.0.0.1:9090"},
		{raw: ":9090", want: "127.0.0.1:9090"},
		{raw: "[::]:9090", want: "127.0.0.1:9090"},
		{raw: "10.0.0.7:8080", want: "10.0.0.7:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAddr(tt.raw))
		})
	}
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
	}{
		{name: "healthy", status: http.StatusOK, body: `{"status":"ok","records":3,"transport":"connected"}`, wantCode: 0},
		{name: "healthy with transport offline", status: http.StatusOK, body: `{"status":"ok","records":0,"transport":"offline"}`, wantCode: 0},
		{name: "degraded registry", status: http.StatusServiceUnavailable, body: `{"status":"degraded","records":0,"transport":"offline"}`, wantCode: 1},
		{name: "unexpected status field", status: http.StatusOK, body: `{"status":"starting"}`, wantCode: 1},
		{name: "not json", status: http.StatusOK, body: `ok`, wantCode: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/health", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			var stderr bytes.Buffer
			code := checkHealth(context.Background(), srv.Client(), srv.URL+"/api/v1/health", &stderr)

			assert.Equal(t, tt.wantCode, code)
			if tt.wantCode != 0 {
				assert.Contains(t, stderr.String(), "healthcheck:")
			}
		})
	}
}

func TestCheckHealth_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/api/v1/health"
	srv.Close()

	var stderr bytes.Buffer
	assert.Equal(t, 1, checkHealth(context.Background(), &http.Client{}, url, &stderr))
}
