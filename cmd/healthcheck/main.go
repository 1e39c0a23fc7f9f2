package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

func main() {
	addr := normalizeAddr(os.Getenv("GATEKEEPER_LISTEN_ADDR"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Second}
	code := checkHealth(ctx, client, fmt.Sprintf("http://%s/api/v1/health", addr), os.Stderr)
	cancel()
	os.Exit(code)
}

// healthBody is the subset of the health response the healthcheck inspects.
type healthBody struct {
	Status    string `json:"status"`
	Transport string `json:"transport"`
}

// checkHealth returns 0 when url answers 200 with status "ok". The remote transport
// being offline does not fail the check: the door still works locally.
func checkHealth(ctx context.Context, client *http.Client, url string, stderr io.Writer) int {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1
	}

	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(stderr, "healthcheck: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	var body healthBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintf(stderr, "healthcheck: decode %s: %v\n", url, err)
		return 1
	}

	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		fmt.Fprintf(stderr, "healthcheck: %s returned %d status=%q\n", url, resp.StatusCode, body.Status)
		return 1
	}

	return 0
}

// normalizeAddr ensures the healthcheck connects to loopback rather than the
// bind-all address. Docker containers bind 0.0.0.0 (or ::) but the healthcheck
// runs inside the same container, so loopback is reachable and more correct.
func normalizeAddr(raw string) string {
	if raw == "" {
		return "127.0.0.1:8080"
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return "127.0.0.1:8080"
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
