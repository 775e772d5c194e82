// Command smoke probes a running CampusHub API after a deploy. It walks the
// health endpoint and, when credentials are supplied, the core authenticated
// reads, and exits non-zero on the first failure so CI can gate on it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/campushub/campushub-api/pkg/client"
)

func main() {
	var (
		baseURL  string
		email    string
		password string
		timeout  time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080", "API server base URL (without the /api/v1 prefix)")
	flag.StringVar(&email, "email", "", "login email for authenticated probes (optional)")
	flag.StringVar(&password, "password", "", "login password for authenticated probes")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "per-probe timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := probeHealth(ctx, baseURL, timeout); err != nil {
		log.Fatalf("health probe failed: %v", err)
	}
	fmt.Println("ok  health")

	if email == "" {
		return
	}

	api, err := client.New(client.Options{BaseURL: baseURL + "/api/v1"})
	if err != nil {
		log.Fatalf("build client: %v", err)
	}

	if _, err := api.Login(ctx, email, password, false); err != nil {
		log.Fatalf("login probe failed: %v", err)
	}
	fmt.Println("ok  login")

	me, err := api.Me(ctx)
	if err != nil {
		log.Fatalf("me probe failed: %v", err)
	}
	fmt.Printf("ok  me (%s, role %s)\n", me.User.Email, me.User.Role)

	if _, err := api.Refresh(ctx); err != nil {
		log.Fatalf("refresh probe failed: %v", err)
	}
	fmt.Println("ok  refresh")

	if err := api.Logout(ctx); err != nil {
		log.Fatalf("logout probe failed: %v", err)
	}
	fmt.Println("ok  logout")

	os.Exit(0)
}

func probeHealth(ctx context.Context, baseURL string, timeout time.Duration) error {
	httpClient := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return err
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	return nil
}
