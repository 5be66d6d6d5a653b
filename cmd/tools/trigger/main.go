package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/david/opportunity-finder/internal/config"
)

// trigger asks a running server to reload its dataset.
func main() {
	addr := flag.String("addr", "", "Server base URL (default http://localhost:$PORT)")
	async := flag.Bool("async", false, "Return immediately with a job id")
	flag.Parse()

	cfg := config.Load()
	if cfg.AdminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}

	base := *addr
	if base == "" {
		base = "http://localhost:" + cfg.Port
	}
	url := base + "/api/v1/reload"
	if *async {
		url += "?async=true"
	}

	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-Admin-Secret", cfg.AdminSecret)

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	fmt.Printf("Response Status: %s\n%s\n", resp.Status, body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		os.Exit(1)
	}
}
