package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Seeds synthetic tenants with a handful of employees each against a running
// API instance. Useful for smoke testing the queue and worker under load.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the provisioning API")
	apiKey := flag.String("api-key", "supersecretkey", "API Key for authentication")
	concurrency := flag.Int("c", 5, "Number of concurrent workers")
	tenants := flag.Int("n", 100, "Number of tenants to create")
	employees := flag.Int("e", 3, "Employees per tenant (besides the admin)")
	rps := flag.Int("rps", 50, "Requests per second limit")
	flag.Parse()

	log.Printf("Seeding %d tenants (%d employees each) against %s", *tenants, *employees, *baseURL)

	var wg sync.WaitGroup
	var tenantsCreated, employeesCreated, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 10)
	work := make(chan int)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for range work {
				slug := "seed-" + uuid.NewString()[:8]

				if err := limiter.Wait(ctx); err != nil {
					return
				}
				signup := fmt.Sprintf(`{"slug": %q, "name": "Seed %s", "admin_email": "admin@%s.mail-temp.example", "admin_name": "Seed Admin", "admin_password": "seed-pass-1"}`,
					slug, slug, slug)
				body, ok := post(ctx, client, *baseURL+"/api/signup", *apiKey, signup, &errorCount)
				if !ok {
					continue
				}
				tenantsCreated.Add(1)

				var created struct {
					Tenant struct {
						ID string `json:"id"`
					} `json:"tenant"`
				}
				if err := json.Unmarshal(body, &created); err != nil || created.Tenant.ID == "" {
					errorCount.Add(1)
					continue
				}

				for e := 0; e < *employees; e++ {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
					payload := fmt.Sprintf(`{"email": "user%d@%s.mail-temp.example", "name": "Seed User %d", "password": "seed-pass-1"}`, e, slug, e)
					if _, ok := post(ctx, client, *baseURL+"/api/tenants/"+created.Tenant.ID+"/employees", *apiKey, payload, &errorCount); ok {
						employeesCreated.Add(1)
					}
				}
			}
		}()
	}

	for n := 0; n < *tenants; n++ {
		work <- n
	}
	close(work)
	wg.Wait()

	log.Println("Seeding finished.")
	log.Printf("Tenants created: %d", tenantsCreated.Load())
	log.Printf("Employees created: %d", employeesCreated.Load())
	log.Printf("Errors: %d", errorCount.Load())
}

func post(ctx context.Context, client *http.Client, url, apiKey, body string, errorCount *atomic.Int64) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		errorCount.Add(1)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		errorCount.Add(1)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode >= 300 {
		errorCount.Add(1)
		return nil, false
	}
	return respBody, true
}
