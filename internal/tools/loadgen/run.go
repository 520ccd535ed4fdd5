package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	AnonKey     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	// Seed namespaces the generated sign-up emails so runs do not collide.
	Seed int64
}

type Result struct {
	TotalRequests int64
	Failures      int64
	Status2xx     int64
	Status4xx     int64
	Status429     int64
	Status5xx     int64
}

type request struct {
	method string
	path   string
	body   any
}

// generator returns the n-th request of a profile.
type generator func(n int64) request

func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:9999"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 15
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	next := generatorForProfile(cfg.Profile, cfg.Seed)
	if next == nil {
		return Result{}, fmt.Errorf("unknown profile: %s", cfg.Profile)
	}
	client := &http.Client{Timeout: 5 * time.Second}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var res Result
	jobs := make(chan request, cfg.Concurrency*2)
	wg := sync.WaitGroup{}

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				status, err := send(ctx, client, cfg, job)
				if err != nil {
					atomic.AddInt64(&res.Failures, 1)
					continue
				}
				atomic.AddInt64(&res.TotalRequests, 1)
				switch {
				case status >= 200 && status < 300:
					atomic.AddInt64(&res.Status2xx, 1)
				case status == http.StatusTooManyRequests:
					atomic.AddInt64(&res.Status429, 1)
					atomic.AddInt64(&res.Status4xx, 1)
				case status >= 400 && status < 500:
					atomic.AddInt64(&res.Status4xx, 1)
				case status >= 500:
					atomic.AddInt64(&res.Status5xx, 1)
				}
			}
		}()
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	var n int64
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return res, nil
		case <-ticker.C:
			select {
			case jobs <- next(n):
				n++
			case <-ctx.Done():
			}
		}
	}
}

func send(ctx context.Context, client *http.Client, cfg Config, job request) (int, error) {
	var body *bytes.Reader
	if job.body != nil {
		raw, err := json.Marshal(job.body)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, job.method, cfg.BaseURL+job.path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("apikey", cfg.AnonKey)
	req.Header.Set("Accept", "application/json")
	if job.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

const loadgenPassword = "loadgen-password"

func generatorForProfile(profile string, seed int64) generator {
	email := func(n int64) string { return fmt.Sprintf("loadgen-%d-%d@uwo.ca", seed, n) }
	signUp := func(n int64) request {
		return request{http.MethodPost, "/auth/v1/signup", map[string]any{
			"email":    email(n),
			"password": loadgenPassword,
			"data":     map[string]string{"first_name": "Load", "last_name": fmt.Sprint(n)},
		}}
	}
	signIn := func(n int64) request {
		return request{http.MethodPost, "/auth/v1/token?grant_type=password", map[string]string{
			"email":    email(n),
			"password": loadgenPassword,
		}}
	}
	badSignIn := func(n int64) request {
		return request{http.MethodPost, "/auth/v1/token?grant_type=password", map[string]string{
			"email":    email(n),
			"password": "wrong-password",
		}}
	}
	profileByEmail := func(n int64) request {
		return request{http.MethodGet, "/rest/v1/profiles?email=eq." + email(n), nil}
	}
	health := func(int64) request { return request{http.MethodGet, "/auth/v1/health", nil} }
	weakPassword := func(n int64) request {
		return request{http.MethodPost, "/auth/v1/signup", map[string]string{"email": email(n), "password": "123"}}
	}
	badGrant := func(int64) request {
		return request{http.MethodPost, "/auth/v1/token?grant_type=magic", map[string]string{}}
	}

	cycle := func(steps ...generator) generator {
		return func(n int64) request {
			// Every step of round r targets account r.
			return steps[n%int64(len(steps))](n / int64(len(steps)))
		}
	}
	switch strings.ToLower(profile) {
	case "", "mixed":
		return cycle(signUp, signIn, profileByEmail, health)
	case "auth":
		return cycle(signUp, signIn, badSignIn)
	case "error-heavy":
		return cycle(weakPassword, badSignIn, badGrant, profileByEmail)
	default:
		return nil
	}
}
