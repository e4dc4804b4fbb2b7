package loadgen

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/observability"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int64
	Failures      int64
	Status2xx     int64
	Status3xx     int64
	Status4xx     int64
	Status5xx     int64
}

type endpoint struct {
	method string
	path   string
	form   func(r *rand.Rand) url.Values
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 15
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	profile := strings.ToLower(cfg.Profile)
	endpoints := endpointsForProfile(profile)
	if len(endpoints) == 0 {
		return Result{}, fmt.Errorf("unknown profile: %s", cfg.Profile)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var total, failures, s2xx, s3xx, s4xx, s5xx int64
	jobs := make(chan endpoint, cfg.Concurrency*2)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < cfg.Concurrency; i++ {
		worker := i
		g.Go(func() error {
			client, err := newWorkerClient()
			if err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(cfg.Seed + int64(worker)))
			for ep := range jobs {
				status, err := send(gctx, client, cfg.BaseURL, ep, rng)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				atomic.AddInt64(&total, 1)
				class := statusClass(status)
				observability.RecordLoadgenRequest(gctx, class, profile)
				switch class {
				case "2xx":
					atomic.AddInt64(&s2xx, 1)
				case "3xx":
					atomic.AddInt64(&s3xx, 1)
				case "4xx":
					atomic.AddInt64(&s4xx, 1)
				case "5xx":
					atomic.AddInt64(&s5xx, 1)
				}
			}
			return nil
		})
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	i := 0
loop:
	for {
		select {
		case <-gctx.Done():
			break loop
		case <-ticker.C:
			select {
			case jobs <- endpoints[i%len(endpoints)]:
				i++
			case <-gctx.Done():
				break loop
			}
		}
	}
	close(jobs)
	err := g.Wait()
	return Result{
		TotalRequests: atomic.LoadInt64(&total),
		Failures:      atomic.LoadInt64(&failures),
		Status2xx:     atomic.LoadInt64(&s2xx),
		Status3xx:     atomic.LoadInt64(&s3xx),
		Status4xx:     atomic.LoadInt64(&s4xx),
		Status5xx:     atomic.LoadInt64(&s5xx),
	}, err
}

// newWorkerClient keeps one session cookie per worker and reports redirects
// instead of following them.
func newWorkerClient() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: 5 * time.Second,
		Jar:     jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

func send(ctx context.Context, client *http.Client, baseURL string, ep endpoint, rng *rand.Rand) (int, error) {
	var req *http.Request
	var err error
	if ep.form != nil {
		req, err = http.NewRequestWithContext(ctx, ep.method, baseURL+ep.path, strings.NewReader(ep.form(rng).Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, ep.method, baseURL+ep.path, nil)
	}
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "other"
	}
}

func failedLogin(r *rand.Rand) url.Values {
	return url.Values{
		"username": {fmt.Sprintf("loadgen-%d@example.com", r.Intn(50))},
		"password": {"Wrong-Passw0rd!"},
	}
}

func registration(r *rand.Rand) url.Values {
	return url.Values{
		"email":            {fmt.Sprintf("loadgen-%d@example.com", r.Int63())},
		"full_name":        {"Load Generator"},
		"password":         {"Loadgen-Passw0rd!"},
		"confirm_password": {"Loadgen-Passw0rd!"},
	}
}

func invalidOTP(*rand.Rand) url.Values {
	return url.Values{"otp": {"000000"}}
}

func resetRequest(r *rand.Rand) url.Values {
	return url.Values{"email": {fmt.Sprintf("loadgen-%d@example.com", r.Intn(50))}}
}

func endpointsForProfile(profile string) []endpoint {
	pages := []endpoint{
		{method: http.MethodGet, path: "/login/"},
		{method: http.MethodGet, path: "/register/"},
		{method: http.MethodGet, path: "/password-reset/"},
		{method: http.MethodGet, path: "/health/ready"},
	}
	auth := []endpoint{
		{method: http.MethodPost, path: "/login/", form: failedLogin},
		{method: http.MethodPost, path: "/register/", form: registration},
		{method: http.MethodPost, path: "/verify-otp/", form: invalidOTP},
		{method: http.MethodPost, path: "/password-reset/", form: resetRequest},
	}
	switch profile {
	case "", "mixed":
		return append(pages, auth...)
	case "pages":
		return pages
	case "auth":
		return auth
	case "error-heavy":
		return []endpoint{
			{method: http.MethodPost, path: "/login/", form: failedLogin},
			{method: http.MethodPost, path: "/verify-otp/", form: invalidOTP},
			{method: http.MethodGet, path: "/me/"},
		}
	default:
		return nil
	}
}
