// Package acquire downloads the raw ONS and Bank of England macro series.
//
// Requests share one rate limiter and go through a circuit breaker per host,
// so a failing source stops being hammered while the others proceed.
package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	apperrors "macrostress/internal/errors"
)

const browserUserAgent = "Mozilla/5.0"

// ONS generator series paths.
const (
	GDPSeriesURI          = "/economy/grossdomesticproductgdp/timeseries/ihyq/ukea"
	UnemploymentSeriesURI = "/employmentandlabourmarket/peoplenotinwork/unemployment/timeseries/mgsx/lms"
)

// Endpoints are the source URLs. Tests point them at an httptest server.
type Endpoints struct {
	ONSBase      string `yaml:"ons_base" envconfig:"ONS_BASE" default:"https://www.ons.gov.uk"`
	ONSGenerator string `yaml:"ons_generator" envconfig:"ONS_GENERATOR" default:"https://www.ons.gov.uk/generator"`
	HPIPage      string `yaml:"hpi_page" envconfig:"HPI_PAGE" default:"https://www.ons.gov.uk/economy/inflationandpriceindices/datasets/ukhousepriceindexmonthlypricestatistics"`
	BoEIADB      string `yaml:"boe_iadb" envconfig:"BOE_IADB" default:"https://www.bankofengland.co.uk/boeapps/database/_iadb-fromshowcolumns.asp"`
	BoEReferer   string `yaml:"boe_referer" envconfig:"BOE_REFERER" default:"https://www.bankofengland.co.uk/statistics/tables"`
}

// Options configures a Fetcher.
type Options struct {
	Endpoints         Endpoints     `yaml:"endpoints" envconfig:"ENDPOINTS"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"60s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"RPS" default:"2"`
	Burst             int           `yaml:"burst" envconfig:"BURST" default:"2"`
	BoEDateFrom       string        `yaml:"boe_date_from" envconfig:"BOE_DATE_FROM" default:"01/Jan/1990"`
	BoEDateTo         string        `yaml:"boe_date_to" envconfig:"BOE_DATE_TO" default:"now"`
}

// DefaultOptions returns the production endpoints and limits.
func DefaultOptions() Options {
	return Options{
		Endpoints: Endpoints{
			ONSBase:      "https://www.ons.gov.uk",
			ONSGenerator: "https://www.ons.gov.uk/generator",
			HPIPage:      "https://www.ons.gov.uk/economy/inflationandpriceindices/datasets/ukhousepriceindexmonthlypricestatistics",
			BoEIADB:      "https://www.bankofengland.co.uk/boeapps/database/_iadb-fromshowcolumns.asp",
			BoEReferer:   "https://www.bankofengland.co.uk/statistics/tables",
		},
		Timeout:           60 * time.Second,
		RequestsPerSecond: 2,
		Burst:             2,
		BoEDateFrom:       "01/Jan/1990",
		BoEDateTo:         "now",
	}
}

// Fetcher performs rate-limited, breaker-guarded HTTP GETs.
type Fetcher struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewFetcher returns a Fetcher. A nil client gets one with opts.Timeout.
func NewFetcher(opts Options, client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		opts:     opts,
		client:   client,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger.With(slog.String("component", "acquire")),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (f *Fetcher) breaker(host string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := f.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     host,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("circuit_breaker_state_changed",
				slog.String("host", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	f.breakers[host] = cb
	return cb
}

// get fetches rawURL with the given query and headers and returns the body.
func (f *Fetcher) get(ctx context.Context, rawURL string, query url.Values, header http.Header) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid source url "+rawURL, err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewNetworkError("rate limiter wait cancelled", err)
	}

	start := time.Now()
	body, err := f.breaker(u.Host).Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		f.logger.Error("download_failed",
			slog.String("url", u.String()),
			slog.String("error", err.Error()))
		return nil, apperrors.NewNetworkError("GET "+u.Redacted()+" failed", err).
			WithContext("host", u.Host)
	}

	data := body.([]byte)
	f.logger.Info("download_completed",
		slog.String("url", u.String()),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)))
	return data, nil
}
