package acquire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/ingest"
)

func testOptions(base string) Options {
	opts := DefaultOptions()
	opts.Endpoints = Endpoints{
		ONSBase:      base,
		ONSGenerator: base + "/generator",
		HPIPage:      base + "/hpi",
		BoEIADB:      base + "/iadb",
		BoEReferer:   base + "/tables",
	}
	opts.RequestsPerSecond = 0
	opts.Timeout = 5 * time.Second
	return opts
}

func sourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/generator", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "csv", r.URL.Query().Get("format"))
		switch r.URL.Query().Get("uri") {
		case GDPSeriesURI:
			w.Write([]byte("\"2020 Q1\",\"-2.5\"\n"))
		case UnemploymentSeriesURI:
			w.Write([]byte("\"2020 Q1\",\"4.0\"\n"))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/hpi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, browserUserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(`<html><body>
<a href="/about">About</a>
<a href="/file?uri=/data/ukhpi.XLSX">Download</a>
<a href="/other.xlsx">Older</a>
</body></html>`))
	})
	mux.HandleFunc("/file", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/ukhpi.XLSX", r.URL.Query().Get("uri"))
		w.Write([]byte("workbook"))
	})
	mux.HandleFunc("/iadb", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "yes", q.Get("csv.x"))
		assert.Equal(t, "01/Jan/1990", q.Get("Datefrom"))
		assert.Equal(t, "TN", q.Get("CSVF"))
		assert.Equal(t, "*/*", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("Referer"))
		w.Write([]byte("DATE," + q.Get("SeriesCodes") + "\n31 Jan 2020,0.75\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFindHPIWorkbookURL(t *testing.T) {
	srv := sourceServer(t)
	f := NewFetcher(testOptions(srv.URL), nil, nil)

	link, err := f.FindHPIWorkbookURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/file?uri=/data/ukhpi.XLSX", link)
}

func TestFindHPIWorkbookURL_NoLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="/data.csv">csv</a>`))
	}))
	defer srv.Close()

	_, err := NewFetcher(testOptions(srv.URL), nil, nil).FindHPIWorkbookURL(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestFetchAll(t *testing.T) {
	srv := sourceServer(t)
	dir := filepath.Join(t.TempDir(), "raw")

	downloads, err := NewFetcher(testOptions(srv.URL), nil, nil).FetchAll(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, downloads, len(ingest.RawFiles()))

	for i, d := range downloads {
		assert.Equal(t, ingest.RawFiles()[i], d.File)
		data, err := os.ReadFile(d.Path)
		require.NoError(t, err)
		assert.Len(t, data, d.Bytes)
	}

	gilt, err := os.ReadFile(filepath.Join(dir, ingest.Gilt10YFile))
	require.NoError(t, err)
	assert.Contains(t, string(gilt), ingest.Gilt10YCode)

	hpi, err := os.ReadFile(filepath.Join(dir, ingest.HPIFile))
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(hpi))
}

func TestFetcher_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(testOptions(srv.URL), nil, nil).FetchONSSeries(context.Background(), GDPSeriesURI)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
	assert.Contains(t, err.Error(), "404")
}

func TestFetcher_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(testOptions(srv.URL), nil, nil)
	for i := 0; i < 3; i++ {
		_, err := f.FetchBoESeries(context.Background(), ingest.BankRateCode)
		require.Error(t, err)
	}
	_, err := f.FetchBoESeries(context.Background(), ingest.BankRateCode)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcher_ContextCancelled(t *testing.T) {
	srv := sourceServer(t)
	opts := testOptions(srv.URL)
	opts.RequestsPerSecond = 0.001
	opts.Burst = 1
	f := NewFetcher(opts, nil, nil)

	_, err := f.FetchONSSeries(context.Background(), GDPSeriesURI)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = f.FetchONSSeries(ctx, GDPSeriesURI)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
}
