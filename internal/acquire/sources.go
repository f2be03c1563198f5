package acquire

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/ingest"
)

// FetchONSSeries downloads one ONS time series as CSV from the generator endpoint.
func (f *Fetcher) FetchONSSeries(ctx context.Context, uri string) ([]byte, error) {
	q := url.Values{}
	q.Set("format", "csv")
	q.Set("uri", uri)
	return f.get(ctx, f.opts.Endpoints.ONSGenerator, q, nil)
}

func browserHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", browserUserAgent)
	return h
}

// FindHPIWorkbookURL scrapes the UK HPI dataset page for its first .xlsx link.
func (f *Fetcher) FindHPIWorkbookURL(ctx context.Context) (string, error) {
	page, err := f.get(ctx, f.opts.Endpoints.HPIPage, nil, browserHeader())
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", apperrors.NewParsingError("failed to parse HPI page", err)
	}

	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		link, _ := a.Attr("href")
		if strings.HasSuffix(strings.ToLower(strings.TrimSpace(link)), ".xlsx") {
			href = strings.TrimSpace(link)
			return false
		}
		return true
	})
	if href == "" {
		return "", apperrors.NewNotFoundError("xlsx download link on UK HPI page")
	}

	base, err := url.Parse(f.opts.Endpoints.ONSBase)
	if err != nil {
		return "", apperrors.NewConfigError("invalid ONS base url", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", apperrors.NewParsingError("invalid xlsx link "+href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// FetchHPIWorkbook locates and downloads the monthly UK HPI workbook.
func (f *Fetcher) FetchHPIWorkbook(ctx context.Context) ([]byte, error) {
	link, err := f.FindHPIWorkbookURL(ctx)
	if err != nil {
		return nil, err
	}
	return f.get(ctx, link, nil, browserHeader())
}

// FetchBoESeries downloads monthly IADB series as CSV.
func (f *Fetcher) FetchBoESeries(ctx context.Context, codes ...string) ([]byte, error) {
	q := url.Values{}
	q.Set("csv.x", "yes")
	q.Set("SeriesCodes", strings.Join(codes, ","))
	q.Set("UsingCodes", "Y")
	q.Set("Datefrom", f.opts.BoEDateFrom)
	q.Set("Dateto", f.opts.BoEDateTo)
	q.Set("CSVF", "TN")
	q.Set("VPD", "Y")

	h := browserHeader()
	h.Set("Accept", "*/*")
	h.Set("Referer", f.opts.Endpoints.BoEReferer)
	return f.get(ctx, f.opts.Endpoints.BoEIADB, q, h)
}

// Download records one raw file written by FetchAll.
type Download struct {
	File  string `json:"file"`
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// FetchAll downloads every raw source concurrently into dir using the file
// names ingest.ProcessRawDir expects. Results follow ingest.RawFiles order.
func (f *Fetcher) FetchAll(ctx context.Context, dir string) ([]Download, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create raw directory", err)
	}

	jobs := map[string]func(context.Context) ([]byte, error){
		ingest.GDPFile: func(ctx context.Context) ([]byte, error) {
			return f.FetchONSSeries(ctx, GDPSeriesURI)
		},
		ingest.UnemploymentFile: func(ctx context.Context) ([]byte, error) {
			return f.FetchONSSeries(ctx, UnemploymentSeriesURI)
		},
		ingest.HPIFile: f.FetchHPIWorkbook,
		ingest.BankRateFile: func(ctx context.Context) ([]byte, error) {
			return f.FetchBoESeries(ctx, ingest.BankRateCode)
		},
		ingest.Gilt10YFile: func(ctx context.Context) ([]byte, error) {
			return f.FetchBoESeries(ctx, ingest.Gilt10YCode)
		},
	}

	files := ingest.RawFiles()
	out := make([]Download, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range files {
		fetch := jobs[name]
		g.Go(func() error {
			data, err := fetch(gctx)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, data, 0644); err != nil {
				return apperrors.NewStorageError("failed to write "+path, err)
			}
			out[i] = Download{File: name, Path: path, Bytes: len(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f.logger.Info("raw_data_fetched", slog.String("dir", dir), slog.Int("files", len(out)))
	return out, nil
}
