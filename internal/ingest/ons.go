// Package ingest turns the raw ONS and Bank of England downloads into the
// quarterly macro history used to fit satellite models.
//
// Every output series is a decimal: ONS and BoE publish percentages, which are
// divided by 100 on the way in.
package ingest

import (
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/quarter"
)

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// ParseONSQuarterly reads an ONS time-series generator CSV. The file opens
// with metadata rows; only rows whose first field is a quarter label such as
// "2008 Q1" are kept. Values are percentages; blanks and non-numeric cells
// become NaN.
func ParseONSQuarterly(r io.Reader, column string) (*panel.Frame, error) {
	records, err := newCSVReader(r).ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read ONS csv", err)
	}

	obs := make(map[quarter.Quarter]float64)
	for _, rec := range records {
		if len(rec) < 2 || !strings.Contains(rec[0], "Q") {
			continue
		}
		q, err := quarter.Parse(rec[0])
		if err != nil {
			continue
		}
		obs[q] = percent(rec[1])
	}
	if len(obs) == 0 {
		return nil, apperrors.NewParsingError("no quarterly observations in ONS csv for "+column, nil)
	}
	return seriesFrame(column, obs)
}

// percent parses a percentage cell into a decimal, NaN when not numeric.
func percent(cell string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return math.NaN()
	}
	return v / 100
}

func seriesFrame(column string, obs map[quarter.Quarter]float64) (*panel.Frame, error) {
	index := make([]quarter.Quarter, 0, len(obs))
	for q := range obs {
		index = append(index, q)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })
	values := make([]float64, len(index))
	for i, q := range index {
		values[i] = obs[q]
	}
	s, err := panel.NewSeries(column, index, values)
	if err != nil {
		return nil, err
	}
	return s.Frame()
}
