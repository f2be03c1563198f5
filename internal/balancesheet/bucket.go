// Package balancesheet builds the stylised bank balance sheets that the capital
// engine runs through each scenario.
//
// A Bank is assembled from an immutable Config that is validated once, in
// NewConfig. Banks themselves are read-only after construction.
package balancesheet

import (
	"math"
	"sort"

	apperrors "macrostress/internal/errors"
)

// Portfolio categories. Every bank carries exactly one bucket per category.
const (
	MortgagesOO       = "mortgages_oo"
	ConsumerUnsecured = "consumer_unsecured"
	SMELoans          = "sme_loans"
	LargeCorpLoans    = "large_corp_loans"
)

// Overlay keys used for supplementary reporting.
const (
	HighLTVShareOfMortgages    = "high_ltv_share_of_mortgages"
	ExportShareOfLargeCorp     = "export_share_of_large_corp"
	EnergyIntensiveShareOfCorp = "energy_intensive_share_of_corp"
)

// Categories returns the portfolio categories in canonical order.
func Categories() []string {
	return []string{MortgagesOO, ConsumerUnsecured, SMELoans, LargeCorpLoans}
}

// OrderBuckets sorts names into canonical category order, with any unknown
// names after them in lexical order.
func OrderBuckets(names []string) []string {
	rank := make(map[string]int, 4)
	for i, c := range Categories() {
		rank[c] = i
	}
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// PortfolioBucket is one exposure class of a bank. Amounts are £bn.
type PortfolioBucket struct {
	name string
	ead  float64
	rw   float64
	lgd  float64
}

// NewBucket validates EAD >= 0, risk weight in [0,2] and LGD in [0,1].
func NewBucket(name string, ead, riskWeight, lgd float64) (PortfolioBucket, error) {
	switch {
	case name == "":
		return PortfolioBucket{}, apperrors.NewValidationError("bucket name is required")
	case !(ead >= 0) || math.IsInf(ead, 0):
		return PortfolioBucket{}, apperrors.NewValidationError("bucket %s: EAD must be non-negative, got %g", name, ead)
	case !(riskWeight >= 0 && riskWeight <= 2):
		return PortfolioBucket{}, apperrors.NewValidationError("bucket %s: risk weight must be in [0,2], got %g", name, riskWeight)
	case !(lgd >= 0 && lgd <= 1):
		return PortfolioBucket{}, apperrors.NewValidationError("bucket %s: LGD must be in [0,1], got %g", name, lgd)
	}
	return PortfolioBucket{name: name, ead: ead, rw: riskWeight, lgd: lgd}, nil
}

func (b PortfolioBucket) Name() string        { return b.name }
func (b PortfolioBucket) EAD() float64        { return b.ead }
func (b PortfolioBucket) RiskWeight() float64 { return b.rw }
func (b PortfolioBucket) LGD() float64        { return b.lgd }

// RWA is EAD × risk weight.
func (b PortfolioBucket) RWA() float64 { return b.ead * b.rw }
