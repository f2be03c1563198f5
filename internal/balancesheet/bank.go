package balancesheet

import (
	"encoding/json"
	"sort"

	apperrors "macrostress/internal/errors"
)

// Bank is an immutable stylised balance sheet.
//
// Total RWA is derived from the reported CET1 ratio, not from bucket risk
// weights: TotalRWA = CET1 / reported ratio. BucketRWA reports the bottom-up
// figure separately.
type Bank struct {
	name          string
	cet1          float64
	reportedRatio float64
	buckets       map[string]PortfolioBucket
	overlays      map[string]float64
}

// NewBank validates and builds a bank. The buckets must cover every category
// exactly once; overlays must lie in [0,1]; the reported ratio in (0,1).
func NewBank(name string, cet1, reportedRatio float64, buckets []PortfolioBucket, overlays map[string]float64) (*Bank, error) {
	if name == "" {
		return nil, apperrors.NewValidationError("bank name is required")
	}
	if !(cet1 >= 0) {
		return nil, apperrors.NewValidationError("bank %s: CET1 must be non-negative, got %g", name, cet1)
	}
	if !(reportedRatio > 0 && reportedRatio < 1) {
		return nil, apperrors.NewValidationError("bank %s: reported CET1 ratio must be in (0,1), got %g", name, reportedRatio)
	}

	b := &Bank{
		name:          name,
		cet1:          cet1,
		reportedRatio: reportedRatio,
		buckets:       make(map[string]PortfolioBucket, len(buckets)),
		overlays:      make(map[string]float64, len(overlays)),
	}
	for _, bucket := range buckets {
		if _, dup := b.buckets[bucket.name]; dup {
			return nil, apperrors.NewValidationError("bank %s: duplicate bucket %s", name, bucket.name)
		}
		b.buckets[bucket.name] = bucket
	}
	if err := checkCategories(name, b.buckets); err != nil {
		return nil, err
	}
	for k, v := range overlays {
		if !(v >= 0 && v <= 1) {
			return nil, apperrors.NewValidationError("bank %s: overlay %s must be in [0,1], got %g", name, k, v)
		}
		b.overlays[k] = v
	}
	return b, nil
}

func checkCategories[T any](bank string, got map[string]T) error {
	var missing, extra []string
	expected := make(map[string]bool, 4)
	for _, c := range Categories() {
		expected[c] = true
		if _, ok := got[c]; !ok {
			missing = append(missing, c)
		}
	}
	for k := range got {
		if !expected[k] {
			extra = append(extra, k)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewLookupError("portfolio buckets for "+bank, missing...)
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return apperrors.NewLookupError("known portfolio categories for "+bank+" buckets", extra...)
	}
	return nil
}

func (b *Bank) Name() string { return b.name }

// CET1 is the starting CET1 capital in £bn.
func (b *Bank) CET1() float64 { return b.cet1 }

// CET1Ratio is the reported ratio as a decimal.
func (b *Bank) CET1Ratio() float64 { return b.reportedRatio }

// TotalRWA is CET1 / reported ratio.
func (b *Bank) TotalRWA() float64 { return b.cet1 / b.reportedRatio }

// TotalEAD sums bucket EAD.
func (b *Bank) TotalEAD() float64 {
	total := 0.0
	for _, c := range Categories() {
		total += b.buckets[c].ead
	}
	return total
}

// BucketRWA sums EAD × risk weight across buckets. Informational only.
func (b *Bank) BucketRWA() float64 {
	total := 0.0
	for _, c := range Categories() {
		total += b.buckets[c].RWA()
	}
	return total
}

// Bucket returns the named bucket.
func (b *Bank) Bucket(name string) (PortfolioBucket, error) {
	bucket, ok := b.buckets[name]
	if !ok {
		return PortfolioBucket{}, apperrors.NewLookupError("bucket for "+b.name, name)
	}
	return bucket, nil
}

// Buckets returns the buckets in category order.
func (b *Bank) Buckets() []PortfolioBucket {
	out := make([]PortfolioBucket, 0, len(b.buckets))
	for _, c := range Categories() {
		out = append(out, b.buckets[c])
	}
	return out
}

// EADByBucket maps bucket name to EAD.
func (b *Bank) EADByBucket() map[string]float64 {
	out := make(map[string]float64, len(b.buckets))
	for k, v := range b.buckets {
		out[k] = v.ead
	}
	return out
}

// Overlays returns a copy of the overlay shares.
func (b *Bank) Overlays() map[string]float64 {
	out := make(map[string]float64, len(b.overlays))
	for k, v := range b.overlays {
		out[k] = v
	}
	return out
}

// OverlayKeys lists overlay names in sorted order.
func (b *Bank) OverlayKeys() []string {
	keys := make([]string, 0, len(b.overlays))
	for k := range b.overlays {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BucketView is the serialisable form of a bucket.
type BucketView struct {
	Name       string  `json:"name"`
	EADBn      float64 `json:"ead_bn"`
	RiskWeight float64 `json:"risk_weight"`
	RWABn      float64 `json:"rwa_bn"`
	LGD        float64 `json:"lgd"`
}

// View is the serialisable form of a bank.
type View struct {
	Name        string             `json:"name"`
	TotalEADBn  float64            `json:"total_ead_bn"`
	TotalRWABn  float64            `json:"total_rwa_bn"`
	CET1Bn      float64            `json:"cet1_bn"`
	CET1Ratio   float64            `json:"cet1_ratio"`
	BucketRWABn float64            `json:"bucket_rwa_bn"`
	Overlays    map[string]float64 `json:"overlays"`
	Buckets     []BucketView       `json:"buckets"`
}

// View returns a snapshot suitable for JSON and tables.
func (b *Bank) View() View {
	v := View{
		Name:        b.name,
		TotalEADBn:  b.TotalEAD(),
		TotalRWABn:  b.TotalRWA(),
		CET1Bn:      b.cet1,
		CET1Ratio:   b.reportedRatio,
		BucketRWABn: b.BucketRWA(),
		Overlays:    b.Overlays(),
	}
	for _, bucket := range b.Buckets() {
		v.Buckets = append(v.Buckets, BucketView{
			Name:       bucket.name,
			EADBn:      bucket.ead,
			RiskWeight: bucket.rw,
			RWABn:      bucket.RWA(),
			LGD:        bucket.lgd,
		})
	}
	return v
}

// MarshalJSON implements json.Marshaler.
func (b *Bank) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.View())
}
