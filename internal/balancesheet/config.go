package balancesheet

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	apperrors "macrostress/internal/errors"
)

// shareTolerance bounds |Σ shares − 1|.
const shareTolerance = 1e-9

// BankSpec describes one bank in a configuration file. Ratios and shares are
// decimal fractions; amounts are £bn.
type BankSpec struct {
	Name              string             `yaml:"name" json:"name" validate:"required"`
	TotalEADBn        float64            `yaml:"total_ead_bn" json:"total_ead_bn" validate:"gt=0"`
	ReportedCET1Ratio float64            `yaml:"reported_cet1_ratio" json:"reported_cet1_ratio" validate:"gt=0,lt=1"`
	CET1Bn            *float64           `yaml:"cet1_bn,omitempty" json:"cet1_bn,omitempty" validate:"omitempty,gte=0"`
	PortfolioShares   map[string]float64 `yaml:"portfolio_shares" json:"portfolio_shares" validate:"required,dive,gte=0,lte=1"`
	RiskWeights       map[string]float64 `yaml:"risk_weights,omitempty" json:"risk_weights,omitempty" validate:"omitempty,dive,gte=0,lte=2"`
	Overlays          map[string]float64 `yaml:"overlays" json:"overlays" validate:"dive,gte=0,lte=1"`
}

// ConfigSpec is the raw, unvalidated configuration.
type ConfigSpec struct {
	RiskWeights map[string]float64 `yaml:"risk_weights" json:"risk_weights" validate:"required,dive,gte=0,lte=2"`
	LGD         map[string]float64 `yaml:"lgd" json:"lgd" validate:"required,dive,gte=0,lte=1"`
	Banks       []BankSpec         `yaml:"banks" json:"banks" validate:"required,min=1,dive"`
}

// Config is a validated, immutable bank configuration.
type Config struct {
	spec ConfigSpec
}

var validate = validator.New()

// NewConfig validates spec and returns an immutable Config. Structural and
// range violations are Validation errors; missing or unknown keys are Lookup
// errors.
func NewConfig(spec ConfigSpec) (*Config, error) {
	if err := validate.Struct(spec); err != nil {
		return nil, validationError(err)
	}
	if err := checkCategories("risk weights", spec.RiskWeights); err != nil {
		return nil, err
	}
	if err := checkCategories("LGD", spec.LGD); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(spec.Banks))
	for _, b := range spec.Banks {
		key := strings.ToLower(strings.TrimSpace(b.Name))
		if seen[key] {
			return nil, apperrors.NewValidationError("duplicate bank %q", b.Name)
		}
		seen[key] = true

		if err := checkCategories(b.Name+" shares", b.PortfolioShares); err != nil {
			return nil, err
		}
		if len(b.RiskWeights) > 0 {
			for k := range b.RiskWeights {
				if _, ok := spec.RiskWeights[k]; !ok {
					return nil, apperrors.NewLookupError("known portfolio categories for "+b.Name+" risk weights", k)
				}
			}
		}
		total := 0.0
		for _, c := range Categories() {
			total += b.PortfolioShares[c]
		}
		if math.Abs(total-1) > shareTolerance {
			return nil, apperrors.NewValidationError("portfolio shares for %s do not sum to 1 (got %.12g)", b.Name, total)
		}
	}
	return &Config{spec: cloneSpec(spec)}, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("invalid bank configuration: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (value %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return apperrors.NewValidationError("invalid bank configuration: %s", strings.Join(msgs, "; "))
}

// LoadConfig reads a YAML configuration file and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError("read bank config "+path, err)
	}
	var spec ConfigSpec
	if err := yaml.UnmarshalStrict(data, &spec); err != nil {
		return nil, apperrors.NewParsingError("parse bank config "+path, err)
	}
	return NewConfig(spec)
}

// Spec returns a copy of the validated specification.
func (c *Config) Spec() ConfigSpec { return cloneSpec(c.spec) }

// BankNames lists banks in configuration order.
func (c *Config) BankNames() []string {
	names := make([]string, len(c.spec.Banks))
	for i, b := range c.spec.Banks {
		names[i] = b.Name
	}
	return names
}

// MakeBank builds the named bank. CET1 defaults to the reported ratio applied
// to the bottom-up bucket RWA, so TotalRWA equals BucketRWA unless cet1_bn is
// set explicitly.
func MakeBank(cfg *Config, name string) (*Bank, error) {
	if cfg == nil {
		return nil, apperrors.NewValidationError("bank configuration is required")
	}
	var spec *BankSpec
	for i := range cfg.spec.Banks {
		if cfg.spec.Banks[i].Name == name {
			spec = &cfg.spec.Banks[i]
			break
		}
	}
	if spec == nil {
		return nil, apperrors.NewLookupError("bank", name)
	}

	buckets := make([]PortfolioBucket, 0, 4)
	bucketRWA := 0.0
	for _, c := range Categories() {
		rw := cfg.spec.RiskWeights[c]
		if override, ok := spec.RiskWeights[c]; ok {
			rw = override
		}
		bucket, err := NewBucket(c, spec.TotalEADBn*spec.PortfolioShares[c], rw, cfg.spec.LGD[c])
		if err != nil {
			return nil, fmt.Errorf("bank %s: %w", name, err)
		}
		buckets = append(buckets, bucket)
		bucketRWA += bucket.RWA()
	}

	cet1 := spec.ReportedCET1Ratio * bucketRWA
	if spec.CET1Bn != nil {
		cet1 = *spec.CET1Bn
	}
	return NewBank(spec.Name, cet1, spec.ReportedCET1Ratio, buckets, spec.Overlays)
}

// MakeBanks builds every configured bank in configuration order.
func MakeBanks(cfg *Config) ([]*Bank, error) {
	if cfg == nil {
		return nil, apperrors.NewValidationError("bank configuration is required")
	}
	banks := make([]*Bank, 0, len(cfg.spec.Banks))
	for _, name := range cfg.BankNames() {
		b, err := MakeBank(cfg, name)
		if err != nil {
			return nil, err
		}
		banks = append(banks, b)
	}
	return banks, nil
}

// SelectBanks returns the bank matching name case-insensitively, or every bank
// when name is blank.
func SelectBanks(banks []*Bank, name string) ([]*Bank, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return banks, nil
	}
	for _, b := range banks {
		if strings.ToLower(strings.TrimSpace(b.name)) == want {
			return []*Bank{b}, nil
		}
	}
	available := make([]string, len(banks))
	for i, b := range banks {
		available[i] = b.name
	}
	sort.Strings(available)
	err := apperrors.NewLookupError("bank", name)
	err.Message = fmt.Sprintf("unknown bank %q, available: %s", name, strings.Join(available, ", "))
	return nil, err.WithContext("available", available)
}

func cloneSpec(s ConfigSpec) ConfigSpec {
	out := ConfigSpec{
		RiskWeights: cloneMap(s.RiskWeights),
		LGD:         cloneMap(s.LGD),
		Banks:       make([]BankSpec, len(s.Banks)),
	}
	for i, b := range s.Banks {
		nb := b
		nb.PortfolioShares = cloneMap(b.PortfolioShares)
		nb.RiskWeights = cloneMap(b.RiskWeights)
		nb.Overlays = cloneMap(b.Overlays)
		if b.CET1Bn != nil {
			v := *b.CET1Bn
			nb.CET1Bn = &v
		}
		out.Banks[i] = nb
	}
	return out
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
