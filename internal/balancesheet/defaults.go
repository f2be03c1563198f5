package balancesheet

// Bank names in the default configuration.
const (
	HSBC               = "HSBC"
	LloydsBankingGroup = "Lloyds Banking Group"
	StandardChartered  = "Standard Chartered"
)

// DefaultSpec returns the stylised three-bank configuration.
func DefaultSpec() ConfigSpec {
	return ConfigSpec{
		RiskWeights: map[string]float64{
			MortgagesOO:       0.25,
			ConsumerUnsecured: 0.5,
			SMELoans:          0.75,
			LargeCorpLoans:    1.0,
		},
		LGD: map[string]float64{
			MortgagesOO:       0.2,
			ConsumerUnsecured: 0.8,
			SMELoans:          0.6,
			LargeCorpLoans:    0.4,
		},
		Banks: []BankSpec{
			{
				Name:              HSBC,
				TotalEADBn:        800,
				ReportedCET1Ratio: 0.14,
				PortfolioShares: map[string]float64{
					MortgagesOO: 0.20, ConsumerUnsecured: 0.15, SMELoans: 0.25, LargeCorpLoans: 0.40,
				},
				Overlays: map[string]float64{
					HighLTVShareOfMortgages: 0.18, ExportShareOfLargeCorp: 0.40, EnergyIntensiveShareOfCorp: 0.12,
				},
			},
			{
				Name:              LloydsBankingGroup,
				TotalEADBn:        600,
				ReportedCET1Ratio: 0.15,
				PortfolioShares: map[string]float64{
					MortgagesOO: 0.55, ConsumerUnsecured: 0.25, SMELoans: 0.15, LargeCorpLoans: 0.05,
				},
				Overlays: map[string]float64{
					HighLTVShareOfMortgages: 0.25, ExportShareOfLargeCorp: 0.15, EnergyIntensiveShareOfCorp: 0.10,
				},
			},
			{
				Name:              StandardChartered,
				TotalEADBn:        400,
				ReportedCET1Ratio: 0.13,
				PortfolioShares: map[string]float64{
					MortgagesOO: 0.05, ConsumerUnsecured: 0.05, SMELoans: 0.30, LargeCorpLoans: 0.60,
				},
				Overlays: map[string]float64{
					HighLTVShareOfMortgages: 0.10, ExportShareOfLargeCorp: 0.55, EnergyIntensiveShareOfCorp: 0.18,
				},
			},
		},
	}
}

// DefaultConfig validates DefaultSpec.
func DefaultConfig() (*Config, error) {
	return NewConfig(DefaultSpec())
}
