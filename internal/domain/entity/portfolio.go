package entity

// SourceAmount is the per-origin breakdown of an AssetSummary.
type SourceAmount struct {
	Source      string  `json:"source"`
	AccountType string  `json:"accountType,omitempty"`
	Amount      float64 `json:"amount"`
}

// AssetSummary represents the aggregated holding of a single symbol across all sources.
type AssetSummary struct {
	Symbol      string         `json:"symbol"`
	TotalAmount float64        `json:"totalAmount"`
	PriceUSD    float64        `json:"priceUSD"`
	ValueUSD    float64        `json:"valueUSD"`
	Percentage  float64        `json:"percentage"`
	Sources     []SourceAmount `json:"sources"`
}

// PortfolioSnapshot is the read-only view published to presentation layers.
type PortfolioSnapshot struct {
	AssetSummaries []AssetSummary `json:"assetSummaries"`
	TotalValueUSD  float64        `json:"totalValueUSD"`
	Errors         []string       `json:"errors"`
	LastUpdated    *int64         `json:"lastUpdated"`
	IsLoading      bool           `json:"isLoading"`
}
