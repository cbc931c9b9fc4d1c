package entity

// BalanceRecord represents one observation of a holding at a specific source.
// Amount is already converted from integer subunits and is always positive.
type BalanceRecord struct {
	Symbol      string  `json:"symbol" yaml:"symbol"`
	Amount      float64 `json:"amount" yaml:"amount"`
	Source      string  `json:"source" yaml:"source"`
	AccountType string  `json:"accountType,omitempty" yaml:"accountType,omitempty"`
}
