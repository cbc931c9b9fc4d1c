package entity

// WalletAddress is a stored on-chain address (or extended public key) to be tracked.
type WalletAddress struct {
	ID        string `json:"id" yaml:"id"`
	Chain     string `json:"chain" yaml:"chain"`
	Address   string `json:"address" yaml:"address"`
	Source    string `json:"source" yaml:"source"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
	HasAPIKey bool   `json:"hasApiKey" yaml:"-"`
	CreatedAt int64  `json:"createdAt" yaml:"createdAt"`
}
