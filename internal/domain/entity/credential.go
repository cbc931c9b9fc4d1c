package entity

// CredentialRef describes a stored exchange credential without its secrets.
type CredentialRef struct {
	SourceID string `json:"sourceId" yaml:"sourceId"` // e.g. "binance_cex"
	Kind     string `json:"kind" yaml:"kind"`         // exchange adapter kind, e.g. "binance"
	Label    string `json:"label" yaml:"label"`
}

// Credential is a decrypted exchange API credential.
type Credential struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase,omitempty"`
}
