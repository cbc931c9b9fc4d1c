package entity

// NetworkDefinition holds the configuration for an EVM-compatible network.
type NetworkDefinition struct {
	ChainID          uint64   `json:"chainId" yaml:"chainId"`
	Name             string   `json:"name" yaml:"name"`
	Identifier       string   `json:"identifier" yaml:"identifier"` // wallet chain code, e.g. "bsc"
	NativeSymbol     string   `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals         uint8    `json:"decimals" yaml:"decimals"`
	PrimaryRPCURL    string   `json:"primaryRpcUrl" yaml:"primaryRpcUrl"`
	FallbackRPCURLs  []string `json:"fallbackRpcUrls" yaml:"fallbackRpcUrls"`
	BlockExplorerURL string   `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
}
