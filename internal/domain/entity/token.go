package entity

// TokenInfo holds the details of an ERC-20 token tracked on an EVM network.
type TokenInfo struct {
	ChainID  uint64 `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}
