package entity

import "math/big"

// BalanceRequestType defines the type of balance request.
type BalanceRequestType int

const (
	// NativeBalanceRequest requests the native balance of a wallet.
	NativeBalanceRequest BalanceRequestType = iota
	// TokenBalanceRequest requests the ERC-20 balance of a wallet.
	TokenBalanceRequest
)

// BalanceRequestItem represents a single item in a JSON-RPC batch.
type BalanceRequestItem struct {
	Type          BalanceRequestType
	WalletAddress string
	TokenAddress  string
	TokenSymbol   string
	TokenDecimals uint8
}

// BalanceResultItem represents the result of a single batch item.
type BalanceResultItem struct {
	TokenSymbol string
	Decimals    uint8
	IsNative    bool
	Balance     *big.Int
	Error       error
}
