package solana

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/portto/solana-go-sdk/client"
	"github.com/portto/solana-go-sdk/rpc"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/chain"
	"portfolio_aggregator/internal/pkg/utils"
)

const (
	symbol          = "SOL"
	lamportDecimals = 9
	publicKeyLen    = 32
)

// Client queries native SOL balances over Solana JSON-RPC.
type Client struct {
	rpc    *client.Client
	logger *zap.Logger
}

var _ chain.Querier = (*Client)(nil)

// NewClient creates a new Solana client for the given RPC endpoint. A nil hc keeps the SDK default transport.
func NewClient(endpoint string, hc *http.Client, logger *zap.Logger) *Client {
	opts := []rpc.Option{rpc.WithEndpoint(endpoint)}
	if hc != nil {
		opts = append(opts, rpc.WithHTTPClient(hc))
	}
	return &Client{
		rpc:    client.New(opts...),
		logger: logger.Named("Solana"),
	}
}

// Query implements chain.Querier.
func (c *Client) Query(ctx context.Context, address string) ([]chain.Holding, error) {
	address = strings.TrimSpace(address)
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != publicKeyLen {
		return nil, fmt.Errorf("%w: SOL address must be a base58 encoded 32-byte public key", entity.ErrInvalidAddress)
	}

	lamports, err := c.rpc.GetBalance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("solana getBalance: %w", err)
	}
	c.logger.Debug("Resolved SOL balance", zap.Uint64("lamports", lamports))
	return []chain.Holding{{Symbol: symbol, Amount: utils.ScaleInt64(int64(lamports), lamportDecimals).InexactFloat64()}}, nil
}
