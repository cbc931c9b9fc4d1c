package bitcoin

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/chain"
	"portfolio_aggregator/internal/infrastructure/httpclient"
	"portfolio_aggregator/internal/pkg/utils"
)

const (
	symbol      = "BTC"
	satDecimals = 8

	gapLimit = 20
	maxIndex = 200
	// BIP84 account-level keys exported by hardware wallets sit at depth 3 (m/84'/0'/0').
	accountDepth = 3
)

var (
	extendedKeyPattern = regexp.MustCompile(`^[xyz]pub`)
	derivationChains   = []uint32{0, 1} // receive, change
)

type addressBalance struct {
	FinalBalance int64 `json:"final_balance"`
	NTx          int64 `json:"n_tx"`
}

type multiAddrResponse struct {
	Wallet *struct {
		FinalBalance int64 `json:"final_balance"`
	} `json:"wallet"`
}

// Client queries BTC balances from blockchain.info.
type Client struct {
	http    *httpclient.Client
	baseURL string
	logger  *zap.Logger
}

var _ chain.Querier = (*Client)(nil)

// NewClient creates a new blockchain.info client.
func NewClient(http *httpclient.Client, baseURL string, logger *zap.Logger) *Client {
	return &Client{
		http:    http,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Named("BlockchainInfo"),
	}
}

// Query implements chain.Querier for plain addresses and extended public keys.
func (c *Client) Query(ctx context.Context, address string) ([]chain.Holding, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: empty BTC address", entity.ErrInvalidAddress)
	}

	var satoshis int64
	var err error
	if extendedKeyPattern.MatchString(address) {
		satoshis, err = c.extendedKeyBalance(ctx, address)
	} else {
		satoshis, err = c.addressBalance(ctx, address)
	}
	if err != nil {
		return nil, err
	}
	return []chain.Holding{{Symbol: symbol, Amount: utils.ScaleInt64(satoshis, satDecimals).InexactFloat64()}}, nil
}

func (c *Client) addressBalance(ctx context.Context, address string) (int64, error) {
	balances, err := c.balances(ctx, []string{address})
	if err != nil {
		return 0, err
	}
	info, ok := balances[address]
	if !ok {
		return 0, fmt.Errorf("%w: address missing from blockchain.info response", entity.ErrDecode)
	}
	return info.FinalBalance, nil
}

func (c *Client) extendedKeyBalance(ctx context.Context, encoded string) (int64, error) {
	key, err := ParseExtendedKey(encoded)
	if err != nil {
		return 0, err
	}

	switch {
	case key.Kind == KindYpub:
		return 0, fmt.Errorf("%w: BIP49 (ypub) keys are not supported, use zpub or xpub", entity.ErrUnsupportedAddress)
	case key.Kind == KindZpub, key.Depth() == accountDepth:
		return c.scanSegwit(ctx, key)
	default:
		return c.multiAddrBalance(ctx, encoded)
	}
}

// multiAddrBalance lets blockchain.info derive legacy BIP44 addresses itself.
func (c *Client) multiAddrBalance(ctx context.Context, xpub string) (int64, error) {
	var resp multiAddrResponse
	requestURL := fmt.Sprintf("%s/multiaddr?active=%s&n=0", c.baseURL, url.QueryEscape(xpub))
	if err := c.http.GetJSON(ctx, requestURL, nil, &resp); err != nil {
		return 0, fmt.Errorf("blockchain.info multiaddr: %w", err)
	}
	if resp.Wallet == nil {
		return 0, fmt.Errorf("%w: multiaddr response has no wallet", entity.ErrDecode)
	}
	return resp.Wallet.FinalBalance, nil
}

// scanSegwit derives P2WPKH addresses on the receive and change chains until
// gapLimit consecutive unused addresses are seen or maxIndex is reached.
func (c *Client) scanSegwit(ctx context.Context, account *ExtendedKey) (int64, error) {
	var total int64
	for _, branch := range derivationChains {
		chainKey, err := account.Child(branch)
		if err != nil {
			return 0, err
		}

		consecutiveEmpty := 0
		for index := uint32(0); consecutiveEmpty < gapLimit && index < maxIndex; {
			batchSize := min(uint32(gapLimit), maxIndex-index)
			addresses := make([]string, 0, batchSize)
			for i := uint32(0); i < batchSize; i++ {
				child, err := chainKey.Child(index + i)
				if err != nil {
					return 0, err
				}
				addr, err := child.P2WPKHAddress()
				if err != nil {
					return 0, err
				}
				addresses = append(addresses, addr)
			}

			balances, err := c.balances(ctx, addresses)
			if err != nil {
				return 0, err
			}

			active := false
			for _, addr := range addresses {
				info, ok := balances[addr]
				if ok && info.NTx > 0 {
					consecutiveEmpty = 0
					active = true
					total += info.FinalBalance
					continue
				}
				consecutiveEmpty++
			}
			index += batchSize
			if !active {
				break
			}
		}
		c.logger.Debug("Scanned derivation chain", zap.Uint32("chain", branch), zap.Int64("satoshis", total))
	}
	return total, nil
}

func (c *Client) balances(ctx context.Context, addresses []string) (map[string]addressBalance, error) {
	var resp map[string]addressBalance
	requestURL := fmt.Sprintf("%s/balance?active=%s", c.baseURL, url.QueryEscape(strings.Join(addresses, "|")))
	if err := c.http.GetJSON(ctx, requestURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("blockchain.info balance: %w", err)
	}
	return resp, nil
}
