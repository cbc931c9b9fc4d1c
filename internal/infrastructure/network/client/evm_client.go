package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"
)

// EVMClient implements port.BlockchainClient for EVM-compatible chains.
type EVMClient struct {
	ethClient      *ethclient.Client
	netDef         entity.NetworkDefinition
	rpcCallTimeout time.Duration
	logger         *zap.Logger
}

var _ port.BlockchainClient = (*EVMClient)(nil)

// minimal ERC-20 ABI, balanceOf only
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
	erc20MethodID   []byte
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		erc20MethodID = parsedERC20ABI.Methods["balanceOf"].ID
	})
}

// NewEVMClient dials the primary RPC endpoint of the network, then each fallback in order.
func NewEVMClient(
	netDef entity.NetworkDefinition,
	connectionTimeout time.Duration,
	rpcCallTimeout time.Duration,
	logger *zap.Logger,
) (*EVMClient, error) {
	initParsedERC20ABI()
	log := logger.Named("EVMClient").With(zap.String("network", netDef.Identifier))

	rpcURLs := append([]string{netDef.PrimaryRPCURL}, netDef.FallbackRPCURLs...)
	var lastErr error
	for _, rpcURL := range rpcURLs {
		if rpcURL == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		ethClient, err := ethclient.DialContext(ctx, rpcURL)
		cancel()
		if err == nil {
			log.Debug("Connected to RPC endpoint", zap.String("rpc", rpcURL))
			return &EVMClient{ethClient: ethClient, netDef: netDef, rpcCallTimeout: rpcCallTimeout, logger: log}, nil
		}
		log.Warn("RPC endpoint unavailable", zap.String("rpc", rpcURL), zap.Error(err))
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no RPC endpoint configured")
	}
	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", netDef.Name, lastErr)
}

// GetBalances resolves native and ERC-20 balances in one JSON-RPC batch.
// The returned slice is index-aligned with requests; per-item failures are reported in Error.
func (c *EVMClient) GetBalances(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	if len(requests) == 0 {
		return []entity.BalanceResultItem{}, nil
	}

	batch := make([]rpc.BatchElem, 0, len(requests))
	slots := make([]int, 0, len(requests))
	results := make([]entity.BalanceResultItem, len(requests))
	for i, req := range requests {
		results[i] = entity.BalanceResultItem{
			TokenSymbol: req.TokenSymbol,
			Decimals:    req.TokenDecimals,
			IsNative:    req.Type == entity.NativeBalanceRequest,
		}
		wallet := common.HexToAddress(req.WalletAddress)

		switch req.Type {
		case entity.NativeBalanceRequest:
			batch = append(batch, rpc.BatchElem{
				Method: "eth_getBalance",
				Args:   []any{wallet, "latest"},
				Result: new(hexutil.Big),
			})
		case entity.TokenBalanceRequest:
			callData := append(append([]byte{}, erc20MethodID...), common.LeftPadBytes(wallet.Bytes(), 32)...)
			batch = append(batch, rpc.BatchElem{
				Method: "eth_call",
				Args: []any{map[string]any{
					"to":   common.HexToAddress(req.TokenAddress),
					"data": hexutil.Bytes(callData),
				}, "latest"},
				Result: new(hexutil.Bytes),
			})
		default:
			results[i].Error = fmt.Errorf("unknown balance request type %d for %s", req.Type, req.TokenSymbol)
			continue
		}
		slots = append(slots, i)
	}
	if len(batch) == 0 {
		return results, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()
	if err := c.ethClient.Client().BatchCallContext(callCtx, batch); err != nil {
		return nil, fmt.Errorf("%s RPC batch call failed: %w", c.netDef.Name, err)
	}

	for j, elem := range batch {
		i := slots[j]
		if elem.Error != nil {
			results[i].Error = fmt.Errorf("failed to fetch %s balance: %w", requests[i].TokenSymbol, elem.Error)
			continue
		}
		balance, err := decodeBalance(requests[i].Type, elem.Result)
		if err != nil {
			results[i].Error = fmt.Errorf("failed to decode %s balance: %w", requests[i].TokenSymbol, err)
			continue
		}
		results[i].Balance = balance
		if balance.Sign() > 0 {
			c.logger.Debug("Resolved balance",
				zap.String("symbol", requests[i].TokenSymbol),
				zap.String("balance", utils.FormatBigInt(balance, requests[i].TokenDecimals)))
		}
	}
	return results, nil
}

func decodeBalance(kind entity.BalanceRequestType, result any) (*big.Int, error) {
	switch kind {
	case entity.NativeBalanceRequest:
		v, ok := result.(*hexutil.Big)
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: unexpected eth_getBalance result", entity.ErrDecode)
		}
		return new(big.Int).Set((*big.Int)(v)), nil
	default:
		raw, ok := result.(*hexutil.Bytes)
		if !ok || raw == nil {
			return nil, fmt.Errorf("%w: unexpected eth_call result", entity.ErrDecode)
		}
		// a contract without code answers 0x
		if len(*raw) == 0 {
			return big.NewInt(0), nil
		}
		unpacked, err := parsedERC20ABI.Unpack("balanceOf", *raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrDecode, err)
		}
		if len(unpacked) == 0 {
			return nil, fmt.Errorf("%w: balanceOf returned no data", entity.ErrDecode)
		}
		balance, ok := unpacked[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("%w: balanceOf returned %T", entity.ErrDecode, unpacked[0])
		}
		return balance, nil
	}
}

// Definition returns the network definition for this client.
func (c *EVMClient) Definition() entity.NetworkDefinition {
	return c.netDef
}
