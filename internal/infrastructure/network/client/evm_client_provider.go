package client

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
)

const defaultConnectionTimeout = 10 * time.Second

// evmClientProvider implements port.BlockchainClientProvider. Clients are dialled once per network.
type evmClientProvider struct {
	mu                sync.Mutex
	clients           map[string]port.BlockchainClient
	connectionTimeout time.Duration
	rpcCallTimeout    time.Duration
	logger            *zap.Logger
}

// NewEVMClientProvider creates a new EVMClientProvider.
func NewEVMClientProvider(cfg *configloader.Config, logger *zap.Logger) port.BlockchainClientProvider {
	rpcTimeout := time.Duration(cfg.Performance.RPCCallTimeoutSeconds) * time.Second
	if rpcTimeout <= 0 {
		rpcTimeout = 10 * time.Second
	}
	return &evmClientProvider{
		clients:           make(map[string]port.BlockchainClient),
		connectionTimeout: defaultConnectionTimeout,
		rpcCallTimeout:    rpcTimeout,
		logger:            logger,
	}
}

// GetClient returns the cached client of the network, dialling it on first use.
func (p *evmClientProvider) GetClient(netDef entity.NetworkDefinition) (port.BlockchainClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[netDef.Identifier]; ok {
		return c, nil
	}

	c, err := NewEVMClient(netDef, p.connectionTimeout, p.rpcCallTimeout, p.logger)
	if err != nil {
		p.logger.Error("Failed to create EVM client", zap.String("network", netDef.Identifier), zap.Error(err))
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", netDef.Name, err)
	}
	p.clients[netDef.Identifier] = c
	p.logger.Info("EVM client created", zap.String("network", netDef.Identifier), zap.String("rpc", netDef.PrimaryRPCURL))
	return c, nil
}
