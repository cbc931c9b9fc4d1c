package networkdefinition

import (
	"sort"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
)

// NetworkDefinitionProvider serves the EVM side chains a wallet can be registered on.
// Identifiers double as wallet chain codes.
type NetworkDefinitionProvider struct {
	logger  port.Logger
	defs    map[string]entity.NetworkDefinition
	ordered []entity.NetworkDefinition
}

var _ port.NetworkDefinitionProvider = (*NetworkDefinitionProvider)(nil)

// Predefined network definitions
var (
	BSC = entity.NetworkDefinition{
		ChainID:          56,
		Name:             "BNB Smart Chain",
		Identifier:       "bsc",
		NativeSymbol:     "BNB",
		Decimals:         18,
		PrimaryRPCURL:    "https://1rpc.io/bnb",
		FallbackRPCURLs:  []string{"https://bsc-dataseed2.binance.org/", "https://bsc.publicnode.com"},
		BlockExplorerURL: "https://bscscan.com",
	}
	Polygon = entity.NetworkDefinition{
		ChainID:          137,
		Name:             "Polygon PoS",
		Identifier:       "polygon",
		NativeSymbol:     "POL",
		Decimals:         18,
		PrimaryRPCURL:    "https://polygon-rpc.com/",
		FallbackRPCURLs:  []string{"https://rpc.ankr.com/polygon", "https://polygon.publicnode.com"},
		BlockExplorerURL: "https://polygonscan.com",
	}
	Arbitrum = entity.NetworkDefinition{
		ChainID:          42161,
		Name:             "Arbitrum One",
		Identifier:       "arbitrum",
		NativeSymbol:     "ETH",
		Decimals:         18,
		PrimaryRPCURL:    "https://arb1.arbitrum.io/rpc",
		FallbackRPCURLs:  []string{"https://arbitrum.llamarpc.com", "https://arbitrum.publicnode.com"},
		BlockExplorerURL: "https://arbiscan.io",
	}
	Avalanche = entity.NetworkDefinition{
		ChainID:          43114,
		Name:             "Avalanche C-Chain",
		Identifier:       "avalanche",
		NativeSymbol:     "AVAX",
		Decimals:         18,
		PrimaryRPCURL:    "https://api.avax.network/ext/bc/C/rpc",
		FallbackRPCURLs:  []string{"https://avalanche.public-rpc.com", "https://rpc.ankr.com/avalanche"},
		BlockExplorerURL: "https://snowtrace.io",
	}
	Base = entity.NetworkDefinition{
		ChainID:          8453,
		Name:             "Base Mainnet",
		Identifier:       "base",
		NativeSymbol:     "ETH",
		Decimals:         18,
		PrimaryRPCURL:    "https://1rpc.io/base",
		FallbackRPCURLs:  []string{"https://base.publicnode.com", "https://base.llamarpc.com"},
		BlockExplorerURL: "https://basescan.org",
	}
	Optimism = entity.NetworkDefinition{
		ChainID:          10,
		Name:             "OP Mainnet",
		Identifier:       "optimism",
		NativeSymbol:     "ETH",
		Decimals:         18,
		PrimaryRPCURL:    "https://op-pokt.nodies.app",
		FallbackRPCURLs:  []string{"https://optimism.publicnode.com", "https://rpc.ankr.com/optimism"},
		BlockExplorerURL: "https://optimistic.etherscan.io",
	}
	Fantom = entity.NetworkDefinition{
		ChainID:          250,
		Name:             "Fantom Opera",
		Identifier:       "fantom",
		NativeSymbol:     "FTM",
		Decimals:         18,
		PrimaryRPCURL:    "https://1rpc.io/ftm",
		FallbackRPCURLs:  []string{"https://fantom.publicnode.com", "https://rpc.ankr.com/fantom"},
		BlockExplorerURL: "https://ftmscan.com",
	}
	Gnosis = entity.NetworkDefinition{
		ChainID:          100,
		Name:             "Gnosis Chain",
		Identifier:       "gnosis",
		NativeSymbol:     "XDAI",
		Decimals:         18,
		PrimaryRPCURL:    "https://rpc.gnosischain.com",
		FallbackRPCURLs:  []string{"https://rpc.ankr.com/gnosis", "https://gnosis.publicnode.com"},
		BlockExplorerURL: "https://gnosisscan.io",
	}
	Linea = entity.NetworkDefinition{
		ChainID:          59144,
		Name:             "Linea Mainnet",
		Identifier:       "linea",
		NativeSymbol:     "ETH",
		Decimals:         18,
		PrimaryRPCURL:    "https://rpc.linea.build",
		FallbackRPCURLs:  []string{"https://linea.blockpi.network/v1/rpc/public"},
		BlockExplorerURL: "https://lineascan.build",
	}
	Mantle = entity.NetworkDefinition{
		ChainID:          5000,
		Name:             "Mantle Network",
		Identifier:       "mantle",
		NativeSymbol:     "MNT",
		Decimals:         18,
		PrimaryRPCURL:    "https://rpc.mantle.xyz",
		BlockExplorerURL: "https://explorer.mantle.xyz",
	}
	Scroll = entity.NetworkDefinition{
		ChainID:          534352,
		Name:             "Scroll",
		Identifier:       "scroll",
		NativeSymbol:     "ETH",
		Decimals:         18,
		PrimaryRPCURL:    "https://rpc.scroll.io",
		FallbackRPCURLs:  []string{"https://scroll.blockpi.network/v1/rpc/public"},
		BlockExplorerURL: "https://scrollscan.com",
	}
	ZkSync = entity.NetworkDefinition{
		ChainID:          324,
		Name:             "zkSync Era Mainnet",
		Identifier:       "zksync",
		NativeSymbol:     "ETH",
		Decimals:         18,
		PrimaryRPCURL:    "https://mainnet.era.zksync.io",
		BlockExplorerURL: "https://explorer.zksync.io",
	}
)

// KnownDefinitions lists every built-in network.
func KnownDefinitions() []entity.NetworkDefinition {
	return []entity.NetworkDefinition{BSC, Polygon, Arbitrum, Avalanche, Base, Optimism, Fantom, Gnosis, Linea, Mantle, Scroll, ZkSync}
}

// NewNetworkDefinitionProvider builds the provider from the built-in table and applies RPC overrides.
// An override for an unknown identifier is logged and ignored.
func NewNetworkDefinitionProvider(log port.Logger, overrides []configloader.NetworkNodeConfig) *NetworkDefinitionProvider {
	p := &NetworkDefinitionProvider{
		logger: log,
		defs:   make(map[string]entity.NetworkDefinition),
	}
	for _, def := range KnownDefinitions() {
		p.defs[def.Identifier] = def
	}

	for _, o := range overrides {
		id := strings.ToLower(strings.TrimSpace(o.Identifier))
		def, ok := p.defs[id]
		if !ok {
			log.Warn("RPC override for unknown network ignored", "network", o.Identifier)
			continue
		}
		def.PrimaryRPCURL = o.RPCURL
		if len(o.FallbackRPCURLs) > 0 {
			def.FallbackRPCURLs = append([]string{}, o.FallbackRPCURLs...)
		}
		p.defs[id] = def
		log.Debug("RPC override applied", "network", id, "rpc", o.RPCURL)
	}

	for _, def := range p.defs {
		p.ordered = append(p.ordered, def)
	}
	sort.Slice(p.ordered, func(i, j int) bool { return p.ordered[i].Identifier < p.ordered[j].Identifier })

	log.Info("Network definitions loaded", "networks", len(p.ordered))
	return p
}

// GetAllNetworkDefinitions returns every network sorted by identifier.
func (p *NetworkDefinitionProvider) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	if p == nil {
		return []entity.NetworkDefinition{}
	}
	return append([]entity.NetworkDefinition{}, p.ordered...)
}

// GetNetworkDefinitionByName looks a network up by identifier, case-insensitively.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByName(identifier string) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	def, ok := p.defs[strings.ToLower(strings.TrimSpace(identifier))]
	return def, ok
}
