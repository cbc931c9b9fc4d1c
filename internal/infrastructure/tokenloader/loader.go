package tokenloader

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"
)

// TokenFileLoader implements port.TokenProvider over a directory of <identifier>.json files.
type TokenFileLoader struct {
	tokenDirPath string
	logger       port.Logger
}

var _ port.TokenProvider = (*TokenFileLoader)(nil)

// NewTokenLoader creates a new TokenFileLoader.
func NewTokenLoader(tokenDirPath string, logger port.Logger) *TokenFileLoader {
	return &TokenFileLoader{tokenDirPath: tokenDirPath, logger: logger}
}

// GetTokensByNetwork reads the token list of every given network, keyed by identifier.
// A missing file means no tokens; tokens whose chain id does not match the network are skipped.
func (l *TokenFileLoader) GetTokensByNetwork(networks []entity.NetworkDefinition) (map[string][]entity.TokenInfo, error) {
	out := make(map[string][]entity.TokenInfo, len(networks))
	for _, def := range networks {
		path := filepath.Join(l.tokenDirPath, def.Identifier+".json")
		tokens, err := utils.LoadTokensFromJSON(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load tokens for %s from %s: %w", def.Identifier, path, err)
		}

		valid := make([]entity.TokenInfo, 0, len(tokens))
		for _, token := range tokens {
			if token.ChainID != def.ChainID {
				l.logger.Warn("Token has mismatched chain id, skipping",
					"file", path, "symbol", token.Symbol, "token_chain_id", token.ChainID, "expected_chain_id", def.ChainID)
				continue
			}
			valid = append(valid, token)
		}
		if len(valid) > 0 {
			out[def.Identifier] = valid
			l.logger.Debug("Tokens loaded", "network", def.Identifier, "count", len(valid))
		}
	}
	return out, nil
}
