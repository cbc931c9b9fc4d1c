package utils

import (
	"os"

	jsoniter "github.com/json-iterator/go"

	"portfolio_aggregator/internal/domain/entity"
)

// LoadTokensFromJSON reads a JSON file holding a list of tokens.
func LoadTokensFromJSON(filePath string) ([]entity.TokenInfo, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var tokens []entity.TokenInfo
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}
