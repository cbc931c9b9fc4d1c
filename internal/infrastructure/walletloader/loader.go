package walletloader

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

// Entry is one line of a wallet import file: "<source> <chain> <address> [label...]".
type Entry struct {
	Source  string
	Chain   string
	Address string
	Label   string
}

// Adder is the wallet store surface used by Import.
type Adder interface {
	Add(source, chain, address, label, apiKey string) (entity.WalletAddress, error)
}

// WalletFileLoader reads plain-text wallet lists.
type WalletFileLoader struct {
	filePath string
	logger   port.Logger
}

// NewWalletFileLoader creates a new WalletFileLoader.
func NewWalletFileLoader(filePath string, logger port.Logger) *WalletFileLoader {
	return &WalletFileLoader{filePath: filePath, logger: logger}
}

// Entries parses the file. Blank lines and lines starting with # are skipped, as are lines with fewer than three fields.
func (l *WalletFileLoader) Entries() ([]Entry, error) {
	file, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet file %s: %w", l.filePath, err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			l.logger.Warn("Skipping malformed wallet line", "file", l.filePath, "line_number", lineNum)
			continue
		}
		entries = append(entries, Entry{
			Source:  fields[0],
			Chain:   fields[1],
			Address: fields[2],
			Label:   strings.Join(fields[3:], " "),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning wallet file %s: %w", l.filePath, err)
	}
	return entries, nil
}

// Import adds every entry of the file to the store and returns how many were added.
// A missing file imports nothing. Rejected entries, duplicates included, are logged and skipped.
func (l *WalletFileLoader) Import(store Adder) (int, error) {
	entries, err := l.Entries()
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	added := 0
	for _, e := range entries {
		if _, err := store.Add(e.Source, e.Chain, e.Address, e.Label, ""); err != nil {
			l.logger.Debug("Wallet not imported", "address", e.Address, "chain", e.Chain, "error", err)
			continue
		}
		added++
	}
	l.logger.Info("Wallet file imported", "path", l.filePath, "entries", len(entries), "added", added)
	return added, nil
}
