// Package watchlist models the set of trader addresses to poll.
package watchlist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one tracked trader. Identity is the address; the label is
// display-only and may collide across entries.
type Entry struct {
	Label   string `yaml:"label"`
	Address string `yaml:"address"`
}

// Clean trims entries, drops those without an address, and defaults the
// label to the address. Invalid entries are filtered, never an error.
func Clean(entries []Entry) []Entry {
	cleaned := make([]Entry, 0, len(entries))
	for _, e := range entries {
		addr := strings.TrimSpace(e.Address)
		if addr == "" {
			continue
		}
		label := strings.TrimSpace(e.Label)
		if label == "" {
			label = addr
		}
		cleaned = append(cleaned, Entry{Label: label, Address: addr})
	}
	return cleaned
}

// Addresses returns the address of each entry, duplicates included.
func Addresses(entries []Entry) []string {
	addrs := make([]string, len(entries))
	for i, e := range entries {
		addrs[i] = e.Address
	}
	return addrs
}

// Load reads a watch-list file. YAML files carry explicit label/address
// pairs; txt and csv files hold bare addresses (one per line or
// comma-separated) which get sequential labels.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist failed: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return parseText(data), nil
	}
}

func parseYAML(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse watchlist yaml failed: %w", err)
	}
	return Clean(entries), nil
}

func parseText(data []byte) []Entry {
	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		for _, item := range strings.Split(line, ",") {
			addr := strings.TrimSpace(item)
			if addr == "" {
				continue
			}
			entries = append(entries, Entry{
				Label:   fmt.Sprintf("Trader %d", len(entries)+1),
				Address: addr,
			})
		}
	}
	return entries
}
