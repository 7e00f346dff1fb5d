// Package app implements the item schema service: display names and
// existence checks for SKUs, backed by an optional local items file.
package app

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
	"github.com/autobot-tf/pricewatch/internal/apperror"
	"github.com/autobot-tf/pricewatch/internal/logger"
)

var killstreakPrefixes = map[int]string{
	1: "Killstreak",
	2: "Specialized Killstreak",
	3: "Professional Killstreak",
}

// Service resolves item names from a defindex-to-name table loaded at
// startup. With no table loaded it degrades to echoing SKUs.
type Service struct {
	log   logger.LoggerInterface
	items map[int]string
}

// NewService creates a service with an empty table.
func NewService(log logger.LoggerInterface) *Service {
	return &Service{log: log, items: make(map[int]string)}
}

// LoadFile reads a JSON items file mapping defindex to base item name.
// An empty path is a no-op.
func (s *Service) LoadFile(ctx context.Context, path string) error {
	if path == "" {
		s.log.Warn(ctx, "no schema items file configured, names fall back to SKUs")
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeConfigurationError, "schema items file")
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperror.Wrap(err, apperror.CodeInvalidFormat, "schema items file")
	}

	items := make(map[int]string, len(raw))
	for key, name := range raw {
		defindex, err := strconv.Atoi(key)
		if err != nil {
			s.log.Warn(ctx, "skipping non-numeric defindex in items file", "key", key)
			continue
		}
		items[defindex] = name
	}
	s.items = items
	s.log.Info(ctx, "schema items loaded", "count", len(items))
	return nil
}

// GetName returns a human-readable, quality-prefixed name for a SKU. Unknown
// or unparseable SKUs fall back to the SKU string itself.
func (s *Service) GetName(sku string) string {
	parsed, err := domain.ParseSKU(sku)
	if err != nil {
		return sku
	}
	base, ok := s.items[parsed.Defindex]
	if !ok {
		return sku
	}

	var parts []string
	if parsed.Uncraftable {
		parts = append(parts, "Non-Craftable")
	}
	if q := domain.QualityName(parsed.Quality); q != "" && parsed.Quality != domain.QualityUnique {
		parts = append(parts, q)
	}
	if parsed.Festivized {
		parts = append(parts, "Festivized")
	}
	if ks, ok := killstreakPrefixes[parsed.Killstreak]; ok {
		parts = append(parts, ks)
	}
	if parsed.Australium {
		parts = append(parts, "Australium")
	}
	parts = append(parts, base)
	return strings.Join(parts, " ")
}

// Exists reports whether a SKU refers to a known item. Without a loaded
// table every valid SKU passes; there is no data to contradict it.
func (s *Service) Exists(sku string) bool {
	parsed, err := domain.ParseSKU(sku)
	if err != nil {
		return false
	}
	if len(s.items) == 0 {
		return true
	}
	_, ok := s.items[parsed.Defindex]
	return ok
}
