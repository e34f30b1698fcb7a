// Package knowledge provides reference-pattern lookups backed by a YAML seed
// file or by Redis sorted sets.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

const defaultTopK = 3

// Seed is the on-disk layout of a pattern seed file.
type Seed struct {
	Patterns []domain.ReferencePattern `yaml:"patterns"`
}

// LoadSeed reads and validates a YAML seed file.
func LoadSeed(path string) ([]domain.ReferencePattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge file '%s': %w", path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge file '%s': %w: %w", path, ports.ErrConfigurationError, err)
	}
	for i, p := range seed.Patterns {
		if !p.SetupType.IsValid() {
			return nil, fmt.Errorf("pattern %d (%s) has unknown setup type %q: %w", i, p.ID, p.SetupType, ports.ErrConfigurationError)
		}
		if p.WinRate < 0 || p.WinRate > 1 {
			return nil, fmt.Errorf("pattern %d (%s) win rate %.2f outside [0,1]: %w", i, p.ID, p.WinRate, ports.ErrConfigurationError)
		}
	}
	return seed.Patterns, nil
}

// FileStore serves patterns loaded once from a YAML seed file.
type FileStore struct {
	patterns []domain.ReferencePattern
	logger   ports.Logger
}

var _ ports.KnowledgeLookup = (*FileStore)(nil)

// NewFileStore loads the seed file at path.
func NewFileStore(path string, logger ports.Logger) (*FileStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for knowledge file store")
	}
	patterns, err := LoadSeed(path)
	if err != nil {
		return nil, err
	}
	logger.Info(context.Background(), "Knowledge patterns loaded", map[string]interface{}{"path": path, "count": len(patterns)})
	return &FileStore{patterns: patterns, logger: logger}, nil
}

// Query returns patterns of the requested type and trend, best win rate first.
// An empty trend matches every trend.
func (s *FileStore) Query(ctx context.Context, q ports.PatternQuery) ([]domain.ReferencePattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("knowledge query failed: %w: %w", ports.ErrContextCanceled, err)
	}
	matches := make([]domain.ReferencePattern, 0)
	for _, p := range s.patterns {
		if p.SetupType != q.SetupType {
			continue
		}
		if q.Trend != "" && p.Trend != q.Trend {
			continue
		}
		matches = append(matches, p)
	}
	rank(matches)
	return limit(matches, q.TopK), nil
}

func rank(patterns []domain.ReferencePattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].WinRate != patterns[j].WinRate {
			return patterns[i].WinRate > patterns[j].WinRate
		}
		return patterns[i].Samples > patterns[j].Samples
	})
}

func limit(patterns []domain.ReferencePattern, topK int) []domain.ReferencePattern {
	if topK <= 0 {
		topK = defaultTopK
	}
	if len(patterns) > topK {
		return patterns[:topK]
	}
	return patterns
}
