package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

const seedYAML = `
patterns:
  - id: pb-up-1
    setup_type: PB
    trend: up
    win_rate: 0.62
    avg_rr: 2.1
    samples: 40
  - id: pb-up-2
    setup_type: PB
    trend: up
    win_rate: 0.71
    avg_rr: 1.8
    samples: 25
  - id: pb-up-3
    setup_type: PB
    trend: up
    win_rate: 0.62
    avg_rr: 2.4
    samples: 90
  - id: pb-down-1
    setup_type: PB
    trend: down
    win_rate: 0.55
    samples: 12
  - id: tst-up-1
    setup_type: TST
    trend: up
    win_rate: 0.48
    samples: 30
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileStore_Query(t *testing.T) {
	store, err := NewFileStore(writeSeed(t, seedYAML), &mockLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name  string
		query ports.PatternQuery
		ids   []string
	}{
		{"ranked by win rate then samples", ports.PatternQuery{SetupType: domain.SetupPB, Trend: domain.TrendUp}, []string{"pb-up-2", "pb-up-3", "pb-up-1"}},
		{"top k", ports.PatternQuery{SetupType: domain.SetupPB, Trend: domain.TrendUp, TopK: 1}, []string{"pb-up-2"}},
		{"any trend", ports.PatternQuery{SetupType: domain.SetupPB, TopK: 10}, []string{"pb-up-2", "pb-up-3", "pb-up-1", "pb-down-1"}},
		{"other trend", ports.PatternQuery{SetupType: domain.SetupPB, Trend: domain.TrendDown}, []string{"pb-down-1"}},
		{"no match", ports.PatternQuery{SetupType: domain.SetupCPB, Trend: domain.TrendUp}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.query)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.Query(canceled, ports.PatternQuery{SetupType: domain.SetupPB})
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}

func TestLoadSeed_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "patterns: [unclosed"},
		{"unknown setup type", "patterns:\n  - id: x\n    setup_type: XYZ\n    win_rate: 0.5\n"},
		{"win rate out of range", "patterns:\n  - id: x\n    setup_type: PB\n    win_rate: 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeed(writeSeed(t, tt.content))
			assert.ErrorIs(t, err, ports.ErrConfigurationError)
		})
	}

	_, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = NewFileStore(writeSeed(t, seedYAML), nil)
	assert.Error(t, err)
}

func TestRedisStore_Degraded(t *testing.T) {
	// Nothing listens on port 1, so the initial ping fails.
	store, err := NewRedisStore(RedisConfig{Addr: "127.0.0.1:1", RecheckInterval: time.Hour}, &mockLogger{})
	require.NoError(t, err)
	defer store.Close()

	assert.False(t, store.IsHealthy())
	assert.Equal(t, "ytc:patterns:PB:up", store.Key(domain.SetupPB, domain.TrendUp))

	_, err = store.Query(context.Background(), ports.PatternQuery{SetupType: domain.SetupPB, Trend: domain.TrendUp})
	assert.ErrorIs(t, err, ports.ErrKnowledgeUnavailable)
}

func TestNewRedisStore_Validation(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{}, &mockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
	_, err = NewRedisStore(RedisConfig{Addr: "127.0.0.1:1"}, nil)
	assert.Error(t, err)
}
