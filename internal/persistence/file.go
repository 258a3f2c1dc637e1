// Package persistence implements C9: the durable pending/scheduled signal
// state a live driver must survive a restart with. Backtests never persist
// (§4.9) — a Store is only ever wired into the live driver.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/pegaltier/backtest-kit/internal/signal"
)

// state is the on-disk schema: the open row plus the identity fields that
// must match the caller's expectations before the row is trusted.
type state struct {
	ExchangeName string     `json:"exchangeName"`
	StrategyName string     `json:"strategyName"`
	Symbol       string     `json:"symbol"`
	Row          signal.Row `json:"row"`
}

// Store persists one open signal row per (strategyName, symbol) as a JSON
// file, written atomically via a temp-file-then-rename so a crash mid-write
// never leaves a half-written file for the next startup to trip over.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore builds a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create dir %s: %w", dir, err)
	}
	return &Store{dir: dir, log: zerolog.Nop()}, nil
}

// WithLogger attaches a logger for diagnostics (discard/overwrite events).
func (s *Store) WithLogger(log zerolog.Logger) *Store {
	s.log = log
	return s
}

func (s *Store) path(strategyName, symbol string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s__%s.json", sanitize(strategyName), sanitize(symbol)))
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// Save atomically writes row as the open state for (exchangeName,
// strategyName, symbol), replacing any prior state.
func (s *Store) Save(exchangeName, strategyName, symbol string, row signal.Row) error {
	st := state{ExchangeName: exchangeName, StrategyName: strategyName, Symbol: symbol, Row: row}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("persistence: marshal: %w", err)
	}

	target := s.path(strategyName, symbol)
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("persistence: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("persistence: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("persistence: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persistence: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("persistence: rename into place: %w", err)
	}
	return nil
}

// Load reads the persisted row for (exchangeName, strategyName, symbol).
// Returns ok=false, with no error, when nothing is persisted or the file's
// identity fields don't match the caller's — a mismatched or unreadable
// file is discarded rather than trusted (§4.9 "restore" semantics).
func (s *Store) Load(exchangeName, strategyName, symbol string) (signal.Row, bool, error) {
	data, err := os.ReadFile(s.path(strategyName, symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return signal.Row{}, false, nil
		}
		return signal.Row{}, false, fmt.Errorf("persistence: read: %w", err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Str("strategy", strategyName).
			Msg("persisted state unreadable, discarding")
		return signal.Row{}, false, nil
	}
	if st.ExchangeName != exchangeName || st.StrategyName != strategyName || st.Symbol != symbol {
		s.log.Warn().Str("symbol", symbol).Str("strategy", strategyName).
			Msg("persisted state identity mismatch, discarding")
		return signal.Row{}, false, nil
	}
	return st.Row, true, nil
}

// Clear removes any persisted state for (strategyName, symbol). Not found
// is not an error — clearing an already-clear slot is a no-op.
func (s *Store) Clear(strategyName, symbol string) error {
	err := os.Remove(s.path(strategyName, symbol))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("persistence: remove: %w", err)
	}
	return nil
}
