package db

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chainwatch/chainwatch/constant"
)

// ChainDBManager hands out one database per monitored chain.
type ChainDBManager struct {
	baseDir   string
	databases map[string]*DB // chain name -> DB instance
	mu        sync.RWMutex
	logger    zerolog.Logger
	inMemory  bool // For testing with in-memory databases
}

// NewChainDBManager creates a manager storing databases under <baseDir>/databases.
func NewChainDBManager(baseDir string, logger zerolog.Logger) *ChainDBManager {
	return &ChainDBManager{
		baseDir:   baseDir,
		databases: make(map[string]*DB),
		logger:    logger.With().Str("component", "chain_db_manager").Logger(),
	}
}

// NewInMemoryChainDBManager creates a manager with in-memory databases (for testing)
func NewInMemoryChainDBManager(logger zerolog.Logger) *ChainDBManager {
	return &ChainDBManager{
		databases: make(map[string]*DB),
		logger:    logger.With().Str("component", "chain_db_manager").Logger(),
		inMemory:  true,
	}
}

// GetChainDB returns the database of a chain, creating it on first use.
func (m *ChainDBManager) GetChainDB(chain string) (*DB, error) {
	m.mu.RLock()
	if db, exists := m.databases[chain]; exists {
		m.mu.RUnlock()
		return db, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if db, exists := m.databases[chain]; exists {
		return db, nil
	}

	var db *DB
	var err error

	if m.inMemory {
		db, err = OpenInMemoryDB(true)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create in-memory database for chain %s", chain)
		}
		m.logger.Debug().
			Str("chain", chain).
			Msg("created in-memory database for chain")
	} else {
		dir := filepath.Join(m.baseDir, constant.DatabasesSubdir)
		filename := sanitizeChainName(chain) + ".db"

		db, err = OpenFileDB(dir, filename, true)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create database for chain %s", chain)
		}

		m.logger.Info().
			Str("chain", chain).
			Str("db_path", filepath.Join(dir, filename)).
			Msg("opened file database for chain")
	}

	m.databases[chain] = db
	return db, nil
}

// CloseAll closes all database connections
func (m *ChainDBManager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var failed []string
	for chain, db := range m.databases {
		if err := db.Close(); err != nil {
			m.logger.Error().Err(err).Str("chain", chain).Msg("failed to close database")
			failed = append(failed, chain)
		}
	}

	m.databases = make(map[string]*DB)

	if len(failed) > 0 {
		sort.Strings(failed)
		return errors.Errorf("failed to close databases: %s", strings.Join(failed, ", "))
	}
	return nil
}

// DatabaseStats describes the databases a ChainDBManager has open.
type DatabaseStats struct {
	Total     int      `json:"total"`
	Chains    []string `json:"chains"`
	InMemory  bool     `json:"in_memory"`
	Directory string   `json:"directory,omitempty"`
}

// GetDatabaseStats reports the open databases, chains sorted by name.
func (m *ChainDBManager) GetDatabaseStats() DatabaseStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := DatabaseStats{
		Total:    len(m.databases),
		Chains:   make([]string, 0, len(m.databases)),
		InMemory: m.inMemory,
	}
	for chain := range m.databases {
		stats.Chains = append(stats.Chains, chain)
	}
	sort.Strings(stats.Chains)
	if !m.inMemory {
		stats.Directory = filepath.Join(m.baseDir, constant.DatabasesSubdir)
	}
	return stats
}

// sanitizeChainName converts a chain name to a filesystem-safe file stem.
func sanitizeChainName(chain string) string {
	var b strings.Builder
	for _, r := range chain {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
