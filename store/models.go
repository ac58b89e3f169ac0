// Package store contains GORM-backed SQLite models kept per monitored chain.
//
// Database Structure:
//
//	databases/
//	├── axelar.db
//	│   ├── chain_states
//	│   ├── validators
//	│   └── price_snapshots
//	└── {chain}.db
package store

import (
	"time"

	"gorm.io/gorm"
)

// ChainState tracks the latest observed head of a chain.
// One record per database (each chain has its own DB).
type ChainState struct {
	gorm.Model
	NetworkID       string    // Network id reported by the node, e.g. osmosis-1
	LatestHeight    int64     // Latest block height seen via status or events
	LatestBlockTime time.Time // Timestamp of the latest block
	LastProposer    string    // Hex consensus address of the latest block proposer
}

// Validator is one row of the validator database, keyed by operator address.
type Validator struct {
	gorm.Model
	OperatorAddress  string `gorm:"uniqueIndex;not null"` // <chain>valoper1...
	AccountAddress   string `gorm:"index"`                // Operator bytes re-encoded with the base prefix
	ConsensusAddress string `gorm:"index"`                // <chain>valcons1...
	HexAddress       string `gorm:"index"`                // Upper-case hex consensus address, as found in block headers
	Moniker          string
	Identity         string
	Website          string
	Details          string  `gorm:"type:text"`
	Tokens           float64 `gorm:"index"` // Bonded tokens in display units
	CommissionRate   float64
	Status           string // BOND_STATUS_BONDED, BOND_STATUS_UNBONDING or BOND_STATUS_UNBONDED
	Jailed           bool
	ProposedBlocks   uint64 // Blocks proposed since the subscription started recording
	Removed          bool   `gorm:"index"` // Missing from the latest validator set snapshot
	LastSeenAt       time.Time
}

// PriceSnapshot records one price update applied to a chain.
type PriceSnapshot struct {
	gorm.Model
	Currency  string  `gorm:"not null"`
	Price     float64 // Zero when Available is false
	Available bool    `gorm:"index"` // False when the feed had no price for the chain
}
