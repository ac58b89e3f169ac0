package api

import (
	"context"

	"github.com/chainwatch/chainwatch/chains"
	"github.com/chainwatch/chainwatch/cron"
	"github.com/chainwatch/chainwatch/db"
	"github.com/chainwatch/chainwatch/state"
)

// Registry defines the orchestrator methods needed by the API server
type Registry interface {
	Get(name string) (state.Chain, error)
	Chains() []state.Chain
	Run(ctx context.Context, operation string) (state.Report, error)
}

// snapshotter is implemented by adapters that expose their latest state.
type snapshotter interface {
	Snapshot() chains.Snapshot
}

// databaseOwner is implemented by adapters backed by a chain database.
type databaseOwner interface {
	DB() *db.DB
}

// databaseStatter is implemented by registries that own the chain databases.
type databaseStatter interface {
	DatabaseStats() (db.DatabaseStats, bool)
}

// Job is a scheduled refresh the server can report on and trigger.
type Job interface {
	Status() cron.JobStatus
	ForceRun()
}
