package constant

import "os"

// <NodeDir>/                    (e.g., /root/.chainwatch)
// └── config/
//	└── chainwatch_config.json
// └── databases/
//	└── axelar.db
//	└── osmosis.db

const (
	NodeDir = ".chainwatch"

	ConfigSubdir   = "config"
	ConfigFileName = "chainwatch_config.json"

	DatabasesSubdir = "databases"

	// EnvPrefix is the prefix of environment variables overriding config keys,
	// e.g. CHAINWATCH_LOG_LEVEL.
	EnvPrefix = "CHAINWATCH"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir

// Fan-out operation names, shared by the scheduler, the query server and metrics.
const (
	OperationData      = "data"
	OperationPrices    = "prices"
	OperationDatabase  = "database"
	OperationSubscribe = "subscribe"
)
