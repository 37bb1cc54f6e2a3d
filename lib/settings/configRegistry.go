package settings

import (
	"strings"

	"github.com/spf13/viper"
)

type ConfigKey struct {
	Key         string
	Default     any
	Description string
}

const envPrefix = "EASYSYNC"

func EnvVar(key string) string {
	return envPrefix + "_" + strings.ToUpper(
		strings.ReplaceAll(key, ".", "_"),
	)
}

var Registry = []ConfigKey{
	// ---------------------------------------------------------------------
	// Core
	// ---------------------------------------------------------------------
	{Key: IP, Default: "0.0.0.0", Description: "Bind address"},
	{Key: Port, Default: "9001", Description: "HTTP server port"},
	{Key: Loglevel, Default: "INFO", Description: "Log level (DEBUG, INFO, WARN, ERROR)"},
	{
		Key:         SocketIoMaxHttpBufferSize,
		Default:     50000,
		Description: "Max size of a single websocket message in bytes",
	},

	// ---------------------------------------------------------------------
	// Database
	// ---------------------------------------------------------------------
	{Key: DBType, Default: string(SQLITE), Description: "Database type (sqlite, memory, postgres, mysql, redis)"},
	{
		Key:         DBSettingsFilename,
		Default:     "var/easysync.db",
		Description: "SQLite database filename",
	},
	{Key: DBSettingsHost, Default: "", Description: "Database host"},
	{Key: DBSettingsPort, Default: "", Description: "Database port"},
	{Key: DBSettingsDatabase, Default: "", Description: "Database name"},
	{Key: DBSettingsUser, Default: "", Description: "Database user"},
	{Key: DBSettingsPassword, Default: "", Description: "Database password"},
	{Key: DBSettingsURL, Default: "", Description: "Redis connection url"},

	// ---------------------------------------------------------------------
	// Pads
	// ---------------------------------------------------------------------
	{
		Key:         DefaultPadText,
		Default:     "Welcome to easysync!\n\nThis pad text is synchronized as you type.\n",
		Description: "Text of newly created pads",
	},
	{
		Key:         PadTextMaxLength,
		Default:     100000,
		Description: "Max length of the initial text of a pad",
	},
	{
		Key:         LowerCasePadIds,
		Default:     false,
		Description: "Force lowercase pad IDs",
	},
	{
		Key:         CommitRateLimitingDuration,
		Default:     1,
		Description: "Commit rate limit window in seconds",
	},
	{
		Key:         CommitRateLimitingPoints,
		Default:     10,
		Description: "Commit rate limit points",
	},

	// ---------------------------------------------------------------------
	// Revision events
	// ---------------------------------------------------------------------
	{Key: KafkaEnabled, Default: false, Description: "Publish revisions to Kafka"},
	{Key: KafkaBrokers, Default: []string{}, Description: "Kafka broker addresses"},
	{Key: KafkaTopic, Default: "easysync.revisions", Description: "Kafka topic for revisions"},
	{Key: KafkaClientID, Default: "easysync", Description: "Kafka client id"},
	{Key: KafkaQueueSize, Default: 1024, Description: "Revisions buffered before publishing blocks"},
	{Key: KafkaWorkers, Default: 2, Description: "Concurrent Kafka publishers"},
	{Key: KafkaMaxRetries, Default: 3, Description: "Retries per revision before it is dropped"},
}

func ApplyRegistryDefaults(v *viper.Viper) {
	for _, c := range Registry {
		v.SetDefault(c.Key, c.Default)
	}
}
