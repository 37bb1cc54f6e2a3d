package settings

const (
	IP       = "ip"
	Port     = "port"
	Loglevel = "loglevel"

	DBType             = "dbType"
	DBSettingsFilename = "dbSettings.filename"
	DBSettingsHost     = "dbSettings.host"
	DBSettingsPort     = "dbSettings.port"
	DBSettingsDatabase = "dbSettings.database"
	DBSettingsUser     = "dbSettings.user"
	DBSettingsPassword = "dbSettings.password"
	DBSettingsURL      = "dbSettings.url"

	DefaultPadText   = "defaultPadText"
	PadTextMaxLength = "padTextMaxLength"
	LowerCasePadIds  = "lowerCasePadIds"

	SocketIoMaxHttpBufferSize  = "socketIo.maxHttpBufferSize"
	CommitRateLimitingDuration = "commitRateLimiting.duration"
	CommitRateLimitingPoints   = "commitRateLimiting.points"

	KafkaEnabled    = "kafka.enabled"
	KafkaBrokers    = "kafka.brokers"
	KafkaTopic      = "kafka.topic"
	KafkaClientID   = "kafka.clientId"
	KafkaQueueSize  = "kafka.queueSize"
	KafkaWorkers    = "kafka.workers"
	KafkaMaxRetries = "kafka.maxRetries"
)
