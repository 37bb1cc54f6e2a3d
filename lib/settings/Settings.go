package settings

import (
	"github.com/go-playground/validator/v10"
)

type DBSettings struct {
	Filename string
	Host     string
	Port     string `validate:"omitempty,numeric"`
	Database string
	User     string
	Password string
	// Url is the redis connection url, e.g. redis://localhost:6379/0.
	Url string `validate:"omitempty,url"`
}

type SocketIoSettings struct {
	MaxHttpBufferSize int64 `validate:"gt=0"`
}

type CommitRateLimiting struct {
	// Duration of the rate limiting window in seconds.
	Duration int `validate:"gt=0"`
	// Points a client may spend per window; every commit costs one.
	Points int `validate:"gt=0"`
}

type KafkaSettings struct {
	Enabled    bool
	Brokers    []string
	Topic      string
	ClientID   string
	QueueSize  int `validate:"gt=0"`
	Workers    int `validate:"gt=0"`
	MaxRetries int `validate:"gte=0"`
}

type Settings struct {
	IP       string `validate:"required,ip"`
	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`

	DBType     IDBType
	DBSettings *DBSettings `validate:"required"`

	DefaultPadText   string
	PadTextMaxLength int `validate:"gt=0"`
	LowerCasePadIDs  bool

	SocketIo           SocketIoSettings
	CommitRateLimiting CommitRateLimiting
	Kafka              KafkaSettings
}

// validateSettings checks the fields whose rules depend on other fields.
func validateSettings(sl validator.StructLevel) {
	s := sl.Current().Interface().(Settings)
	if s.DBSettings != nil {
		switch s.DBType {
		case SQLITE:
			if s.DBSettings.Filename == "" {
				sl.ReportError(s.DBSettings.Filename, "Filename", "Filename", "required_for_sqlite", "")
			}
		case POSTGRES, MYSQL:
			if s.DBSettings.Host == "" {
				sl.ReportError(s.DBSettings.Host, "Host", "Host", "required_for_sql", "")
			}
			if s.DBSettings.Database == "" {
				sl.ReportError(s.DBSettings.Database, "Database", "Database", "required_for_sql", "")
			}
		case REDIS:
			if s.DBSettings.Url == "" && s.DBSettings.Host == "" {
				sl.ReportError(s.DBSettings.Url, "Url", "Url", "required_for_redis", "")
			}
		}
	}
	if s.Kafka.Enabled {
		if len(s.Kafka.Brokers) == 0 {
			sl.ReportError(s.Kafka.Brokers, "Brokers", "Brokers", "required_with_kafka", "")
		}
		if s.Kafka.Topic == "" {
			sl.ReportError(s.Kafka.Topic, "Topic", "Topic", "required_with_kafka", "")
		}
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateSettings, Settings{})
	return v
}

func (s *Settings) Validate() error {
	return validate.Struct(s)
}
