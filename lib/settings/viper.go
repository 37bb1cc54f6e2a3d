package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("json")

	if settingsPath := os.Getenv(envPrefix + "_SETTINGS_PATH"); settingsPath != "" {
		v.AddConfigPath(settingsPath)
	}
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvPrefix(strings.ToLower(envPrefix))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	ApplyRegistryDefaults(v)
	return v
}

// loadViper reads jsonStr if set, otherwise configFile if set, otherwise
// settings.json from the settings path. A missing settings.json is fine.
func loadViper(jsonStr string, configFile string) (*viper.Viper, error) {
	v := newViper()
	switch {
	case jsonStr != "":
		if err := v.ReadConfig(strings.NewReader(jsonStr)); err != nil {
			return nil, err
		}
	case configFile != "":
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	default:
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, err
			}
		}
	}
	return v, nil
}

func ReadConfig(jsonStr string) (*Settings, error) {
	v, err := loadViper(jsonStr, "")
	if err != nil {
		return nil, err
	}
	return fromViper(v)
}

func ReadConfigFile(configFile string) (*Settings, error) {
	v, err := loadViper("", configFile)
	if err != nil {
		return nil, err
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Settings, error) {
	dbTypeToUse, err := ParseDBType(v.GetString(DBType))
	if err != nil {
		return nil, err
	}

	s := &Settings{
		IP:       v.GetString(IP),
		Port:     v.GetString(Port),
		LogLevel: v.GetString(Loglevel),

		DBType: dbTypeToUse,
		DBSettings: &DBSettings{
			Filename: v.GetString(DBSettingsFilename),
			Host:     v.GetString(DBSettingsHost),
			Port:     v.GetString(DBSettingsPort),
			Database: v.GetString(DBSettingsDatabase),
			User:     v.GetString(DBSettingsUser),
			Password: v.GetString(DBSettingsPassword),
			Url:      v.GetString(DBSettingsURL),
		},

		DefaultPadText:   v.GetString(DefaultPadText),
		PadTextMaxLength: v.GetInt(PadTextMaxLength),
		LowerCasePadIDs:  v.GetBool(LowerCasePadIds),

		SocketIo: SocketIoSettings{
			MaxHttpBufferSize: v.GetInt64(SocketIoMaxHttpBufferSize),
		},
		CommitRateLimiting: CommitRateLimiting{
			Duration: v.GetInt(CommitRateLimitingDuration),
			Points:   v.GetInt(CommitRateLimitingPoints),
		},
		Kafka: KafkaSettings{
			Enabled:    v.GetBool(KafkaEnabled),
			Brokers:    v.GetStringSlice(KafkaBrokers),
			Topic:      v.GetString(KafkaTopic),
			ClientID:   v.GetString(KafkaClientID),
			QueueSize:  v.GetInt(KafkaQueueSize),
			Workers:    v.GetInt(KafkaWorkers),
			MaxRetries: v.GetInt(KafkaMaxRetries),
		},
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}
