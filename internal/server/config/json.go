package config

import (
	"encoding/json"
	"os"

	"github.com/devlens/devlens/internal/flagx"
)

// JSONConfig is the intermediate DTO for reading JSON configuration files.
// After unmarshalling, non-empty fields are copied into the runtime Config.
type JSONConfig struct {
	EndpointAddr      string `json:"endpoint_addr"`
	BaseURL           string `json:"base_url"`
	DatabaseDSN       string `json:"database_dsn"`
	SessionSecret     string `json:"session_secret"`
	TokenMasterSecret string `json:"token_master_secret"`
	RedisAddr         string `json:"redis_addr"`
	RedisPassword     string `json:"redis_password"`
	RedisDB           int    `json:"redis_db"`
	S3Bucket          string `json:"s3_bucket"`
	S3Region          string `json:"s3_region"`
	S3Endpoint        string `json:"s3_endpoint"`
	S3AccessKey       string `json:"s3_access_key"`
	S3SecretKey       string `json:"s3_secret_key"`
}

// parseJSON loads configuration values from the JSON file named by the -c or
// -config flags. When neither flag is set, no file is loaded. A file that
// cannot be read or parsed panics: a broken explicit config is fatal.
func parseJSON(config *Config) {
	jsonConfigFile := flagx.JSONConfigPath()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JSONConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setIfNotEmpty(&config.EndpointAddr, c.EndpointAddr)
	setIfNotEmpty(&config.BaseURL, c.BaseURL)
	setIfNotEmpty(&config.DatabaseDSN, c.DatabaseDSN)
	setIfNotEmpty(&config.SessionSecret, c.SessionSecret)
	setIfNotEmpty(&config.TokenMasterSecret, c.TokenMasterSecret)
	setIfNotEmpty(&config.RedisAddr, c.RedisAddr)
	setIfNotEmpty(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != 0 {
		config.RedisDB = c.RedisDB
	}
	setIfNotEmpty(&config.S3Bucket, c.S3Bucket)
	setIfNotEmpty(&config.S3Region, c.S3Region)
	setIfNotEmpty(&config.S3Endpoint, c.S3Endpoint)
	setIfNotEmpty(&config.S3AccessKey, c.S3AccessKey)
	setIfNotEmpty(&config.S3SecretKey, c.S3SecretKey)
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
