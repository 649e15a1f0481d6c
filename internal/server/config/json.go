package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/accounts/internal/flagx"
	"github.com/dmitrijs2005/accounts/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations
// accept "15m" style strings or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP               string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC               string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                    string         `json:"database_dsn"`
	AccessTokenSecret              string         `json:"access_token_secret"`
	AccessTokenValidityDuration    timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenSecret             string         `json:"refresh_token_secret"`
	RefreshTokenValidityDuration   timex.Duration `json:"refresh_token_validity_duration"`
	StoreTimeout                   timex.Duration `json:"store_timeout"`
	BcryptCost                     int            `json:"bcrypt_cost"`
	CookieSecure                   bool           `json:"cookie_secure"`
	ConcealUnknownUser             bool           `json:"conceal_unknown_user"`
	RevokeSessionsOnPasswordChange bool           `json:"revoke_sessions_on_password_change"`
	UploadDir                      string         `json:"upload_dir"`
	LogLevel                       string         `json:"log_level"`
	S3RootUser                     string         `json:"s3_root_user"`
	S3RootPassword                 string         `json:"s3_root_password"`
	S3Bucket                       string         `json:"s3_bucket"`
	S3Region                       string         `json:"s3_region"`
	S3BaseEndpoint                 string         `json:"s3_base_endpoint"`
	MediaBaseURL                   string         `json:"media_base_url"`
}

// parseJson loads the file named by -c/-config, if any, over config.
// Keys missing from the file keep their current values.
func parseJson(config *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDSN = c.DatabaseDSN
	config.AccessTokenSecret = c.AccessTokenSecret
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.RefreshTokenSecret = c.RefreshTokenSecret
	config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	config.StoreTimeout = c.StoreTimeout.Duration
	config.BcryptCost = c.BcryptCost
	config.CookieSecure = c.CookieSecure
	config.ConcealUnknownUser = c.ConcealUnknownUser
	config.RevokeSessionsOnPasswordChange = c.RevokeSessionsOnPasswordChange
	config.UploadDir = c.UploadDir
	config.LogLevel = c.LogLevel
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.MediaBaseURL = c.MediaBaseURL
	return nil
}

func toJson(config *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:               config.EndpointAddrHTTP,
		EndpointAddrGRPC:               config.EndpointAddrGRPC,
		DatabaseDSN:                    config.DatabaseDSN,
		AccessTokenSecret:              config.AccessTokenSecret,
		AccessTokenValidityDuration:    timex.Duration{Duration: config.AccessTokenValidityDuration},
		RefreshTokenSecret:             config.RefreshTokenSecret,
		RefreshTokenValidityDuration:   timex.Duration{Duration: config.RefreshTokenValidityDuration},
		StoreTimeout:                   timex.Duration{Duration: config.StoreTimeout},
		BcryptCost:                     config.BcryptCost,
		CookieSecure:                   config.CookieSecure,
		ConcealUnknownUser:             config.ConcealUnknownUser,
		RevokeSessionsOnPasswordChange: config.RevokeSessionsOnPasswordChange,
		UploadDir:                      config.UploadDir,
		LogLevel:                       config.LogLevel,
		S3RootUser:                     config.S3RootUser,
		S3RootPassword:                 config.S3RootPassword,
		S3Bucket:                       config.S3Bucket,
		S3Region:                       config.S3Region,
		S3BaseEndpoint:                 config.S3BaseEndpoint,
		MediaBaseURL:                   config.MediaBaseURL,
	}
}
