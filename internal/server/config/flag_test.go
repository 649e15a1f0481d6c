package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{"cmd",
				"-a", "127.0.0.1:8080", "-grpc", "127.0.0.1:9090", "-d", "db",
				"-as", "access", "-at", "5", "-rs", "refresh", "-rt", "60", "-st", "3",
				"-cost", "12", "-cookie-secure=false", "-conceal-unknown-user", "-revoke-on-password-change",
				"-upload-dir", "/tmp/up", "-l", "debug",
				"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint", "-m", "https://cdn",
			},
			expected: &Config{
				EndpointAddrHTTP:               "127.0.0.1:8080",
				EndpointAddrGRPC:               "127.0.0.1:9090",
				DatabaseDSN:                    "db",
				AccessTokenSecret:              "access",
				AccessTokenValidityDuration:    5 * time.Minute,
				RefreshTokenSecret:             "refresh",
				RefreshTokenValidityDuration:   time.Hour,
				StoreTimeout:                   3 * time.Second,
				BcryptCost:                     12,
				CookieSecure:                   false,
				ConcealUnknownUser:             true,
				RevokeSessionsOnPasswordChange: true,
				UploadDir:                      "/tmp/up",
				LogLevel:                       "debug",
				S3RootUser:                     "user",
				S3RootPassword:                 "password",
				S3Bucket:                       "bucket",
				S3Region:                       "us-west-1",
				S3BaseEndpoint:                 "http://endpoint",
				MediaBaseURL:                   "https://cdn",
			},
		},
		{
			name:    "bad int",
			args:    []string{"cmd", "-at", "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{CookieSecure: true}
			err := parseFlags(config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

func TestParseFlags_UnsetDurationsKeepSubMinuteValues(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"cmd", "-a", ":1"}

	config := &Config{AccessTokenValidityDuration: 90 * time.Second, StoreTimeout: 1500 * time.Millisecond}
	require.NoError(t, parseFlags(config))

	assert.Equal(t, 90*time.Second, config.AccessTokenValidityDuration)
	assert.Equal(t, 1500*time.Millisecond, config.StoreTimeout)
}
