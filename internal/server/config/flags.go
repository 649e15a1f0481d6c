package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/accounts/internal/flagx"
)

var knownFlags = []string{
	"-a", "-grpc", "-d", "-as", "-at", "-rs", "-rt", "-st", "-cost",
	"-cookie-secure", "-conceal-unknown-user", "-revoke-on-password-change",
	"-upload-dir", "-l", "-u", "-p", "-b", "-g", "-e", "-m",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string    HTTP bind address (e.g. ":8000")
//	-grpc string gRPC bind address (e.g. ":50051")
//	-d string    PostgreSQL DSN
//	-as string   access token secret
//	-at int      access token validity, minutes
//	-rs string   refresh token secret
//	-rt int      refresh token validity, minutes
//	-st int      credential store timeout, seconds
//	-cost int    bcrypt cost
//	-cookie-secure, -conceal-unknown-user, -revoke-on-password-change bool
//	-upload-dir string  staging directory for uploads
//	-l string    log level
//	-u -p -b -g -e string  S3 user, password, bucket, region, endpoint
//	-m string    public media base URL
//
// Only the flags above are taken from os.Args (see flagx.FilterArgs).
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "gRPC address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "as", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "rs", config.RefreshTokenSecret, "refresh token secret")

	accessTokenValidity := fs.Int("at", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("rt", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	storeTimeout := fs.Int("st", int(config.StoreTimeout.Seconds()), "credential store timeout (in seconds)")

	fs.IntVar(&config.BcryptCost, "cost", config.BcryptCost, "bcrypt cost")
	fs.BoolVar(&config.CookieSecure, "cookie-secure", config.CookieSecure, "set Secure on token cookies")
	fs.BoolVar(&config.ConcealUnknownUser, "conceal-unknown-user", config.ConcealUnknownUser, "report unknown users as unauthorized on login")
	fs.BoolVar(&config.RevokeSessionsOnPasswordChange, "revoke-on-password-change", config.RevokeSessionsOnPasswordChange, "clear refresh token on password change")
	fs.StringVar(&config.UploadDir, "upload-dir", config.UploadDir, "upload staging directory")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.MediaBaseURL, "m", config.MediaBaseURL, "public media base URL")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Durations are only replaced when given, so sub-minute values from the
	// JSON file or the environment survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "at":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		case "rt":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
		case "st":
			config.StoreTimeout = time.Duration(*storeTimeout) * time.Second
		}
	})
	return nil
}
