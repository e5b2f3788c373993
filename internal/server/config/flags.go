package config

import (
	"flag"
	"os"
	"time"

	"github.com/offpay/chainsync/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      operator token validity, minutes
//	-m int      max accepted record age, hours
//	-f int      future clock tolerance, minutes
//	-w int      secondary timestamp tolerance, hours
//	-r int      max ledger commit retries
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-m", "-f", "-w", "-r", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "operator token validity (in minutes)")
	maxRecordAge := fs.Int("m", int(config.MaxRecordAge.Hours()), "max accepted record age (in hours)")
	futureTolerance := fs.Int("f", int(config.FutureTolerance.Minutes()), "future clock tolerance (in minutes)")
	secondaryTolerance := fs.Int("w", int(config.SecondaryTolerance.Hours()), "secondary timestamp tolerance (in hours)")

	fs.IntVar(&config.MaxCommitRetries, "r", config.MaxCommitRetries, "max ledger commit retries")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
	config.MaxRecordAge = time.Duration(*maxRecordAge) * time.Hour
	config.FutureTolerance = time.Duration(*futureTolerance) * time.Minute
	config.SecondaryTolerance = time.Duration(*secondaryTolerance) * time.Hour
}
