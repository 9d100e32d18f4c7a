package config

import (
	"flag"
	"os"

	"github.com/devlens/devlens/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-u string   externally visible base URL
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-m string   token encryption master secret
//	-r string   Redis address (empty selects the in-process store)
//	-b string   S3 bucket for the raw sync archive
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-u", "-d", "-s", "-m", "-r", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.BaseURL, "u", config.BaseURL, "externally visible base URL")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SessionSecret, "s", config.SessionSecret, "secret key")
	fs.StringVar(&config.TokenMasterSecret, "m", config.TokenMasterSecret, "token encryption master secret")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3Endpoint, "e", config.S3Endpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
