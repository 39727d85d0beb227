package config

import (
	"flag"
	"os"

	"github.com/darkroomapp/darkroom/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   listen address
//	-dsn string Postgres DSN
//	-s3 string  base endpoint of the S3-compatible store
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-dsn", "-s3"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.EndpointAddr, "a", cfg.EndpointAddr, "address and port to listen on")
	fs.StringVar(&cfg.DatabaseDSN, "dsn", cfg.DatabaseDSN, "metadata database DSN")
	fs.StringVar(&cfg.S3BaseEndpoint, "s3", cfg.S3BaseEndpoint, "S3-compatible endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
