package config

import (
	"flag"
	"os"

	"github.com/darkroomapp/darkroom/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the reveal server
//	-d string   client data directory
//	-n string   owner label attached to uploaded photos
//
// The function filters os.Args to only the flags it knows about, using
// flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-n"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "base URL of the reveal server")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "client data directory")
	fs.StringVar(&cfg.OwnerLabel, "n", cfg.OwnerLabel, "owner label for uploaded photos")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
