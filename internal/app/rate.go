package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/0xfaulty/tgcontest/internal/cli"
	"github.com/0xfaulty/tgcontest/internal/config"
	"github.com/0xfaulty/tgcontest/internal/rating"
)

// runRate parses the configured agency rating table and reports the
// number of hosts it covers, or the line at which parsing failed. It
// exists so an operator can validate a new rating file before rolling
// it into `serve`.
func runRate(args []string) int {
	fs := flag.NewFlagSet("rate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	path := fs.String("path", "", "Path to the agency rating file (overrides AGENCY_RATING_PATH)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ratingPath := cfg.AgencyRatingPath
	if *path != "" {
		ratingPath = *path
	}
	if ratingPath == "" {
		fmt.Fprintln(os.Stderr, "no rating file configured: set AGENCY_RATING_PATH or pass -path")
		return 1
	}

	f, err := os.Open(ratingPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", ratingPath, err)
		return 1
	}
	defer f.Close()

	ratings, err := rating.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse %s: %v\n", ratingPath, err)
		return 1
	}

	fmt.Printf("OK: %d hosts rated in %s\n", len(ratings), ratingPath)
	return 0
}
