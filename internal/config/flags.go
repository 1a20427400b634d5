package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/exposurekit/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// os.Args is filtered to the flags handled here so that flags owned by
// other packages do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.CDNBaseURL, "a", cfg.CDNBaseURL, "base URL of the package distribution CDN")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "sqlite DSN of the local database")
	fs.StringVar(&cfg.PublicKeyPath, "k", cfg.PublicKeyPath, "path to the pinned package signing key (PEM)")
	timeoutSeconds := fs.Int("t", int(cfg.RiskRequestTimeout.Seconds()), "risk request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RiskRequestTimeout = time.Duration(*timeoutSeconds) * time.Second
}
