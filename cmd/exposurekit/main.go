package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/exposurekit/internal/appconfig"
	"github.com/dmitrijs2005/exposurekit/internal/cdn"
	"github.com/dmitrijs2005/exposurekit/internal/config"
	"github.com/dmitrijs2005/exposurekit/internal/download/keypackages"
	"github.com/dmitrijs2005/exposurekit/internal/download/tracewarnings"
	"github.com/dmitrijs2005/exposurekit/internal/filex"
	"github.com/dmitrijs2005/exposurekit/internal/logging"
	"github.com/dmitrijs2005/exposurekit/internal/matching"
	"github.com/dmitrijs2005/exposurekit/internal/models"
	"github.com/dmitrijs2005/exposurekit/internal/restclient"
	"github.com/dmitrijs2005/exposurekit/internal/risk"
	"github.com/dmitrijs2005/exposurekit/internal/storage"
	"github.com/dmitrijs2005/exposurekit/internal/verification"
)

// noopDetector stands in for the platform exposure-detection capability,
// which is only available inside a mobile app host. Presence risk from
// check-in matches still works without it.
type noopDetector struct{}

func (noopDetector) Detect(ctx context.Context, cfg *appconfig.Config) ([]models.ExposureWindow, error) {
	return nil, nil
}

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	dsn := cfg.DatabaseDSN
	if name, ok := strings.CutPrefix(dsn, "file:"); ok && !filepath.IsAbs(name) && !strings.ContainsRune(name, os.PathSeparator) {
		dir, err := filex.EnsureSubDir("data")
		if err != nil {
			log.Fatalf("%v", err)
		}
		dsn = "file:" + filepath.Join(dir, name)
	}

	repos, err := storage.InitDatabase(ctx, dsn)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer repos.DB.Close()

	pemData, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	pub, err := verification.ParsePublicKeyPEM(pemData)
	if err != nil {
		log.Fatalf("%v", err)
	}
	verifier := verification.NewECDSAVerifier(pub)

	rest := restclient.New(cfg.CDNBaseURL, nil, repos.Cache, logger)
	cdnClient := cdn.NewClient(rest)
	appCfg := appconfig.NewProvider(rest)

	keyDownloader := keypackages.NewDownloader(cdnClient, repos.Packages, repos.State, verifier, appCfg, logger)
	matcher := matching.NewMatcher(repos.Checkins, repos.Matches, logger)
	traceDownloader := tracewarnings.NewDownloader(
		cdnClient, repos.TraceWarnings, repos.Checkins, matcher, repos.State, verifier, appCfg, logger)

	provider := risk.NewProvider(
		keyDownloader, traceDownloader, noopDetector{},
		repos.Packages, repos.Matches, repos.State,
		appCfg, cfg.Countries, cfg.RiskRequestTimeout, logger)

	result, err := provider.RequestRisk(ctx, true)
	if err != nil {
		log.Fatalf("%v", err)
	}
	logger.Info(ctx, "risk cycle finished",
		"level", result.Level.String(),
		"dates", len(result.PerDateLevel),
		"calculated_at", result.CalculatedAt)
}
