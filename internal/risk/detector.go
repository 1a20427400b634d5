package risk

import (
	"context"

	"github.com/dmitrijs2005/exposurekit/internal/appconfig"
	"github.com/dmitrijs2005/exposurekit/internal/models"
)

// Detector is the platform's opaque exposure-detection capability. It
// consumes the downloaded key packages (through the platform, not through
// this module) and reports proximity encounters as exposure windows.
type Detector interface {
	Detect(ctx context.Context, cfg *appconfig.Config) ([]models.ExposureWindow, error)
}
