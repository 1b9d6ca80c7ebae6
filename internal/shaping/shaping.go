package shaping

import (
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/nn"
)

// New builds the shaper selected by cfg.Mode for inputs of dim components
// sampled every tick. The nonlinear mode loads its encoder here; when the
// file is missing or unusable the linear shaper for the same configuration
// is returned instead and the failure is logged at info level.
func New(cfg config.ShaperConfig, dim int, tick time.Duration, logger jam.Logger) (jam.Shaper, error) {
	logger = jam.OrNop(logger)
	if dim < 1 {
		return nil, jam.NewConfigError("control_dim", dim, "control vector must not be empty")
	}
	switch cfg.Mode {
	case "temporal":
		alpha := jam.HalfLifeAlpha(cfg.HalfLife.Seconds(), tick.Seconds())
		return NewTemporal(dim, cfg.Filter, alpha, cfg.Window, cfg.Velocity, cfg.VelocityGain), nil
	case "linear":
		return NewLinear(dim, cfg.LatentDim, cfg.Warmup, cfg.Refresh), nil
	case "nonlinear":
		s, err := loadNonlinear(cfg.WeightsPath, dim, cfg.LatentDim)
		if err != nil {
			logger.Info("encoder unavailable, using linear shaper", "path", cfg.WeightsPath, "err", err)
			return NewLinear(dim, cfg.LatentDim, cfg.Warmup, cfg.Refresh), nil
		}
		logger.Info("encoder loaded", "path", cfg.WeightsPath)
		return s, nil
	}
	return nil, &jam.ConfigError{Field: "shaper.mode", Value: cfg.Mode, Reason: "unsupported mode", Wrapped: jam.ErrUnknownShaper}
}

func loadNonlinear(path string, in, out int) (*Nonlinear, error) {
	net, err := nn.Load(path)
	if err != nil {
		return nil, err
	}
	s, err := NewNonlinear(net, in, out)
	if err != nil {
		return nil, errors.Join(jam.ErrModelUnavailable, err)
	}
	return s, nil
}

// Modes lists the supported shaper modes.
func Modes() []string {
	return append([]string(nil), config.ShaperModes...)
}

// Describe is a one-line summary of s for logs.
func Describe(s jam.Shaper) string {
	return fmt.Sprintf("%s (%d latents)", s.Mode(), s.Dim())
}
