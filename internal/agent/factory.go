package agent

import (
	"time"

	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/nn"
)

// New builds the agent for cfg. A correction network is attempted once;
// when it is missing or does not fit, the rule-based agent is returned and
// the reason logged at info level.
func New(cfg config.AgentConfig, latentDim, historyLen int, tick time.Duration, seed int64, logger jam.Logger) jam.Agent {
	logger = jam.OrNop(logger)
	rules := Rules{
		CalmBelow:   cfg.CalmThreshold,
		ActiveAbove: cfg.ActiveThreshold,
		Jitter:      cfg.Jitter,
	}
	alpha := jam.HalfLifeAlpha(cfg.HalfLife.Seconds(), tick.Seconds())
	rule := NewRuleBased(rules, alpha, historyLen, latentDim, seed)

	if cfg.CorrectionPath == "" {
		return rule
	}
	net, err := nn.Load(cfg.CorrectionPath)
	if err != nil {
		logger.Info("agent correction unavailable, using rules only", "path", cfg.CorrectionPath, "err", err)
		return rule
	}
	m, err := NewMLCorrected(rule, net, cfg.CorrectionContext, cfg.CorrectionBound, logger)
	if err != nil {
		logger.Info("agent correction does not fit, using rules only", "path", cfg.CorrectionPath, "err", err)
		return rule
	}
	logger.Info("agent correction loaded", "path", cfg.CorrectionPath)
	return m
}
