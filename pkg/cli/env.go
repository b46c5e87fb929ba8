package cli

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-audit/pkg/audit"
	"github.com/ekaya-inc/ekaya-audit/pkg/config"
	"github.com/ekaya-inc/ekaya-audit/pkg/logging"
)

// loadEnv reads configuration and builds the logger for commands that
// talk to sinks or the database.
func loadEnv(opts *RootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.Version)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	return cfg, logger, nil
}

// policiesFromConfig builds the redaction policies in cfg.
func policiesFromConfig(cfg config.AuditConfig) *audit.PolicySet {
	policies := audit.NewPolicySet(cfg.DefaultRedact, cfg.DefaultSkip)
	for entityType, p := range cfg.Entities {
		policies.Set(entityType, p.Redact, p.Skip)
	}
	return policies
}
