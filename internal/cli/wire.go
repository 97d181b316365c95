package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lucasnoah/codeflow/internal/backup"
	"github.com/lucasnoah/codeflow/internal/config"
	"github.com/lucasnoah/codeflow/internal/detect"
	"github.com/lucasnoah/codeflow/internal/interactions"
	"github.com/lucasnoah/codeflow/internal/llm"
	"github.com/lucasnoah/codeflow/internal/queue"
	"github.com/lucasnoah/codeflow/internal/specialist"
	"github.com/lucasnoah/codeflow/internal/strategy"
	"github.com/lucasnoah/codeflow/internal/validate"
)

// loadConfig loads and sanity-checks the engine config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", errs[0].Error())
	}
	return cfg, nil
}

// openQueue opens and migrates the issue queue from config.
func openQueue(cfg *config.Config, logger *slog.Logger) (*queue.Store, error) {
	path := cfg.Engine.Queue.Path
	if path == "" {
		var err error
		path, err = queue.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	q, err := queue.Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := q.Migrate(); err != nil {
		q.Close()
		return nil, err
	}
	return q, nil
}

// openHistory opens and migrates the interaction database from config.
func openHistory(cfg *config.Config, logger *slog.Logger) (*interactions.Store, error) {
	path := cfg.Engine.Workflow.InteractionsDB
	if path == "" {
		var err error
		path, err = interactions.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	s, err := interactions.Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// newDetector builds the configured detector.
func newDetector(cfg *config.Config, logger *slog.Logger) *detect.Detector {
	d := cfg.Engine.Detector
	return detect.NewDetector(&detect.ExecRunner{}, logger,
		detect.WithCommand(d.Command),
		detect.WithTimeout(config.ParseDuration(d.Timeout, 2*time.Minute)),
		detect.WithSelectCodes(d.SelectCodes),
	)
}

// newStrategyDeps builds everything the fix strategies need.
func newStrategyDeps(cfg *config.Config, workdir string, logger *slog.Logger) (strategy.Deps, error) {
	client, err := llm.FromConfig(cfg.Engine.LLM, logger)
	if err != nil {
		return strategy.Deps{}, err
	}

	backupDir := cfg.Engine.Backup.Dir
	if backupDir == "" {
		dataDir, err := config.DataDir()
		if err != nil {
			return strategy.Deps{}, err
		}
		backupDir = dataDir + "/backups"
	}

	return strategy.Deps{
		Client:      client,
		Specialists: specialist.NewManager(),
		Validator:   validate.NewManager(cfg.Engine.Validation, &detect.ExecRunner{}, logger),
		Backups:     backup.NewManager(backupDir, logger),
		Fallback:    cfg.Engine.LLM.Fallback,
		Workdir:     workdir,
		Logger:      logger,
	}, nil
}
