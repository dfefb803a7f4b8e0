package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/milk9111/ragdoll/ecs/system"
	"github.com/milk9111/ragdoll/observability"
	"github.com/milk9111/ragdoll/prefabs"
	"github.com/milk9111/ragdoll/sim"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the ragdollsim configuration, read from flags, RAGDOLL_* env vars
// and an optional YAML file in that order of precedence.
type Config struct {
	Scenario  string               `mapstructure:"scenario"`
	Duration  float64              `mapstructure:"duration"`
	Gravity   *float64             `mapstructure:"-"`
	PrefabDir string               `mapstructure:"prefab_dir"`
	Watch     bool                 `mapstructure:"watch"`
	Realtime  bool                 `mapstructure:"realtime"`
	Logger    observability.Config `mapstructure:"logger"`
}

func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "ragdollsim",
		Short:         "Run a ragdoll scenario headless and log strength changes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			logger := observability.New(cfg.Logger)
			defer func() { _ = logger.Sync() }()

			if err := run(cmd.Context(), cfg, logger); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Error("simulation failed", zap.Error(err))
				}
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default ./ragdollsim.yaml)")
	flags.StringP("scenario", "s", sim.DefaultScenario, "scenario prefab to run")
	flags.Float64P("duration", "d", 0, "seconds to simulate; 0 uses the scenario duration")
	flags.Float64("gravity", 0, "override scenario gravity")
	flags.String("prefab-dir", prefabs.Dir, "directory whose prefabs shadow the embedded ones")
	flags.BoolP("watch", "w", false, "hot reload rig tuning and impact scripts from prefab-dir")
	flags.Bool("realtime", false, "pace steps to wall clock time")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("log-format", "console", "console or json")
	flags.String("log-file", "", "also write JSON logs to this rotating file")

	_ = v.BindPFlag("scenario", flags.Lookup("scenario"))
	_ = v.BindPFlag("duration", flags.Lookup("duration"))
	_ = v.BindPFlag("prefab_dir", flags.Lookup("prefab-dir"))
	_ = v.BindPFlag("watch", flags.Lookup("watch"))
	_ = v.BindPFlag("realtime", flags.Lookup("realtime"))
	_ = v.BindPFlag("logger.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("logger.format", flags.Lookup("log-format"))
	_ = v.BindPFlag("logger.log_file", flags.Lookup("log-file"))

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("gravity") {
			g, _ := cmd.Flags().GetFloat64("gravity")
			v.Set("gravity", g)
		}
	}
	return cmd
}

func loadConfig(v *viper.Viper, cfgFile string) (Config, error) {
	defaults := observability.DefaultConfig()
	v.SetDefault("logger.name", defaults.Name)
	v.SetDefault("logger.max_size_mb", defaults.MaxSizeMB)
	v.SetDefault("logger.max_backups", defaults.MaxBackups)
	v.SetDefault("logger.max_age_days", defaults.MaxAgeDays)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("ragdollsim")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("RAGDOLL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("ragdollsim: read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("ragdollsim: decode config: %w", err)
	}
	if v.IsSet("gravity") {
		g := v.GetFloat64("gravity")
		cfg.Gravity = &g
	}
	return cfg, nil
}

func run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	if cfg.PrefabDir != "" {
		prefabs.Dir = cfg.PrefabDir
	}

	s, err := sim.New(sim.Options{Scenario: cfg.Scenario, Gravity: cfg.Gravity, Logger: logger})
	if err != nil {
		return err
	}
	defer s.Close()

	var changes <-chan prefabs.Change
	var watchErrs <-chan error
	if cfg.Watch {
		w, err := prefabs.NewWatcher(logger, prefabs.Dir, filepath.Join(prefabs.Dir, "scripts"))
		if err != nil {
			return fmt.Errorf("ragdollsim: watch %s: %w", prefabs.Dir, err)
		}
		defer func() { _ = w.Close() }()
		changes, watchErrs = w.Events, w.Errors
	}

	duration := cfg.Duration
	if duration <= 0 {
		duration = s.Scenario().Duration
	}

	var ticker *time.Ticker
	if cfg.Realtime {
		ticker = time.NewTicker(time.Duration(s.World().DT() * float64(time.Second)))
		defer ticker.Stop()
	}

	events := 0
	for s.World().Time() < duration {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change := <-changes:
			if err := s.Apply(change); err != nil {
				logger.Warn("hot reload rejected", zap.String("path", change.Path), zap.Error(err))
			}
			continue
		case err := <-watchErrs:
			logger.Warn("prefab watcher error", zap.Error(err))
			continue
		default:
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		stepEvents, err := s.Step()
		if err != nil {
			return err
		}
		for _, evt := range stepEvents {
			events++
			logStateEvent(logger, evt)
		}
	}

	summarize(logger, s, events)
	return nil
}

func logStateEvent(logger *zap.Logger, evt system.RagdollStateEvent) {
	logger.Info("joint strength state changed",
		zap.String("rig", evt.Rig.String()),
		zap.String("joint", evt.Joint),
		zap.Stringer("from", evt.From),
		zap.Stringer("to", evt.To),
		zap.Float64("strength", evt.Strength),
		zap.Uint64("tick", evt.Tick),
	)
}

func summarize(logger *zap.Logger, s *sim.Sim, events int) {
	for _, r := range s.Rigs() {
		strengths := r.Controller().Snapshot()
		fields := []zap.Field{
			zap.String("rig", r.ID().String()),
			zap.String("name", r.Name()),
			zap.Uint64("ticks", r.Ticks()),
		}
		for j, p := range r.Binding().Pairs() {
			fields = append(fields, zap.Float64(p.Name, strengths[j]))
		}
		logger.Info("final joint strength", fields...)
	}
	logger.Info("simulation finished",
		zap.String("scenario", s.Scenario().Name),
		zap.Float64("time", s.World().Time()),
		zap.Uint64("ticks", s.World().Tick()),
		zap.Int("state_changes", events),
	)
}
