package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/config"
	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"github.com/scoutline-hq/prospect-discovery/internal/pipeline"
	"github.com/scoutline-hq/prospect-discovery/internal/proxy"
	"github.com/scoutline-hq/prospect-discovery/internal/ratelimit"
	"github.com/scoutline-hq/prospect-discovery/pkg/platforms"
	"github.com/spf13/cobra"
)

// scout is the one-shot companion to the discovery daemon: fetch and score a
// single target from the command line without running the scheduler loop.

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scout",
		Short:         "One-shot prospect discovery commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newFetchCmd())
	root.AddCommand(newScoreCmd())
	return root
}

func newFetchCmd() *cobra.Command {
	var (
		platformID string
		target     string
		targetType string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one target, run it through the pipeline and print the prospect",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := platforms.LoadPlatforms(cfg.PlatformsFile); err != nil {
				return fmt.Errorf("load platforms registry: %w", err)
			}

			platformCfg, ok := platforms.PlatformByID(platformID)
			if !ok {
				return fmt.Errorf("platform %q is not configured", platformID)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			limiter := ratelimit.New(nil, nil)
			limiter.SetLimits(platformCfg.ID, platformCfg.RateLimits)
			proxies := proxy.New(cfg.Proxy, nil, nil, nil)
			adapter := platforms.NewGenericAdapter(limiter, proxies, cfg.HTTPTimeout, nil)

			task := domain.ScrapeTask{
				ID:       "scout-fetch",
				Platform: platformCfg.ID,
				Target:   target,
				Type:     domain.TaskType(targetType),
			}
			rec, err := adapter.Fetch(ctx, platformCfg, task)
			if err != nil {
				return fmt.Errorf("fetch target: %w", err)
			}

			prospect, err := pipeline.New(cfg.Scoring, nil, nil).Process(rec)
			if err != nil {
				return fmt.Errorf("process record: %w", err)
			}
			return printJSON(cmd, prospect)
		},
	}

	cmd.Flags().StringVar(&platformID, "platform", "", "platform id from the platforms file")
	cmd.Flags().StringVar(&target, "target", "", "target username or handle")
	cmd.Flags().StringVar(&targetType, "type", string(domain.TaskTypeProfile), "task type (profile, content, network, engagement)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall fetch deadline")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newScoreCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a raw record JSON file without fetching",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read record file: %w", err)
			}
			var payload map[string]any
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("decode record file: %w", err)
			}

			rec := domain.NewRawRecord("file", payload, "scout-score")
			prospect, err := pipeline.New(cfg.Scoring, nil, nil).Process(rec)
			if err != nil {
				return fmt.Errorf("process record: %w", err)
			}
			return printJSON(cmd, prospect)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to a raw record JSON file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
