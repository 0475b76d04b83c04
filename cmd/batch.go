package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

var (
	batchFile        string
	batchTenant      string
	batchTier        string
	batchLimit       int
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Discover buyer groups for a list of companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		targets, err := readTargets(batchFile)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Discover.TenantConcurrency
		}

		return processBatch(ctx, targets, batchLimit, concurrency, func(ctx context.Context, req model.EnrichmentRequest) (*model.BuyerGroupResult, error) {
			return env.Orch.Discover(ctx, req)
		})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "targets file, one 'Company[,website]' per line (required)")
	batchCmd.Flags().StringVar(&batchTenant, "tenant", "default", "tenant the spend is billed to")
	batchCmd.Flags().StringVar(&batchTier, "tier", "identify", "enrichment tier for every target")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of targets to process (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "concurrent requests (default from config)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// batchTarget is one line of the targets file.
type batchTarget struct {
	Company string
	Website string
}

// readTargets parses the targets file. Blank lines and lines starting
// with # are skipped.
func readTargets(path string) ([]batchTarget, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open targets file")
	}
	defer f.Close() //nolint:errcheck

	var targets []batchTarget
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		company, website, _ := strings.Cut(line, ",")
		targets = append(targets, batchTarget{
			Company: strings.TrimSpace(company),
			Website: strings.TrimSpace(website),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "read targets file")
	}
	return targets, nil
}

// discoverFunc is the callback signature for running one discovery.
type discoverFunc func(ctx context.Context, req model.EnrichmentRequest) (*model.BuyerGroupResult, error)

// processBatch applies limit, then runs targets concurrently. Individual
// failures are logged, not fatal to the batch.
func processBatch(ctx context.Context, targets []batchTarget, limit, concurrency int, discover discoverFunc) error {
	if len(targets) == 0 {
		zap.L().Info("no targets to process")
		return nil
	}
	if limit > 0 && len(targets) > limit {
		targets = targets[:limit]
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("targets", len(targets)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed, degraded atomic.Int64

	for _, target := range targets {
		g.Go(func() error {
			log := zap.L().With(zap.String("company", target.Company))

			result, err := discover(gctx, model.EnrichmentRequest{
				TenantID:    batchTenant,
				CompanyName: target.Company,
				Website:     target.Website,
				Tier:        model.ParseTier(batchTier),
			})
			if err != nil {
				failed.Add(1)
				log.Error("discovery failed", zap.Error(err))
				return nil // don't abort the batch on individual failure
			}

			succeeded.Add(1)
			if result.Degraded {
				degraded.Add(1)
			}
			log.Info("discovery complete",
				zap.Int("members", len(result.Members)),
				zap.Float64("cohesion", result.CohesionScore),
				zap.Float64("cost_usd", result.TotalCostUSD),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("degraded", degraded.Load()),
	)
	return nil
}
