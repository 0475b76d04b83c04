package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/buyergroup-cli/internal/export"
	"github.com/sells-group/buyergroup-cli/internal/model"
)

var (
	discoverCompany string
	discoverWebsite string
	discoverTenant  string
	discoverTier    string
	discoverPerson  string
	discoverRole    string
	discoverMaxUSD  float64
	discoverXLSX    string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover the buyer group for a single company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := model.EnrichmentRequest{
			TenantID:    discoverTenant,
			CompanyName: discoverCompany,
			Website:     discoverWebsite,
			PersonName:  discoverPerson,
			Role:        discoverRole,
			Tier:        model.ParseTier(discoverTier),
			MaxCostUSD:  discoverMaxUSD,
		}

		result, err := env.Orch.Discover(ctx, req)
		if err != nil {
			return eris.Wrap(err, "discover")
		}

		zap.L().Info("discovery complete",
			zap.String("company", result.CompanyName),
			zap.String("tier", string(result.Tier)),
			zap.Int("members", len(result.Members)),
			zap.Float64("cohesion", result.CohesionScore),
			zap.Float64("cost_usd", result.TotalCostUSD),
		)

		if discoverXLSX != "" {
			if err := export.WriteXLSX(result, discoverXLSX); err != nil {
				return err
			}
			zap.L().Info("report written", zap.String("path", discoverXLSX))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverCompany, "company", "", "target company name (required)")
	discoverCmd.Flags().StringVar(&discoverWebsite, "website", "", "company website, disambiguates the resolve step")
	discoverCmd.Flags().StringVar(&discoverTenant, "tenant", "default", "tenant the spend is billed to")
	discoverCmd.Flags().StringVar(&discoverTier, "tier", "identify", "enrichment tier: identify, enrich or deep_research")
	discoverCmd.Flags().StringVar(&discoverPerson, "person", "", "seed person name")
	discoverCmd.Flags().StringVar(&discoverRole, "role", "", "seed role or title")
	discoverCmd.Flags().Float64Var(&discoverMaxUSD, "max-cost", 0, "per-request cost cap in USD (0 = tenant default)")
	discoverCmd.Flags().StringVar(&discoverXLSX, "xlsx", "", "also write an XLSX report to this path")
	_ = discoverCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(discoverCmd)
}
