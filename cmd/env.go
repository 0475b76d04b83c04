package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/buyergroup-cli/internal/cache"
	"github.com/sells-group/buyergroup-cli/internal/fusion"
	"github.com/sells-group/buyergroup-cli/internal/ledger"
	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/internal/orchestrator"
	"github.com/sells-group/buyergroup-cli/internal/planner"
	"github.com/sells-group/buyergroup-cli/internal/provider"
	"github.com/sells-group/buyergroup-cli/internal/store"
	anthropicpkg "github.com/sells-group/buyergroup-cli/pkg/anthropic"
	"github.com/sells-group/buyergroup-cli/pkg/companygraph"
	"github.com/sells-group/buyergroup-cli/pkg/contactverify"
	"github.com/sells-group/buyergroup-cli/pkg/peopledata"
	sfpkg "github.com/sells-group/buyergroup-cli/pkg/salesforce"
)

// discoverEnv holds the initialized store, budget ledger, provider runner
// and orchestrator shared by the discover/batch/serve commands.
type discoverEnv struct {
	Store  store.Store
	Cache  cache.Cache
	Budget *ledger.Ledger
	Runner *provider.Runner
	Orch   *orchestrator.Orchestrator
}

// Close releases resources held by the environment.
func (e *discoverEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, cache, ledger, provider adapters and the
// orchestrator. Callers should defer env.Close().
func initEnv(ctx context.Context) (*discoverEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	budget := ledger.New(ledger.Caps{
		DailyUSD:     cfg.Budget.DailyCapUSD,
		MonthlyUSD:   cfg.Budget.MonthlyCapUSD,
		WarnFraction: cfg.Budget.WarnFraction,
	}, st)

	registry := provider.NewRegistry()
	registry.Register(provider.NewEmploymentAdapter(
		companygraph.NewClient(cfg.CompanyGraph.Key, companygraph.WithBaseURL(cfg.CompanyGraph.BaseURL)),
		cfg.CompanyGraph.CostPerSearch, cfg.Planner.PreviewLimit))
	registry.Register(provider.NewContactAdapter(
		contactverify.NewClient(cfg.ContactVerify.Key, contactverify.WithBaseURL(cfg.ContactVerify.BaseURL)),
		cfg.ContactVerify.CostPerVerify))
	registry.Register(provider.NewPersonDataAdapter(
		peopledata.NewClient(cfg.PeopleData.Key, peopledata.WithBaseURL(cfg.PeopleData.BaseURL)),
		cfg.PeopleData.CostPerLookup))
	registry.Register(provider.NewAIResearchAdapter(
		anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.SonnetModel))

	runner := provider.NewRunner(registry, budget,
		cfg.CompanyGraph.RatePerSec, int(cfg.CompanyGraph.RatePerSec))

	plans, err := initPlanner()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	fuser, err := initFuser()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	seller, err := sellerContext()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	orchCfg := orchestrator.DefaultConfig()
	if cfg.Discover.CallTimeoutSecs > 0 {
		orchCfg.CallTimeout = time.Duration(cfg.Discover.CallTimeoutSecs) * time.Second
	}
	if cfg.Discover.MaxConcurrentCalls > 0 {
		orchCfg.Concurrency = cfg.Discover.MaxConcurrentCalls
	}
	if cfg.Cache.TTLHours > 0 {
		orchCfg.CacheTTL = time.Duration(cfg.Cache.TTLHours) * time.Hour
	}

	results := initCache()
	orch := orchestrator.New(runner, plans, budget, results, orchCfg).
		WithFuser(fuser).
		WithStore(st).
		WithSellerContext(seller)

	return &discoverEnv{
		Store:  st,
		Cache:  results,
		Budget: budget,
		Runner: runner,
		Orch:   orch,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "buyergroup.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initCache() cache.Cache {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedis(cfg.Cache.RedisAddr, "", 0)
	}
	return cache.NewMemory()
}

func initPlanner() (*planner.Planner, error) {
	var patterns *planner.Patterns
	if cfg.Planner.PatternsPath != "" {
		p, err := planner.LoadPatterns(cfg.Planner.PatternsPath)
		if err != nil {
			return nil, eris.Wrap(err, "load query patterns")
		}
		patterns = p
	}
	costs := planner.DefaultCostTable()
	costs.EmployeeSearchUSD = cfg.CompanyGraph.CostPerSearch
	costs.ContactFindUSD = cfg.ContactVerify.CostPerVerify
	costs.PersonEnrichUSD = cfg.PeopleData.CostPerLookup
	return planner.New(patterns, costs, cfg.Planner.PerRequestCapUSD, cfg.Scoring.GroupMax), nil
}

func initFuser() (*fusion.Fuser, error) {
	rel := fusion.DefaultReliability()
	if cfg.Fusion.ReliabilityPath != "" {
		r, err := fusion.LoadReliability(cfg.Fusion.ReliabilityPath)
		if err != nil {
			return nil, eris.Wrap(err, "load source reliability")
		}
		rel = r
	}
	return fusion.New(rel, cfg.Fusion.FuzzyThreshold), nil
}

// sellerContext builds the selling context from config, loading the title
// denylist from file when one is configured.
func sellerContext() (model.SellerContext, error) {
	sc := model.DefaultSellerContext()
	if cfg.Scoring.GroupMin > 0 {
		sc.GroupMin = cfg.Scoring.GroupMin
	}
	if cfg.Scoring.GroupMax > 0 {
		sc.GroupMax = cfg.Scoring.GroupMax
	}
	if cfg.Scoring.DenylistPath != "" {
		data, err := os.ReadFile(cfg.Scoring.DenylistPath)
		if err != nil {
			return sc, eris.Wrap(err, "read title denylist")
		}
		var titles []string
		if err := yaml.Unmarshal(data, &titles); err != nil {
			return sc, eris.Wrap(err, "parse title denylist")
		}
		sc.DenylistTitles = titles
		zap.L().Info("title denylist loaded", zap.Int("titles", len(titles)))
	}
	return sc, nil
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (BUYERGROUP_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}
