package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/internal/monitoring"
	"github.com/sells-group/buyergroup-cli/internal/orchestrator"
	"github.com/sells-group/buyergroup-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		reg := prometheus.NewRegistry()
		metrics := monitoring.NewMetrics(reg)
		env.Runner.WithObserver(metrics)

		// Background alerting against the result archive.
		checker := monitoring.NewChecker(
			monitoring.NewCollector(env.Store),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		go checker.Run(ctx)

		router := newRouter(env.Orch, env.Store, metrics, reg)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// discoverer is the orchestrator surface the API needs.
type discoverer interface {
	Discover(ctx context.Context, req model.EnrichmentRequest) (*model.BuyerGroupResult, error)
}

// discoverRequest is the POST /v1/discover payload.
type discoverRequest struct {
	CompanyName string  `json:"companyName"`
	Website     string  `json:"website,omitempty"`
	TenantID    string  `json:"tenantId,omitempty"`
	Tier        string  `json:"tier,omitempty"`
	PersonName  string  `json:"personName,omitempty"`
	Role        string  `json:"role,omitempty"`
	MaxCostUSD  float64 `json:"maxCostUsd,omitempty"`
}

// newRouter builds the API routes. Split from serveCmd so handlers can be
// tested against a stub discoverer.
func newRouter(disc discoverer, st store.Store, metrics *monitoring.Metrics, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if reg != nil {
		r.Method("GET", "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/discover", handleDiscover(disc, metrics))
		r.Get("/results/{requestID}", handleGetResult(st))
		r.Get("/spend", handleSpend(st))
	})

	return r
}

func handleDiscover(disc discoverer, metrics *monitoring.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req discoverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}
		if req.CompanyName == "" {
			writeError(w, http.StatusBadRequest, "bad_request", "companyName is required")
			return
		}

		tenant := req.TenantID
		if tenant == "" {
			tenant = "default"
		}

		result, err := disc.Discover(r.Context(), model.EnrichmentRequest{
			TenantID:    tenant,
			CompanyName: req.CompanyName,
			Website:     req.Website,
			PersonName:  req.PersonName,
			Role:        req.Role,
			Tier:        model.ParseTier(req.Tier),
			MaxCostUSD:  req.MaxCostUSD,
		})
		if err != nil {
			kind := orchestrator.KindOf(err)
			writeError(w, statusForKind(kind), string(kind), errorMessage(err))
			return
		}

		if metrics != nil {
			metrics.ObserveRequest(result)
		}

		members := make([]memberPayload, len(result.Members))
		for i, m := range result.Members {
			members[i] = memberView(m)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"buyerGroup": map[string]any{
				"members":          members,
				"totalMembers":     len(result.Members),
				"cohesionScore":    result.CohesionScore,
				"roleDistribution": result.RoleDistribution(),
			},
			"metadata": map[string]any{
				"requestId":        result.RequestID,
				"tier":             result.Tier,
				"state":            result.State,
				"costEstimate":     result.TotalCostUSD,
				"processingTimeMs": result.Elapsed.Milliseconds(),
				"degraded":         result.Degraded,
				"partial":          result.Partial,
				"sourcesUsed":      result.SourcesUsed,
				"warnings":         result.Warnings,
			},
		})
	}
}

func handleGetResult(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestID")
		result, err := st.GetResult(r.Context(), requestID)
		if err != nil {
			zap.L().Error("get result failed", zap.String("request_id", requestID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "failed to load result")
			return
		}
		if result == nil {
			writeError(w, http.StatusNotFound, "not_found", "no result for "+requestID)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleSpend(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := r.URL.Query().Get("tenant")
		if tenant == "" {
			tenant = "default"
		}
		days := 30
		if d := r.URL.Query().Get("days"); d != "" {
			n, err := strconv.Atoi(d)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "bad_request", "days must be a positive integer")
				return
			}
			days = n
		}

		lines, err := st.SpendReport(r.Context(), tenant, time.Now().AddDate(0, 0, -days))
		if err != nil {
			zap.L().Error("spend report failed", zap.String("tenant", tenant), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "failed to build spend report")
			return
		}

		var total float64
		for _, l := range lines {
			total += l.AmountUSD
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"tenant":    tenant,
			"days":      days,
			"totalUsd":  total,
			"providers": lines,
		})
	}
}

// memberPayload is the API view of one group member.
type memberPayload struct {
	CandidateID string   `json:"candidateId"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Department  string   `json:"department,omitempty"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role"`
	RoleScore   float64  `json:"roleScore"`
	Quality     int      `json:"quality"`
	Rationale   []string `json:"rationale,omitempty"`
	Providers   []string `json:"providers"`
}

func memberView(m model.Member) memberPayload {
	return memberPayload{
		CandidateID: m.Candidate.ID,
		Name:        m.Candidate.Str(model.FieldName),
		Title:       m.Candidate.Str(model.FieldTitle),
		Department:  m.Candidate.Str(model.FieldDepartment),
		Email:       m.Candidate.Str(model.FieldEmail),
		Role:        string(m.Role.Role),
		RoleScore:   m.Role.Score,
		Quality:     m.Quality.Overall,
		Rationale:   m.Role.Rationale,
		Providers:   m.Candidate.Providers,
	}
}

func statusForKind(kind orchestrator.ErrorKind) int {
	switch kind {
	case orchestrator.KindCompanyNotFound:
		return http.StatusNotFound
	case orchestrator.KindBudgetExceeded:
		return http.StatusPaymentRequired
	case orchestrator.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	var oe *orchestrator.Error
	if errors.As(err, &oe) {
		return oe.Message()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]any{
		"success":   false,
		"errorKind": kind,
		"message":   message,
	})
}
