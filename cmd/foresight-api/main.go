// Command foresight-api serves the RCA dashboard read API over the
// reporting warehouse.
package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"

	"foresight/internal/core/version"
	"foresight/internal/modkit/repokit"
	"foresight/internal/platform/config"
	"foresight/internal/platform/logger"
	phttp "foresight/internal/platform/net/http"
	"foresight/internal/platform/net/middleware"
	"foresight/internal/platform/store"

	metahttp "foresight/internal/services/meta/http"
	rcahttp "foresight/internal/services/rca/http"
	rcarepo "foresight/internal/services/rca/repo"
	rcasvc "foresight/internal/services/rca/service"
)

func main() {
	_ = godotenv.Load()

	root := config.New()
	apiCfg := root.Prefix("RCA_API_")
	rptCfg := root.Prefix("REPORT_PGSQL_")

	l := logger.Get()
	l.Info().Interface("build", version.Info()).Msg("starting foresight-api")

	startedAt := time.Now()

	st, err := store.Open(context.Background(), store.Config{
		AppName: "foresight-api",
		Report: store.PGConfig{
			Enabled:     true,
			URL:         rptCfg.MustString("DBURL"),
			MaxConns:    int32(rptCfg.MayInt("MAX_CONNS", 8)),
			SlowQueryMs: rptCfg.MayInt("SLOW_MS", 500),
			LogSQL:      rptCfg.MayBool("LOG_SQL", false),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	repokit.MustGuard(context.Background(), st)

	svc := rcasvc.New(st.Report, rcarepo.NewPG())
	defer svc.Close()

	srv := phttp.NewServer(apiCfg)
	r := srv.Router()

	for _, mw := range middleware.Defaults() {
		r.Use(mw)
	}
	r.Use(middleware.CORS(middleware.CORSOptions{
		AllowedOrigins: apiCfg.MayCSV("CORS_ORIGINS", []string{"*"}),
	}))
	r.Use(middleware.AccessLogZerolog(middleware.AccessLogOptions{}))

	phttp.MountProfiler(r, "/debug", apiCfg.MayBool("PROFILER", false))
	r.Route("/api/v1/meta", func(meta phttp.Router) {
		metahttp.Register(meta, metahttp.Deps{
			ServiceName: "foresight-api",
			StartedAt:   startedAt,
			Report:      st.Report,
		})
	})
	r.Route("/api/v1/rca", func(api phttp.Router) {
		rcahttp.Register(api, svc)
	})

	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
