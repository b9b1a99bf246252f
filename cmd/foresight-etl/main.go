// Command foresight-etl runs the RCA reporting ETL: audit trail
// extraction from the forecast OLTP database and optional CloudWatch
// log ingestion, loaded into the rpt schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"foresight/internal/core/version"
	"foresight/internal/modkit/repokit"
	"foresight/internal/platform/config"
	"foresight/internal/platform/logger"
	"foresight/internal/platform/store"

	"foresight/internal/adapters/cloudwatch"
	pipesvc "foresight/internal/services/pipeline/service"
	runsrepo "foresight/internal/services/runs/repo"
	runsvc "foresight/internal/services/runs/service"
	scenrepo "foresight/internal/services/scenario/repo"
	scensvc "foresight/internal/services/scenario/service"
	whrepo "foresight/internal/services/warehouse/repo"
	whsvc "foresight/internal/services/warehouse/service"
)

const runTimeout = 30 * time.Minute

func main() {
	// .env is optional, real deployments use the environment directly
	_ = godotenv.Load()

	root := config.New()
	srcCfg := root.Prefix("SOURCE_PGSQL_")
	rptCfg := root.Prefix("REPORT_PGSQL_")
	cwCfg := root.Prefix("CLOUDWATCH_")

	l := logger.Get()
	l.Info().Interface("build", version.Info()).Msg("starting foresight-etl")

	var (
		fFull        = flag.Bool("full", false, "full load (all data)")
		fIncremental = flag.Bool("incremental", false, "incremental load from the watermark")
		fScenarioID  = flag.String("scenario-id", "", "load one scenario's full history")
		fSinceHours  = flag.Int("since-hours", 0, "override the incremental window in hours")

		fCloudWatchDays = flag.Int("cloudwatch-days", 0, "load CloudWatch logs for the last N days")
		fEnvironment    = flag.String("environment", "dev", "environment: dev, sit, uat or prod")
		fMockCW         = flag.Bool("mock-cloudwatch", false, "use generated sample logs instead of AWS")
	)
	flag.Parse()

	modes := 0
	for _, on := range []bool{*fFull, *fIncremental, *fScenarioID != ""} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		l.Panic().Msg("-full, -incremental and -scenario-id are mutually exclusive")
	}
	if modes == 0 && *fCloudWatchDays <= 0 {
		l.Panic().Msg("must specify one of: -full, -incremental, -scenario-id, -cloudwatch-days")
	}
	switch *fEnvironment {
	case "dev", "sit", "uat", "prod":
	default:
		l.Panic().Str("environment", *fEnvironment).Msg("unknown environment")
	}

	var scenarioID *uuid.UUID
	if *fScenarioID != "" {
		id, err := uuid.Parse(*fScenarioID)
		if err != nil {
			l.Panic().Err(err).Msg("bad -scenario-id")
		}
		scenarioID = &id
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	runID := uuid.NewString()
	ctx = logger.WithRequest(ctx, runID, runID)
	log := logger.C(ctx)

	stCfg := store.Config{
		AppName: "foresight-etl",
		Report: store.PGConfig{
			Enabled:     true,
			URL:         rptCfg.MustString("DBURL"),
			MaxConns:    int32(rptCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: rptCfg.MayInt("SLOW_MS", 500),
			LogSQL:      rptCfg.MayBool("LOG_SQL", false),
		},
	}
	// a cloudwatch-only pass never touches the OLTP source
	if modes > 0 {
		stCfg.Source = store.PGConfig{
			Enabled:     true,
			URL:         srcCfg.MustString("DBURL"),
			MaxConns:    int32(srcCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: srcCfg.MayInt("SLOW_MS", 500),
			LogSQL:      srcCfg.MayBool("LOG_SQL", false),
		}
	}

	st, err := store.Open(ctx, stCfg, store.WithLogger(*l))
	if err != nil {
		log.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	repokit.MustGuard(ctx, st)

	// cap how long any one load batch can hold the warehouse
	stmtTimeoutMs := rptCfg.MayInt("STMT_TIMEOUT_MS", 120000)
	report := repokit.WithBeginHooks(st.Report, func(ctx context.Context, q repokit.Queryer) error {
		_, err := q.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", stmtTimeoutMs))
		return err
	})

	loader := whsvc.NewLoader(report, whrepo.NewPG())
	watermarks := whsvc.NewWatermarks(report, whrepo.NewWatermarkPG())

	pipe := pipesvc.New(
		scensvc.New(st.Source, scenrepo.NewPG()),
		runsvc.New(st.Source, runsrepo.NewPG()),
		loader,
		watermarks,
	)

	failed := false

	if modes > 0 {
		sum, err := pipe.RunAuditTrail(ctx, pipesvc.AuditTrailOptions{
			Full:       *fFull,
			ScenarioID: scenarioID,
			SinceHours: *fSinceHours,
		})
		if err != nil {
			log.Error().Err(err).Msg("audit trail ETL failed")
			failed = true
		} else {
			log.Info().
				Int("state_changes", sum.StateChanges.Loaded).
				Int("user_actions", sum.UserActions.Loaded).
				Int("input_changes", sum.InputChanges.Loaded).
				Int("runs", sum.Runs.Loaded).
				Int("diagnostics", sum.Diagnostics.Loaded).
				Int("skipped", sum.StateChanges.Skipped+sum.UserActions.Skipped+
					sum.InputChanges.Skipped+sum.Runs.Skipped+sum.Diagnostics.Skipped).
				Int("lifecycle_violations", sum.LifecycleViolations).
				Int("missing_correlation", sum.MissingCorrelation).
				Dur("elapsed", sum.Elapsed).
				Msg("audit trail ETL done")
		}
	}

	if *fCloudWatchDays > 0 {
		var client cloudwatch.Client
		if *fMockCW {
			log.Warn().Msg("using mock CloudWatch logs, no AWS credentials needed")
			client = cloudwatch.NewMock()
		} else {
			group := cwCfg.MayString("LOG_GROUP",
				fmt.Sprintf("/aws/lambda/forecast-service-%s", *fEnvironment))
			region := cwCfg.MayString("REGION", "us-east-1")
			client, err = cloudwatch.NewInsights(ctx, group, region)
			if err != nil {
				log.Panic().Err(err).Msg("cloudwatch client init failed")
			}
		}

		sum, err := pipe.RunCloudWatch(ctx, client, pipesvc.CloudWatchOptions{
			Days:        *fCloudWatchDays,
			Environment: *fEnvironment,
		})
		if err != nil {
			log.Error().Err(err).Msg("cloudwatch ETL failed")
			failed = true
		} else {
			log.Info().
				Int("logs", sum.Logs.Loaded).
				Time("window_start", sum.Start).
				Time("window_end", sum.End).
				Dur("elapsed", sum.Elapsed).
				Msg("cloudwatch ETL done")
		}
	}

	if failed {
		os.Exit(1)
	}
}
