// Package cloudwatch extracts and normalizes CloudWatch logs for the
// reporting warehouse. Logs are fetched through Logs Insights so the
// filter work happens server side.
package cloudwatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	perr "foresight/internal/platform/errors"
	"foresight/internal/platform/logger"
)

// Record is one normalized log entry ready for the fact load
type Record struct {
	Timestamp     time.Time
	Stream        string
	Message       string
	Severity      string
	CorrelationID *uuid.UUID
	ScenarioID    *uuid.UUID
	RunID         *uuid.UUID
	UserID        *string
	StackTrace    *string
	ErrorCategory *string
	Metadata      map[string]string
}

// Query describes one extraction window with optional filters
type Query struct {
	Start time.Time
	End   time.Time // zero means now

	CorrelationIDs []string
	ScenarioIDs    []string
	RunIDs         []string
	Severities     []string

	// Limit caps returned events, 0 means the extractor default
	Limit int32
}

// Client is the surface the pipeline depends on
type Client interface {
	// Extract runs one Insights query and returns normalized records
	Extract(ctx context.Context, q Query) ([]Record, error)

	// LogGroup names the group this client reads from
	LogGroup() string
}

// insightsAPI is the slice of the AWS client the extractor uses
type insightsAPI interface {
	StartQuery(ctx context.Context, in *cloudwatchlogs.StartQueryInput,
		opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error)
	GetQueryResults(ctx context.Context, in *cloudwatchlogs.GetQueryResultsInput,
		opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error)
}

const defaultLimit = 10000

// Insights extracts logs through the Logs Insights API
type Insights struct {
	api   insightsAPI
	group string

	// poll knobs, zero values get defaults in Extract
	PollInterval   time.Duration
	PollMaxElapsed time.Duration
}

// NewInsights builds a client for one log group using the ambient AWS config
func NewInsights(ctx context.Context, logGroup, region string) (*Insights, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "load aws config")
	}
	return &Insights{api: cloudwatchlogs.NewFromConfig(cfg), group: logGroup}, nil
}

// NewInsightsWithAPI wires an explicit API implementation, used by tests
func NewInsightsWithAPI(api insightsAPI, logGroup string) *Insights {
	return &Insights{api: api, group: logGroup}
}

// LogGroup names the group this client reads from
func (c *Insights) LogGroup() string { return c.group }

// Extract runs one Insights query and polls until it settles
func (c *Insights) Extract(ctx context.Context, q Query) ([]Record, error) {
	end := q.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	started, err := c.api.StartQuery(ctx, &cloudwatchlogs.StartQueryInput{
		LogGroupName: aws.String(c.group),
		StartTime:    aws.Int64(q.Start.UnixMilli()),
		EndTime:      aws.Int64(end.UnixMilli()),
		QueryString:  aws.String(buildQuery(q)),
		Limit:        aws.Int32(limit),
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "cloudwatch start query")
	}

	results, err := c.poll(ctx, started.QueryId)
	if err != nil {
		return nil, err
	}

	log := logger.C(ctx)
	out := make([]Record, 0, len(results))
	dropped := 0
	for _, row := range results {
		rec, ok := normalize(row)
		if !ok {
			dropped++
			continue
		}
		out = append(out, rec)
	}
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("cloudwatch records missing timestamp or message")
	}
	return out, nil
}

var errQueryRunning = fmt.Errorf("query still running")

func (c *Insights) poll(ctx context.Context, queryID *string) ([][]cwtypes.ResultField, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.PollInterval
	if bo.InitialInterval <= 0 {
		bo.InitialInterval = 500 * time.Millisecond
	}
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = c.PollMaxElapsed
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 2 * time.Minute
	}

	var results [][]cwtypes.ResultField
	err := backoff.Retry(func() error {
		out, err := c.api.GetQueryResults(ctx, &cloudwatchlogs.GetQueryResultsInput{QueryId: queryID})
		if err != nil {
			return backoff.Permanent(perr.Wrapf(err, perr.ErrorCodeUnavailable, "cloudwatch get query results"))
		}
		switch out.Status {
		case cwtypes.QueryStatusComplete:
			results = out.Results
			return nil
		case cwtypes.QueryStatusFailed, cwtypes.QueryStatusCancelled, cwtypes.QueryStatusTimeout:
			return backoff.Permanent(perr.Unavailablef("cloudwatch query ended with status %s", out.Status))
		default:
			return errQueryRunning
		}
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		if err == errQueryRunning {
			return nil, perr.Unavailablef("cloudwatch query did not complete in time")
		}
		return nil, err
	}
	return results, nil
}

// buildQuery assembles the Insights query string
func buildQuery(q Query) string {
	parts := []string{
		"fields @timestamp, @message, @logStream, level, correlationId, scenarioId, runId, userId, stackTrace",
	}

	var filters []string
	if f := orFilter("correlationId", q.CorrelationIDs); f != "" {
		filters = append(filters, f)
	}
	if f := orFilter("scenarioId", q.ScenarioIDs); f != "" {
		filters = append(filters, f)
	}
	if f := orFilter("runId", q.RunIDs); f != "" {
		filters = append(filters, f)
	}
	if f := orFilter("level", q.Severities); f != "" {
		filters = append(filters, f)
	}
	if len(filters) > 0 {
		parts = append(parts, "filter "+strings.Join(filters, " and "))
	}

	parts = append(parts, "sort @timestamp asc")
	return strings.Join(parts, " | ")
}

func orFilter(field string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	terms := make([]string, len(values))
	for i, v := range values {
		terms[i] = fmt.Sprintf("%s = %q", field, v)
	}
	return "(" + strings.Join(terms, " or ") + ")"
}
