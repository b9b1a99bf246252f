package cloudwatch

import (
	"regexp"
	"strings"
	"time"

	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/google/uuid"
)

// Insights timestamp layouts seen in the wild
var timestampLayouts = []string{
	"2006-01-02 15:04:05.000",
	time.RFC3339Nano,
	time.RFC3339,
}

// normalize converts one Insights result row into a Record.
// Rows without a timestamp or message carry nothing useful and are dropped.
func normalize(row []cwtypes.ResultField) (Record, bool) {
	fields := make(map[string]string, len(row))
	for _, f := range row {
		if f.Field != nil && f.Value != nil {
			fields[*f.Field] = *f.Value
		}
	}

	tsRaw, message := fields["@timestamp"], fields["@message"]
	if tsRaw == "" || message == "" {
		return Record{}, false
	}
	ts, ok := parseTimestamp(tsRaw)
	if !ok {
		return Record{}, false
	}

	stream := fields["@logStream"]
	if stream == "" {
		stream = "unknown"
	}
	severity := strings.ToUpper(fields["level"])
	if severity == "" {
		severity = "INFO"
	}

	rec := Record{
		Timestamp:     ts,
		Stream:        stream,
		Message:       message,
		Severity:      severity,
		CorrelationID: parseUUID(fields["correlationId"]),
		ScenarioID:    parseUUID(fields["scenarioId"]),
		RunID:         parseUUID(fields["runId"]),
		UserID:        optional(fields["userId"]),
		StackTrace:    optional(fields["stackTrace"]),
		ErrorCategory: Categorize(message),
	}

	meta := make(map[string]string)
	for k, v := range fields {
		switch k {
		case "@timestamp", "@message", "@logStream", "level",
			"correlationId", "scenarioId", "runId", "userId", "stackTrace":
		default:
			meta[k] = v
		}
	}
	if len(meta) > 0 {
		rec.Metadata = meta
	}
	return rec, true
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// errorPatterns bucket messages into coarse categories for aggregation.
// First match wins, order matters for overlapping vocabularies.
var errorPatterns = []struct {
	category string
	re       *regexp.Regexp
}{
	{"timeout", regexp.MustCompile(`timeout|timed out|deadline exceeded`)},
	{"validation", regexp.MustCompile(`validation|invalid|missing required|constraint`)},
	{"database", regexp.MustCompile(`database|sql|connection|deadlock|transaction`)},
	{"calculation", regexp.MustCompile(`calculation|compute|division by zero|nan|infinity`)},
	{"permission", regexp.MustCompile(`permission|unauthorized|forbidden|access denied`)},
	{"not_found", regexp.MustCompile(`not found|does not exist|missing`)},
	{"network", regexp.MustCompile(`network|connection refused|unreachable`)},
	{"config", regexp.MustCompile(`configuration|config|missing env|invalid setting`)},
}

// Categorize buckets a message by its error vocabulary
func Categorize(message string) *string {
	lower := strings.ToLower(message)
	for _, p := range errorPatterns {
		if p.re.MatchString(lower) {
			c := p.category
			return &c
		}
	}
	c := "uncategorized"
	return &c
}
