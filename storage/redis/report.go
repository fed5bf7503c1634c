package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
)

// Shared-store key names written by the external measurement process.
// These are a wire contract and must be preserved bit-for-bit.
const (
	keyTotalUsage  = "total_usage"
	keyAppsCount   = "apps_count"
	keyTopApps     = "top_apps"
	keyLastUpdated = "last_updated"
)

// ReportReader implements screenpaw.ReportStore over Redis for deployments
// where the reporter publishes through Redis instead of a shared file.
// Every call re-reads all four keys; nothing is cached, since the reporter
// may write between polls. The reader never writes.
type ReportReader struct {
	client redis.UniversalClient

	// prefix is optional; the bare key names are the reporter's contract,
	// but some deployments namespace the whole store
	prefix string
}

// NewReportReader creates a reader over the reporter's Redis keys.
// prefix may be empty.
func NewReportReader(client redis.UniversalClient, prefix string) (*ReportReader, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &ReportReader{client: client, prefix: prefix}, nil
}

// ReadReport implements screenpaw.ReportStore
func (r *ReportReader) ReadReport(ctx context.Context) (*screenpaw.SharedReport, error) {
	values, err := r.client.MGet(ctx,
		r.prefix+keyTotalUsage,
		r.prefix+keyAppsCount,
		r.prefix+keyTopApps,
		r.prefix+keyLastUpdated,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read shared store: %w", err)
	}

	report := &screenpaw.SharedReport{}
	if report.TotalMinutes, err = intValue(values[0]); err != nil {
		return nil, fmt.Errorf("bad %s value: %w", keyTotalUsage, err)
	}
	if report.AppCount, err = intValue(values[1]); err != nil {
		return nil, fmt.Errorf("bad %s value: %w", keyAppsCount, err)
	}
	if raw, ok := values[2].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &report.TopApps); err != nil {
			return nil, fmt.Errorf("bad %s value: %w", keyTopApps, err)
		}
	}
	if report.LastUpdated, err = floatValue(values[3]); err != nil {
		return nil, fmt.Errorf("bad %s value: %w", keyLastUpdated, err)
	}
	return report, nil
}

// intValue parses an MGET result that may be absent (nil)
func intValue(v interface{}) (int, error) {
	raw, ok := v.(string)
	if !ok || raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// floatValue parses an MGET result that may be absent (nil)
func floatValue(v interface{}) (float64, error) {
	raw, ok := v.(string)
	if !ok || raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func sortGoals(goals []*screenpaw.Goal) {
	sort.Slice(goals, func(i, j int) bool { return goals[i].AppID < goals[j].AppID })
}

func sortPlans(plans []*screenpaw.WeeklyPlan) {
	sort.Slice(plans, func(i, j int) bool { return plans[i].WeekStart < plans[j].WeekStart })
}

func sortSnapshots(snaps []*screenpaw.Snapshot) {
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].AppID < snaps[j].AppID })
}

func sortOutcomes(outcomes []*screenpaw.DayOutcome) {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Day < outcomes[j].Day })
}
