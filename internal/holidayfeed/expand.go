package holidayfeed

import (
	"context"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "labsched/internal/log"
	"labsched/internal/model"
)

// Cap on expanded instances per recurring entry. A holiday feed with a
// yearly rule stays far under this; hitting it means a broken rule.
const maxInstancesPerEntry = 500

// Overrides fetches, parses, and expands all feeds into a flat override
// list covering [rangeStart, rangeEnd]. Failures degrade: an unreachable or
// unparseable feed contributes nothing, the run continues on the rest.
func Overrides(ctx context.Context, fetcher *Fetcher, sources []Source, rangeStart, rangeEnd time.Time) []model.Override {
	if len(sources) == 0 {
		return nil
	}

	results, _ := fetcher.FetchAll(ctx, sources)

	var out []model.Override
	for _, res := range results {
		events, err := parseFeed(res.Source, res.Body)
		if err != nil {
			appLog.Error("holiday feed unusable", err, "id", res.Source.ID)
			continue
		}
		out = append(out, expand(events, rangeStart, rangeEnd)...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// expand turns feed entries into concrete override dates within the range.
// Non-recurring entries contribute their start date; recurring entries are
// expanded through their RRULE with EXDATEs removed.
func expand(events []feedEvent, rangeStart, rangeEnd time.Time) []model.Override {
	rangeStart = model.Day(rangeStart)
	rangeEnd = model.Day(rangeEnd)

	var out []model.Override
	for _, ev := range events {
		if ev.RawRRule == "" {
			day := model.Day(ev.Start)
			if !day.Before(rangeStart) && !day.After(rangeEnd) {
				out = append(out, model.Override{Date: day, Name: ev.Summary})
			}
			continue
		}

		r, err := rrule.StrToRRule(ev.RawRRule)
		if err != nil {
			appLog.Warn("skipping feed entry with bad RRULE", "uid", ev.UID, "rrule", ev.RawRRule)
			continue
		}
		r.DTStart(ev.Start)

		var set rrule.Set
		set.RRule(r)
		for _, ex := range ev.ExDates {
			set.ExDate(ex.In(ev.Start.Location()))
		}

		instances := set.Between(
			rangeStart.In(ev.Start.Location()),
			// Between is inclusive of bounds but compares full timestamps;
			// push the end to the last instant of the range day.
			rangeEnd.Add(24*time.Hour-time.Nanosecond).In(ev.Start.Location()),
			true,
		)
		if len(instances) > maxInstancesPerEntry {
			appLog.Warn("truncating feed entry expansion", "uid", ev.UID, "cap", maxInstancesPerEntry)
			instances = instances[:maxInstancesPerEntry]
		}
		for _, inst := range instances {
			out = append(out, model.Override{Date: model.Day(inst), Name: ev.Summary})
		}
	}
	return out
}
