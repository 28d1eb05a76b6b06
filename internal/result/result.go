package result

import (
	"github.com/iancoleman/orderedmap"
)

// Row is the per-test aggregate accumulated across trials.
type Row struct {
	Title       string `json:"title"`
	TestID      string `json:"test_id"`
	ReportOn    bool   `json:"report_on"`
	Attempts    int    `json:"attempts"`
	OldFailures int    `json:"old_failures"`
	NewFailures int    `json:"new_failures"`
}

// Set is the serializable aggregate for one campaign run.
type Set struct {
	Results []*Row `json:"results"`
}

// Combine merges independently-run sets by test id: counters sum, report_on
// ORs, titles keep their first-seen value. Row order follows first
// appearance across the inputs, so combining preserves declaration order.
func Combine(sets ...*Set) *Set {
	merged := orderedmap.New()
	for _, s := range sets {
		if s == nil {
			continue
		}
		for _, row := range s.Results {
			if v, ok := merged.Get(row.TestID); ok {
				acc := v.(*Row)
				acc.Attempts += row.Attempts
				acc.OldFailures += row.OldFailures
				acc.NewFailures += row.NewFailures
				acc.ReportOn = acc.ReportOn || row.ReportOn
			} else {
				copied := *row
				merged.Set(row.TestID, &copied)
			}
		}
	}
	out := &Set{}
	for _, key := range merged.Keys() {
		v, _ := merged.Get(key)
		out.Results = append(out.Results, v.(*Row))
	}
	return out
}
