package recon

import "fmt"

// JoinPolicy controls how many assay rows per identifier reach the join.
type JoinPolicy string

const (
	// JoinFanOut joins every matching assay row, multiplying tracking rows.
	JoinFanOut JoinPolicy = "fanout"
	// JoinLatest keeps only the most recent run date per identifier.
	JoinLatest JoinPolicy = "latest"
)

// ParseJoinPolicy maps a configuration string onto a JoinPolicy. Empty selects JoinFanOut.
func ParseJoinPolicy(s string) (JoinPolicy, error) {
	switch JoinPolicy(s) {
	case "", JoinFanOut:
		return JoinFanOut, nil
	case JoinLatest:
		return JoinLatest, nil
	default:
		return "", fmt.Errorf("unknown join policy %q", s)
	}
}

// MergeOptions configures Merge.
type MergeOptions struct {
	// ThirdPartyOperator is the operator whose runs populate DATE_RUN_VIVA;
	// every other operator populates DATE_RUN_BROAD.
	ThirdPartyOperator string
	Policy             JoinPolicy
}

// Merge left-joins the tracking table onto the run dates of each operator
// partition. Results are sorted before partitioning and the two joins are
// applied in sequence, so a tracking row yields one reconciled row per
// combination of matching third-party and primary-site runs.
func Merge(tracking TrackingTable, results []AssayResult, opts MergeOptions) ReconciledTable {
	viva, broad := PartitionByOperator(SortResults(results), opts.ThirdPartyOperator)
	vivaDates := runDates(viva, opts.Policy)
	broadDates := runDates(broad, opts.Policy)

	out := ReconciledTable{
		SourceHeader: append([]string(nil), tracking.Header...),
		Records:      make([]ReconciledRecord, 0, len(tracking.Records)),
	}
	for _, rec := range tracking.Records {
		for _, v := range leftMatches(vivaDates, rec.Identifier) {
			for _, b := range leftMatches(broadDates, rec.Identifier) {
				out.Records = append(out.Records, ReconciledRecord{
					TrackingRecord: rec,
					DateRunViva:    v,
					DateRunBroad:   b,
				})
			}
		}
	}
	return out
}

// runDates projects results onto identifier -> run dates, in input order.
func runDates(results []AssayResult, policy JoinPolicy) map[string][]string {
	idx := make(map[string][]string)
	for _, r := range results {
		if policy == JoinLatest {
			if cur, ok := idx[r.Identifier]; ok && cur[0] >= r.Date {
				continue
			}
			idx[r.Identifier] = []string{r.Date}
			continue
		}
		idx[r.Identifier] = append(idx[r.Identifier], r.Date)
	}
	return idx
}

// leftMatches returns the join-side values for id; a single Missing when
// nothing matches.
func leftMatches(idx map[string][]string, id string) []Value {
	dates := idx[id]
	if len(dates) == 0 {
		return []Value{Missing}
	}
	out := make([]Value, len(dates))
	for i, d := range dates {
		out[i] = Text(d)
	}
	return out
}
