package ratingdomain

import "sort"

// Report is one reporter's claim about one army's result at end of match.
// Reports are immutable once created: an army accumulates an ordered list of
// them over the life of a match and none is ever deleted or rewritten.
type Report struct {
	ReporterID PlayerID
	ArmyID     ArmyID
	Outcome    ReportedOutcome
	Score      int
	Metadata   []string
}

// canonicalMetadata returns a sorted, de-duplicated copy of the tag set so
// that set equality reduces to slice equality.
func canonicalMetadata(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// armyReports is the append-only report log for one army. The resolved
// outcome is memoized and recomputed only after a new report lands.
type armyReports struct {
	reports  []Report
	resolved *ResolvedOutcome
}
