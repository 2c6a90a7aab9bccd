package ratingdomain

import (
	"sort"
	"strings"
)

// Vote-resolution thresholds.
const (
	soleMajorityRunnerUpMax = 1
	clearMajorityMargin     = 3
)

// ResultAggregator collects raw per-army result reports from multiple
// independent reporters and resolves, per army, a single outcome, score and
// metadata set via voting rules.
//
// It is not safe for concurrent use; the game owning the aggregator
// serializes report handling.
type ResultAggregator struct {
	armies map[ArmyID]*armyReports
}

func NewResultAggregator() *ResultAggregator {
	return &ResultAggregator{armies: make(map[ArmyID]*armyReports)}
}

// Add appends a report to its army's log and invalidates the memoized
// resolution for that army. The report's metadata is canonicalized on entry.
func (a *ResultAggregator) Add(report Report) {
	report.Metadata = canonicalMetadata(report.Metadata)
	log, ok := a.armies[report.ArmyID]
	if !ok {
		log = &armyReports{}
		a.armies[report.ArmyID] = log
	}
	log.reports = append(log.reports, report)
	log.resolved = nil
}

// Reports returns a copy of the army's report log in arrival order.
func (a *ResultAggregator) Reports(armyID ArmyID) []Report {
	log, ok := a.armies[armyID]
	if !ok {
		return nil
	}
	out := make([]Report, len(log.reports))
	copy(out, log.reports)
	return out
}

// Outcome resolves a single outcome for the army.
//
// With no reports the outcome is UNKNOWN. If every report agrees (after
// folding MUTUAL_DRAW into DRAW) that outcome wins outright. Otherwise votes
// are tallied per distinct reporter and the majority rule applies: the
// leading outcome wins iff it has more than one vote while the runner-up has
// at most one, or it leads the runner-up by at least three votes. Anything
// else is CONFLICTING.
func (a *ResultAggregator) Outcome(armyID ArmyID) ResolvedOutcome {
	log, ok := a.armies[armyID]
	if !ok || len(log.reports) == 0 {
		return ResolvedUnknown
	}
	if log.resolved != nil {
		return *log.resolved
	}
	resolved := resolveVotes(log.reports)
	log.resolved = &resolved
	return resolved
}

func resolveVotes(reports []Report) ResolvedOutcome {
	unanimous := true
	first := reports[0].Outcome.Resolved()

	// One vote per distinct reporter per claimed outcome; duplicate reports
	// from the same reporter do not add weight.
	voters := make(map[ResolvedOutcome]map[PlayerID]struct{})
	for _, r := range reports {
		claim := r.Outcome.Resolved()
		if claim != first {
			unanimous = false
		}
		if voters[claim] == nil {
			voters[claim] = make(map[PlayerID]struct{})
		}
		voters[claim][r.ReporterID] = struct{}{}
	}
	if unanimous {
		return first
	}

	type tally struct {
		outcome ResolvedOutcome
		votes   int
	}
	tallies := make([]tally, 0, len(voters))
	for outcome, ids := range voters {
		tallies = append(tallies, tally{outcome: outcome, votes: len(ids)})
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].votes != tallies[j].votes {
			return tallies[i].votes > tallies[j].votes
		}
		return tallies[i].outcome < tallies[j].outcome
	})

	top := tallies[0].votes
	runnerUp := 0
	if len(tallies) > 1 {
		runnerUp = tallies[1].votes
	}
	if (top > 1 && runnerUp <= soleMajorityRunnerUpMax) || top >= runnerUp+clearMajorityMargin {
		return tallies[0].outcome
	}
	return ResolvedConflicting
}

// Score returns the most frequently reported score for the army, breaking
// ties in favor of the larger value. No reports means 0.
func (a *ResultAggregator) Score(armyID ArmyID) int {
	log, ok := a.armies[armyID]
	if !ok || len(log.reports) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, r := range log.reports {
		counts[r.Score]++
	}
	best, bestCount := 0, 0
	for score, count := range counts {
		if count > bestCount || (count == bestCount && score > best) {
			best, bestCount = score, count
		}
	}
	return best
}

// Metadata returns the most frequently reported metadata set for the army,
// compared by exact set equality. A tie between distinct sets is unresolved
// and yields an empty set.
func (a *ResultAggregator) Metadata(armyID ArmyID) []string {
	log, ok := a.armies[armyID]
	if !ok || len(log.reports) == 0 {
		return nil
	}
	type candidate struct {
		tags  []string
		count int
	}
	counts := make(map[string]*candidate)
	for _, r := range log.reports {
		key := strings.Join(r.Metadata, "\x1f")
		if c, ok := counts[key]; ok {
			c.count++
		} else {
			counts[key] = &candidate{tags: r.Metadata, count: 1}
		}
	}
	var best *candidate
	tied := false
	for _, c := range counts {
		switch {
		case best == nil || c.count > best.count:
			best, tied = c, false
		case c.count == best.count:
			tied = true
		}
	}
	if tied {
		return nil
	}
	out := make([]string, len(best.tags))
	copy(out, best.tags)
	return out
}

// IsMutuallyAgreedDraw reports whether every given army has at least one
// report and every report for every one of them claims MUTUAL_DRAW.
func (a *ResultAggregator) IsMutuallyAgreedDraw(armyIDs []ArmyID) bool {
	for _, id := range armyIDs {
		log, ok := a.armies[id]
		if !ok || len(log.reports) == 0 {
			return false
		}
		for _, r := range log.reports {
			if r.Outcome != ReportedMutualDraw {
				return false
			}
		}
	}
	return true
}
