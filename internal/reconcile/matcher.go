// Package reconcile matches previously-recorded findings between the
// source and destination servers by structural fingerprint and replays
// the source's triage decisions onto the matched destination records.
package reconcile

import (
	"github.com/sonar-solutions/cloudvoyager/pkg/models"
)

// Fingerprint is the structural identity used to correlate findings across
// two servers that share no primary key.
type Fingerprint struct {
	Rule string
	Path string
	Line int
}

// fingerprintOf derives a finding's fingerprint. Findings lacking a rule
// identifier or component path can never match and report ok=false.
func fingerprintOf(f models.Finding) (Fingerprint, bool) {
	if f.Rule == "" || f.Path == "" {
		return Fingerprint{}, false
	}
	return Fingerprint{
		Rule: f.Rule,
		Path: f.Path,
		Line: f.StartLine(),
	}, true
}

// matchedPair is an ephemeral source/destination pairing, valid for one
// sync run only.
type matchedPair struct {
	source models.Finding
	dest   models.Finding
}

// destCandidate is one destination finding awaiting a match.
type destCandidate struct {
	finding  models.Finding
	consumed bool
}

// destIndex indexes destination findings by fingerprint, preserving the
// order the destination API returned them in.
type destIndex struct {
	candidates map[Fingerprint][]*destCandidate
}

func newDestIndex(findings []models.Finding) *destIndex {
	ix := &destIndex{candidates: make(map[Fingerprint][]*destCandidate)}
	for _, f := range findings {
		fp, ok := fingerprintOf(f)
		if !ok {
			continue
		}
		ix.candidates[fp] = append(ix.candidates[fp], &destCandidate{finding: f})
	}
	return ix
}

// take consumes the first unconsumed candidate for a fingerprint. Each
// candidate is handed out at most once per run.
func (ix *destIndex) take(fp Fingerprint) (models.Finding, bool) {
	for _, c := range ix.candidates[fp] {
		if !c.consumed {
			c.consumed = true
			return c.finding, true
		}
	}
	return models.Finding{}, false
}

// matchFindings pairs source findings with destination findings sharing
// their fingerprint. Fingerprint collisions are broken by arrival order on
// both sides (first unconsumed candidate wins); this is a heuristic, not a
// strong identity guarantee. Unmatched source findings are simply not
// synced and do not count as failures.
func matchFindings(source, dest []models.Finding) []matchedPair {
	ix := newDestIndex(dest)

	var pairs []matchedPair
	for _, src := range source {
		fp, ok := fingerprintOf(src)
		if !ok {
			continue
		}
		candidate, ok := ix.take(fp)
		if !ok {
			continue
		}
		pairs = append(pairs, matchedPair{source: src, dest: candidate})
	}
	return pairs
}
