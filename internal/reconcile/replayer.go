package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/sonar-solutions/cloudvoyager/internal/logging"
	"github.com/sonar-solutions/cloudvoyager/pkg/models"
)

// commentMarker is the provenance prefix identifying replayed comments.
const commentMarker = "Migrated from SonarQube"

// IssueWriter applies triage mutations to destination issues.
type IssueWriter interface {
	TransitionIssue(issueKey, transition string) error
	AssignIssue(issueKey, assignee string) error
	CommentIssue(issueKey, text string) error
	SetIssueTags(issueKey string, tags []string) error
}

// HotspotWriter applies triage mutations to destination hotspots.
type HotspotWriter interface {
	ChangeHotspotStatus(hotspotKey, status, resolution string) error
	AssignHotspot(hotspotKey, assignee string) error
	CommentHotspot(hotspotKey, text string) error
}

// Ledger records reconciliation progress in transfer state: which source
// findings were already reconciled and which comments were already
// replayed, so that re-running the sync does not re-post them.
type Ledger interface {
	MarkFindingProcessed(key string)
	HasPostedComment(digest string) bool
	RecordPostedComment(digest string)
}

// issueTransition computes the destination workflow transition for a
// source issue. An empty result means no transition applies.
func issueTransition(src models.Finding) string {
	switch {
	case src.Status == "CONFIRMED":
		return "confirm"
	case src.Resolution == "FALSE-POSITIVE":
		return "falsepositive"
	case src.Resolution == "WONTFIX":
		return "wontfix"
	case src.Status == "RESOLVED" || src.Status == "CLOSED":
		return "resolve"
	case src.Status == "ACCEPTED":
		return "accept"
	}
	return ""
}

// hotspotTarget computes the destination status and resolution for a
// source hotspot. ok=false means the hotspot has no mapping and is skipped.
func hotspotTarget(src models.Finding) (status, resolution string, ok bool) {
	if src.Status == "REVIEWED" {
		return "REVIEWED", "SAFE", true
	}
	if src.Resolution == "ACKNOWLEDGED" || src.Resolution == "FIXED" {
		return "REVIEWED", src.Resolution, true
	}
	return "", "", false
}

// counters accumulates reconciliation statistics across workers. Only the
// aggregate counts are deterministic; completion order is not.
type counters struct {
	mu     sync.Mutex
	result models.ReconcileResult
}

func (c *counters) bump(fn func(r *models.ReconcileResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.result)
}

// replayer applies the four workflow operations of one matched pair. Each
// operation is attempted independently; an operation's failure is logged
// and counted but never blocks the remaining operations or other pairs.
type replayer struct {
	issues   IssueWriter
	hotspots HotspotWriter

	ledgerMu sync.Mutex
	ledger   Ledger
}

// markProcessed records a reconciled source finding key in the ledger.
func (r *replayer) markProcessed(key string) {
	if r.ledger == nil {
		return
	}
	r.ledgerMu.Lock()
	defer r.ledgerMu.Unlock()
	r.ledger.MarkFindingProcessed(key)
}

func (r *replayer) replayIssue(pair matchedPair, c *counters) {
	src, dst := pair.source, pair.dest

	if tr := issueTransition(src); tr != "" && src.Status != dst.Status {
		if err := r.issues.TransitionIssue(dst.Key, tr); err != nil {
			c.bump(func(res *models.ReconcileResult) { res.Failed++ })
			logging.Error("issue transition failed",
				"issue", dst.Key,
				"transition", tr,
				"error", err)
		}
		c.bump(func(res *models.ReconcileResult) { res.StatusChanged++ })
	}

	if src.Assignee != "" && src.Assignee != dst.Assignee {
		if err := r.issues.AssignIssue(dst.Key, src.Assignee); err != nil {
			c.bump(func(res *models.ReconcileResult) { res.Failed++ })
			logging.Error("issue assignment failed",
				"issue", dst.Key,
				"assignee", src.Assignee,
				"error", err)
		}
		c.bump(func(res *models.ReconcileResult) { res.Assigned++ })
	}

	r.replayComments(src, dst, c, func(text string) error {
		return r.issues.CommentIssue(dst.Key, text)
	})

	if len(src.Tags) > 0 {
		if err := r.issues.SetIssueTags(dst.Key, src.Tags); err != nil {
			c.bump(func(res *models.ReconcileResult) { res.Failed++ })
			logging.Error("issue tag update failed",
				"issue", dst.Key,
				"error", err)
		}
		c.bump(func(res *models.ReconcileResult) { res.Tagged++ })
	}

	r.markProcessed(src.Key)
}

func (r *replayer) replayHotspot(pair matchedPair, c *counters) {
	src, dst := pair.source, pair.dest

	status, resolution, ok := hotspotTarget(src)
	if ok && dst.Status == "TO_REVIEW" && src.Status != "TO_REVIEW" {
		if err := r.hotspots.ChangeHotspotStatus(dst.Key, status, resolution); err != nil {
			c.bump(func(res *models.ReconcileResult) { res.Failed++ })
			logging.Error("hotspot status change failed",
				"hotspot", dst.Key,
				"status", status,
				"resolution", resolution,
				"error", err)
		}
		c.bump(func(res *models.ReconcileResult) { res.StatusChanged++ })
	}

	if src.Assignee != "" && src.Assignee != dst.Assignee {
		if err := r.hotspots.AssignHotspot(dst.Key, src.Assignee); err != nil {
			c.bump(func(res *models.ReconcileResult) { res.Failed++ })
			logging.Error("hotspot assignment failed",
				"hotspot", dst.Key,
				"assignee", src.Assignee,
				"error", err)
		}
		c.bump(func(res *models.ReconcileResult) { res.Assigned++ })
	}

	r.replayComments(src, dst, c, func(text string) error {
		return r.hotspots.CommentHotspot(dst.Key, text)
	})

	r.markProcessed(src.Key)
}

// replayComments posts every source comment not yet recorded in the
// ledger. A digest is recorded only after a successful post, so failed
// posts are retried on the next run.
func (r *replayer) replayComments(src, dst models.Finding, c *counters, post func(text string) error) {
	for _, comment := range src.Comments {
		digest := commentDigest(dst.Key, comment)
		if r.hasPosted(digest) {
			continue
		}

		text := provenanceComment(comment)
		err := post(text)
		if err != nil {
			c.bump(func(res *models.ReconcileResult) { res.Failed++ })
			logging.Error("comment replay failed",
				"finding", dst.Key,
				"author", comment.Author,
				"error", err)
		} else {
			r.recordPosted(digest)
		}
		c.bump(func(res *models.ReconcileResult) { res.Commented++ })
	}
}

func (r *replayer) hasPosted(digest string) bool {
	if r.ledger == nil {
		return false
	}
	r.ledgerMu.Lock()
	defer r.ledgerMu.Unlock()
	return r.ledger.HasPostedComment(digest)
}

func (r *replayer) recordPosted(digest string) {
	if r.ledger == nil {
		return
	}
	r.ledgerMu.Lock()
	defer r.ledgerMu.Unlock()
	r.ledger.RecordPostedComment(digest)
}

// provenanceComment prefixes a replayed comment with its original author
// and timestamp.
func provenanceComment(comment models.Comment) string {
	return fmt.Sprintf("%s (original author: %s, %s)\n\n%s",
		commentMarker,
		comment.Author,
		comment.CreatedAt.UTC().Format(time.RFC3339),
		comment.Text)
}

// commentDigest derives the dedupe key of one replayed comment.
func commentDigest(destKey string, comment models.Comment) string {
	h := sha256.New()
	h.Write([]byte(destKey))
	h.Write([]byte{0})
	h.Write([]byte(comment.Author))
	h.Write([]byte{0})
	h.Write([]byte(comment.CreatedAt.UTC().Format(time.RFC3339)))
	h.Write([]byte{0})
	h.Write([]byte(comment.Text))
	return hex.EncodeToString(h.Sum(nil))
}
