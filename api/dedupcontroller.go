package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"briefbot/audit"
	"briefbot/config"
	"briefbot/dedup"
	"briefbot/events"
	"briefbot/storage"
	"briefbot/types"
)

// DedupController exposes the dedup engine to the issue-build workflow and
// to operators. Audit and Events are optional.
type DedupController struct {
	Store    *storage.Store
	Pipeline *dedup.Pipeline
	Audit    *audit.Uploader
	Events   *events.Publisher
}

// Register mounts the deduplication endpoints.
func (ctrl *DedupController) Register(r *gin.Engine) {
	g := r.Group("/api/dedup")
	g.POST("/run/:issueID", ctrl.handleRun)
	g.POST("/rerun/:issueID", ctrl.handleRerun)
	g.GET("/report/:issueID", ctrl.handleReport)
}

// RunResponse is returned by both run and rerun.
type RunResponse struct {
	RunID           string           `json:"run_id"`
	IssueID         string           `json:"issue_id"`
	Stats           types.DedupStats `json:"stats"`
	HistoricalCount int              `json:"historical_count"`
	HistoryEmpty    bool             `json:"history_empty"`
	Groups          int              `json:"groups"`
}

// handleRun deduplicates the issue's queued candidates and persists the
// resulting groups.
// POST /api/dedup/run/:issueID
func (ctrl *DedupController) handleRun(c *gin.Context) {
	ctrl.runIssue(c, false)
}

// handleRerun is the operator-facing maintenance entry point: wipe the
// issue's previous groups and recompute from scratch, e.g. after editing
// the semantic prompt or a threshold.
// POST /api/dedup/rerun/:issueID
func (ctrl *DedupController) handleRerun(c *gin.Context) {
	ctrl.runIssue(c, true)
}

func (ctrl *DedupController) runIssue(c *gin.Context, rerun bool) {
	issueID := c.Param("issueID")

	issue, err := ctrl.Store.Issue(c.Request.Context(), issueID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown issue: " + issueID})
		return
	}

	candidates, err := ctrl.Store.Candidates(c.Request.Context(), issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load candidates: " + err.Error()})
		return
	}

	opts, err := ctrl.loadOptions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings: " + err.Error()})
		return
	}

	if rerun {
		log.Printf("api: reprocessing issue %s (%d candidate(s))", issueID, len(candidates))
	}

	// Cap the whole run so a stalled AI provider cannot hold the issue.
	runCtx, cancel := context.WithTimeout(c.Request.Context(), config.RunTimeout)
	defer cancel()

	report := ctrl.Pipeline.Run(runCtx, candidates, issueID, issue.Date, opts)

	// Persistence failures are fatal for this issue: the transaction left
	// the previous groups intact, so surface the error to the caller.
	if err := ctrl.Store.PersistGroups(c.Request.Context(), issueID, report.Groups); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist groups: " + err.Error()})
		return
	}

	// Audit and events are best-effort; the run already succeeded.
	if ctrl.Audit != nil {
		if err := ctrl.Audit.Upload(c.Request.Context(), audit.BuildReport(report, candidates)); err != nil {
			log.Printf("Warning: audit upload failed for issue %s: %v", issueID, err)
		}
	}
	if ctrl.Events != nil {
		if err := ctrl.Events.PublishRunReport(report); err != nil {
			log.Printf("Warning: event publish failed for issue %s: %v", issueID, err)
		}
	}

	c.JSON(http.StatusOK, RunResponse{
		RunID:           report.RunID,
		IssueID:         issueID,
		Stats:           report.Stats,
		HistoricalCount: report.HistoricalCount,
		HistoryEmpty:    report.HistoryEmpty,
		Groups:          len(report.Groups),
	})
}

// handleReport returns the persisted duplicate groups for an issue, with
// per-member detection method and scores for the editor view.
// GET /api/dedup/report/:issueID
func (ctrl *DedupController) handleReport(c *gin.Context) {
	issueID := c.Param("issueID")

	groups, err := ctrl.Store.GroupsForIssue(c.Request.Context(), issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issue_id": issueID,
		"groups":   groups,
	})
}

// loadOptions resolves runtime tunables from the settings store, falling
// back on config defaults for missing keys.
func (ctrl *DedupController) loadOptions(ctx context.Context) (dedup.Options, error) {
	opts := dedup.DefaultOptions()

	lookback, err := ctrl.Store.SettingInt(ctx, config.SettingLookbackDays, config.DefaultLookbackDays)
	if err != nil {
		return opts, err
	}
	strictness, err := ctrl.Store.SettingFloat(ctx, config.SettingStrictnessThreshold, config.DefaultStrictnessThreshold)
	if err != nil {
		return opts, err
	}
	titleThreshold, err := ctrl.Store.SettingFloat(ctx, config.SettingTitleThreshold, config.DefaultTitleThreshold)
	if err != nil {
		return opts, err
	}

	opts.LookbackDays = lookback
	opts.Strictness = strictness
	opts.TitleThreshold = titleThreshold
	return opts, nil
}
