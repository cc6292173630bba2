package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"residence-portal/internal/database"
	"residence-portal/internal/migrate"
	"residence-portal/internal/models"
	"residence-portal/internal/reconcile"
	"residence-portal/internal/search"
)

// AdminHandler handles admin-related requests
type AdminHandler struct {
	db     *database.GormDB
	engine *reconcile.Engine
	runner *migrate.Runner
	search *search.SearchClient
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *database.GormDB, engine *reconcile.Engine, search *search.SearchClient) *AdminHandler {
	return &AdminHandler{
		db:     db,
		engine: engine,
		runner: migrate.NewRunner(db.DB()),
		search: search,
	}
}

// GetStats returns system statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats := make(map[string]interface{})
	db := h.db.DB()

	var towers, levels, departments int64
	db.Model(&models.Tower{}).Count(&towers)
	db.Model(&models.Level{}).Count(&levels)
	db.Model(&models.Department{}).Count(&departments)
	stats["structure"] = map[string]interface{}{
		"towers":      towers,
		"levels":      levels,
		"departments": departments,
	}

	var active, suspended, inactive int64
	db.Model(&models.Occupant{}).Where("status = ?", models.OccupantStatusActive).Count(&active)
	db.Model(&models.Occupant{}).Where("status = ?", models.OccupantStatusSuspended).Count(&suspended)
	db.Model(&models.Occupant{}).Where("status = ?", models.OccupantStatusInactive).Count(&inactive)
	stats["occupants"] = map[string]interface{}{
		"active":    active,
		"suspended": suspended,
		"inactive":  inactive,
		"total":     active + suspended + inactive,
	}

	var debtors int64
	db.Model(&models.FinancialRecord{}).Where("fully_paid = ?", false).Count(&debtors)
	last30days := time.Now().AddDate(0, 0, -30)
	var recentPayments int64
	db.Model(&models.PaymentEvent{}).Where("paid_at >= ?", last30days).Count(&recentPayments)
	stats["finance"] = map[string]interface{}{
		"occupants_with_debt":   debtors,
		"payments_last_30_days": recentPayments,
	}

	var sweeps int64
	db.Model(&models.SweepLog{}).Count(&sweeps)
	stats["sweeps"] = map[string]interface{}{
		"total":   sweeps,
		"running": h.engine.Running(),
	}

	c.JSON(http.StatusOK, stats)
}

// RunSweep triggers a reconciliation sweep in the background
func (h *AdminHandler) RunSweep(c *gin.Context) {
	var req struct {
		DryRun bool `json:"dry_run"`
	}
	// Body is optional; absent body means a real run.
	_ = c.ShouldBindJSON(&req)

	if h.engine.Running() {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "sweep_running",
			"message": models.ErrSweepRunning.Error(),
		})
		return
	}

	log.Printf("Admin: Sweep trigger requested (dry_run=%v)", req.DryRun)

	// Run in goroutine to avoid blocking the request
	go func() {
		result, err := h.engine.Run(models.SweepTriggerManual, req.DryRun)
		if err != nil {
			log.Printf("Admin: Sweep failed: %v", err)
			return
		}
		if err := h.db.SaveSweepLog(result.ToLog()); err != nil {
			log.Printf("Admin: Warning: failed to persist sweep log: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Reconciliation sweep started",
		"dry_run": req.DryRun,
		"status":  "running",
	})
}

// GetSweepStatus reports whether a sweep is in progress
func (h *AdminHandler) GetSweepStatus(c *gin.Context) {
	status := "idle"
	if h.engine.Running() {
		status = "running"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// GetSweepLogs returns recent sweep reports
func (h *AdminHandler) GetSweepLogs(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "30")
	limit, _ := strconv.Atoi(limitStr)

	logs, err := h.db.GetRecentSweepLogs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(logs),
		"logs":  logs,
	})
}

// MigrateColumns applies additive column changes
func (h *AdminHandler) MigrateColumns(c *gin.Context) {
	var req struct {
		Columns []migrate.ColumnSpec `json:"columns" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results := h.runner.EnsureColumns(req.Columns)

	applied, existing, failed := 0, 0, 0
	for _, r := range results {
		switch r.Outcome {
		case migrate.Applied:
			applied++
		case migrate.AlreadyExists:
			existing++
		case migrate.Failed:
			failed++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"applied":        applied,
		"already_exists": existing,
		"failed":         failed,
		"results":        results,
	})
}

// ReindexSearch rebuilds the occupant search index from the database
func (h *AdminHandler) ReindexSearch(c *gin.Context) {
	log.Println("Admin: Starting full occupant reindex")

	towers, err := h.db.LoadTowerTree()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	docs := search.DocumentFromTree(towers)
	if err := h.search.IndexOccupants(docs); err != nil {
		log.Printf("Admin: Reindex failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Printf("Admin: Reindex complete, %d occupants indexed", len(docs))
	c.JSON(http.StatusOK, gin.H{
		"message": "Reindex complete",
		"indexed": len(docs),
	})
}
