package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"residence-portal/internal/assets"
	"residence-portal/internal/config"
	"residence-portal/internal/database"
	"residence-portal/internal/handlers"
	"residence-portal/internal/legacy"
	"residence-portal/internal/models"
	"residence-portal/internal/ratelimit"
	"residence-portal/internal/reconcile"
	"residence-portal/internal/scheduler"
	"residence-portal/internal/search"
)

var (
	appConfig    *config.Config
	gormDB       *database.GormDB
	legacyDB     *database.LegacyDB
	searchClient *search.SearchClient
	rateLimiter  *ratelimit.RateLimiter
	sweepEngine  *reconcile.Engine
	appScheduler *scheduler.Scheduler
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	configPath := getEnv("CONFIG_PATH", "/app/config/portal_config.yaml")
	var err error
	appConfig, err = config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config from %s: %v. Using defaults.", configPath, err)
		appConfig = config.DefaultConfig()
	} else {
		log.Printf("Loaded configuration from %s", configPath)
	}

	// Canonical store (MySQL via GORM). One process-wide handle with an
	// explicit shutdown, never re-created per operation.
	mysqlCfg := appConfig.Database.MySQL
	portStr := ""
	if mysqlCfg.Port > 0 {
		portStr = fmt.Sprintf("%d", mysqlCfg.Port)
	}
	gormDB, err = database.NewGormDB(
		getEnvOrConfig(mysqlCfg.Host, "DB_HOST", "mysql"),
		getEnvOrConfig(portStr, "DB_PORT", "3306"),
		getEnvOrConfig(mysqlCfg.User, "DB_USER", "portal_user"),
		getEnvOrConfig(mysqlCfg.Password, "DB_PASSWORD", "portal_pass"),
		getEnvOrConfig(mysqlCfg.Database, "DB_NAME", "portal_db"),
	)
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}
	defer gormDB.Close()

	if err := gormDB.InitSchema(); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	// Legacy store (old Postgres schema), only while the migration
	// window is open.
	legacyCfg := appConfig.Database.Legacy
	if legacyCfg.Enabled {
		legacyPort := ""
		if legacyCfg.Port > 0 {
			legacyPort = fmt.Sprintf("%d", legacyCfg.Port)
		}
		legacyDB, err = database.NewLegacyDB(
			getEnvOrConfig(legacyCfg.Host, "LEGACY_DB_HOST", "db"),
			getEnvOrConfig(legacyPort, "LEGACY_DB_PORT", "5432"),
			getEnvOrConfig(legacyCfg.User, "LEGACY_DB_USER", "legacy_user"),
			getEnvOrConfig(legacyCfg.Password, "LEGACY_DB_PASSWORD", "legacy_pass"),
			getEnvOrConfig(legacyCfg.Database, "LEGACY_DB_NAME", "legacy_db"),
			legacyCfg.SSLMode,
		)
		if err != nil {
			log.Fatalf("Failed to connect to legacy database: %v", err)
		}
		defer legacyDB.Close()
		log.Println("Legacy database connection established")
	}

	// Meilisearch
	meilisearchHost := appConfig.Search.Meilisearch.Host
	if meilisearchHost == "" {
		meilisearchHost = getEnv("MEILISEARCH_HOST", "http://meilisearch:7700")
	}
	meilisearchKey := appConfig.Search.Meilisearch.APIKey
	if meilisearchKey == "" {
		meilisearchKey = getEnv("MEILISEARCH_KEY", "masterKey123")
	}
	searchClient = search.NewSearchClient(meilisearchHost, meilisearchKey)
	if err := searchClient.InitIndex(); err != nil {
		log.Printf("Warning: Failed to initialize search index: %v", err)
	}

	// Rate limiter for mutating endpoints
	rateLimiter = ratelimit.NewRateLimiter(
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.RateLimit.Enabled,
	)

	// Reconciliation engine
	placeholders := make(map[assets.Kind]string)
	for kind, source := range appConfig.Assets.Placeholders {
		placeholders[assets.Kind(kind)] = source
	}
	sweepEngine = reconcile.NewEngine(gormDB, reconcile.OSFileSystem{}, reconcile.Config{
		Root:         appConfig.Assets.Root,
		Workers:      appConfig.Reconcile.Workers,
		Placeholders: placeholders,
	})

	// Nightly sweep scheduler
	appScheduler = scheduler.NewScheduler(sweepEngine, gormDB, appConfig)
	if err := appScheduler.Start(); err != nil {
		log.Printf("Warning: Failed to start scheduler: %v", err)
	}
	defer appScheduler.Stop()

	// Setup Gin router
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// Public asset root
	r.Static("/edificios", filepath.Join(appConfig.Assets.Root, "edificios"))

	// Routes
	r.GET("/health", healthCheck)

	r.GET("/api/towers", getTowers)
	r.POST("/api/towers", createTower)
	r.GET("/api/towers/:id", getTower)
	r.PUT("/api/towers/:id", updateTower)
	r.DELETE("/api/towers/:id", deleteTower)

	r.GET("/api/towers/:id/levels", getLevels)
	r.POST("/api/towers/:id/levels", createLevel)
	r.PUT("/api/levels/:id", updateLevel)
	r.DELETE("/api/levels/:id", deleteLevel)

	r.GET("/api/levels/:id/departments", getDepartments)
	r.POST("/api/levels/:id/departments", createDepartment)
	r.PUT("/api/departments/:id", updateDepartment)
	r.DELETE("/api/departments/:id", deleteDepartment)

	r.GET("/api/departments/:id", getDepartment)
	r.POST("/api/departments/:id/occupants", createOccupant)
	r.GET("/api/occupants/:id", getOccupant)
	r.PUT("/api/occupants/:id", updateOccupant)
	r.DELETE("/api/occupants/:id", deactivateOccupant)
	r.GET("/api/search/occupants", searchOccupants)

	r.GET("/api/occupants/:id/finance", getFinance)
	r.PUT("/api/occupants/:id/finance", updateFinance)
	r.POST("/api/occupants/:id/payments", recordPayment)
	r.GET("/api/occupants/:id/payments", getPayments)

	// Upload routes with rate limiting
	r.POST("/api/towers/:id/image", rateLimitMiddleware(), uploadTowerImage)
	r.POST("/api/levels/:id/image", rateLimitMiddleware(), uploadLevelImage)
	r.POST("/api/occupants/:id/photo", rateLimitMiddleware(), uploadOccupantPhoto)
	r.POST("/api/occupants/:id/documents/:kind", rateLimitMiddleware(), uploadOccupantDocument)

	r.GET("/api/ratelimit/stats", getRateLimitStats)

	// Admin API routes (requires authentication in production)
	adminHandler := handlers.NewAdminHandler(gormDB, sweepEngine, searchClient)
	admin := r.Group("/api/admin")
	{
		admin.GET("/stats", adminHandler.GetStats)
		admin.POST("/sweep/run", rateLimitMiddleware(), adminHandler.RunSweep)
		admin.GET("/sweep/status", adminHandler.GetSweepStatus)
		admin.GET("/sweep/logs", adminHandler.GetSweepLogs)
		admin.POST("/migrate/columns", adminHandler.MigrateColumns)
		admin.POST("/search/reindex", adminHandler.ReindexSearch)
		admin.POST("/legacy/import", importLegacy)
	}
	log.Println("Admin API routes registered at /api/admin/*")

	port := getEnv("PORT", "8084")
	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

// respondError maps the error taxonomy to HTTP statuses. Validation and
// integrity failures never reach here after a mutation; the store
// rejects before writing.
func respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"field":   validationErr.Field,
			"message": validationErr.Message,
		})
		return
	}
	var integrityErr *models.ReferentialIntegrityError
	if errors.As(err, &integrityErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":      "referential_integrity_error",
			"message":    integrityErr.Error(),
			"dependents": integrityErr.Dependents,
		})
		return
	}
	var labelErr *models.LabelFormatError
	if errors.As(err, &labelErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "label_format_error",
			"label":   labelErr.Label,
			"message": labelErr.Error(),
		})
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
}

// ---- Towers ----

func getTowers(c *gin.Context) {
	towers, err := gormDB.GetTowers()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, towers)
}

func getTower(c *gin.Context) {
	tower, err := gormDB.GetTowerByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tower)
}

func createTower(c *gin.Context) {
	var req struct {
		Label       string `json:"label" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tower := models.Tower{Label: req.Label, Description: req.Description}
	if err := gormDB.CreateTower(&tower); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tower)
}

func updateTower(c *gin.Context) {
	var req struct {
		Label       string `json:"label" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tower := models.Tower{ID: c.Param("id"), Label: req.Label, Description: req.Description}
	if err := gormDB.UpdateTower(&tower); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tower updated"})
}

func deleteTower(c *gin.Context) {
	if err := gormDB.DeleteTower(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tower deleted"})
}

// ---- Levels ----

func getLevels(c *gin.Context) {
	levels, err := gormDB.GetLevelsByTower(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, levels)
}

func createLevel(c *gin.Context) {
	var req struct {
		Number int    `json:"number" binding:"min=0"`
		Name   string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	level := models.Level{TowerID: c.Param("id"), Number: req.Number, Name: req.Name}
	if err := gormDB.CreateLevel(&level); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, level)
}

func updateLevel(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	level := models.Level{ID: c.Param("id"), Name: req.Name}
	if err := gormDB.UpdateLevel(&level); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Level updated"})
}

func deleteLevel(c *gin.Context) {
	if err := gormDB.DeleteLevel(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Level deleted"})
}

// ---- Departments ----

func getDepartments(c *gin.Context) {
	departments, err := gormDB.GetDepartmentsByLevel(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, departments)
}

func getDepartment(c *gin.Context) {
	department, err := gormDB.GetDepartmentByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, department)
}

func createDepartment(c *gin.Context) {
	var req struct {
		Label       string `json:"label" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	department := models.Department{
		LevelID:     c.Param("id"),
		Label:       req.Label,
		Description: req.Description,
	}
	if err := gormDB.CreateDepartment(&department); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, department)
}

func updateDepartment(c *gin.Context) {
	var req struct {
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	department := models.Department{ID: c.Param("id"), Description: req.Description}
	if err := gormDB.UpdateDepartment(&department); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Department updated"})
}

func deleteDepartment(c *gin.Context) {
	if err := gormDB.DeleteDepartment(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Department deleted"})
}

// ---- Occupants ----

type occupantRequest struct {
	FirstName       string `json:"first_name" binding:"required"`
	LastName        string `json:"last_name" binding:"required"`
	BirthDate       string `json:"birth_date"`
	HouseholdSize   int    `json:"household_size" binding:"min=0"`
	DisabledCount   int    `json:"disabled_count" binding:"min=0"`
	ReceivesSupport bool   `json:"receives_support"`
	SupportAmount   string `json:"support_amount"`
	Status          string `json:"status"`
	CreatedBy       string `json:"created_by"`
}

func (r *occupantRequest) apply(o *models.Occupant) error {
	o.FirstName = r.FirstName
	o.LastName = r.LastName
	o.HouseholdSize = r.HouseholdSize
	o.DisabledCount = r.DisabledCount
	o.ReceivesSupport = r.ReceivesSupport

	if r.BirthDate != "" {
		t, err := time.Parse("2006-01-02", r.BirthDate)
		if err != nil {
			return &models.ValidationError{Field: "birth_date", Message: "expected YYYY-MM-DD"}
		}
		o.BirthDate = &t
	}
	if r.SupportAmount != "" {
		amount, err := decimal.NewFromString(r.SupportAmount)
		if err != nil {
			return &models.ValidationError{Field: "support_amount", Message: "not a valid amount"}
		}
		o.SupportAmount = amount
	}
	if r.Status != "" {
		switch models.OccupantStatus(r.Status) {
		case models.OccupantStatusActive, models.OccupantStatusSuspended, models.OccupantStatusInactive:
			o.Status = models.OccupantStatus(r.Status)
		default:
			return &models.ValidationError{Field: "status", Message: "unknown status " + r.Status}
		}
	}
	if r.CreatedBy != "" {
		o.CreatedBy = r.CreatedBy
	}
	return nil
}

func createOccupant(c *gin.Context) {
	var req occupantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	occupant := models.Occupant{DepartmentID: c.Param("id")}
	if err := req.apply(&occupant); err != nil {
		respondError(c, err)
		return
	}
	if err := gormDB.CreateOccupant(&occupant); err != nil {
		respondError(c, err)
		return
	}

	indexOccupant(occupant.ID)
	c.JSON(http.StatusCreated, occupant)
}

func getOccupant(c *gin.Context) {
	ctx, err := gormDB.GetOccupantContext(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := gormDB.GetFinancialRecord(ctx.Occupant.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"occupant": ctx.Occupant,
		"department": gin.H{
			"id":    ctx.Department.ID,
			"label": ctx.Department.Label,
		},
		"level": gin.H{
			"id":     ctx.Level.ID,
			"number": ctx.Level.Number,
		},
		"tower": gin.H{
			"id":    ctx.Tower.ID,
			"label": ctx.Tower.Label,
		},
		"finance": record,
	})
}

func updateOccupant(c *gin.Context) {
	var req occupantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	occupant, err := gormDB.GetOccupantByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := req.apply(occupant); err != nil {
		respondError(c, err)
		return
	}
	if err := gormDB.UpdateOccupant(occupant); err != nil {
		respondError(c, err)
		return
	}

	indexOccupant(occupant.ID)
	syncLegacyResident(occupant)
	c.JSON(http.StatusOK, occupant)
}

func deactivateOccupant(c *gin.Context) {
	id := c.Param("id")
	if err := gormDB.DeactivateOccupant(id); err != nil {
		respondError(c, err)
		return
	}

	indexOccupant(id)
	if occupant, err := gormDB.GetOccupantByID(id); err == nil {
		syncLegacyResident(occupant)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Occupant deactivated", "status": models.OccupantStatusInactive})
}

// syncLegacyResident mirrors changes to imported occupants back to the
// old schema while the migration window is open. Best-effort: the
// canonical store is authoritative.
func syncLegacyResident(o *models.Occupant) {
	if legacyDB == nil {
		return
	}
	var legacyID int64
	if _, err := fmt.Sscanf(o.ID, "legacy-resident-%d", &legacyID); err != nil {
		return
	}
	if err := legacyDB.UpdateResident(legacy.ToResidentUpdate(o, legacyID)); err != nil {
		log.Printf("Warning: Failed to sync occupant %s to legacy store: %v", o.ID, err)
	}
}

// indexOccupant refreshes the occupant's search document. Search is
// best-effort; failures are logged, not surfaced.
func indexOccupant(id string) {
	ctx, err := gormDB.GetOccupantContext(id)
	if err != nil {
		log.Printf("Warning: Failed to load occupant %s for indexing: %v", id, err)
		return
	}
	doc := search.OccupantDocument{
		ID:              ctx.Occupant.ID,
		FirstName:       ctx.Occupant.FirstName,
		LastName:        ctx.Occupant.LastName,
		Status:          string(ctx.Occupant.Status),
		DepartmentID:    ctx.Department.ID,
		DepartmentLabel: ctx.Department.Label,
		LevelNumber:     ctx.Level.Number,
		TowerID:         ctx.Tower.ID,
		TowerLabel:      ctx.Tower.Label,
	}
	if err := searchClient.IndexOccupant(doc); err != nil {
		log.Printf("Warning: Failed to index occupant %s: %v", id, err)
	}
}

func searchOccupants(c *gin.Context) {
	query := c.Query("q")
	status := c.Query("status")

	docs, err := searchClient.Search(query, status, 20)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(docs),
		"hits":  docs,
	})
}

// ---- Finance ----

func getFinance(c *gin.Context) {
	occupantID := c.Param("id")
	record, err := gormDB.GetFinancialRecord(occupantID)
	if err != nil {
		respondError(c, err)
		return
	}
	total, err := gormDB.GetTotalPaid(occupantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record":     record,
		"total_paid": total,
	})
}

func updateFinance(c *gin.Context) {
	var req struct {
		Debt                string `json:"debt"`
		MonthlyContribution string `json:"monthly_contribution"`
		Remarks             string `json:"remarks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := gormDB.GetFinancialRecord(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Debt != "" {
		debt, parseErr := decimal.NewFromString(req.Debt)
		if parseErr != nil || debt.IsNegative() {
			respondError(c, &models.ValidationError{Field: "debt", Message: "not a valid non-negative amount"})
			return
		}
		record.Debt = debt
	}
	if req.MonthlyContribution != "" {
		contribution, parseErr := decimal.NewFromString(req.MonthlyContribution)
		if parseErr != nil || contribution.IsNegative() {
			respondError(c, &models.ValidationError{Field: "monthly_contribution", Message: "not a valid non-negative amount"})
			return
		}
		record.MonthlyContribution = contribution
	}
	record.Remarks = req.Remarks

	if err := gormDB.UpdateFinancialRecord(record); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func recordPayment(c *gin.Context) {
	var req struct {
		Amount      string `json:"amount" binding:"required"`
		Description string `json:"description"`
		PaidAt      string `json:"paid_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		respondError(c, &models.ValidationError{Field: "amount", Message: "payment amount must be positive"})
		return
	}

	event := models.PaymentEvent{
		OccupantID:  c.Param("id"),
		Amount:      amount,
		Description: req.Description,
	}
	if req.PaidAt != "" {
		paidAt, parseErr := time.Parse(time.RFC3339, req.PaidAt)
		if parseErr != nil {
			respondError(c, &models.ValidationError{Field: "paid_at", Message: "expected RFC3339 timestamp"})
			return
		}
		event.PaidAt = paidAt
	}

	if err := gormDB.RecordPayment(&event); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func getPayments(c *gin.Context) {
	occupantID := c.Param("id")
	events, err := gormDB.GetPayments(occupantID)
	if err != nil {
		respondError(c, err)
		return
	}
	total, err := gormDB.GetTotalPaid(occupantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":      len(events),
		"total_paid": total,
		"payments":   events,
	})
}

// ---- Uploads ----

var imageExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true}
var documentExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true, "pdf": true}

func uploadTowerImage(c *gin.Context) {
	towerID := c.Param("id")
	if _, err := gormDB.GetTowerByID(towerID); err != nil {
		respondError(c, err)
		return
	}

	loc, ok := saveUpload(c, imageExts, func(ext string) assets.Location {
		return assets.BuildingImagePath(towerID, ext)
	})
	if !ok {
		return
	}

	if err := gormDB.SetTowerImage(towerID, loc.PublicURL); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": loc.PublicURL})
}

func uploadLevelImage(c *gin.Context) {
	level, err := gormDB.GetLevelByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	loc, ok := saveUpload(c, imageExts, func(ext string) assets.Location {
		return assets.FloorImagePath(level.TowerID, level.Number, ext)
	})
	if !ok {
		return
	}

	if err := gormDB.SetLevelImage(level.ID, loc.PublicURL); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": loc.PublicURL})
}

func uploadOccupantPhoto(c *gin.Context) {
	ctx, err := gormDB.GetOccupantContext(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	loc, ok := saveUpload(c, imageExts, func(ext string) assets.Location {
		return assets.ProfilePhotoPath(ctx.Tower.ID, ctx.Level.Number, ctx.Department.Label, ext)
	})
	if !ok {
		return
	}

	if err := gormDB.SetOccupantPhoto(ctx.Occupant.ID, loc.PublicURL); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": loc.PublicURL})
}

func uploadOccupantDocument(c *gin.Context) {
	kind := c.Param("kind")
	if !assets.ValidDocKind(kind) {
		respondError(c, &models.ValidationError{Field: "kind", Message: "unknown document kind " + kind})
		return
	}

	ctx, err := gormDB.GetOccupantContext(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	loc, ok := saveUpload(c, documentExts, func(ext string) assets.Location {
		return assets.DocumentPath(ctx.Tower.ID, ctx.Level.Number, ctx.Department.Label, assets.DocKind(kind), ext)
	})
	if !ok {
		return
	}

	if err := gormDB.SetOccupantDocument(ctx.Occupant.ID, kind, loc.PublicURL); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": loc.PublicURL})
}

// saveUpload stores the multipart file at its conventional location.
// Same-name files with a different extension are removed first so the
// entity never accumulates competing assets. Responds on failure and
// returns ok=false.
func saveUpload(c *gin.Context, allowed map[string]bool, locate func(ext string) assets.Location) (assets.Location, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return assets.Location{}, false
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	if !allowed[ext] {
		respondError(c, &models.ValidationError{Field: "file", Message: "unsupported file extension " + ext})
		return assets.Location{}, false
	}

	loc := locate(ext)
	absPath := filepath.Join(appConfig.Assets.Root, filepath.FromSlash(loc.DiskPath))

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		respondError(c, &models.AssetIOError{Op: "mkdir", Path: loc.DiskPath, Err: err})
		return assets.Location{}, false
	}
	removeSameStem(filepath.Dir(absPath), filepath.Base(absPath))

	if err := c.SaveUploadedFile(file, absPath); err != nil {
		respondError(c, &models.AssetIOError{Op: "save", Path: loc.DiskPath, Err: err})
		return assets.Location{}, false
	}

	return loc, true
}

// removeSameStem deletes sibling files that share the target's stem but
// carry a different extension (a previous upload in another format).
func removeSameStem(dir, target string) {
	stem := strings.TrimSuffix(target, filepath.Ext(target))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == target {
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == stem {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				log.Printf("Warning: Failed to remove stale asset %s: %v", name, err)
			}
		}
	}
}

// ---- Legacy import ----

// importLegacy adapts the old Building/Floor/Apartment/Resident rows
// into the canonical store. Safe to re-run: deterministic legacy IDs
// make the import an upsert.
func importLegacy(c *gin.Context) {
	if legacyDB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Legacy database is not configured",
		})
		return
	}

	// Unparsable labels are only defaulted when the caller opts in.
	defaultLevel := -1
	if v := c.Query("default_level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(c, &models.ValidationError{Field: "default_level", Message: "expected a non-negative integer"})
			return
		}
		defaultLevel = n
	}

	buildings, err := legacyDB.GetBuildings()
	if err != nil {
		respondError(c, err)
		return
	}

	imported := 0
	var allIssues []legacy.ImportIssue
	var importErrors []string

	for _, building := range buildings {
		floors, err := legacyDB.GetFloors(building.ID)
		if err != nil {
			importErrors = append(importErrors, fmt.Sprintf("building %d: %v", building.ID, err))
			continue
		}
		apartments, err := legacyDB.GetApartments(building.ID)
		if err != nil {
			importErrors = append(importErrors, fmt.Sprintf("building %d: %v", building.ID, err))
			continue
		}
		residents, err := legacyDB.GetResidents(building.ID)
		if err != nil {
			importErrors = append(importErrors, fmt.Sprintf("building %d: %v", building.ID, err))
			continue
		}

		tower, floorIssues := legacy.FromBuilding(building, floors, apartments, residents)
		allIssues = append(allIssues, floorIssues...)

		// Apartments without a floor link predate the explicit
		// association; fall back to the label heuristic for those only.
		heuristic, issues := legacy.FromTowerHeuristic(building, apartments)
		allIssues = append(allIssues, issues...)
		legacy.MergeHeuristicLevels(tower, heuristic)

		if defaultLevel >= 0 && len(issues) > 0 {
			fallback := legacy.PlaceOnLevel(building, apartments, issues, defaultLevel)
			legacy.MergeHeuristicLevels(tower, fallback)
		}

		if err := gormDB.UpsertTowerTree(tower); err != nil {
			importErrors = append(importErrors, fmt.Sprintf("building %d: %v", building.ID, err))
			continue
		}
		imported++
		log.Printf("Legacy import: building %d (%s) -> tower %s, levels=%d",
			building.ID, building.Letter, tower.ID, len(tower.Levels))
	}

	c.JSON(http.StatusOK, gin.H{
		"buildings": len(buildings),
		"imported":  imported,
		"issues":    allIssues,
		"errors":    importErrors,
	})
}

// ---- Middleware and helpers ----

// rateLimitMiddleware returns a Gin middleware that enforces rate limiting
func rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rateLimiter.AllowRequest() {
			stats := rateLimiter.GetStats()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests. Please try again later.",
				"stats":   stats,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// getRateLimitStats returns current rate limiter statistics
func getRateLimitStats(c *gin.Context) {
	stats := rateLimiter.GetStats()
	c.JSON(http.StatusOK, stats)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrConfig returns config value if set, otherwise falls back to environment variable, then default
func getEnvOrConfig(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	return getEnv(envKey, defaultValue)
}
