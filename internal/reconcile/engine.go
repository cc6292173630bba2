// Package reconcile detects and repairs drift between asset references
// stored in the database and the actual files under the asset root. It
// runs as an idempotent batch job, never inline with requests.
package reconcile

import (
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"residence-portal/internal/assets"
	"residence-portal/internal/models"
)

// Store is the database surface the sweep needs. *database.GormDB
// satisfies it.
type Store interface {
	LoadTowerTree() ([]models.Tower, error)
	SetTowerImage(id, url string) error
	SetLevelImage(id, url string) error
	SetOccupantPhoto(id, url string) error
	SetOccupantDocument(id, docKind, url string) error
}

// Config holds sweep settings
type Config struct {
	// Root is the public asset root directory.
	Root string
	// Workers bounds the tower-partitioned worker pool. Towers are never
	// split across workers, so two workers cannot race on one DB row.
	Workers int
	// Placeholders maps asset kind to a source file copied in when an
	// entity has neither a file nor a reference. Kinds without an entry
	// are counted as missing instead.
	Placeholders map[assets.Kind]string
}

// ActionType identifies one repair the sweep performed (or would
// perform, in dry-run mode).
type ActionType string

const (
	ActionSetReference    ActionType = "set_reference"
	ActionClearReference  ActionType = "clear_reference"
	ActionCopyPlaceholder ActionType = "copy_placeholder"
)

// Action is one entry in the sweep's diff.
type Action struct {
	Type     ActionType `json:"type"`
	Entity   string     `json:"entity"`
	EntityID string     `json:"entity_id"`
	Path     string     `json:"path,omitempty"`
}

// SweepResult summarizes one sweep run. The sweep reports failures here
// instead of aborting; callers persist it as a models.SweepLog row.
type SweepResult struct {
	Trigger      string    `json:"trigger"`
	DryRun       bool      `json:"dry_run"`
	Checked      int       `json:"checked"`
	Fixed        int       `json:"fixed"`
	Cleared      int       `json:"cleared"`
	Placeholders int       `json:"placeholders"`
	Missing      int       `json:"missing"`
	Failed       int       `json:"failed"`
	Actions      []Action  `json:"actions"`
	Orphans      []string  `json:"orphans"`
	Errors       []string  `json:"errors,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// ToLog converts the result into its persisted form.
func (r *SweepResult) ToLog() *models.SweepLog {
	return &models.SweepLog{
		Trigger:    r.Trigger,
		DryRun:     r.DryRun,
		Checked:    r.Checked,
		Fixed:      r.Fixed,
		Cleared:    r.Cleared,
		Placehold:  r.Placeholders,
		Missing:    r.Missing,
		Orphans:    len(r.Orphans),
		Failed:     r.Failed,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// Engine walks the entity tree, cross-checks expected asset paths
// against the filesystem and repairs drift.
type Engine struct {
	store   Store
	fs      FS
	cfg     Config
	running atomic.Bool
}

// NewEngine creates a sweep engine
func NewEngine(store Store, fs FS, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Engine{store: store, fs: fs, cfg: cfg}
}

// Running reports whether a sweep is currently in progress
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run executes one sweep. Only one sweep may run at a time; a second
// trigger gets models.ErrSweepRunning. Re-running after a completed
// sweep with no filesystem changes produces zero actions.
func (e *Engine) Run(trigger string, dryRun bool) (*SweepResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, models.ErrSweepRunning
	}
	defer e.running.Store(false)

	result := &SweepResult{
		Trigger:   trigger,
		DryRun:    dryRun,
		Actions:   []Action{},
		Orphans:   []string{},
		StartedAt: time.Now(),
	}

	towers, err := e.store.LoadTowerTree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tower tree: %w", err)
	}

	log.Printf("Sweep: started trigger=%s towers=%d workers=%d dry_run=%v",
		trigger, len(towers), e.cfg.Workers, dryRun)

	// One tower per task keeps all writes for a DB row on a single
	// worker.
	var mu sync.Mutex
	var wg sync.WaitGroup
	tasks := make(chan models.Tower)

	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tower := range tasks {
				partial := &SweepResult{DryRun: dryRun}
				e.sweepTower(&tower, partial)
				mu.Lock()
				merge(result, partial)
				mu.Unlock()
			}
		}()
	}

	for _, tower := range towers {
		tasks <- tower
	}
	close(tasks)
	wg.Wait()

	e.scanOrphans(towers, result)

	result.FinishedAt = time.Now()
	log.Printf("Sweep: finished checked=%d fixed=%d cleared=%d placeholders=%d missing=%d orphans=%d failed=%d",
		result.Checked, result.Fixed, result.Cleared, result.Placeholders,
		result.Missing, len(result.Orphans), result.Failed)

	return result, nil
}

func merge(dst, src *SweepResult) {
	dst.Checked += src.Checked
	dst.Fixed += src.Fixed
	dst.Cleared += src.Cleared
	dst.Placeholders += src.Placeholders
	dst.Missing += src.Missing
	dst.Failed += src.Failed
	dst.Actions = append(dst.Actions, src.Actions...)
	dst.Errors = append(dst.Errors, src.Errors...)
}

func (e *Engine) sweepTower(tower *models.Tower, res *SweepResult) {
	towerDir := path.Join("edificios", tower.ID)
	e.checkAsset(assetCheck{
		dir: towerDir, stem: "edificio",
		entity: "tower", entityID: tower.ID,
		currentRef: tower.ImageURL,
		kind:       assets.KindBuildingImage,
		apply:      func(url string) error { return e.store.SetTowerImage(tower.ID, url) },
	}, res)

	for _, level := range tower.Levels {
		levelDir := path.Join(towerDir, "pisos", strconv.Itoa(level.Number))
		e.checkAsset(assetCheck{
			dir: levelDir, stem: "piso",
			entity: "level", entityID: level.ID,
			currentRef: level.ImageURL,
			kind:       assets.KindFloorImage,
			apply:      func(url string) error { return e.store.SetLevelImage(level.ID, url) },
		}, res)

		for _, dept := range level.Departments {
			deptDir := path.Join(levelDir, "apartamentos", dept.Label)
			for _, occ := range dept.Occupants {
				// Only the active occupant owns the department's asset
				// directory; deactivated records keep whatever reference
				// they had.
				if !occ.IsActive() {
					continue
				}
				occ := occ
				e.checkAsset(assetCheck{
					dir: deptDir, stem: "perfil",
					entity: "occupant", entityID: occ.ID,
					currentRef: occ.PhotoURL,
					kind:       assets.KindProfilePhoto,
					apply:      func(url string) error { return e.store.SetOccupantPhoto(occ.ID, url) },
				}, res)

				for _, doc := range assets.DocKinds {
					doc := doc
					e.checkAsset(assetCheck{
						dir: deptDir, stem: "documento_" + string(doc),
						entity: "occupant_document:" + string(doc), entityID: occ.ID,
						currentRef: documentRef(&occ, doc),
						kind:       assets.KindDocument,
						optional:   true,
						apply: func(url string) error {
							return e.store.SetOccupantDocument(occ.ID, string(doc), url)
						},
					}, res)
				}
			}
		}
	}
}

type assetCheck struct {
	dir        string
	stem       string
	entity     string
	entityID   string
	currentRef string
	kind       assets.Kind
	// optional assets (documents) are expected to be absent for most
	// occupants: no file + no reference is normal, never missing.
	optional bool
	apply    func(url string) error
}

// checkAsset applies the four-way diff for one entity asset. Failures
// are recorded and the sweep moves on; a copy failure never leaves a
// half-updated DB reference because the reference write happens strictly
// after the copy succeeds.
func (e *Engine) checkAsset(c assetCheck, res *SweepResult) {
	res.Checked++

	name, found := e.fs.FindAsset(filepath.Join(e.cfg.Root, c.dir), c.stem)

	if found {
		expected := "/" + path.Join(c.dir, name)
		if c.currentRef == expected {
			return
		}
		res.Actions = append(res.Actions, Action{
			Type: ActionSetReference, Entity: c.entity, EntityID: c.entityID, Path: expected,
		})
		if !res.DryRun {
			if err := c.apply(expected); err != nil {
				e.recordFailure(res, c, err)
				return
			}
		}
		res.Fixed++
		return
	}

	if c.currentRef != "" {
		res.Actions = append(res.Actions, Action{
			Type: ActionClearReference, Entity: c.entity, EntityID: c.entityID, Path: c.currentRef,
		})
		if !res.DryRun {
			if err := c.apply(""); err != nil {
				e.recordFailure(res, c, err)
				return
			}
		}
		res.Cleared++
		return
	}

	if c.optional {
		return
	}

	source, ok := e.cfg.Placeholders[c.kind]
	if !ok {
		res.Missing++
		return
	}

	target := path.Join(c.dir, c.stem+path.Ext(source))
	res.Actions = append(res.Actions, Action{
		Type: ActionCopyPlaceholder, Entity: c.entity, EntityID: c.entityID, Path: target,
	})
	if !res.DryRun {
		absTarget := filepath.Join(e.cfg.Root, target)
		if err := e.fs.MkdirAll(filepath.Dir(absTarget)); err != nil {
			e.recordFailure(res, c, &models.AssetIOError{Op: "mkdir", Path: c.dir, Err: err})
			return
		}
		if err := e.fs.CopyFile(source, absTarget); err != nil {
			e.recordFailure(res, c, &models.AssetIOError{Op: "copy", Path: target, Err: err})
			return
		}
		// DB reference only after the copy landed.
		if err := c.apply("/" + target); err != nil {
			e.recordFailure(res, c, err)
			return
		}
	}
	res.Placeholders++
}

func (e *Engine) recordFailure(res *SweepResult, c assetCheck, err error) {
	res.Failed++
	msg := fmt.Sprintf("%s %s: %v", c.entity, c.entityID, err)
	res.Errors = append(res.Errors, msg)
	log.Printf("Sweep: ERROR %s", msg)
}

// scanOrphans walks the asset root and reports every file that no known
// entity accounts for. Orphans are reported only, never deleted.
func (e *Engine) scanOrphans(towers []models.Tower, res *SweepResult) {
	towerIDs := make(map[string]bool)
	levelKeys := make(map[string]bool)
	deptKeys := make(map[string]bool)
	for _, t := range towers {
		towerIDs[t.ID] = true
		for _, l := range t.Levels {
			levelKeys[t.ID+"/"+strconv.Itoa(l.Number)] = true
			for _, d := range l.Departments {
				deptKeys[t.ID+"/"+strconv.Itoa(l.Number)+"/"+d.Label] = true
			}
		}
	}

	err := e.fs.WalkFiles(e.cfg.Root, func(rel string) error {
		ref := assets.ParseAssetPath(rel)
		// A parsed ref only accounts for the file when it rebuilds to the
		// exact same path. Non-canonical spellings ("pisos/01") parse but
		// are never checked by the per-entity pass, so they must surface
		// here instead of vanishing from the report.
		if ref == nil || ref.Path() != rel || !e.known(ref, towerIDs, levelKeys, deptKeys) {
			res.Orphans = append(res.Orphans, rel)
		}
		return nil
	})
	if err != nil {
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("orphan scan: %v", err))
		log.Printf("Sweep: ERROR orphan scan failed: %v", err)
	}
}

func (e *Engine) known(ref *assets.AssetRef, towers, levels, depts map[string]bool) bool {
	switch ref.Kind {
	case assets.KindBuildingImage:
		return towers[ref.TowerID]
	case assets.KindFloorImage:
		return levels[ref.TowerID+"/"+strconv.Itoa(ref.LevelNumber)]
	case assets.KindProfilePhoto, assets.KindDocument:
		return depts[ref.TowerID+"/"+strconv.Itoa(ref.LevelNumber)+"/"+ref.DepartmentLabel]
	}
	return false
}

func documentRef(o *models.Occupant, doc assets.DocKind) string {
	switch doc {
	case assets.DocCURP:
		return o.CurpURL
	case assets.DocProofOfAddress:
		return o.ProofOfAddressURL
	case assets.DocBirthCertificate:
		return o.BirthCertificateURL
	case assets.DocNationalID:
		return o.NationalIDURL
	}
	return ""
}
