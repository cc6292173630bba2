package reconcile

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"residence-portal/internal/assets"
	"residence-portal/internal/models"
)

// fakeStore serves an in-memory tower tree and applies reference writes
// back to it, so re-running a sweep sees the repaired state.
type fakeStore struct {
	mu     sync.Mutex
	towers []models.Tower
	// failEntity makes every write for that entity ID fail.
	failEntity string
	writes     int
}

func (s *fakeStore) LoadTowerTree() ([]models.Tower, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Tower, len(s.towers))
	copy(out, s.towers)
	return out, nil
}

func (s *fakeStore) set(id string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.failEntity {
		return errors.New("write refused")
	}
	s.writes++
	fn()
	return nil
}

func (s *fakeStore) SetTowerImage(id, url string) error {
	return s.set(id, func() {
		for i := range s.towers {
			if s.towers[i].ID == id {
				s.towers[i].ImageURL = url
			}
		}
	})
}

func (s *fakeStore) SetLevelImage(id, url string) error {
	return s.set(id, func() {
		s.eachLevel(func(l *models.Level) {
			if l.ID == id {
				l.ImageURL = url
			}
		})
	})
}

func (s *fakeStore) SetOccupantPhoto(id, url string) error {
	return s.set(id, func() {
		s.eachOccupant(func(o *models.Occupant) {
			if o.ID == id {
				o.PhotoURL = url
			}
		})
	})
}

func (s *fakeStore) SetOccupantDocument(id, docKind, url string) error {
	return s.set(id, func() {
		s.eachOccupant(func(o *models.Occupant) {
			if o.ID != id {
				return
			}
			switch assets.DocKind(docKind) {
			case assets.DocCURP:
				o.CurpURL = url
			case assets.DocProofOfAddress:
				o.ProofOfAddressURL = url
			case assets.DocBirthCertificate:
				o.BirthCertificateURL = url
			case assets.DocNationalID:
				o.NationalIDURL = url
			}
		})
	})
}

func (s *fakeStore) eachLevel(fn func(*models.Level)) {
	for i := range s.towers {
		for j := range s.towers[i].Levels {
			fn(&s.towers[i].Levels[j])
		}
	}
}

func (s *fakeStore) eachOccupant(fn func(*models.Occupant)) {
	s.eachLevel(func(l *models.Level) {
		for i := range l.Departments {
			for j := range l.Departments[i].Occupants {
				fn(&l.Departments[i].Occupants[j])
			}
		}
	})
}

func singleTowerStore() *fakeStore {
	return &fakeStore{towers: []models.Tower{{
		ID: "t1", Label: "A",
		Levels: []models.Level{{
			ID: "l1", TowerID: "t1", Number: 1,
			Departments: []models.Department{{
				ID: "d1", LevelID: "l1", TowerID: "t1", Label: "101",
				Occupants: []models.Occupant{{
					ID: "o1", DepartmentID: "d1", FirstName: "Ana", LastName: "Lopez",
					Status: models.OccupantStatusActive,
				}},
			}},
		}},
	}}}
}

func newTestEngine(t *testing.T, store *fakeStore, placeholders map[assets.Kind]string) (*Engine, string) {
	root := t.TempDir()
	engine := NewEngine(store, OSFileSystem{}, Config{
		Root:         root,
		Workers:      2,
		Placeholders: placeholders,
	})
	return engine, root
}

func writeFile(t *testing.T, root, rel string) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte("img"), 0o644))
}

func TestSweep_SetsReferenceForFoundFile(t *testing.T) {
	store := singleTowerStore()
	engine, root := newTestEngine(t, store, nil)
	writeFile(t, root, "edificios/t1/edificio.jpg")

	res, err := engine.Run(models.SweepTriggerManual, false)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Fixed)
	assert.Equal(t, "/edificios/t1/edificio.jpg", store.towers[0].ImageURL)
	require.NotEmpty(t, res.Actions)
	assert.Equal(t, ActionSetReference, res.Actions[0].Type)
}

func TestSweep_ClearsStaleReference(t *testing.T) {
	store := singleTowerStore()
	store.towers[0].Levels[0].Departments[0].Occupants[0].PhotoURL = "/edificios/t1/pisos/1/apartamentos/101/perfil.jpg"
	engine, _ := newTestEngine(t, store, nil)

	res, err := engine.Run(models.SweepTriggerManual, false)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Cleared)
	assert.Empty(t, store.towers[0].Levels[0].Departments[0].Occupants[0].PhotoURL)
}

func TestSweep_CopiesPlaceholderAndSetsReferenceAfter(t *testing.T) {
	store := singleTowerStore()
	source := filepath.Join(t.TempDir(), "placeholder.png")
	require.NoError(t, os.WriteFile(source, []byte("png"), 0o644))

	engine, root := newTestEngine(t, store, map[assets.Kind]string{
		assets.KindBuildingImage: source,
	})

	res, err := engine.Run(models.SweepTriggerManual, false)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Placeholders)
	assert.FileExists(t, filepath.Join(root, "edificios/t1/edificio.png"))
	assert.Equal(t, "/edificios/t1/edificio.png", store.towers[0].ImageURL)
}

func TestSweep_CountsMissingWithoutPlaceholder(t *testing.T) {
	store := singleTowerStore()
	engine, _ := newTestEngine(t, store, nil)

	res, err := engine.Run(models.SweepTriggerManual, false)
	require.NoError(t, err)

	// Tower image, level image and profile photo have neither file nor
	// reference. Documents are optional and never counted missing.
	assert.Equal(t, 3, res.Missing)
	assert.Equal(t, 0, res.Placeholders)
}

func TestSweep_DocumentsAreOptional(t *testing.T) {
	store := singleTowerStore()
	engine, _ := newTestEngine(t, store, nil)

	res, err := engine.Run(models.SweepTriggerManual, false)
	require.NoError(t, err)

	// 1 tower + 1 level + 1 photo + 4 documents checked.
	assert.Equal(t, 7, res.Checked)
	for _, a := range res.Actions {
		assert.NotContains(t, a.Entity, "occupant_document", "absent optional documents need no action")
	}
}

func TestSweep_InactiveOccupantSkipped(t *testing.T) {
	store := singleTowerStore()
	store.towers[0].Levels[0].Departments[0].Occupants[0].Status = models.OccupantStatusInactive
	engine, _ := newTestEngine(t, store, nil)

	res, err := engine.Run(models.SweepTriggerManual, false)
	require.NoError(t, err)

	// Only tower and level remain.
	assert.Equal(t, 2, res.Checked)
}

func TestSweep_ReportsOrphans_NeverDeletes(t *testing.T) {
	store := singleTowerStore()
	engine, root := newTestEngine(t, store, nil)
	writeFile(t, root, "edificios/ghost-tower/edificio.jpg")
	writeFile(t, root, "edificios/t1/stray-notes.txt")

	res, err := engine.Run(models.SweepTriggerManual, false)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"edificios/ghost-tower/edificio.jpg",
		"edificios/t1/stray-notes.txt",
	}, res.Orphans)
	assert.FileExists(t, filepath.Join(root, "edificios/ghost-tower/edificio.jpg"))
	assert.FileExists(t, filepath.Join(root, "edificios/t1/stray-notes.txt"))
}

func TestSweep_NonCanonicalSpellingIsOrphan(t *testing.T) {
	store := singleTowerStore()
	engine, root := newTestEngine(t, store, nil)
	// Zero-padded level directory parses to level 1 but is not where the
	// per-entity pass looks; it must show up as an orphan, not vanish.
	writeFile(t, root, "edificios/t1/pisos/01/piso.jpg")

	res, err := engine.Run(models.SweepTriggerManual, false)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Fixed)
	assert.ElementsMatch(t, []string{"edificios/t1/pisos/01/piso.jpg"}, res.Orphans)
	assert.FileExists(t, filepath.Join(root, "edificios/t1/pisos/01/piso.jpg"))
}

func TestSweep_Idempotent(t *testing.T) {
	store := singleTowerStore()
	engine, root := newTestEngine(t, store, nil)
	writeFile(t, root, "edificios/t1/edificio.jpg")
	writeFile(t, root, "edificios/t1/pisos/1/piso.png")
	writeFile(t, root, "edificios/t1/pisos/1/apartamentos/101/perfil.webp")

	first, err := engine.Run(models.SweepTriggerManual, false)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Fixed)

	second, err := engine.Run(models.SweepTriggerManual, false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Fixed)
	assert.Equal(t, 0, second.Cleared)
	assert.Empty(t, second.Actions)
}

func TestSweep_DryRunWritesNothing(t *testing.T) {
	store := singleTowerStore()
	engine, root := newTestEngine(t, store, nil)
	writeFile(t, root, "edificios/t1/edificio.jpg")

	res, err := engine.Run(models.SweepTriggerManual, true)
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.Fixed)
	assert.Equal(t, 0, store.writes)
	assert.Empty(t, store.towers[0].ImageURL)
}

func TestSweep_ContinuesAfterStoreFailure(t *testing.T) {
	store := singleTowerStore()
	store.failEntity = "t1"
	engine, root := newTestEngine(t, store, nil)
	writeFile(t, root, "edificios/t1/edificio.jpg")
	writeFile(t, root, "edificios/t1/pisos/1/piso.png")

	res, err := engine.Run(models.SweepTriggerManual, false)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "t1")
	// The level image write still went through.
	assert.Equal(t, 1, res.Fixed)
	assert.Equal(t, "/edificios/t1/pisos/1/piso.png", store.towers[0].Levels[0].ImageURL)
}

func TestSweep_SecondTriggerRejectedWhileRunning(t *testing.T) {
	store := singleTowerStore()
	engine, _ := newTestEngine(t, store, nil)

	engine.running.Store(true)
	_, err := engine.Run(models.SweepTriggerManual, false)
	assert.ErrorIs(t, err, models.ErrSweepRunning)
	engine.running.Store(false)

	_, err = engine.Run(models.SweepTriggerManual, false)
	assert.NoError(t, err)
}

func TestSweep_ResultToLog(t *testing.T) {
	store := singleTowerStore()
	engine, root := newTestEngine(t, store, nil)
	writeFile(t, root, "edificios/t1/edificio.jpg")

	res, err := engine.Run(models.SweepTriggerScheduled, false)
	require.NoError(t, err)

	entry := res.ToLog()
	assert.Equal(t, models.SweepTriggerScheduled, entry.Trigger)
	assert.Equal(t, res.Checked, entry.Checked)
	assert.Equal(t, res.Fixed, entry.Fixed)
	assert.False(t, entry.FinishedAt.Before(entry.StartedAt))
}
