// Package assets is the single source of truth for where an uploaded
// asset lives on disk and which URL exposes it. Everything here is pure
// path computation; callers perform the actual I/O.
//
// Conventions (relative to the public asset root):
//
//	edificios/{towerId}/edificio.{ext}
//	edificios/{towerId}/pisos/{level}/piso.{ext}
//	edificios/{towerId}/pisos/{level}/apartamentos/{label}/perfil.{ext}
//	edificios/{towerId}/pisos/{level}/apartamentos/{label}/documento_{docKind}.{ext}
package assets

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Kind identifies the asset category
type Kind string

const (
	KindBuildingImage Kind = "building_image"
	KindFloorImage    Kind = "floor_image"
	KindProfilePhoto  Kind = "profile_photo"
	KindDocument      Kind = "document"
)

// DocKind identifies which occupant document an asset is
type DocKind string

const (
	DocCURP             DocKind = "curp"
	DocProofOfAddress   DocKind = "comprobante_domicilio"
	DocBirthCertificate DocKind = "acta_nacimiento"
	DocNationalID       DocKind = "ine"
)

// DocKinds lists all valid document kinds
var DocKinds = []DocKind{DocCURP, DocProofOfAddress, DocBirthCertificate, DocNationalID}

// ValidDocKind reports whether s names a known document kind
func ValidDocKind(s string) bool {
	for _, k := range DocKinds {
		if string(k) == s {
			return true
		}
	}
	return false
}

// Location is a resolved asset position: path on disk relative to the
// asset root, and the URL the frontend uses to fetch it.
type Location struct {
	DiskPath  string `json:"disk_path"`
	PublicURL string `json:"public_url"`
}

// AssetRef identifies the entity and kind an asset path belongs to.
type AssetRef struct {
	TowerID         string
	LevelNumber     int
	HasLevel        bool
	DepartmentLabel string
	Kind            Kind
	DocKind         DocKind
	Ext             string
}

// Path rebuilds the conventional disk path for the reference.
// ParseAssetPath(ref.Path()) round-trips for every reference this
// package produces.
func (r AssetRef) Path() string {
	switch r.Kind {
	case KindBuildingImage:
		return path.Join("edificios", r.TowerID, "edificio."+r.Ext)
	case KindFloorImage:
		return path.Join("edificios", r.TowerID, "pisos", strconv.Itoa(r.LevelNumber), "piso."+r.Ext)
	case KindProfilePhoto:
		return path.Join("edificios", r.TowerID, "pisos", strconv.Itoa(r.LevelNumber),
			"apartamentos", r.DepartmentLabel, "perfil."+r.Ext)
	case KindDocument:
		return path.Join("edificios", r.TowerID, "pisos", strconv.Itoa(r.LevelNumber),
			"apartamentos", r.DepartmentLabel, fmt.Sprintf("documento_%s.%s", r.DocKind, r.Ext))
	}
	return ""
}

// Location resolves the reference to disk path + public URL.
func (r AssetRef) Location() Location {
	p := r.Path()
	return Location{DiskPath: p, PublicURL: "/" + p}
}

// BuildingImagePath resolves the main image of a tower.
func BuildingImagePath(towerID, ext string) Location {
	return AssetRef{TowerID: towerID, Kind: KindBuildingImage, Ext: ext}.Location()
}

// FloorImagePath resolves the image of a level.
func FloorImagePath(towerID string, level int, ext string) Location {
	return AssetRef{TowerID: towerID, LevelNumber: level, HasLevel: true, Kind: KindFloorImage, Ext: ext}.Location()
}

// ProfilePhotoPath resolves the profile photo of the occupant of a department.
func ProfilePhotoPath(towerID string, level int, label, ext string) Location {
	return AssetRef{
		TowerID: towerID, LevelNumber: level, HasLevel: true,
		DepartmentLabel: label, Kind: KindProfilePhoto, Ext: ext,
	}.Location()
}

// DocumentPath resolves an occupant document.
func DocumentPath(towerID string, level int, label string, doc DocKind, ext string) Location {
	return AssetRef{
		TowerID: towerID, LevelNumber: level, HasLevel: true,
		DepartmentLabel: label, Kind: KindDocument, DocKind: doc, Ext: ext,
	}.Location()
}

// ParseAssetPath recovers the entity reference from a disk path found
// under the asset root. It returns nil for paths that match no known
// convention; the reconciliation sweep reports those as orphans instead
// of dropping them.
func ParseAssetPath(rel string) *AssetRef {
	rel = strings.Trim(path.Clean("/"+rel), "/")
	parts := strings.Split(rel, "/")

	if len(parts) < 3 || parts[0] != "edificios" || parts[1] == "" {
		return nil
	}
	towerID := parts[1]

	// edificios/{towerId}/edificio.{ext}
	if len(parts) == 3 {
		stem, ext, ok := splitName(parts[2])
		if !ok || stem != "edificio" {
			return nil
		}
		return &AssetRef{TowerID: towerID, Kind: KindBuildingImage, Ext: ext}
	}

	if parts[2] != "pisos" || len(parts) < 5 {
		return nil
	}
	level, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil
	}

	// edificios/{towerId}/pisos/{level}/piso.{ext}
	if len(parts) == 5 {
		stem, ext, ok := splitName(parts[4])
		if !ok || stem != "piso" {
			return nil
		}
		return &AssetRef{TowerID: towerID, LevelNumber: level, HasLevel: true, Kind: KindFloorImage, Ext: ext}
	}

	if parts[4] != "apartamentos" || len(parts) != 7 || parts[5] == "" {
		return nil
	}
	label := parts[5]
	stem, ext, ok := splitName(parts[6])
	if !ok {
		return nil
	}

	// edificios/.../apartamentos/{label}/perfil.{ext}
	if stem == "perfil" {
		return &AssetRef{
			TowerID: towerID, LevelNumber: level, HasLevel: true,
			DepartmentLabel: label, Kind: KindProfilePhoto, Ext: ext,
		}
	}

	// edificios/.../apartamentos/{label}/documento_{docKind}.{ext}
	if kind, found := strings.CutPrefix(stem, "documento_"); found && ValidDocKind(kind) {
		return &AssetRef{
			TowerID: towerID, LevelNumber: level, HasLevel: true,
			DepartmentLabel: label, Kind: KindDocument, DocKind: DocKind(kind), Ext: ext,
		}
	}

	return nil
}

// splitName splits "perfil.jpg" into ("perfil", "jpg"). Both halves must
// be non-empty for the name to be conventional.
func splitName(name string) (stem, ext string, ok bool) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}
