package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildingImagePath(t *testing.T) {
	loc := BuildingImagePath("torre-a", "jpg")
	assert.Equal(t, "edificios/torre-a/edificio.jpg", loc.DiskPath)
	assert.Equal(t, "/edificios/torre-a/edificio.jpg", loc.PublicURL)
}

func TestFloorImagePath(t *testing.T) {
	loc := FloorImagePath("torre-a", 3, "png")
	assert.Equal(t, "edificios/torre-a/pisos/3/piso.png", loc.DiskPath)
	assert.Equal(t, "/edificios/torre-a/pisos/3/piso.png", loc.PublicURL)
}

func TestProfilePhotoPath(t *testing.T) {
	loc := ProfilePhotoPath("torre-a", 22, "2204", "webp")
	assert.Equal(t, "edificios/torre-a/pisos/22/apartamentos/2204/perfil.webp", loc.DiskPath)
}

func TestDocumentPath(t *testing.T) {
	loc := DocumentPath("torre-a", 1, "101", DocProofOfAddress, "pdf")
	assert.Equal(t, "edificios/torre-a/pisos/1/apartamentos/101/documento_comprobante_domicilio.pdf", loc.DiskPath)
}

func TestParseAssetPath_RoundTrip(t *testing.T) {
	refs := []AssetRef{
		{TowerID: "torre-a", Kind: KindBuildingImage, Ext: "jpg"},
		{TowerID: "torre-a", LevelNumber: 0, HasLevel: true, Kind: KindFloorImage, Ext: "png"},
		{TowerID: "legacy-building-7", LevelNumber: 12, HasLevel: true, Kind: KindFloorImage, Ext: "webp"},
		{TowerID: "torre-a", LevelNumber: 1, HasLevel: true, DepartmentLabel: "101", Kind: KindProfilePhoto, Ext: "jpeg"},
		{TowerID: "torre-a", LevelNumber: 22, HasLevel: true, DepartmentLabel: "2204", Kind: KindDocument, DocKind: DocCURP, Ext: "pdf"},
		{TowerID: "torre-a", LevelNumber: 22, HasLevel: true, DepartmentLabel: "2204", Kind: KindDocument, DocKind: DocNationalID, Ext: "jpg"},
	}

	for _, ref := range refs {
		parsed := ParseAssetPath(ref.Path())
		require.NotNil(t, parsed, "path %s should parse", ref.Path())
		assert.Equal(t, ref, *parsed, "path %s should round-trip", ref.Path())
	}
}

func TestParseAssetPath_AllDocKindsRoundTrip(t *testing.T) {
	for _, kind := range DocKinds {
		loc := DocumentPath("t1", 4, "405", kind, "pdf")
		parsed := ParseAssetPath(loc.DiskPath)
		require.NotNil(t, parsed)
		assert.Equal(t, KindDocument, parsed.Kind)
		assert.Equal(t, kind, parsed.DocKind)
	}
}

func TestParseAssetPath_RejectsForeignPaths(t *testing.T) {
	foreign := []string{
		"",
		"edificios",
		"edificios/torre-a",
		"edificios/torre-a/other.jpg",
		"edificios/torre-a/edificio",
		"edificios/torre-a/pisos/abc/piso.jpg",
		"edificios/torre-a/pisos/3/banner.jpg",
		"edificios/torre-a/pisos/3/apartamentos/101",
		"edificios/torre-a/pisos/3/apartamentos/101/notes.txt",
		"edificios/torre-a/pisos/3/apartamentos/101/documento_pasaporte.pdf",
		"edificios/torre-a/pisos/3/apartamentos/101/perfil.jpg/extra",
		"otros/torre-a/edificio.jpg",
		"backup.tar.gz",
	}
	for _, p := range foreign {
		assert.Nil(t, ParseAssetPath(p), "path %q must not parse", p)
	}
}

func TestParseAssetPath_NormalizesLeadingSlash(t *testing.T) {
	parsed := ParseAssetPath("/edificios/torre-a/edificio.jpg")
	require.NotNil(t, parsed)
	assert.Equal(t, "torre-a", parsed.TowerID)
	assert.Equal(t, KindBuildingImage, parsed.Kind)
}

func TestValidDocKind(t *testing.T) {
	assert.True(t, ValidDocKind("curp"))
	assert.True(t, ValidDocKind("ine"))
	assert.False(t, ValidDocKind("pasaporte"))
	assert.False(t, ValidDocKind(""))
}
