package strategy

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_ExportImport_RoundTrips(t *testing.T) {
	def := FrameDef{Name: "q1-2026", Interval: "1h", StartDate: time.Unix(0, 0).UTC(), EndDate: time.Unix(100000, 0).UTC()}
	data, err := ExportFrame(def)
	require.NoError(t, err)

	got, err := ImportFrame(data)
	require.NoError(t, err)
	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, def.Interval, got.Interval)
	assert.True(t, def.StartDate.Equal(got.StartDate))
	assert.True(t, def.EndDate.Equal(got.EndDate))
}

func TestImportFrame_RejectsWrongSchemaVersion(t *testing.T) {
	data := []byte("frame:\n  schema_version: \"9.9\"\n  name: x\n  interval: 1h\n")
	_, err := ImportFrame(data)
	assert.Error(t, err)
}

func TestFrameFile_ExportImport_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.yaml")
	def := FrameDef{Name: "q1-2026", Interval: "1h", StartDate: time.Unix(0, 0).UTC(), EndDate: time.Unix(100000, 0).UTC()}

	require.NoError(t, ExportFrameFile(path, def))
	got, err := ImportFrameFile(path)
	require.NoError(t, err)
	assert.Equal(t, def.Name, got.Name)
}

func TestRiskProfile_ExportImport_RoundTrips(t *testing.T) {
	def := RiskProfileDef{Name: "conservative", MaxActivePositions: 3}
	data, err := ExportRiskProfile(def)
	require.NoError(t, err)

	got, err := ImportRiskProfile(data)
	require.NoError(t, err)
	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, def.MaxActivePositions, got.MaxActivePositions)
}

func TestImportRiskProfile_RejectsInvalidDefinition(t *testing.T) {
	data := []byte("risk_profile:\n  schema_version: \"1.0\"\n  max_active_positions: 3\n")
	_, err := ImportRiskProfile(data)
	assert.Error(t, err)
}
