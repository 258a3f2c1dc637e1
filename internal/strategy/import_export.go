package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// frameDoc/riskProfileDoc wrap a single exported record with its schema
// version, matching the teacher's export-envelope pattern (a version tag
// alongside the payload, so ImportXxx can reject documents from a future
// incompatible schema before touching the Catalog).
type frameDoc struct {
	Frame FrameDef `yaml:"frame"`
}

type riskProfileDoc struct {
	RiskProfile RiskProfileDef `yaml:"risk_profile"`
}

// ExportFrame serializes a FrameDef to YAML.
func ExportFrame(def FrameDef) ([]byte, error) {
	def.SchemaVersion = SchemaVersion
	return yaml.Marshal(frameDoc{Frame: def})
}

// ImportFrame parses a YAML-encoded FrameDef, rejecting any schema version
// other than the one this build understands (no migration path is needed
// yet since there has only ever been one version).
func ImportFrame(data []byte) (FrameDef, error) {
	var doc frameDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return FrameDef{}, fmt.Errorf("strategy: parse frame document: %w", err)
	}
	if doc.Frame.SchemaVersion != SchemaVersion {
		return FrameDef{}, fmt.Errorf("strategy: unsupported frame schema version %q", doc.Frame.SchemaVersion)
	}
	if err := doc.Frame.Validate(); err != nil {
		return FrameDef{}, err
	}
	return doc.Frame, nil
}

// ExportFrameFile writes def to path as YAML.
func ExportFrameFile(path string, def FrameDef) error {
	data, err := ExportFrame(def)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ImportFrameFile reads and parses a frame document from path.
func ImportFrameFile(path string) (FrameDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FrameDef{}, fmt.Errorf("strategy: read frame file: %w", err)
	}
	return ImportFrame(data)
}

// ExportRiskProfile serializes a RiskProfileDef to YAML.
func ExportRiskProfile(def RiskProfileDef) ([]byte, error) {
	def.SchemaVersion = SchemaVersion
	return yaml.Marshal(riskProfileDoc{RiskProfile: def})
}

// ImportRiskProfile parses a YAML-encoded RiskProfileDef.
func ImportRiskProfile(data []byte) (RiskProfileDef, error) {
	var doc riskProfileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RiskProfileDef{}, fmt.Errorf("strategy: parse risk profile document: %w", err)
	}
	if doc.RiskProfile.SchemaVersion != SchemaVersion {
		return RiskProfileDef{}, fmt.Errorf("strategy: unsupported risk profile schema version %q", doc.RiskProfile.SchemaVersion)
	}
	if err := doc.RiskProfile.Validate(); err != nil {
		return RiskProfileDef{}, err
	}
	return doc.RiskProfile, nil
}

// ExportRiskProfileFile writes def to path as YAML.
func ExportRiskProfileFile(path string, def RiskProfileDef) error {
	data, err := ExportRiskProfile(def)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ImportRiskProfileFile reads and parses a risk profile document from path.
func ImportRiskProfileFile(path string) (RiskProfileDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RiskProfileDef{}, fmt.Errorf("strategy: read risk profile file: %w", err)
	}
	return ImportRiskProfile(data)
}
