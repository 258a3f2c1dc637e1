// Package strategy provides the importable/exportable definitions behind
// the engine's named strategy/frame/risk-profile registry (§9 "interned
// registry" design note): data-only YAML schemas for frames and risk
// profiles, plus a Catalog that interns strategy functions, frames, and
// risk profiles by name instead of relying on package-level globals.
package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/pegaltier/backtest-kit/internal/candle"
	"github.com/pegaltier/backtest-kit/internal/frame"
)

// SchemaVersion is the current exported-document schema version.
const SchemaVersion = "1.0"

// ValidationError describes one field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every failure found during Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// FrameDef is the YAML-serializable form of frame.Frame: a named date
// range plus base interval (§6 "Frame schema").
type FrameDef struct {
	SchemaVersion string    `yaml:"schema_version" json:"schema_version"`
	Name          string    `yaml:"name" json:"name"`
	Interval      string    `yaml:"interval" json:"interval"`
	StartDate     time.Time `yaml:"start_date" json:"start_date"`
	EndDate       time.Time `yaml:"end_date" json:"end_date"`
}

// Validate checks a FrameDef's fields in isolation (date ordering and
// interval well-formedness; it does not need a Catalog).
func (f FrameDef) Validate() error {
	var errs ValidationErrors
	if f.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "must not be empty"})
	}
	if _, err := candle.Interval(f.Interval).Millis(); err != nil {
		errs = append(errs, ValidationError{Field: "interval", Message: err.Error()})
	}
	if !f.EndDate.After(f.StartDate) {
		errs = append(errs, ValidationError{Field: "end_date", Message: "must be after start_date"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RiskProfileDef is the YAML-serializable form of a risk profile: a named
// cap on concurrently active positions, enforced by risk.Gate (C3).
// MaxActivePositions <= 0 means unlimited, matching risk.Gate's "no
// registered predicates" default (§4.3).
type RiskProfileDef struct {
	SchemaVersion      string `yaml:"schema_version" json:"schema_version"`
	Name               string `yaml:"name" json:"name"`
	MaxActivePositions int    `yaml:"max_active_positions" json:"max_active_positions"`
}

// Validate checks a RiskProfileDef's fields in isolation.
func (r RiskProfileDef) Validate() error {
	var errs ValidationErrors
	if r.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "must not be empty"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ToFrame converts a FrameDef to the frame.Frame the backtest driver needs.
func ToFrame(def FrameDef) frame.Frame {
	return frame.Frame{
		FrameName: def.Name,
		Interval:  candle.Interval(def.Interval),
		StartDate: def.StartDate,
		EndDate:   def.EndDate,
	}
}

// FromFrame converts a frame.Frame back to its exportable FrameDef.
func FromFrame(f frame.Frame) FrameDef {
	return FrameDef{
		SchemaVersion: SchemaVersion,
		Name:          f.FrameName,
		Interval:      string(f.Interval),
		StartDate:     f.StartDate,
		EndDate:       f.EndDate,
	}
}
