package storage

import (
	"encoding/json"
	"fmt"

	"github.com/quorumhq/petitions/internal/services/petitions/domain/petition"
	"github.com/quorumhq/petitions/internal/services/petitions/domain/redline"
)

// SnapshotSchemaVersion guards future snapshot layout changes.
const SnapshotSchemaVersion = 1

// Snapshot is the typed, versioned capture of a petition's content at one
// lifecycle milestone. The diff engine operates on this structure, never on
// a loosely-typed document.
type Snapshot struct {
	SchemaVersion int                 `json:"schema_version"`
	Title         string              `json:"title"`
	Summary       string              `json:"summary"`
	Rationale     string              `json:"rationale"`
	ActionType    petition.ActionType `json:"action_type"`
	Targets       []TargetSnapshot    `json:"targets"`
}

// TargetSnapshot captures one target's state inside a version snapshot.
type TargetSnapshot struct {
	ParagraphNumber  *int                `json:"paragraph_number,omitempty"`
	ResolutionNumber *int                `json:"resolution_number,omitempty"`
	ChangeType       petition.ChangeType `json:"change_type"`
	CurrentText      string              `json:"current_text,omitempty"`
	ProposedText     string              `json:"proposed_text,omitempty"`
}

// NewSnapshot captures the petition and its targets under the current schema.
func NewSnapshot(record Petition, targets []Target) Snapshot {
	snapshot := Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		Title:         record.Title,
		Summary:       record.Summary,
		Rationale:     record.Rationale,
		ActionType:    record.ActionType,
		Targets:       make([]TargetSnapshot, 0, len(targets)),
	}
	for _, target := range targets {
		snapshot.Targets = append(snapshot.Targets, TargetSnapshot{
			ParagraphNumber:  target.ParagraphNumber,
			ResolutionNumber: target.ResolutionNumber,
			ChangeType:       target.ChangeType,
			CurrentText:      target.CurrentText,
			ProposedText:     target.ProposedText,
		})
	}
	return snapshot
}

// TargetTexts maps the snapshot's targets onto the diff engine's input.
func (s Snapshot) TargetTexts() []redline.TargetText {
	texts := make([]redline.TargetText, 0, len(s.Targets))
	for _, target := range s.Targets {
		texts = append(texts, redline.TargetText{
			ParagraphNumber:  target.ParagraphNumber,
			ResolutionNumber: target.ResolutionNumber,
			ChangeType:       target.ChangeType,
			CurrentText:      target.CurrentText,
			ProposedText:     target.ProposedText,
		})
	}
	return texts
}

// EncodeSnapshot serializes a snapshot for persistence.
func EncodeSnapshot(snapshot Snapshot) (string, error) {
	if snapshot.SchemaVersion == 0 {
		snapshot.SchemaVersion = SnapshotSchemaVersion
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(raw), nil
}

// DecodeSnapshot deserializes a persisted snapshot.
func DecodeSnapshot(raw string) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snapshot.SchemaVersion != SnapshotSchemaVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot schema version %d", snapshot.SchemaVersion)
	}
	return snapshot, nil
}
