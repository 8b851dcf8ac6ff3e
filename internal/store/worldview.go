package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

const changeRequiresDeliberate = "deliberate_transformation"

// TransformationThresholds configures when AttemptWorldviewTransformation may
// succeed for a subcategory, sourced from config key
// "transformation.<subcategory>". Stability and EvidenceThreshold gate two
// distinct inputs: EvidenceThreshold bounds the aggregate trust of the
// evidence memories gathered during the exploration, Stability bounds a
// separately-supplied measure of how settled the proposed change is (e.g. an
// inter-reflection agreement score); a caller must not compute one from the
// other.
type TransformationThresholds struct {
	Stability         float64 `json:"stability"`
	EvidenceThreshold float64 `json:"evidence_threshold"`
	MinReflections    int     `json:"min_reflections"`
	MinHeartbeats     int     `json:"min_heartbeats"`
}

// WorldviewUpdate is one entry of a reflect call's worldview_updates, each
// driving one step of the §4.D.4 deliberate-transformation sub-protocol for
// a single belief. Op selects which store operation runs; fields irrelevant
// to that op are ignored.
type WorldviewUpdate struct {
	BeliefID        string   `json:"belief_id"`
	Op              string   `json:"op"`
	GoalID          string   `json:"goal_id,omitempty"`
	Kind            string   `json:"kind,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	Evidence        []string `json:"evidence,omitempty"`
	NewContent      string   `json:"new_content,omitempty"`
	Mode            string   `json:"mode,omitempty"`
	HeartbeatsSince int      `json:"heartbeats_since,omitempty"`
	EvidenceTrust   float64  `json:"evidence_trust,omitempty"`
	Stability       float64  `json:"stability,omitempty"`
	Reason          string   `json:"reason,omitempty"`
}

// WorldviewInfluence is one entry of a reflect call's worldview_influences:
// accumulated evidence nudging a neutral_default belief, routed to
// CalibrateNeutralBelief.
type WorldviewInfluence struct {
	BeliefID  string   `json:"belief_id"`
	Direction string   `json:"direction"`
	Evidence  []string `json:"evidence"`
}

func (a *Adapter) loadBelief(ctx context.Context, tx pgx.Tx, id string) (WorldviewBelief, error) {
	var b WorldviewBelief
	var tsRaw json.RawMessage
	err := tx.QueryRow(ctx, `
		SELECT id, subcategory, origin, content, change_requires, transformation_state, updated_at
		FROM worldview_beliefs WHERE id = $1::uuid FOR UPDATE
	`, id).Scan(&b.ID, &b.Subcategory, &b.Origin, &b.Content, &b.ChangeRequires, &tsRaw, &b.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return WorldviewBelief{}, xerrors.New(KindBeliefNotFound, id)
		}
		return WorldviewBelief{}, xerrors.Wrap("store.query_failed", err)
	}
	_ = jsonUnmarshal(tsRaw, &b.TransformationState)
	return b, nil
}

func (a *Adapter) saveTransformationState(ctx context.Context, tx pgx.Tx, id string, ts TransformationState) error {
	raw, err := json.Marshal(ts)
	if err != nil {
		return xerrors.Wrap("store.invalid_input", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE worldview_beliefs SET transformation_state = $2, updated_at = now() WHERE id = $1::uuid
	`, id, raw); err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}

// transformationThresholds reads config key "transformation.<subcategory>",
// defaulting to the zero value (every gate disabled) when unset.
func (a *Adapter) transformationThresholds(ctx context.Context, subcategory string) (TransformationThresholds, error) {
	var thresholds TransformationThresholds
	raw, ok, err := a.GetConfig(ctx, "transformation."+subcategory)
	if err != nil {
		return thresholds, err
	}
	if ok {
		_ = jsonUnmarshal(raw, &thresholds)
	}
	return thresholds, nil
}

// applyWorldviewUpdate dispatches one reflect-supplied WorldviewUpdate to
// the matching locked store operation, composing with tx so a batch of
// updates in one reflect call commits (or rolls back) atomically with the
// rest of that call's side effects.
func (a *Adapter) applyWorldviewUpdate(ctx context.Context, tx pgx.Tx, upd WorldviewUpdate) error {
	switch upd.Op {
	case "begin_exploration":
		return a.beginBeliefExplorationLocked(ctx, tx, upd.BeliefID, upd.GoalID)
	case "record_effort":
		return a.recordTransformationEffortLocked(ctx, tx, upd.BeliefID, upd.Kind, upd.Notes, upd.Evidence)
	case "attempt_transformation":
		return a.attemptWorldviewTransformationLocked(ctx, tx, upd.BeliefID, upd.NewContent, upd.Mode, upd.HeartbeatsSince, upd.EvidenceTrust, upd.Stability)
	case "abandon":
		return a.abandonBeliefExplorationLocked(ctx, tx, upd.BeliefID, upd.Reason)
	default:
		// Unknown op: ignored, matching the "unknown keys ignored" posture
		// used for think-call output schemas elsewhere in §4.D.
		return nil
	}
}

// BeginBeliefExploration implements §4.D.4 step (1): attaches an exploration
// goal and initializes transformation_state. Only valid for beliefs whose
// change_requires is deliberate_transformation.
func (a *Adapter) BeginBeliefExploration(ctx context.Context, beliefID, goalID string) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap("store.tx_failed", err)
	}
	defer tx.Rollback(ctx)
	if err := a.beginBeliefExplorationLocked(ctx, tx, beliefID, goalID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return xerrors.Wrap("store.commit_failed", err)
	}
	return nil
}

func (a *Adapter) beginBeliefExplorationLocked(ctx context.Context, tx pgx.Tx, beliefID, goalID string) error {
	belief, err := a.loadBelief(ctx, tx, beliefID)
	if err != nil {
		return err
	}
	if belief.ChangeRequires != changeRequiresDeliberate {
		return xerrors.New(KindNotNeutralDefault, "belief does not require deliberate transformation")
	}
	ts := belief.TransformationState
	ts.ActiveExploration = true
	ts.ExplorationGoalID = goalID
	ts.ReflectionCount = 0
	ts.EvidenceMemories = nil
	return a.saveTransformationState(ctx, tx, beliefID, ts)
}

// RecordTransformationEffort implements §4.D.4 step (2): accumulates
// reflections and evidence memories against an active exploration.
func (a *Adapter) RecordTransformationEffort(ctx context.Context, beliefID, kind, notes string, evidence []string) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap("store.tx_failed", err)
	}
	defer tx.Rollback(ctx)
	if err := a.recordTransformationEffortLocked(ctx, tx, beliefID, kind, notes, evidence); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return xerrors.Wrap("store.commit_failed", err)
	}
	return nil
}

func (a *Adapter) recordTransformationEffortLocked(ctx context.Context, tx pgx.Tx, beliefID, kind, notes string, evidence []string) error {
	belief, err := a.loadBelief(ctx, tx, beliefID)
	if err != nil {
		return err
	}
	if !belief.TransformationState.ActiveExploration {
		return xerrors.New(KindExplorationNotActive, "no active exploration for belief")
	}
	ts := belief.TransformationState
	if kind == "reflect" {
		ts.ReflectionCount++
	}
	ts.EvidenceMemories = append(ts.EvidenceMemories, evidence...)
	if err := a.saveTransformationState(ctx, tx, beliefID, ts); err != nil {
		return err
	}
	if notes != "" {
		if _, err := tx.Exec(ctx, `
			INSERT INTO memories (kind, category, content, metadata)
			VALUES ('transformation_effort', 'worldview', $1, $2)
		`, notes, mustJSON(map[string]any{"belief_id": beliefID, "effort_kind": kind})); err != nil {
			return xerrors.Wrap("store.write_failed", err)
		}
	}
	return nil
}

// AttemptWorldviewTransformation implements §4.D.4 step (3). heartbeatsSince
// is the caller-supplied count of heartbeats since BeginBeliefExploration
// (the control plane tracks this via the exploration goal's age; passed in
// rather than recomputed here to keep this method a pure function of its
// inputs for testability). evidenceTrust and stability are two distinct
// measures gated against two distinct config thresholds: evidenceTrust is
// the aggregate trust of the exploration's evidence memories, stability is
// a separately-computed measure of how settled the proposed change is.
// Thresholds are read from config key "transformation.<subcategory>".
func (a *Adapter) AttemptWorldviewTransformation(ctx context.Context, beliefID, newContent, mode string, heartbeatsSince int, evidenceTrust, stability float64) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap("store.tx_failed", err)
	}
	defer tx.Rollback(ctx)
	if err := a.attemptWorldviewTransformationLocked(ctx, tx, beliefID, newContent, mode, heartbeatsSince, evidenceTrust, stability); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return xerrors.Wrap("store.commit_failed", err)
	}
	return nil
}

func (a *Adapter) attemptWorldviewTransformationLocked(ctx context.Context, tx pgx.Tx, beliefID, newContent, mode string, heartbeatsSince int, evidenceTrust, stability float64) error {
	belief, err := a.loadBelief(ctx, tx, beliefID)
	if err != nil {
		return err
	}
	ts := belief.TransformationState
	if !ts.ActiveExploration {
		return xerrors.New(KindExplorationNotActive, "no active exploration for belief")
	}
	thresholds, err := a.transformationThresholds(ctx, belief.Subcategory)
	if err != nil {
		return err
	}
	if ts.ReflectionCount < thresholds.MinReflections {
		return xerrors.New(KindInsufficientReflections, "reflection count below minimum")
	}
	if heartbeatsSince < thresholds.MinHeartbeats {
		return xerrors.New(KindInsufficientReflections, "heartbeats since exploration start below minimum")
	}
	if evidenceTrust < thresholds.EvidenceThreshold {
		return xerrors.New(KindInsufficientEvidence, "aggregate evidence trust below threshold")
	}
	if thresholds.Stability > 0 && stability < thresholds.Stability {
		return xerrors.New(KindStabilityNotCleared, "subcategory stability threshold not cleared")
	}

	oldContent := belief.Content
	ts.ActiveExploration = false
	ts.ChangeHistory = append(ts.ChangeHistory, ChangeRecord{
		Timestamp:  time.Now(),
		Mode:       mode,
		OldContent: oldContent,
		NewContent: newContent,
	})
	if err := a.saveTransformationState(ctx, tx, beliefID, ts); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE worldview_beliefs SET content = $2 WHERE id = $1::uuid`, beliefID, newContent); err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}

// AbandonBeliefExploration implements §4.D.4's reset path.
func (a *Adapter) AbandonBeliefExploration(ctx context.Context, beliefID, reason string) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap("store.tx_failed", err)
	}
	defer tx.Rollback(ctx)
	if err := a.abandonBeliefExplorationLocked(ctx, tx, beliefID, reason); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return xerrors.Wrap("store.commit_failed", err)
	}
	return nil
}

func (a *Adapter) abandonBeliefExplorationLocked(ctx context.Context, tx pgx.Tx, beliefID, reason string) error {
	belief, err := a.loadBelief(ctx, tx, beliefID)
	if err != nil {
		return err
	}
	ts := belief.TransformationState
	ts.ActiveExploration = false
	ts.ExplorationGoalID = ""
	ts.ReflectionCount = 0
	ts.EvidenceMemories = nil
	if err := a.saveTransformationState(ctx, tx, beliefID, ts); err != nil {
		return err
	}
	if reason != "" {
		if _, err := tx.Exec(ctx, `
			INSERT INTO memories (kind, category, content, metadata)
			VALUES ('transformation_abandoned', 'worldview', $1, $2)
		`, reason, mustJSON(map[string]any{"belief_id": beliefID})); err != nil {
			return xerrors.Wrap("store.write_failed", err)
		}
	}
	return nil
}

// CalibrateNeutralBelief implements the neutral_default calibration path: a
// belief with origin=neutral_default may be nudged by accumulated evidence,
// flipping origin to self_discovered on success. Once self_discovered, only
// the deliberate-transformation path is allowed (this method returns
// KindNotNeutralDefault for any belief whose origin is not neutral_default).
func (a *Adapter) CalibrateNeutralBelief(ctx context.Context, beliefID, direction string, evidence []string) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap("store.tx_failed", err)
	}
	defer tx.Rollback(ctx)
	if err := a.calibrateNeutralBeliefLocked(ctx, tx, beliefID, direction, evidence); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return xerrors.Wrap("store.commit_failed", err)
	}
	return nil
}

func (a *Adapter) calibrateNeutralBeliefLocked(ctx context.Context, tx pgx.Tx, beliefID, direction string, evidence []string) error {
	belief, err := a.loadBelief(ctx, tx, beliefID)
	if err != nil {
		return err
	}
	if belief.Origin != "neutral_default" {
		return xerrors.New(KindNotNeutralDefault, "belief origin is not neutral_default")
	}
	if _, err := tx.Exec(ctx, `UPDATE worldview_beliefs SET origin = 'self_discovered' WHERE id = $1::uuid`, beliefID); err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO memories (kind, category, content, metadata)
		VALUES ('calibration', 'worldview', $1, $2)
	`, direction, mustJSON(map[string]any{"belief_id": beliefID, "evidence": evidence})); err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
