package acquisition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/denisAlshanov/mediagrab/internal/utils"
)

// ErrPlanExhausted means every candidate failed or was rejected.
var ErrPlanExhausted = errors.New("all candidate formats failed")

// FetchFunc fetches one candidate into destHint and returns the written path.
type FetchFunc func(ctx context.Context, spec CandidateSpec, destHint string) (string, error)

// Selection is what the acquirer hands back to the pipeline.
type Selection struct {
	Artifact Artifact
	Spec     CandidateSpec
	// Dir is the scoped temp directory holding Artifact. The caller releases it.
	Dir      string
	Attempts []Attempt
}

// Acquirer walks a plan sequentially, first accepted artifact wins.
type Acquirer struct {
	temp           TempStore
	validator      *Validator
	attemptTimeout time.Duration
}

func NewAcquirer(temp TempStore, validator *Validator, attemptTimeout time.Duration) *Acquirer {
	return &Acquirer{
		temp:           temp,
		validator:      validator,
		attemptTimeout: attemptTimeout,
	}
}

// Acquire returns ErrPlanExhausted when no candidate is accepted and the
// context error when ctx is cancelled. Attempts are always filled in.
func (a *Acquirer) Acquire(ctx context.Context, requestID string, plan []CandidateSpec, fetch FetchFunc) (*Selection, error) {
	sel := &Selection{}
	tried := make(map[string]struct{}, len(plan))

	for i, spec := range plan {
		if err := ctx.Err(); err != nil {
			return sel, err
		}

		key := spec.String()
		if _, dup := tried[key]; dup {
			continue
		}
		tried[key] = struct{}{}

		step := a.attempt(ctx, fmt.Sprintf("%s-%03d", requestID, i), spec, fetch)
		sel.Attempts = append(sel.Attempts, step.Attempt)

		switch step.Outcome {
		case OutcomeAccepted:
			sel.Artifact = step.artifact
			sel.Spec = spec
			sel.Dir = step.dir
			return sel, nil
		case OutcomeCancelled:
			return sel, ctx.Err()
		}
	}

	return sel, ErrPlanExhausted
}

type attemptResult struct {
	Attempt
	artifact Artifact
	dir      string
}

func (a *Acquirer) attempt(ctx context.Context, scope string, spec CandidateSpec, fetch FetchFunc) attemptResult {
	res := attemptResult{Attempt: Attempt{Spec: spec.String()}}
	fields := utils.Fields{"candidate": res.Spec, "kind": string(spec.Kind)}

	dir, err := a.temp.Acquire(scope)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		utils.LogWarn(ctx, "Failed to prepare temp location for candidate", withError(fields, err))
		return res
	}

	utils.LogInfo(ctx, "Attempting candidate format", fields)

	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if a.attemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, a.attemptTimeout)
	}
	path, err := fetch(attemptCtx, spec, filepath.Join(dir, "artifact"))
	cancel()

	if err != nil {
		a.release(ctx, dir, path)
		if ctx.Err() != nil {
			res.Outcome = OutcomeCancelled
			res.Error = ctx.Err().Error()
			return res
		}
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		utils.LogWarn(ctx, "Candidate fetch failed", withError(fields, err))
		return res
	}

	artifact, err := Inspect(path)
	if err != nil {
		a.release(ctx, dir, path)
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		utils.LogWarn(ctx, "Fetched artifact could not be inspected", withError(fields, err))
		return res
	}
	res.SizeBytes = artifact.SizeBytes

	verdict := a.validator.Validate(artifact)
	if !verdict.Accepted {
		a.release(ctx, dir, path)
		res.Outcome = OutcomeRejected
		res.Reason = verdict.Reason
		fields["reason"] = string(verdict.Reason)
		fields["size_bytes"] = artifact.SizeBytes
		fields["container"] = artifact.Container
		fields["detected_container"] = artifact.DetectedContainer
		utils.LogWarn(ctx, "Candidate artifact rejected", fields)
		return res
	}

	fields["size_bytes"] = artifact.SizeBytes
	utils.LogInfo(ctx, "Candidate artifact accepted", fields)

	res.Outcome = OutcomeAccepted
	res.artifact = artifact
	res.dir = dir
	return res
}

// release deletes the artifact and then the scoped directory. Paths the
// resolver reported outside that directory are left alone.
func (a *Acquirer) release(ctx context.Context, dir, path string) {
	if path != "" {
		if !within(dir, path) {
			utils.LogWarn(ctx, "Artifact lies outside its temp location, not deleting", utils.Fields{"path": path, "dir": dir})
		} else if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			utils.LogWarn(ctx, "Failed to delete rejected artifact", utils.Fields{"path": path, "error": err.Error()})
		}
	}
	if err := a.temp.Release(dir); err != nil {
		utils.LogWarn(ctx, "Failed to release temp location", utils.Fields{"dir": dir, "error": err.Error()})
	}
}

// within reports whether path is strictly below dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func withError(fields utils.Fields, err error) utils.Fields {
	out := make(utils.Fields, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
