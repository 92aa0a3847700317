package acquisition

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/denisAlshanov/mediagrab/internal/utils"
)

// Options tune a Pipeline. Zero values fall back to the package defaults.
type Options struct {
	QualityCeilings     []int
	ContainerBlacklist  []string
	MinArtifactSize     int64
	AttemptTimeout      time.Duration
	PlaceholderDuration time.Duration
}

// Pipeline is the public entry point: classify, plan, acquire, and fall back
// to a placeholder when nothing could be fetched.
type Pipeline struct {
	resolver  MediaResolver
	temp      TempStore
	sink      ArtifactSink
	blacklist ContainerSet
	ceilings  []int
	acquirer  *Acquirer
	synthetic *SyntheticGenerator

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewPipeline wires the collaborators. encoder may be nil.
func NewPipeline(resolver MediaResolver, temp TempStore, sink ArtifactSink, encoder PlaceholderEncoder, opts Options) *Pipeline {
	blacklist := opts.ContainerBlacklist
	if len(blacklist) == 0 {
		blacklist = DefaultContainerBlacklist
	}
	ceilings := opts.QualityCeilings
	if len(ceilings) == 0 {
		ceilings = DefaultQualityCeilings
	}
	minSize := opts.MinArtifactSize
	if minSize <= 0 {
		minSize = DefaultMinArtifactSize
	}

	set := NewContainerSet(blacklist)
	return &Pipeline{
		resolver:  resolver,
		temp:      temp,
		sink:      sink,
		blacklist: set,
		ceilings:  ceilings,
		acquirer:  NewAcquirer(temp, NewValidator(set, minSize), opts.AttemptTimeout),
		synthetic: NewSyntheticGenerator(encoder, opts.PlaceholderDuration),
		inFlight:  make(map[string]struct{}),
	}
}

// Preview is the read-only view of what a request would attempt.
type Preview struct {
	Title   string             `json:"title,omitempty"`
	Catalog []ClassifiedFormat `json:"catalog"`
	Plan    []CandidateSpec    `json:"plan"`
}

// Preview lists and classifies the catalog and builds the plan without
// fetching anything.
func (p *Pipeline) Preview(ctx context.Context, sourceID string, mode Mode, ceilings []int) *Preview {
	catalog := p.listFormats(ctx, sourceID)
	classified := Classify(catalog.Formats, p.blacklist)
	return &Preview{
		Title:   catalog.Title,
		Catalog: classified,
		Plan:    Plan(classified, mode, p.ceilingsFor(ceilings), p.blacklist),
	}
}

// Acquire never returns an error: every outcome, including cancellation and
// hard failure, is described by the result.
func (p *Pipeline) Acquire(ctx context.Context, req AcquisitionRequest) *AcquisitionResult {
	req.RequestID = p.claimRequestID(ctx, req.RequestID)
	defer p.releaseRequestID(req.RequestID)

	ctx = withAcquisitionFields(ctx, req)

	catalog := p.listFormats(ctx, req.SourceID)
	if err := ctx.Err(); err != nil {
		return cancelledResult(catalog.Title, nil)
	}

	classified := Classify(catalog.Formats, p.blacklist)
	plan := Plan(classified, req.Mode, p.ceilingsFor(req.QualityCeilings), p.blacklist)

	utils.LogInfo(ctx, "Acquisition plan built", utils.Fields{
		"catalog_size": len(catalog.Formats),
		"plan_size":    len(plan),
	})

	fetch := func(ctx context.Context, spec CandidateSpec, destHint string) (string, error) {
		return p.resolver.Fetch(ctx, req.SourceID, spec, destHint)
	}

	sel, err := p.acquirer.Acquire(ctx, req.RequestID, plan, fetch)
	switch {
	case err == nil:
		ref, perr := p.promote(ctx, req, sel.Artifact, sel.Dir, false)
		if perr == nil {
			return &AcquisitionResult{
				Status:      StatusSuccess,
				ArtifactRef: ref,
				SizeBytes:   sel.Artifact.SizeBytes,
				FormatUsed:  sel.Spec,
				Message:     successMessage(catalog.Title, sel.Spec, sel.Artifact.SizeBytes),
				Title:       catalog.Title,
				MimeType:    sel.Artifact.MimeType,
				Attempts:    sel.Attempts,
			}
		}
		utils.LogError(ctx, "Failed to promote accepted artifact", perr, utils.Fields{"candidate": sel.Spec.String()})
	case errors.Is(err, ErrPlanExhausted):
		utils.LogWarn(ctx, "Every candidate format failed, generating placeholder", utils.Fields{"attempts": len(sel.Attempts)})
	default:
		utils.LogWarn(ctx, "Acquisition cancelled", utils.Fields{"attempts": len(sel.Attempts), "error": err.Error()})
		return cancelledResult(catalog.Title, sel.Attempts)
	}

	return p.fallback(ctx, req, catalog.Title, sel.Attempts)
}

// claimRequestID reserves id for the lifetime of one Acquire call. Temp
// locations are keyed by it, so an empty id or one already in flight is
// replaced with a fresh one.
func (p *Pipeline) claimRequestID(ctx context.Context, id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id != "" {
		if _, busy := p.inFlight[id]; !busy {
			p.inFlight[id] = struct{}{}
			return id
		}
	}

	fresh := uuid.NewString()
	if id != "" {
		utils.LogWarn(ctx, "Request ID already in flight, using a fresh one", utils.Fields{"request_id": id, "replacement": fresh})
	}
	p.inFlight[fresh] = struct{}{}
	return fresh
}

func (p *Pipeline) releaseRequestID(id string) {
	p.mu.Lock()
	delete(p.inFlight, id)
	p.mu.Unlock()
}

func (p *Pipeline) fallback(ctx context.Context, req AcquisitionRequest, title string, attempts []Attempt) *AcquisitionResult {
	if err := ctx.Err(); err != nil {
		return cancelledResult(title, attempts)
	}

	placeholder, err := p.generatePlaceholder(ctx, req)
	if err != nil && ctx.Err() != nil {
		utils.LogWarn(ctx, "Acquisition cancelled during placeholder generation", utils.Fields{"error": err.Error()})
		return cancelledResult(title, attempts)
	}
	if err != nil {
		utils.LogError(ctx, "Placeholder generation failed", err)
		return &AcquisitionResult{
			Status: StatusHardFailure,
			Message: fmt.Sprintf(
				"All %d candidate formats failed and the placeholder could not be produced: %v",
				len(attempts), err,
			),
			Title:    title,
			Attempts: attempts,
		}
	}

	return &AcquisitionResult{
		Status:      StatusSyntheticFallback,
		ArtifactRef: placeholder.ref,
		SizeBytes:   placeholder.SizeBytes,
		IsSynthetic: true,
		Message:     placeholderMessage(len(attempts), placeholder.Placeholder),
		Title:       title,
		MimeType:    placeholder.MimeType,
		Attempts:    attempts,
	}
}

type promotedPlaceholder struct {
	*Placeholder
	ref string
}

func (p *Pipeline) generatePlaceholder(ctx context.Context, req AcquisitionRequest) (*promotedPlaceholder, error) {
	dir, err := p.temp.Acquire(req.RequestID + "-placeholder")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoPlaceholder, err)
	}

	placeholder, err := p.synthetic.Generate(ctx, req.Mode, req.SourceID, dir)
	if err != nil {
		p.temp.Release(dir)
		return nil, err
	}

	ref, err := p.promote(ctx, req, placeholder.Artifact, dir, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoPlaceholder, err)
	}

	utils.LogInfo(ctx, "Placeholder produced", utils.Fields{
		"placeholder_kind": string(placeholder.Kind),
		"artifact_ref":     ref,
	})
	return &promotedPlaceholder{Placeholder: placeholder, ref: ref}, nil
}

// promote hands the artifact to the sink and releases its temp directory in
// every case.
func (p *Pipeline) promote(ctx context.Context, req AcquisitionRequest, artifact Artifact, dir string, synthetic bool) (string, error) {
	defer func() {
		if err := p.temp.Release(dir); err != nil {
			utils.LogWarn(ctx, "Failed to release temp location", utils.Fields{"dir": dir, "error": err.Error()})
		}
	}()

	key := ArtifactKey(req, filepath.Ext(artifact.Path), synthetic)
	metadata := map[string]string{
		"acquisition_id": req.RequestID,
		"source_id":      req.SourceID,
		"mode":           string(req.Mode),
		"synthetic":      fmt.Sprintf("%t", synthetic),
	}

	contentType := artifact.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ref, err := p.sink.Store(ctx, key, artifact.Path, contentType, metadata)
	if err != nil {
		return "", fmt.Errorf("failed to promote artifact: %w", err)
	}
	return ref, nil
}

func (p *Pipeline) listFormats(ctx context.Context, sourceID string) *Catalog {
	catalog, err := p.resolver.ListFormats(ctx, sourceID)
	if err != nil {
		utils.LogWarn(ctx, "Format catalog unavailable, continuing with static policy", utils.Fields{"error": err.Error()})
		return &Catalog{}
	}
	if catalog == nil {
		return &Catalog{}
	}
	if len(catalog.Formats) == 0 {
		utils.LogWarn(ctx, "Format catalog is empty, continuing with static policy")
	}
	return catalog
}

func (p *Pipeline) ceilingsFor(requested []int) []int {
	if len(requested) > 0 {
		return requested
	}
	return p.ceilings
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// ArtifactKey is the sink key for a request's artifact.
func ArtifactKey(req AcquisitionRequest, ext string, synthetic bool) string {
	source := unsafeKeyChars.ReplaceAllString(req.SourceID, "_")
	if source == "" {
		source = "unknown"
	}
	name := req.RequestID
	if synthetic {
		name += "_placeholder"
	}
	return fmt.Sprintf("%s/%s%s", source, name, strings.ToLower(ext))
}

func cancelledResult(title string, attempts []Attempt) *AcquisitionResult {
	return &AcquisitionResult{
		Status:   StatusCancelled,
		Message:  fmt.Sprintf("Acquisition cancelled after %d attempt(s)", len(attempts)),
		Title:    title,
		Attempts: attempts,
	}
}

func successMessage(title string, spec CandidateSpec, size int64) string {
	if title == "" {
		title = "untitled source"
	}
	return fmt.Sprintf("Downloaded %q using format %s (%s)", title, spec, humanize.Bytes(uint64(size)))
}

func placeholderMessage(attempts int, p *Placeholder) string {
	var what string
	switch p.Kind {
	case PlaceholderEncodedAudio, PlaceholderWAV:
		what = fmt.Sprintf("a %ds silent audio placeholder", p.DurationSeconds)
	case PlaceholderEncodedVideo:
		what = fmt.Sprintf("a %ds black video placeholder", p.DurationSeconds)
	default:
		what = "a text placeholder (no media encoder available)"
	}
	return fmt.Sprintf(
		"None of the %d candidate formats could be downloaded; the source may be restricted or temporarily unavailable. Returned %s (%s).",
		attempts, what, humanize.Bytes(uint64(p.SizeBytes)),
	)
}

func withAcquisitionFields(ctx context.Context, req AcquisitionRequest) context.Context {
	return utils.WithLogFields(ctx, utils.Fields{
		"acquisition_id": req.RequestID,
		"source_id":      req.SourceID,
		"mode":           string(req.Mode),
	})
}
