package acquisition

import (
	"fmt"
	"strings"
)

// Mode selects what the caller wants out of the source.
type Mode string

const (
	ModeVideo     Mode = "video"
	ModeAudioOnly Mode = "audio"
)

// ParseMode accepts the API spellings of a mode. Empty means video.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "video":
		return ModeVideo, nil
	case "audio", "audio_only", "audioonly":
		return ModeAudioOnly, nil
	}
	return "", fmt.Errorf("unknown acquisition mode %q", s)
}

// Tier classifies a format by the media components it carries.
type Tier int

const (
	TierUnusable Tier = iota
	TierAudioVideo
	TierVideoOnly
	TierAudioOnly
)

func (t Tier) String() string {
	switch t {
	case TierAudioVideo:
		return "audio_video"
	case TierVideoOnly:
		return "video_only"
	case TierAudioOnly:
		return "audio_only"
	default:
		return "unusable"
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// FormatDescriptor is the resolver's metadata for one encoded variant.
type FormatDescriptor struct {
	ID              string `json:"id"`
	Container       string `json:"container"`
	ResolutionLabel string `json:"resolution_label,omitempty"`
	VideoCodec      string `json:"video_codec,omitempty"`
	AudioCodec      string `json:"audio_codec,omitempty"`
	Bitrate         int    `json:"bitrate,omitempty"`
	SizeBytes       int64  `json:"size_bytes"`
	HasDirectURL    bool   `json:"has_direct_url"`
}

// Catalog is what the resolver knows about a source.
type Catalog struct {
	Title   string
	Formats []FormatDescriptor
}

// ClassifiedFormat pairs a descriptor with its tier and parsed height.
type ClassifiedFormat struct {
	FormatDescriptor
	Tier   Tier `json:"tier"`
	Height int  `json:"height,omitempty"`
}

// Selector picks the top or bottom of a policy's matching set.
type Selector string

const (
	SelectBest  Selector = "best"
	SelectWorst Selector = "worst"
)

// CandidateKind tells a concrete catalog format from a policy expression.
type CandidateKind string

const (
	CandidateCatalog CandidateKind = "catalog"
	CandidatePolicy  CandidateKind = "policy"
)

// CandidateSpec is one entry of the fetch plan.
type CandidateSpec struct {
	Kind CandidateKind `json:"kind"`

	// Catalog candidates.
	FormatID string `json:"format_id,omitempty"`
	Tier     Tier   `json:"tier,omitempty"`

	// Policy candidates.
	Selector  Selector `json:"selector,omitempty"`
	AudioOnly bool     `json:"audio_only,omitempty"`
	MaxHeight int      `json:"max_height,omitempty"`

	// Container is the expected container for catalog candidates and the
	// required one for policy candidates. Empty means any.
	Container string `json:"container,omitempty"`
}

// CatalogCandidate builds the spec for a concrete format.
func CatalogCandidate(f ClassifiedFormat) CandidateSpec {
	return CandidateSpec{
		Kind:      CandidateCatalog,
		FormatID:  f.ID,
		Tier:      f.Tier,
		Container: f.Container,
	}
}

// String renders the spec the way format selectors are usually written,
// e.g. "137", "best[height<=720][ext=mp4]" or "bestaudio[ext=m4a]".
func (c CandidateSpec) String() string {
	if c.Kind == CandidateCatalog {
		return c.FormatID
	}
	var b strings.Builder
	b.WriteString(string(c.Selector))
	if c.AudioOnly {
		b.WriteString("audio")
	}
	if c.MaxHeight > 0 {
		fmt.Fprintf(&b, "[height<=%d]", c.MaxHeight)
	}
	if c.Container != "" {
		fmt.Fprintf(&b, "[ext=%s]", c.Container)
	}
	return b.String()
}

// IsZero reports whether no candidate was used.
func (c CandidateSpec) IsZero() bool {
	return c.Kind == ""
}

// Status is the final outcome of a request.
type Status string

const (
	StatusSuccess           Status = "success"
	StatusSyntheticFallback Status = "synthetic_fallback"
	StatusHardFailure       Status = "hard_failure"
	StatusCancelled         Status = "cancelled"
)

// RejectReason explains why the validation gate refused an artifact.
type RejectReason string

const (
	RejectBlacklistedContainer RejectReason = "blacklisted_container"
	RejectTooSmall             RejectReason = "too_small"
)

// Outcome tags a single attempt.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Attempt records what happened to one candidate.
type Attempt struct {
	Spec      string       `json:"spec"`
	Outcome   Outcome      `json:"outcome"`
	Reason    RejectReason `json:"reason,omitempty"`
	Error     string       `json:"error,omitempty"`
	SizeBytes int64        `json:"size_bytes,omitempty"`
}

// Artifact is a file produced by a fetch or by the placeholder generator.
type Artifact struct {
	Path              string
	Container         string
	DetectedContainer string
	MimeType          string
	SizeBytes         int64
}

// AcquisitionRequest is the input of Pipeline.Acquire.
type AcquisitionRequest struct {
	// RequestID keys temp paths and the artifact. Empty or in-flight IDs are
	// replaced with a generated one.
	RequestID       string
	SourceID        string
	Mode            Mode
	QualityCeilings []int
}

// AcquisitionResult is the full observable outcome of a request.
type AcquisitionResult struct {
	Status      Status        `json:"status"`
	ArtifactRef string        `json:"artifact_ref,omitempty"`
	SizeBytes   int64         `json:"size_bytes"`
	FormatUsed  CandidateSpec `json:"format_used"`
	IsSynthetic bool          `json:"is_synthetic"`
	Message     string        `json:"message"`
	Title       string        `json:"title,omitempty"`
	MimeType    string        `json:"mime_type,omitempty"`
	Attempts    []Attempt     `json:"attempts"`
}
