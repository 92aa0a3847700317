package acquisition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMinArtifactSize guards against empty or stub downloads.
const DefaultMinArtifactSize int64 = 100

// Verdict is the validation gate's answer.
type Verdict struct {
	Accepted bool
	Reason   RejectReason
}

func (v Verdict) String() string {
	if v.Accepted {
		return "accepted"
	}
	return string(v.Reason)
}

// Validator applies the container blacklist and the minimum size to
// fetched artifacts.
type Validator struct {
	blacklist ContainerSet
	minSize   int64
}

func NewValidator(blacklist ContainerSet, minSize int64) *Validator {
	return &Validator{
		blacklist: blacklist,
		minSize:   minSize,
	}
}

// Validate only looks at artifact metadata. A blacklisted container is
// rejected before size is considered.
func (v *Validator) Validate(a Artifact) Verdict {
	if v.blacklist.Contains(a.Container) || v.blacklist.Contains(a.DetectedContainer) {
		return Verdict{Reason: RejectBlacklistedContainer}
	}
	if a.SizeBytes < v.minSize {
		return Verdict{Reason: RejectTooSmall}
	}
	return Verdict{Accepted: true}
}

// Inspect builds artifact metadata from the file on disk: its extension, its
// size and the container sniffed from its content. The resolver may
// substitute formats, so the requested spec is never trusted.
func Inspect(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to stat artifact: %w", err)
	}
	if info.IsDir() {
		return Artifact{}, fmt.Errorf("artifact %s is a directory", path)
	}

	artifact := Artifact{
		Path:      path,
		Container: NormalizeContainer(filepath.Ext(path)),
		SizeBytes: info.Size(),
	}

	if info.Size() == 0 {
		return artifact, nil
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to detect artifact type: %w", err)
	}
	artifact.MimeType = mtype.String()
	artifact.DetectedContainer = detectedContainer(mtype)

	return artifact, nil
}

func init() {
	mimetype.Lookup("text/plain").Extend(isMHTML, "multipart/related", ".mhtml")
}

// isMHTML matches a saved web archive: a MIME header block that declares
// both MIME-Version and a multipart/related body.
func isMHTML(raw []byte, _ uint32) bool {
	header := raw
	for _, sep := range [][]byte{[]byte("\r\n\r\n"), []byte("\n\n")} {
		if i := bytes.Index(header, sep); i >= 0 {
			header = header[:i]
		}
	}

	var version, related bool
	for _, line := range bytes.Split(bytes.ToLower(header), []byte("\n")) {
		line = bytes.TrimSpace(line)
		name, value, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			continue
		}
		switch string(bytes.TrimSpace(name)) {
		case "mime-version":
			version = true
		case "content-type":
			related = bytes.HasPrefix(bytes.TrimSpace(value), []byte("multipart/related"))
		}
	}
	return version && related
}

func detectedContainer(mtype *mimetype.MIME) string {
	switch {
	case mtype.Is("multipart/related"):
		return "mhtml"
	case mtype.Is("text/html"):
		return "html"
	}
	return NormalizeContainer(mtype.Extension())
}
