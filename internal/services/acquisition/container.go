package acquisition

import "strings"

// DefaultContainerBlacklist lists containers that are never media. The remote
// host sometimes answers with an mhtml page instead of the requested stream.
var DefaultContainerBlacklist = []string{"mhtml", "mht", "html"}

// ContainerSet is a normalized set of container names.
type ContainerSet map[string]struct{}

func NewContainerSet(containers []string) ContainerSet {
	set := make(ContainerSet, len(containers))
	for _, c := range containers {
		if c = NormalizeContainer(c); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

func (s ContainerSet) Contains(container string) bool {
	_, ok := s[NormalizeContainer(container)]
	return ok
}

// NormalizeContainer lower-cases a container or file extension and strips the dot.
func NormalizeContainer(container string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(container)), ".")
}
