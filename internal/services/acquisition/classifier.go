package acquisition

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var heightPattern = regexp.MustCompile(`(\d+)`)

// Classify assigns a tier to every format and orders the result by tier,
// then by quality within a tier. It never fails; nil in gives nil out.
func Classify(formats []FormatDescriptor, blacklist ContainerSet) []ClassifiedFormat {
	if len(formats) == 0 {
		return nil
	}

	classified := make([]ClassifiedFormat, 0, len(formats))
	for _, f := range formats {
		classified = append(classified, ClassifiedFormat{
			FormatDescriptor: f,
			Tier:             tierOf(f, blacklist),
			Height:           parseHeight(f.ResolutionLabel),
		})
	}

	sort.SliceStable(classified, func(i, j int) bool {
		a, b := classified[i], classified[j]
		if a.Tier != b.Tier {
			return tierRank(a.Tier) < tierRank(b.Tier)
		}
		return betterQuality(a, b)
	})

	return classified
}

func tierOf(f FormatDescriptor, blacklist ContainerSet) Tier {
	if blacklist.Contains(f.Container) {
		return TierUnusable
	}

	hasVideo := codecPresent(f.VideoCodec)
	hasAudio := codecPresent(f.AudioCodec)
	switch {
	case hasVideo && hasAudio:
		return TierAudioVideo
	case hasAudio:
		return TierAudioOnly
	case hasVideo:
		return TierVideoOnly
	default:
		return TierUnusable
	}
}

func codecPresent(codec string) bool {
	codec = strings.ToLower(strings.TrimSpace(codec))
	return codec != "" && codec != "none"
}

// tierRank orders tiers in the classifier output. Unusable sorts last.
func tierRank(t Tier) int {
	if t == TierUnusable {
		return 1 << 10
	}
	return int(t)
}

// betterQuality reports whether a strictly outranks b. Equal entries keep
// catalog order through the stable sort.
func betterQuality(a, b ClassifiedFormat) bool {
	if a.HasDirectURL != b.HasDirectURL {
		return a.HasDirectURL
	}
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	if a.Bitrate != b.Bitrate {
		return a.Bitrate > b.Bitrate
	}
	return a.SizeBytes > b.SizeBytes
}

// parseHeight extracts the numeric part of a label like "720p60".
func parseHeight(label string) int {
	matches := heightPattern.FindStringSubmatch(label)
	if len(matches) > 1 {
		if h, err := strconv.Atoi(matches[1]); err == nil {
			return h
		}
	}
	return 0
}
