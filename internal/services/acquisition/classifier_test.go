package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(formats []ClassifiedFormat) []string {
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		out = append(out, f.ID)
	}
	return out
}

func TestClassifyTiers(t *testing.T) {
	blacklist := NewContainerSet(DefaultContainerBlacklist)

	testCases := []struct {
		name   string
		format FormatDescriptor
		tier   Tier
	}{
		{name: "muxed", format: FormatDescriptor{ID: "18", Container: "mp4", VideoCodec: "avc1", AudioCodec: "mp4a"}, tier: TierAudioVideo},
		{name: "video only", format: FormatDescriptor{ID: "137", Container: "mp4", VideoCodec: "avc1", AudioCodec: "none"}, tier: TierVideoOnly},
		{name: "audio only", format: FormatDescriptor{ID: "140", Container: "m4a", VideoCodec: "none", AudioCodec: "mp4a"}, tier: TierAudioOnly},
		{name: "audio with empty video codec", format: FormatDescriptor{ID: "251", Container: "webm", AudioCodec: "opus"}, tier: TierAudioOnly},
		{name: "none is case insensitive", format: FormatDescriptor{ID: "1", Container: "mp4", VideoCodec: "NONE", AudioCodec: "mp4a"}, tier: TierAudioOnly},
		{name: "mhtml storyboard", format: FormatDescriptor{ID: "sb0", Container: "mhtml", VideoCodec: "avc1", AudioCodec: "mp4a"}, tier: TierUnusable},
		{name: "blacklist ignores case and dot", format: FormatDescriptor{ID: "sb1", Container: ".MHTML", VideoCodec: "avc1"}, tier: TierUnusable},
		{name: "no codecs", format: FormatDescriptor{ID: "x", Container: "mp4"}, tier: TierUnusable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify([]FormatDescriptor{tc.format}, blacklist)
			require.Len(t, got, 1)
			assert.Equal(t, tc.tier, got[0].Tier)
		})
	}
}

func TestClassifyEmptyCatalog(t *testing.T) {
	assert.Empty(t, Classify(nil, NewContainerSet(DefaultContainerBlacklist)))
	assert.Empty(t, Classify([]FormatDescriptor{}, NewContainerSet(DefaultContainerBlacklist)))
}

func TestClassifyOrdersWithinTier(t *testing.T) {
	formats := []FormatDescriptor{
		{ID: "a", Container: "mp4", VideoCodec: "avc1", AudioCodec: "mp4a", ResolutionLabel: "1080p", HasDirectURL: false},
		{ID: "b", Container: "mp4", VideoCodec: "avc1", AudioCodec: "mp4a", ResolutionLabel: "360p", HasDirectURL: true},
		{ID: "c", Container: "mp4", VideoCodec: "avc1", AudioCodec: "mp4a", ResolutionLabel: "720p", HasDirectURL: true},
		{ID: "d", Container: "mp4", VideoCodec: "avc1", AudioCodec: "mp4a", ResolutionLabel: "720p60", HasDirectURL: true, SizeBytes: 5000},
		{ID: "e", Container: "mp4", VideoCodec: "avc1", AudioCodec: "mp4a", ResolutionLabel: "720p", HasDirectURL: true, SizeBytes: 5000},
	}

	got := Classify(formats, NewContainerSet(DefaultContainerBlacklist))

	// direct URL first, then height, then size; d and e tie and keep catalog order.
	assert.Equal(t, []string{"d", "e", "c", "b", "a"}, ids(got))
	assert.Equal(t, 720, got[0].Height)
}

func TestClassifyGroupsTiersAndPutsUnusableLast(t *testing.T) {
	formats := []FormatDescriptor{
		{ID: "sb", Container: "mhtml"},
		{ID: "140", Container: "m4a", AudioCodec: "mp4a", Bitrate: 128000, HasDirectURL: true},
		{ID: "137", Container: "mp4", VideoCodec: "avc1", ResolutionLabel: "1080p", HasDirectURL: true},
		{ID: "139", Container: "m4a", AudioCodec: "mp4a", Bitrate: 48000, HasDirectURL: true},
		{ID: "18", Container: "mp4", VideoCodec: "avc1", AudioCodec: "mp4a", ResolutionLabel: "360p", HasDirectURL: true},
	}

	got := Classify(formats, NewContainerSet(DefaultContainerBlacklist))

	assert.Equal(t, []string{"18", "137", "140", "139", "sb"}, ids(got))
}

func TestClassifyIsPure(t *testing.T) {
	formats := []FormatDescriptor{
		{ID: "b", Container: "mp4", VideoCodec: "avc1", ResolutionLabel: "360p"},
		{ID: "a", Container: "mp4", VideoCodec: "avc1", ResolutionLabel: "720p"},
	}
	Classify(formats, NewContainerSet(DefaultContainerBlacklist))
	assert.Equal(t, "b", formats[0].ID)
}

func TestParseHeight(t *testing.T) {
	assert.Equal(t, 1080, parseHeight("1080p"))
	assert.Equal(t, 720, parseHeight("720p60 HDR"))
	assert.Equal(t, 0, parseHeight(""))
	assert.Equal(t, 0, parseHeight("tiny"))
}
