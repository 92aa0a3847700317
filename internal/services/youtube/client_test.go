package youtube

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisAlshanov/mediagrab/internal/services/acquisition"
)

var testFormats = youtube.FormatList{
	{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, QualityLabel: "360p", Height: 360, Width: 640, Bitrate: 500000, AudioChannels: 2, URL: "https://example.com/18"},
	{ItagNo: 22, MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, QualityLabel: "720p", Height: 720, Width: 1280, Bitrate: 1500000, AudioChannels: 2},
	{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, QualityLabel: "1080p", Height: 1080, Width: 1920, Bitrate: 4000000, ContentLength: 90000000, URL: "https://example.com/137"},
	{ItagNo: 248, MimeType: `video/webm; codecs="vp9"`, QualityLabel: "1080p", Height: 1080, Width: 1920, Bitrate: 3000000},
	{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 130000, AudioChannels: 2, ContentLength: 3400000, URL: "https://example.com/140"},
	{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 160000, AudioChannels: 2},
	{ItagNo: 139, MimeType: `audio/mp4; codecs="mp4a.40.5"`, Bitrate: 49000, AudioChannels: 2},
}

type fakeSource struct {
	video      *youtube.Video
	err        error
	streamErr  error
	content    string
	videoCalls int
	streamed   []int
}

func (s *fakeSource) GetVideoContext(ctx context.Context, url string) (*youtube.Video, error) {
	s.videoCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.video, nil
}

func (s *fakeSource) GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error) {
	s.streamed = append(s.streamed, format.ItagNo)
	if s.streamErr != nil {
		return nil, 0, s.streamErr
	}
	return io.NopCloser(strings.NewReader(s.content)), int64(len(s.content)), nil
}

func TestIsYouTubeURL(t *testing.T) {
	client := NewClient(0)

	valid := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/watch?v=dQw4w9WgXcQ&t=10",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://music.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"https://www.youtube.com/live/dQw4w9WgXcQ",
	}
	for _, link := range valid {
		assert.True(t, client.IsYouTubeURL(link), link)
	}

	invalid := []string{
		"",
		"dQw4w9WgXcQ",
		"https://vimeo.com/123456",
		"https://www.youtube.com/channel/UC38IQsAvIsxxjztdMZQtwHA",
		"ftp://youtu.be/dQw4w9WgXcQ",
	}
	for _, link := range invalid {
		assert.False(t, client.IsYouTubeURL(link), link)
	}
}

func TestParseYouTubeURL(t *testing.T) {
	client := NewClient(0)

	testCases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":               "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?si=abc":                       "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/aqz-KE-bpKQ":                "aqz-KE-bpKQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":                 "dQw4w9WgXcQ",
	}
	for link, want := range testCases {
		got, err := client.ParseYouTubeURL(link)
		require.NoError(t, err, link)
		assert.Equal(t, want, got, link)
	}

	_, err := client.ParseYouTubeURL("https://www.youtube.com/watch?v=short")
	assert.Error(t, err)
}

func TestListFormats(t *testing.T) {
	source := &fakeSource{video: &youtube.Video{ID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", Formats: testFormats}}
	client := newClient(source)

	catalog, err := client.ListFormats(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, "Never Gonna Give You Up", catalog.Title)
	require.Len(t, catalog.Formats, len(testFormats))

	assert.Equal(t, acquisition.FormatDescriptor{
		ID: "18", Container: "mp4", ResolutionLabel: "360p",
		VideoCodec: "avc1.42001E", AudioCodec: "mp4a.40.2",
		Bitrate: 500000, HasDirectURL: true,
	}, catalog.Formats[0])
	assert.Equal(t, acquisition.FormatDescriptor{
		ID: "137", Container: "mp4", ResolutionLabel: "1080p",
		VideoCodec: "avc1.640028", Bitrate: 4000000, SizeBytes: 90000000, HasDirectURL: true,
	}, catalog.Formats[2])
	assert.Equal(t, acquisition.FormatDescriptor{
		ID: "140", Container: "m4a", AudioCodec: "mp4a.40.2",
		Bitrate: 130000, SizeBytes: 3400000, HasDirectURL: true,
	}, catalog.Formats[4])
	assert.Equal(t, "webm", catalog.Formats[5].Container)
	assert.Equal(t, "opus", catalog.Formats[5].AudioCodec)

	classified := acquisition.Classify(catalog.Formats, acquisition.NewContainerSet(acquisition.DefaultContainerBlacklist))
	tiers := map[string]acquisition.Tier{}
	for _, f := range classified {
		tiers[f.ID] = f.Tier
	}
	assert.Equal(t, acquisition.TierAudioVideo, tiers["22"])
	assert.Equal(t, acquisition.TierVideoOnly, tiers["248"])
	assert.Equal(t, acquisition.TierAudioOnly, tiers["251"])
}

func TestListFormatsError(t *testing.T) {
	client := newClient(&fakeSource{err: errors.New("video is private")})

	_, err := client.ListFormats(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorContains(t, err, "video is private")
}

func TestSelectFormat(t *testing.T) {
	testCases := []struct {
		name string
		spec acquisition.CandidateSpec
		want int
	}{
		{name: "catalog itag", spec: acquisition.CandidateSpec{Kind: acquisition.CandidateCatalog, FormatID: "248"}, want: 248},
		{name: "best muxed", spec: acquisition.CandidateSpec{Kind: acquisition.CandidatePolicy, Selector: acquisition.SelectBest}, want: 22},
		{name: "worst muxed", spec: acquisition.CandidateSpec{Kind: acquisition.CandidatePolicy, Selector: acquisition.SelectWorst}, want: 18},
		{name: "ceiling", spec: acquisition.CandidateSpec{Kind: acquisition.CandidatePolicy, Selector: acquisition.SelectBest, MaxHeight: 480, Container: "mp4"}, want: 18},
		{name: "ceiling above all", spec: acquisition.CandidateSpec{Kind: acquisition.CandidatePolicy, Selector: acquisition.SelectBest, MaxHeight: 1080, Container: "mp4"}, want: 22},
		{name: "best audio", spec: acquisition.CandidateSpec{Kind: acquisition.CandidatePolicy, Selector: acquisition.SelectBest, AudioOnly: true}, want: 251},
		{name: "best m4a audio", spec: acquisition.CandidateSpec{Kind: acquisition.CandidatePolicy, Selector: acquisition.SelectBest, AudioOnly: true, Container: "m4a"}, want: 140},
		{name: "worst audio", spec: acquisition.CandidateSpec{Kind: acquisition.CandidatePolicy, Selector: acquisition.SelectWorst, AudioOnly: true}, want: 139},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := SelectFormat(testFormats, tc.spec)
			require.NotNil(t, f)
			assert.Equal(t, tc.want, f.ItagNo)
		})
	}

	t.Run("no match", func(t *testing.T) {
		assert.Nil(t, SelectFormat(testFormats, acquisition.CandidateSpec{Kind: acquisition.CandidateCatalog, FormatID: "999"}))
		assert.Nil(t, SelectFormat(testFormats, acquisition.CandidateSpec{Kind: acquisition.CandidatePolicy, Selector: acquisition.SelectBest, MaxHeight: 240}))
		assert.Nil(t, SelectFormat(nil, acquisition.CandidateSpec{Kind: acquisition.CandidatePolicy, Selector: acquisition.SelectBest}))
	})
}

func TestFetch(t *testing.T) {
	source := &fakeSource{
		video:   &youtube.Video{ID: "dQw4w9WgXcQ", Formats: testFormats},
		content: "stream bytes",
	}
	client := newClient(source)
	dest := filepath.Join(t.TempDir(), "artifact")

	path, err := client.Fetch(context.Background(), "dQw4w9WgXcQ", acquisition.CandidateSpec{
		Kind: acquisition.CandidatePolicy, Selector: acquisition.SelectBest, AudioOnly: true, Container: "m4a",
	}, dest)
	require.NoError(t, err)

	assert.Equal(t, dest+".m4a", path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "stream bytes", string(data))
	assert.Equal(t, []int{140}, source.streamed)

	// Second fetch reuses the cached metadata.
	_, err = client.Fetch(context.Background(), "dQw4w9WgXcQ", acquisition.CandidateSpec{Kind: acquisition.CandidateCatalog, FormatID: "18"}, dest)
	require.NoError(t, err)
	assert.Equal(t, 1, source.videoCalls)
}

func TestFetchRefreshesStaleMetadata(t *testing.T) {
	source := &fakeSource{video: &youtube.Video{Formats: testFormats}, content: "x"}
	client := newClient(source)
	now := time.Now()
	client.now = func() time.Time { return now }

	dest := filepath.Join(t.TempDir(), "artifact")
	spec := acquisition.CandidateSpec{Kind: acquisition.CandidateCatalog, FormatID: "18"}

	_, err := client.Fetch(context.Background(), "id", spec, dest)
	require.NoError(t, err)

	now = now.Add(videoCacheTTL)
	_, err = client.Fetch(context.Background(), "id", spec, dest)
	require.NoError(t, err)

	assert.Equal(t, 2, source.videoCalls)
}

func TestFetchErrors(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "artifact")

	t.Run("no matching format", func(t *testing.T) {
		client := newClient(&fakeSource{video: &youtube.Video{Formats: testFormats}})
		_, err := client.Fetch(context.Background(), "id", acquisition.CandidateSpec{Kind: acquisition.CandidateCatalog, FormatID: "999"}, dest)
		assert.ErrorContains(t, err, "no format")
	})

	t.Run("stream failure leaves no file", func(t *testing.T) {
		client := newClient(&fakeSource{video: &youtube.Video{Formats: testFormats}, streamErr: errors.New("403 Forbidden")})
		_, err := client.Fetch(context.Background(), "id", acquisition.CandidateSpec{Kind: acquisition.CandidateCatalog, FormatID: "18"}, dest)
		assert.ErrorContains(t, err, "403 Forbidden")
		assert.NoFileExists(t, dest+".mp4")
	})
}
