package youtube

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/denisAlshanov/mediagrab/internal/services/acquisition"
	"github.com/denisAlshanov/mediagrab/internal/utils"
)

// videoCacheTTL bounds how long listed formats are reused by Fetch. Stream
// URLs handed out by YouTube expire after a few hours.
const videoCacheTTL = 5 * time.Minute

type cachedVideo struct {
	video     *youtube.Video
	fetchedAt time.Time
}

var _ YouTubeClient = (*Client)(nil)

type Client struct {
	source videoSource

	mu    sync.Mutex
	cache map[string]cachedVideo
	now   func() time.Time
}

// NewClient creates a new YouTube client. timeout bounds connection setup and
// response headers; stream bodies are bounded by the caller's context.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: timeout,
			TLSHandshakeTimeout:   timeout,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	return newClient(&youtube.Client{HTTPClient: httpClient})
}

func newClient(source videoSource) *Client {
	return &Client{
		source: source,
		cache:  make(map[string]cachedVideo),
		now:    time.Now,
	}
}

var youTubeURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(www\.|m\.|music\.)?youtube\.com/watch\?(.*&)?v=[\w-]+`),
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/embed/[\w-]+`),
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/shorts/[\w-]+`),
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/live/[\w-]+`),
	regexp.MustCompile(`^https?://youtu\.be/[\w-]+`),
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/v/[\w-]+`),
}

var videoIDPattern = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/|youtube\.com/shorts/|youtube\.com/live/)([a-zA-Z0-9_-]{11})`)

// IsYouTubeURL checks if the provided URL is a valid YouTube URL
func (c *Client) IsYouTubeURL(url string) bool {
	for _, pattern := range youTubeURLPatterns {
		if pattern.MatchString(url) {
			return true
		}
	}
	return false
}

// ParseYouTubeURL extracts video ID from YouTube URL
func (c *Client) ParseYouTubeURL(url string) (string, error) {
	matches := videoIDPattern.FindStringSubmatch(url)
	if len(matches) > 1 {
		return matches[1], nil
	}
	return "", fmt.Errorf("could not extract video ID from YouTube URL: %s", url)
}

// ListFormats returns the format catalog of a video
func (c *Client) ListFormats(ctx context.Context, videoID string) (*acquisition.Catalog, error) {
	video, err := c.video(ctx, videoID, true)
	if err != nil {
		return nil, err
	}

	catalog := &acquisition.Catalog{
		Title:   video.Title,
		Formats: make([]acquisition.FormatDescriptor, 0, len(video.Formats)),
	}
	for i := range video.Formats {
		catalog.Formats = append(catalog.Formats, describeFormat(&video.Formats[i]))
	}
	return catalog, nil
}

// Fetch downloads the stream matching spec to destHint plus the container
// extension and returns the written path.
func (c *Client) Fetch(ctx context.Context, videoID string, spec acquisition.CandidateSpec, destHint string) (string, error) {
	video, err := c.video(ctx, videoID, false)
	if err != nil {
		return "", err
	}

	format := SelectFormat(video.Formats, spec)
	if format == nil {
		return "", fmt.Errorf("no format of %s matches %s", videoID, spec)
	}

	path := destHint + "." + containerOf(format)
	utils.LogInfo(ctx, "Downloading YouTube stream", utils.Fields{
		"video_id":  videoID,
		"itag":      format.ItagNo,
		"mime_type": format.MimeType,
		"candidate": spec.String(),
	})

	if err := c.downloadStream(ctx, video, format, path); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// video returns cached metadata unless refresh is set or the entry is stale.
func (c *Client) video(ctx context.Context, videoID string, refresh bool) (*youtube.Video, error) {
	c.mu.Lock()
	cached, ok := c.cache[videoID]
	c.mu.Unlock()
	if ok && !refresh && c.now().Sub(cached.fetchedAt) < videoCacheTTL {
		utils.LogDebug(ctx, "Using cached video metadata", utils.Fields{"video_id": videoID})
		return cached.video, nil
	}

	video, err := c.source.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	c.mu.Lock()
	c.cache[videoID] = cachedVideo{video: video, fetchedAt: c.now()}
	for id, entry := range c.cache {
		if c.now().Sub(entry.fetchedAt) >= videoCacheTTL {
			delete(c.cache, id)
		}
	}
	c.mu.Unlock()

	return video, nil
}

// downloadStream downloads a stream to a file
func (c *Client) downloadStream(ctx context.Context, video *youtube.Video, format *youtube.Format, outputPath string) error {
	stream, _, err := c.source.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, stream); err != nil {
		return fmt.Errorf("failed to write stream to file: %w", err)
	}

	return file.Close()
}

// SelectFormat resolves a candidate spec against the formats of a video.
// Policy selectors without AudioOnly only match muxed formats.
func SelectFormat(formats youtube.FormatList, spec acquisition.CandidateSpec) *youtube.Format {
	if spec.Kind == acquisition.CandidateCatalog {
		for i := range formats {
			if strconv.Itoa(formats[i].ItagNo) == spec.FormatID {
				return &formats[i]
			}
		}
		return nil
	}

	var matches []*youtube.Format
	for i := range formats {
		f := &formats[i]
		hasVideo, hasAudio := streamKinds(f)

		if spec.AudioOnly {
			if !hasAudio || hasVideo {
				continue
			}
		} else if !hasAudio || !hasVideo {
			continue
		}
		if spec.MaxHeight > 0 && heightOf(f) > spec.MaxHeight {
			continue
		}
		if spec.Container != "" && containerOf(f) != spec.Container {
			continue
		}
		matches = append(matches, f)
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		hi, hj := heightOf(matches[i]), heightOf(matches[j])
		if hi != hj {
			return hi > hj
		}
		return matches[i].Bitrate > matches[j].Bitrate
	})

	if spec.Selector == acquisition.SelectWorst {
		return matches[len(matches)-1]
	}
	return matches[0]
}

func describeFormat(f *youtube.Format) acquisition.FormatDescriptor {
	video, audio := splitCodecs(f)
	label := f.QualityLabel
	if label == "" && f.Height > 0 {
		label = fmt.Sprintf("%dp", f.Height)
	}

	return acquisition.FormatDescriptor{
		ID:              strconv.Itoa(f.ItagNo),
		Container:       containerOf(f),
		ResolutionLabel: label,
		VideoCodec:      video,
		AudioCodec:      audio,
		Bitrate:         f.Bitrate,
		SizeBytes:       f.ContentLength,
		HasDirectURL:    f.URL != "",
	}
}

var audioCodecPrefixes = []string{"mp4a", "opus", "vorbis", "ac-3", "ec-3", "flac", "mp3"}

func isAudioCodec(codec string) bool {
	codec = strings.ToLower(codec)
	for _, prefix := range audioCodecPrefixes {
		if strings.HasPrefix(codec, prefix) {
			return true
		}
	}
	return false
}

// splitCodecs reads the codecs parameter of the format's MIME type.
func splitCodecs(f *youtube.Format) (video, audio string) {
	mediaType, params, err := mime.ParseMediaType(f.MimeType)
	if err != nil {
		return "", ""
	}

	for _, codec := range strings.Split(params["codecs"], ",") {
		codec = strings.TrimSpace(codec)
		switch {
		case codec == "":
		case strings.HasPrefix(mediaType, "audio/"), isAudioCodec(codec):
			if audio == "" {
				audio = codec
			}
		default:
			if video == "" {
				video = codec
			}
		}
	}

	// Some formats carry no codecs parameter; fall back to stream metadata.
	if video == "" && strings.HasPrefix(mediaType, "video/") && (f.Width > 0 || f.QualityLabel != "") {
		video = "unknown"
	}
	if audio == "" && f.AudioChannels > 0 {
		audio = "unknown"
	}
	return video, audio
}

func streamKinds(f *youtube.Format) (hasVideo, hasAudio bool) {
	video, audio := splitCodecs(f)
	return video != "", audio != ""
}

// containerOf maps a MIME type to a file extension, audio/mp4 becoming m4a.
func containerOf(f *youtube.Format) string {
	mediaType, _, err := mime.ParseMediaType(f.MimeType)
	if err != nil {
		return "bin"
	}
	kind, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || subtype == "" {
		return "bin"
	}
	if kind == "audio" && subtype == "mp4" {
		return "m4a"
	}
	if subtype == "3gpp" {
		return "3gp"
	}
	return subtype
}

var heightPattern = regexp.MustCompile(`(\d+)`)

// heightOf prefers the reported height and falls back to the quality label.
func heightOf(f *youtube.Format) int {
	if f.Height > 0 {
		return f.Height
	}
	matches := heightPattern.FindStringSubmatch(f.QualityLabel)
	if len(matches) > 1 {
		if q, err := strconv.Atoi(matches[1]); err == nil {
			return q
		}
	}
	return 0
}
