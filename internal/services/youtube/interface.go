package youtube

import (
	"context"
	"io"

	"github.com/kkdai/youtube/v2"

	"github.com/denisAlshanov/mediagrab/internal/services/acquisition"
)

// YouTubeClient lists and fetches the formats of a YouTube video
type YouTubeClient interface {
	acquisition.MediaResolver

	// ParseYouTubeURL extracts video ID from YouTube URL
	ParseYouTubeURL(url string) (string, error)

	// IsYouTubeURL checks if the provided URL is a valid YouTube URL
	IsYouTubeURL(url string) bool
}

// videoSource is the part of the kkdai client the resolver needs.
type videoSource interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}
