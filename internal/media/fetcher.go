package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os/exec"
	"regexp"
	"time"
)

// Fetcher acquires a song that is missing from the library. The gateway
// treats it as an opaque collaborator; FetchSong must leave the file at
// destPath on success.
type Fetcher interface {
	FetchSong(ctx context.Context, title, artist, destPath string) error
}

var videoIDPattern = regexp.MustCompile(`"videoId":"([^"]+)"`)

// YTDLPFetcher locates a song on YouTube by search and downloads the audio
// with the yt-dlp binary.
type YTDLPFetcher struct {
	client  *http.Client
	binary  string
	search  string // search results base URL, overridable in tests
	logger  *slog.Logger
	timeout time.Duration
}

// NewYTDLPFetcher creates a fetcher shelling out to the given yt-dlp
// binary ("yt-dlp" when empty).
func NewYTDLPFetcher(binary string, logger *slog.Logger) *YTDLPFetcher {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLPFetcher{
		client:  &http.Client{Timeout: 15 * time.Second},
		binary:  binary,
		search:  "https://www.youtube.com/results",
		logger:  logger.With("component", "fetcher"),
		timeout: 5 * time.Minute,
	}
}

// FetchSong searches for "title artist", takes the first video hit, and
// downloads its best audio stream to destPath as mp3.
func (f *YTDLPFetcher) FetchSong(ctx context.Context, title, artist, destPath string) error {
	videoURL, err := f.findVideo(ctx, title+" "+artist)
	if err != nil {
		return fmt.Errorf("locate %q by %q: %w", title, artist, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.binary,
		"-x", "--audio-format", "mp3",
		"-f", "bestaudio/best",
		"-o", destPath,
		videoURL)
	out, err := cmd.CombinedOutput()
	if err != nil {
		f.logger.Error("yt-dlp failed", "url", videoURL, "output", string(out), "error", err)
		return fmt.Errorf("download %s: %w", videoURL, err)
	}

	f.logger.Info("downloaded song", "title", title, "artist", artist, "path", destPath)
	return nil
}

// findVideo scrapes the first video id out of a search results page.
func (f *YTDLPFetcher) findVideo(ctx context.Context, query string) (string, error) {
	u := f.search + "?search_query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	m := videoIDPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("no video found for %q", query)
	}
	return "https://www.youtube.com/watch?v=" + string(m[1]), nil
}
