// Package download fetches stream audio for the pipeline.
//
// A [Downloader] shells out to yt-dlp (via [executor.Executor]) to extract an
// mp3 audio track from any supported video URL, and to ffmpeg/ffprobe to
// split files that exceed the hosted transcription service's upload limit.
// Source identification is purely informational: yt-dlp handles every
// supported platform itself, the [Source] label feeds logging and artifact
// names.
package download

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hzn-labs/horizonsum/pkg/executor"
)

// Source labels where a URL points.
type Source string

const (
	SourceYouTube   Source = "youtube"
	SourceTwitter   Source = "twitter"
	SourcePeriscope Source = "periscope"
	SourceM3U8      Source = "m3u8"
	SourceGeneric   Source = "generic"
)

// IdentifySource classifies a URL by host. Unrecognised hosts are
// [SourceGeneric]; yt-dlp still gets a chance at them.
func IdentifySource(rawURL string) Source {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SourceGeneric
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com") || host == "youtu.be":
		return SourceYouTube
	case host == "twitter.com" || strings.HasSuffix(host, ".twitter.com") ||
		host == "x.com" || strings.HasSuffix(host, ".x.com"):
		return SourceTwitter
	case host == "pscp.tv" || strings.HasSuffix(host, ".pscp.tv"):
		return SourcePeriscope
	case strings.Contains(rawURL, ".m3u8"):
		return SourceM3U8
	default:
		return SourceGeneric
	}
}

// Result describes a completed download.
type Result struct {
	// AudioPath is the extracted mp3 file inside the work directory.
	AudioPath string

	// Title is the video title reported by yt-dlp, or a generated fallback.
	Title string

	// Source is the identified platform.
	Source Source
}

const (
	defaultYTDLPPath   = "yt-dlp"
	defaultFFmpegPath  = "ffmpeg"
	defaultFFprobePath = "ffprobe"
	defaultMaxAudioMB  = 50
)

// Option is a functional option for configuring a [Downloader].
type Option func(*Downloader)

// WithYTDLPPath sets the yt-dlp binary path. Default: "yt-dlp" on PATH.
func WithYTDLPPath(path string) Option {
	return func(d *Downloader) {
		d.ytdlpPath = path
	}
}

// WithFFmpegPath sets the ffmpeg binary path. Default: "ffmpeg" on PATH.
func WithFFmpegPath(path string) Option {
	return func(d *Downloader) {
		d.ffmpegPath = path
	}
}

// WithFFprobePath sets the ffprobe binary path. Default: "ffprobe" on PATH.
func WithFFprobePath(path string) Option {
	return func(d *Downloader) {
		d.ffprobePath = path
	}
}

// WithMaxAudioMB sets the size above which [Downloader.SplitIfNeeded] splits
// audio files. Default: 50.
func WithMaxAudioMB(mb int) Option {
	return func(d *Downloader) {
		d.maxAudioMB = mb
	}
}

// Downloader extracts audio from stream URLs into a work directory. It is
// safe for concurrent use.
type Downloader struct {
	exec        executor.Executor
	workDir     string
	ytdlpPath   string
	ffmpegPath  string
	ffprobePath string
	maxAudioMB  int

	// now is replaceable for tests.
	now func() time.Time
}

// New returns a [Downloader] writing into workDir, which is created if
// needed.
func New(exec executor.Executor, workDir string, opts ...Option) (*Downloader, error) {
	if workDir == "" {
		return nil, fmt.Errorf("download: work directory must not be empty")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("download: create work directory: %w", err)
	}

	d := &Downloader{
		exec:        exec,
		workDir:     workDir,
		ytdlpPath:   defaultYTDLPPath,
		ffmpegPath:  defaultFFmpegPath,
		ffprobePath: defaultFFprobePath,
		maxAudioMB:  defaultMaxAudioMB,
		now:         time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Download fetches the audio track of rawURL as mp3. The title is queried
// first so failed downloads still report what they were fetching.
func (d *Downloader) Download(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("download: invalid URL %q", rawURL)
	}
	source := IdentifySource(rawURL)

	title, err := d.fetchTitle(ctx, rawURL)
	if err != nil || title == "" {
		// A missing title is not fatal; synthesise one.
		title = fmt.Sprintf("%s_Content_%s", capitalize(string(source)), d.now().Format("20060102_150405"))
	}

	outBase := filepath.Join(d.workDir, fmt.Sprintf("audio_%d", d.now().UnixNano()))
	_, err = d.exec.Execute(ctx, d.ytdlpPath,
		"--no-warnings",
		"--retries", "5",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"-o", outBase+".%(ext)s",
		rawURL,
	)
	if err != nil {
		return nil, fmt.Errorf("download: yt-dlp: %w", err)
	}

	audioPath := outBase + ".mp3"
	if _, statErr := os.Stat(audioPath); statErr != nil {
		return nil, fmt.Errorf("download: expected output %s missing: %w", audioPath, statErr)
	}

	return &Result{AudioPath: audioPath, Title: title, Source: source}, nil
}

// fetchTitle asks yt-dlp for the video title without downloading.
func (d *Downloader) fetchTitle(ctx context.Context, rawURL string) (string, error) {
	out, err := d.exec.Execute(ctx, d.ytdlpPath,
		"--no-warnings",
		"--skip-download",
		"--print", "title",
		rawURL,
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SplitIfNeeded returns audioPath unchanged when it fits the size limit, or
// splits it into sequentially numbered mp3 segments sized to fit. Segments
// are stream-copied, so splitting is fast and lossless.
func (d *Downloader) SplitIfNeeded(ctx context.Context, audioPath string) ([]string, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("download: stat %s: %w", audioPath, err)
	}

	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB <= float64(d.maxAudioMB) {
		return []string{audioPath}, nil
	}

	duration, err := d.probeDuration(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	// Segment length proportional to the size ratio, so each chunk lands
	// under the limit.
	segmentSec := int(math.Floor(duration * float64(d.maxAudioMB) / sizeMB))
	if segmentSec < 1 {
		segmentSec = 1
	}

	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	pattern := base + "_chunk%03d.mp3"
	_, err = d.exec.Execute(ctx, d.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", audioPath,
		"-f", "segment",
		"-segment_time", strconv.Itoa(segmentSec),
		"-c", "copy",
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("download: ffmpeg split: %w", err)
	}

	chunks, err := filepath.Glob(base + "_chunk*.mp3")
	if err != nil {
		return nil, fmt.Errorf("download: glob chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("download: ffmpeg produced no chunks for %s", audioPath)
	}
	sort.Strings(chunks)
	return chunks, nil
}

// probeDuration returns the audio duration in seconds via ffprobe.
func (d *Downloader) probeDuration(ctx context.Context, audioPath string) (float64, error) {
	out, err := d.exec.Execute(ctx, d.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	if err != nil {
		return 0, fmt.Errorf("download: ffprobe: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("download: parse ffprobe duration %q: %w", strings.TrimSpace(out), err)
	}
	return duration, nil
}

// SanitizeTitle makes a video title safe for use in file and directory names.
func SanitizeTitle(title string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, strings.TrimSpace(title))

	for strings.Contains(mapped, "__") {
		mapped = strings.ReplaceAll(mapped, "__", "_")
	}
	mapped = strings.Trim(mapped, "_")
	if mapped == "" {
		return "untitled"
	}
	const maxLen = 80
	if len(mapped) > maxLen {
		mapped = mapped[:maxLen]
	}
	return mapped
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
