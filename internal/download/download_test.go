package download

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hzn-labs/horizonsum/pkg/executor"
)

func TestIdentifySource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want Source
	}{
		{"https://www.youtube.com/watch?v=abc123", SourceYouTube},
		{"https://youtu.be/abc123", SourceYouTube},
		{"https://twitter.com/user/status/1", SourceTwitter},
		{"https://x.com/i/broadcasts/1", SourceTwitter},
		{"https://www.pscp.tv/w/abc", SourcePeriscope},
		{"https://cdn.example.com/live/stream.m3u8?token=x", SourceM3U8},
		{"https://example.com/video", SourceGeneric},
		{"not a url at all", SourceGeneric},
	}

	for _, tt := range tests {
		if got := IdentifySource(tt.url); got != tt.want {
			t.Errorf("IdentifySource(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestSanitizeTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Office Hours #42: DAO Votes!", "Office_Hours_42_DAO_Votes"},
		{"  already_clean-title  ", "already_clean-title"},
		{"///", "untitled"},
		{"", "untitled"},
		{strings.Repeat("a", 100), strings.Repeat("a", 80)},
	}

	for _, tt := range tests {
		if got := SanitizeTitle(tt.in); got != tt.want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newTestDownloader(t *testing.T, mock *executor.Mock, opts ...Option) *Downloader {
	t.Helper()
	d, err := New(mock, t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.now = func() time.Time { return time.Unix(1700000000, 0) }
	return d
}

func TestDownload(t *testing.T) {
	t.Parallel()

	mock := &executor.Mock{
		Responses: map[string]struct {
			Output string
			Err    error
		}{
			"yt-dlp": {Output: "Office Hours Recap\n"},
		},
	}
	d := newTestDownloader(t, mock)

	// The mock does not run yt-dlp, so pre-create the file it would produce.
	expected := filepath.Join(d.workDir, fmt.Sprintf("audio_%d.mp3", time.Unix(1700000000, 0).UnixNano()))
	if err := os.WriteFile(expected, []byte("mp3"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := d.Download(t.Context(), "https://www.youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Title != "Office Hours Recap" {
		t.Errorf("title = %q", res.Title)
	}
	if res.Source != SourceYouTube {
		t.Errorf("source = %q", res.Source)
	}
	if res.AudioPath != expected {
		t.Errorf("audio path = %q, want %q", res.AudioPath, expected)
	}

	if len(mock.Calls) != 2 {
		t.Fatalf("expected title fetch + download, got %d calls", len(mock.Calls))
	}
	dl := mock.Calls[1]
	for _, want := range []string{"-x", "--audio-format", "mp3"} {
		if !containsArg(dl.Args, want) {
			t.Errorf("download call missing arg %q: %v", want, dl.Args)
		}
	}
}

func TestDownload_InvalidURL(t *testing.T) {
	t.Parallel()

	d := newTestDownloader(t, &executor.Mock{})
	if _, err := d.Download(t.Context(), "ftp://example.com/file"); err == nil {
		t.Fatal("expected error for non-http URL")
	}
	if _, err := d.Download(t.Context(), "::not-a-url"); err == nil {
		t.Fatal("expected error for unparseable URL")
	}
}

func TestDownload_CommandFailure(t *testing.T) {
	t.Parallel()

	mock := &executor.Mock{
		Responses: map[string]struct {
			Output string
			Err    error
		}{
			"yt-dlp": {Err: fmt.Errorf("executor: command \"yt-dlp\" failed: exit status 1")},
		},
	}
	d := newTestDownloader(t, mock)

	_, err := d.Download(t.Context(), "https://youtu.be/abc")
	if err == nil {
		t.Fatal("expected download error")
	}
	if !strings.Contains(err.Error(), "yt-dlp") {
		t.Errorf("error does not name the tool: %v", err)
	}
}

func TestSplitIfNeeded_UnderLimit(t *testing.T) {
	t.Parallel()

	mock := &executor.Mock{}
	d := newTestDownloader(t, mock, WithMaxAudioMB(1))

	audio := filepath.Join(d.workDir, "small.mp3")
	if err := os.WriteFile(audio, []byte("tiny"), 0o644); err != nil {
		t.Fatal(err)
	}

	chunks, err := d.SplitIfNeeded(t.Context(), audio)
	if err != nil {
		t.Fatalf("SplitIfNeeded: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != audio {
		t.Errorf("expected original file back, got %v", chunks)
	}
	if len(mock.Calls) != 0 {
		t.Errorf("no commands should run for a small file, got %v", mock.Calls)
	}
}

func TestSplitIfNeeded_Splits(t *testing.T) {
	t.Parallel()

	mock := &executor.Mock{
		Responses: map[string]struct {
			Output string
			Err    error
		}{
			"ffprobe": {Output: "120.0\n"},
		},
	}
	d := newTestDownloader(t, mock, WithMaxAudioMB(1))

	audio := filepath.Join(d.workDir, "big.mp3")
	if err := os.WriteFile(audio, make([]byte, 2*1024*1024), 0o644); err != nil {
		t.Fatal(err)
	}
	// The mock does not run ffmpeg, so pre-create the segments it would cut.
	base := strings.TrimSuffix(audio, ".mp3")
	for i := 0; i < 2; i++ {
		if err := os.WriteFile(fmt.Sprintf("%s_chunk%03d.mp3", base, i), []byte("seg"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	chunks, err := d.SplitIfNeeded(t.Context(), audio)
	if err != nil {
		t.Fatalf("SplitIfNeeded: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %v", chunks)
	}
	if !strings.HasSuffix(chunks[0], "_chunk000.mp3") {
		t.Errorf("chunks not ordered: %v", chunks)
	}

	// 120s * (1MB / 2MB) = 60s segments.
	var ffmpegCall *executor.Call
	for i := range mock.Calls {
		if mock.Calls[i].Name == "ffmpeg" {
			ffmpegCall = &mock.Calls[i]
		}
	}
	if ffmpegCall == nil {
		t.Fatal("ffmpeg was never invoked")
	}
	if !containsArg(ffmpegCall.Args, "60") {
		t.Errorf("expected 60s segment time in args: %v", ffmpegCall.Args)
	}
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
