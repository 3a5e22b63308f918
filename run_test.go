package fimfic2cover

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type stubFetcher struct {
	meta  StoryMetadata
	err   error
	calls int
}

func (f *stubFetcher) FetchStory(ctx context.Context, storyID string) (StoryMetadata, error) {
	f.calls++
	return f.meta, f.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeConverter writes a shell script that records its arguments one per
// line and exits with the given code.
func fakeConverter(t *testing.T, dir string, exitCode int) (exe, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake converter needs a POSIX shell")
	}
	exe = filepath.Join(dir, "fake-fimfic2epub")
	argsFile = filepath.Join(dir, "args.txt")
	script := fmt.Sprintf("#!/bin/sh\nprintf '%%s\\n' \"$@\" > %q\nexit %d\n", argsFile, exitCode)
	if err := os.WriteFile(exe, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake converter: %v", err)
	}
	return exe, argsFile
}

func recordedArgs(t *testing.T, argsFile string) []string {
	t.Helper()
	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestConverterArgsOrder(t *testing.T) {
	opts := Options{
		ConverterExecutable: "fimfic2epub",
		ConverterDir:        "out",
		ConverterExtraFlags: `--foo "bar baz"`,
		ConverterFilename:   "story.epub",
	}
	args, err := ConverterArgs(opts, "1234", "http://0.0.0.0:8000/1234.jpeg")
	if err != nil {
		t.Fatalf("args: %v", err)
	}
	want := []string{
		"fimfic2epub",
		"--dir", "out",
		"--foo", "bar baz",
		"-C", "http://0.0.0.0:8000/1234.jpeg",
		"1234",
		"story.epub",
	}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q (full: %v)", i, args[i], want[i], args)
		}
	}
}

func TestConverterArgsWithoutCoverOrFilename(t *testing.T) {
	args, err := ConverterArgs(Options{}, "42", "")
	if err != nil {
		t.Fatalf("args: %v", err)
	}
	if args[len(args)-1] != "42" {
		t.Fatalf("story id must be the final argument, got %v", args)
	}
	for _, a := range args {
		if a == "-C" {
			t.Fatalf("no cover flag expected, got %v", args)
		}
	}
}

func TestConverterArgsBadExtraFlags(t *testing.T) {
	_, err := ConverterArgs(Options{ConverterExtraFlags: `--foo "unterminated`}, "1", "")
	if err == nil {
		t.Fatalf("expected error for unterminated quote")
	}
}

func TestRunInvalidStoryRef(t *testing.T) {
	code, err := Run(context.Background(), Options{StoryRef: "abc"}, quietLogger())
	if !errors.Is(err, ErrInvalidStoryRef) {
		t.Fatalf("error = %v, want ErrInvalidStoryRef", err)
	}
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}

func TestRunMissingExecutable(t *testing.T) {
	opts := Options{
		StoryRef:            "1234",
		ConverterExecutable: filepath.Join(t.TempDir(), "nope"),
	}
	code, err := Run(context.Background(), opts, quietLogger())
	if !errors.Is(err, ErrExecutableNotFound) {
		t.Fatalf("error = %v, want ErrExecutableNotFound", err)
	}
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}

func TestRunSkipsFetchWhenCoverFileExists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1234.jpeg"), []byte("existing cover"), 0o644); err != nil {
		t.Fatalf("write cover: %v", err)
	}
	exe, argsFile := fakeConverter(t, dir, 0)
	fetcher := &stubFetcher{err: errors.New("should not be called")}

	opts := Options{
		StoryRef:            "1234",
		ImageDir:            dir,
		ConverterExecutable: exe,
		ServeAddr:           "127.0.0.1:0",
		Fetcher:             fetcher,
	}
	code, err := Run(context.Background(), opts, quietLogger())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if fetcher.calls != 0 {
		t.Fatalf("fetcher was called %d times, want 0", fetcher.calls)
	}

	args := recordedArgs(t, argsFile)
	if args[len(args)-1] != "1234" {
		t.Fatalf("story id must be the final argument, got %v", args)
	}
	coverURL := ""
	for i, a := range args {
		if a == "-C" && i+1 < len(args) {
			coverURL = args[i+1]
		}
	}
	if !strings.HasPrefix(coverURL, "http://127.0.0.1:") || !strings.HasSuffix(coverURL, "/1234.jpeg") {
		t.Fatalf("cover URL = %q", coverURL)
	}
	// server must be down once Run returns
	if _, err := http.Get(coverURL); err == nil {
		t.Fatalf("file server still reachable after Run")
	}
}

func TestRunRendersCoverWhenStoryHasNone(t *testing.T) {
	dir := t.TempDir()
	exe, argsFile := fakeConverter(t, dir, 0)
	fetcher := &stubFetcher{meta: StoryMetadata{
		ID:     "1234",
		Title:  "A Very Long Story Title That Wraps",
		Author: "Author",
	}}

	opts := Options{
		StoryRef:            "https://www.fimfiction.net/story/1234/x",
		ImageDir:            dir,
		Fonts:               FontConfig{TitleSize: 100, AuthorSize: 50},
		ConverterExecutable: exe,
		ServeAddr:           "127.0.0.1:0",
		Fetcher:             fetcher,
	}
	code, err := Run(context.Background(), opts, quietLogger())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if fetcher.calls != 1 {
		t.Fatalf("fetcher calls = %d, want 1", fetcher.calls)
	}

	f, err := os.Open(filepath.Join(dir, "1234.jpeg"))
	if err != nil {
		t.Fatalf("cover was not written: %v", err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decode cover: %v", err)
	}
	if b := img.Bounds(); b.Dx() != CoverWidth || b.Dy() != CoverHeight {
		t.Fatalf("cover is %dx%d", b.Dx(), b.Dy())
	}

	args := recordedArgs(t, argsFile)
	hasCoverFlag := false
	for _, a := range args {
		if a == "-C" {
			hasCoverFlag = true
		}
	}
	if !hasCoverFlag {
		t.Fatalf("expected -C flag in %v", args)
	}
}

func TestRunSkipsCoverMachineryWhenStoryHasOne(t *testing.T) {
	dir := t.TempDir()
	exe, argsFile := fakeConverter(t, dir, 0)
	fetcher := &stubFetcher{meta: StoryMetadata{ID: "7", Title: "T", Author: "A", HasCover: true}}

	opts := Options{
		StoryRef:            "7",
		ImageDir:            dir,
		ConverterExecutable: exe,
		Fetcher:             fetcher,
	}
	code, err := Run(context.Background(), opts, quietLogger())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if fileExists(filepath.Join(dir, "7.jpeg")) {
		t.Fatalf("no cover should be rendered for a story that has one")
	}
	for _, a := range recordedArgs(t, argsFile) {
		if a == "-C" {
			t.Fatalf("no cover flag expected")
		}
	}
}

func TestRunPropagatesConverterExitCode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "9.jpeg"), []byte("cover"), 0o644); err != nil {
		t.Fatalf("write cover: %v", err)
	}
	exe, _ := fakeConverter(t, dir, 3)

	opts := Options{
		StoryRef:            "9",
		ImageDir:            dir,
		ConverterExecutable: exe,
		ServeAddr:           "127.0.0.1:0",
		Fetcher:             &stubFetcher{},
	}
	code, err := Run(context.Background(), opts, quietLogger())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 3 {
		t.Fatalf("code = %d, want 3", code)
	}
}

func TestRunFetchErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	exe, _ := fakeConverter(t, dir, 0)
	fetcher := &stubFetcher{err: &APIError{URL: "u", StatusCode: 500}}

	opts := Options{
		StoryRef:            "1234",
		ImageDir:            dir,
		ConverterExecutable: exe,
		Fetcher:             fetcher,
	}
	code, err := Run(context.Background(), opts, quietLogger())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}
