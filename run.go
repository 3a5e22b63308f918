package fimfic2cover

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// Orchestration for one conversion: resolve the story, decide whether a
// placeholder cover is needed, serve it, run fimfic2epub, clean up, and hand
// its exit code back.

// ErrExecutableNotFound is returned when a configured converter path does not
// point at an existing file.
var ErrExecutableNotFound = errors.New("converter executable not found")

// MetadataFetcher is what Run needs from the story API client.
type MetadataFetcher interface {
	FetchStory(ctx context.Context, storyID string) (StoryMetadata, error)
}

// Options carries everything one Run needs. Zero values select the defaults
// documented on the CLI flags.
type Options struct {
	StoryRef string

	ImageDir string
	Fonts    FontConfig

	// Wait is the grace period between starting the file server and
	// launching the converter.
	Wait time.Duration

	ConverterExecutable string
	ConverterDir        string
	ConverterExtraFlags string
	ConverterFilename   string

	// ServeAddr overrides DefaultServeAddr; tests use it.
	ServeAddr string

	// Fetcher overrides the real API client; tests use it.
	Fetcher MetadataFetcher
}

// DefaultConverterExecutable is the fimfic2epub launcher name, which differs
// on Windows.
func DefaultConverterExecutable() string {
	if runtime.GOOS == "windows" {
		return "fimfic2epub.cmd"
	}
	return "fimfic2epub"
}

// ConverterArgs assembles the fimfic2epub command line. Every flag precedes
// the positional story id; the optional output filename trails it.
func ConverterArgs(opts Options, storyID, coverURL string) ([]string, error) {
	exe := opts.ConverterExecutable
	if exe == "" {
		exe = DefaultConverterExecutable()
	}
	args := []string{exe}
	if opts.ConverterDir != "" {
		args = append(args, "--dir", opts.ConverterDir)
	}
	if opts.ConverterExtraFlags != "" {
		extra, err := shlex.Split(opts.ConverterExtraFlags)
		if err != nil {
			return nil, fmt.Errorf("parse extra flags: %w", err)
		}
		args = append(args, extra...)
	}
	if coverURL != "" {
		args = append(args, "-C", coverURL)
	}
	args = append(args, storyID)
	if opts.ConverterFilename != "" {
		args = append(args, opts.ConverterFilename)
	}
	return args, nil
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Run performs one conversion and returns the exit code the process should
// finish with. A non-nil error always pairs with exit code 1; otherwise the
// code is the converter's own.
func Run(ctx context.Context, opts Options, log *logrus.Logger) (int, error) {
	storyID, err := ResolveStoryRef(opts.StoryRef)
	if err != nil {
		return 1, err
	}

	exe := opts.ConverterExecutable
	if exe == "" {
		exe = DefaultConverterExecutable()
	}
	if exe != DefaultConverterExecutable() && !fileExists(exe) {
		return 1, fmt.Errorf("%s: %w", exe, ErrExecutableNotFound)
	}

	imageDir := opts.ImageDir
	if imageDir == "" {
		imageDir, err = os.Getwd()
		if err != nil {
			return 1, err
		}
	}

	coverFile := storyID + ".jpeg"
	coverPath := filepath.Join(imageDir, coverFile)
	coverFileExists := fileExists(coverPath)

	// A generated cover on disk is authoritative; only hit the API when
	// there is none.
	hasOfficialCover := false
	var meta StoryMetadata
	if coverFileExists {
		log.Debugf("Found existing cover file %s, skipping the API.", coverPath)
	} else {
		fetcher := opts.Fetcher
		if fetcher == nil {
			fetcher = NewClient("")
		}
		log.Debugf("Getting story metadata for %s.", storyID)
		meta, err = fetcher.FetchStory(ctx, storyID)
		if err != nil {
			return 1, err
		}
		hasOfficialCover = meta.HasCover
	}

	coverURL := ""
	if !hasOfficialCover {
		log.Infof("Story of ID %s doesn't have a cover, fimfic2epub needs one.", storyID)

		if coverFileExists {
			log.Info("Skipping cover generation since it already exists.")
		} else {
			log.Info("Creating cover.")
			fonts, err := LoadCoverFonts(opts.Fonts)
			if err != nil {
				return 1, err
			}
			if err := CreatePlaceholderCover(meta.Title, meta.Author, coverPath, fonts); err != nil {
				return 1, fmt.Errorf("create cover %s: %w", coverPath, err)
			}
		}

		addr := opts.ServeAddr
		if addr == "" {
			addr = DefaultServeAddr
		}
		server, err := ServeDir(imageDir, addr)
		if err != nil {
			return 1, fmt.Errorf("start file server: %w", err)
		}
		defer func() {
			log.Info("Closing server.")
			if err := server.Close(); err != nil {
				log.Warnf("Closing server: %v", err)
			}
		}()

		coverURL = fmt.Sprintf("http://%s/%s", server.Addr(), coverFile)
		log.Infof("Serving the cover at %s.", coverURL)

		if opts.Wait > 0 {
			log.Debugf("Waiting %s before executing fimfic2epub.", opts.Wait)
			select {
			case <-time.After(opts.Wait):
			case <-ctx.Done():
				return 1, ctx.Err()
			}
		}
	}

	args, err := ConverterArgs(opts, storyID, coverURL)
	if err != nil {
		return 1, err
	}
	log.Infof("Executing: %s", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, fmt.Errorf("run %s: %w", args[0], err)
	}
	return 0, nil
}
