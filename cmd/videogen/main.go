// Command videogen generates a single video from the command line and writes
// it to a file. It submits the job, waits for it and downloads the result.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/uniedit/videogen/internal/app"
	"github.com/uniedit/videogen/internal/domain/video"
	"github.com/uniedit/videogen/internal/shared/config"
	"github.com/uniedit/videogen/internal/shared/logger"
)

type options struct {
	mode           string
	prompt         string
	model          string
	image          string
	firstFrame     string
	lastFrame      string
	refs           []string
	styleRefs      []string
	video          string
	videoDuration  float64
	aspectRatio    string
	resolution     string
	duration       int
	negativePrompt string
	person         string
	output         string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "videogen:", err)
		os.Exit(exitCode(err))
	}
}

func newFlagSet(opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("videogen", pflag.ContinueOnError)
	fs.StringVarP(&opts.mode, "mode", "m", string(video.ModeTextToVideo),
		"generation mode: text_to_video, image_to_video, interpolation, reference_guided, extension")
	fs.StringVarP(&opts.prompt, "prompt", "p", "", "text prompt")
	fs.StringVar(&opts.model, "model", "", "model name (defaults to provider.model)")
	fs.StringVar(&opts.image, "image", "", "input image for image_to_video")
	fs.StringVar(&opts.firstFrame, "first-frame", "", "first frame for interpolation")
	fs.StringVar(&opts.lastFrame, "last-frame", "", "last frame for interpolation")
	fs.StringArrayVar(&opts.refs, "ref", nil, "asset reference image (repeatable)")
	fs.StringArrayVar(&opts.styleRefs, "style-ref", nil, "style reference image (repeatable)")
	fs.StringVar(&opts.video, "video", "", "source video for extension")
	fs.Float64Var(&opts.videoDuration, "video-duration", 0, "source video duration in seconds, if known")
	fs.StringVar(&opts.aspectRatio, "aspect-ratio", "", "16:9 or 9:16")
	fs.StringVar(&opts.resolution, "resolution", "", "720p or 1080p")
	fs.IntVar(&opts.duration, "duration", 0, "output duration in seconds")
	fs.StringVar(&opts.negativePrompt, "negative-prompt", "", "content to avoid")
	fs.StringVar(&opts.person, "person", "", "allow_all, allow_adult or dont_allow")
	fs.StringVarP(&opts.output, "output", "o", "video.mp4", "output file")
	fs.Duration("timeout", 0, "give up waiting after this long")
	fs.Duration("poll-interval", 0, "interval between status checks")
	fs.String("log-level", "info", "log level")
	return fs
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var opts options
	fs := newFlagSet(&opts)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	v := viper.New()
	for key, flag := range map[string]string{
		"generation.timeout":       "timeout",
		"generation.poll_interval": "poll-interval",
		"log.level":                "log-level",
	} {
		if fs.Changed(flag) {
			if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
				return fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}
	cfg, err := config.LoadFrom(v)
	if err != nil {
		return err
	}

	req, err := buildRequest(&opts)
	if err != nil {
		return err
	}

	log := logger.NewZapLogger(&logger.Config{Level: cfg.Log.Level, Format: "text"})
	defer func() { _ = log.Sync() }()

	service, err := app.BuildService(ctx, cfg, app.Deps{Logger: log})
	if err != nil {
		return err
	}
	defer service.Stop()

	log.Info("Generating video",
		zap.String("mode", req.Mode.String()),
		zap.String("config", req.Config.String()),
	)
	artifact, err := service.Run(ctx, req)
	if err != nil {
		return err
	}

	if err := os.WriteFile(opts.output, artifact.Bytes, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(stdout, "wrote %s (%d bytes, %s)\n", opts.output, artifact.Size(), artifact.MimeType)
	if artifact.ArchiveURL != "" {
		fmt.Fprintf(stdout, "archived at %s\n", artifact.ArchiveURL)
	}
	return nil
}

func buildRequest(opts *options) (*video.GenerationRequest, error) {
	req := &video.GenerationRequest{
		Mode:   video.Mode(opts.mode),
		Prompt: opts.prompt,
		Model:  opts.model,
		Media:  make(map[video.Role]video.MediaInput),
		Config: video.Config{
			AspectRatio:     video.AspectRatio(opts.aspectRatio),
			Resolution:      video.Resolution(opts.resolution),
			DurationSeconds: opts.duration,
			NegativePrompt:  opts.negativePrompt,
			PersonPolicy:    video.PersonPolicy(opts.person),
		},
	}

	files := []struct {
		role video.Role
		path string
	}{
		{video.RolePrimary, opts.image},
		{video.RoleFirstFrame, opts.firstFrame},
		{video.RoleLastFrame, opts.lastFrame},
		{video.RoleSourceVideo, opts.video},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		in, err := readMedia(f.path)
		if err != nil {
			return nil, err
		}
		if f.role == video.RoleSourceVideo {
			in.DurationSeconds = opts.videoDuration
		}
		req.Media[f.role] = in
	}

	n := 0
	addRefs := func(paths []string, kind video.ReferenceKind) error {
		for _, p := range paths {
			in, err := readMedia(p)
			if err != nil {
				return err
			}
			n++
			in.Kind = kind
			req.Media[video.ReferenceRole(n)] = in
		}
		return nil
	}
	if err := addRefs(opts.refs, video.ReferenceAsset); err != nil {
		return nil, err
	}
	if err := addRefs(opts.styleRefs, video.ReferenceStyle); err != nil {
		return nil, err
	}
	return req, nil
}

func readMedia(path string) (video.MediaInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return video.MediaInput{}, fmt.Errorf("read %s: %w", path, err)
	}
	return video.MediaInput{Data: data}, nil
}

// exitCode maps failures to distinct codes so scripts can tell a bad request
// from a provider problem.
func exitCode(err error) int {
	switch video.KindOf(err) {
	case video.KindValidation, video.KindConfigConflict, video.KindReferenceCount,
		video.KindSourceTooLong, video.KindConfiguration:
		return 2
	case video.KindTimedOut:
		return 3
	default:
		return 1
	}
}
