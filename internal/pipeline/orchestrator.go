// Package pipeline drives a batch: discovery, then per source probe → plan →
// encode → package, with bounded source parallelism, a per-source state
// machine and a batch summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Carbocode/2mpeg-dash/internal/check"
	"github.com/Carbocode/2mpeg-dash/internal/command"
	"github.com/Carbocode/2mpeg-dash/internal/config"
	"github.com/Carbocode/2mpeg-dash/internal/display"
	"github.com/Carbocode/2mpeg-dash/internal/ffmpeg"
	"github.com/Carbocode/2mpeg-dash/internal/layout"
	"github.com/Carbocode/2mpeg-dash/internal/logging"
	"github.com/Carbocode/2mpeg-dash/internal/metrics"
	"github.com/Carbocode/2mpeg-dash/internal/packager"
	"github.com/Carbocode/2mpeg-dash/internal/planner"
	"github.com/Carbocode/2mpeg-dash/internal/probe"
)

// stderrLines is how much of a failed tool's stderr is logged.
const stderrLines = 20

// Orchestrator runs batches against one resolved set of capabilities.
// Source IDs stay stable across batches of the same Orchestrator, which
// watch mode relies on.
type Orchestrator struct {
	cfg      *config.Config
	caps     check.Capabilities
	prober   probe.Prober
	encoder  *ffmpeg.Encoder
	packager *packager.Packager
	metrics  *metrics.Recorder
	ids      *layout.IDResolver
	log      zerolog.Logger
	runID    string
}

// New wires an Orchestrator. rec may be nil.
func New(cfg *config.Config, r command.Runner, caps check.Capabilities, log zerolog.Logger, rec *metrics.Recorder) *Orchestrator {
	runID := uuid.NewString()
	log = log.With().Str(logging.FieldRunID, runID).Logger()

	enc := &ffmpeg.Encoder{
		Runner: r,
		FFmpeg: caps.FFmpeg,
		Opts:   ffmpeg.OptionsFromConfig(cfg),
		Log:    log,
	}
	pkg := packager.New(r, caps, log)
	if cfg.Verbose {
		enc.Progress = os.Stderr
		pkg.Progress = os.Stderr
	}

	return &Orchestrator{
		cfg:      cfg,
		caps:     caps,
		prober:   probe.Prober{Runner: r, FFprobe: caps.FFprobe},
		encoder:  enc,
		packager: pkg,
		metrics:  rec,
		ids:      layout.NewIDResolver(),
		log:      log,
		runID:    runID,
	}
}

// RunID identifies this orchestrator's run in logs and reports.
func (o *Orchestrator) RunID() string { return o.runID }

// Capabilities returns the backends the run uses.
func (o *Orchestrator) Capabilities() check.Capabilities { return o.caps }

// Run discovers sources under the input directory and processes them.
// Only discovery errors are returned; per-source failures are recorded in
// the stats.
func (o *Orchestrator) Run(ctx context.Context) (RunStats, error) {
	files, err := Discover(o.cfg.InputDir, o.cfg.Extensions, o.cfg.Recursive)
	if err != nil {
		return RunStats{}, fmt.Errorf("discover sources: %w", err)
	}
	o.log.Info().
		Int("files", len(files)).
		Str(logging.FieldPath, o.cfg.InputDir).
		Str("av1", string(o.caps.AV1)).
		Str(logging.FieldPackager, string(o.caps.Packager)).
		Bool("dry_run", o.cfg.DryRun).
		Msg("starting batch")
	return o.Process(ctx, files), nil
}

// Process runs the given sources with up to cfg.Jobs in flight. IDs are
// assigned in slice order before any work starts, so collisions resolve
// deterministically. Sources not started before ctx is cancelled are left
// out of the results and mark the batch interrupted.
func (o *Orchestrator) Process(ctx context.Context, files []string) RunStats {
	stats := RunStats{Total: len(files), Started: time.Now()}

	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = o.ids.Resolve(f, probe.SourceID(f))
	}

	results := make([]*SourceResult, len(files))
	var g errgroup.Group
	g.SetLimit(o.cfg.Jobs)
	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r := o.processSource(ctx, path, ids[i])
			results[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r == nil {
			stats.Interrupted = true
			continue
		}
		stats.add(*r)
		o.metrics.SourceFinished(string(r.Outcome()))
	}
	if ctx.Err() != nil {
		stats.Interrupted = true
	}
	stats.Finished = time.Now()
	o.metrics.RunFinished(stats.Finished, stats.Elapsed())
	return stats
}

// processSource walks one source through the state machine. It never
// panics on tool failures; every error ends in a failed result.
func (o *Orchestrator) processSource(ctx context.Context, path, id string) (res SourceResult) {
	start := time.Now()
	res = SourceResult{ID: id, Path: path, State: StateQueued, DryRun: o.cfg.DryRun}
	defer func() { res.Duration = time.Since(start) }()
	log := o.log.With().Str(logging.FieldSource, id).Logger()

	if !o.cfg.Force && layout.Published(o.cfg.OutputDir, id) {
		log.Info().Msg("skip (manifest exists, use --force to rebuild)")
		res.State = StateSkipped
		res.OutputDir = layout.FinalDir(o.cfg.OutputDir, id)
		return res
	}

	// --- Probe ---
	t := time.Now()
	asset, err := o.prober.Inspect(ctx, path)
	o.metrics.ObserveStage(string(StageProbe), time.Since(t))
	if err != nil {
		return o.fail(log, res, StageProbe, err)
	}
	asset.ID = id
	res.State = StateProbed
	res.InputBytes = asset.Size
	log.Info().
		Int(logging.FieldHeight, asset.NativeHeight).
		Float64(logging.FieldFPS, asset.FrameRate).
		Bool("audio", asset.HasAudio).
		Bool("interlaced", asset.Interlaced).
		Msg("probed")
	if asset.HDR {
		log.Warn().Msg("HDR source; renditions are encoded without tone mapping")
	}

	// --- Plan ---
	ladder, err := planner.Plan(asset, o.caps.AV1, o.cfg.MaxHeight)
	if err != nil {
		return o.fail(log, res, StagePlan, err)
	}
	res.Ladder = ladder
	res.State = StatePlanned
	log.Info().
		Ints("h264", ladder.Heights()).
		Int("av1_rungs", len(ladder.AV1)).
		Int(logging.FieldGOP, ladder.GOP).
		Msg("planned ladder")

	work := layout.NewWorkArea(o.cfg.WorkDir, id)
	if o.cfg.DryRun {
		o.logDryRun(log, asset, ladder, work)
		res.State = StateDone
		return res
	}
	if err := work.Reset(); err != nil {
		return o.fail(log, res, StageEncode, err)
	}

	// --- Encode ---
	files, audio, av1Err, err := o.encode(ctx, asset, ladder, work)
	if err != nil {
		stage := StageEncode
		var ee *ffmpeg.EncodeError
		if errors.As(err, &ee) && ee.Family == planner.FamilyAudio {
			stage = StageAudio
		}
		return o.fail(log, res, stage, err)
	}
	if av1Err != nil {
		res.Degraded = true
		res.DegradedErr = av1Err
		res.Ladder = ladder.WithoutAV1()
		ev := log.Warn().Err(av1Err)
		if tail := stderrTail(av1Err); tail != "" {
			ev = ev.Str("stderr", tail)
		}
		ev.Msg("AV1 encode failed; packaging H.264 only")
	}
	res.State = StateEncoded

	// --- Package ---
	t = time.Now()
	tree, err := o.packager.Package(ctx, packager.Job{
		SourceID:        id,
		OutRoot:         o.cfg.OutputDir,
		Renditions:      files,
		AudioPath:       audio,
		SegmentDuration: o.cfg.SegmentDuration,
	})
	o.metrics.ObserveStage(string(StagePackage), time.Since(t))
	if err != nil {
		return o.fail(log, res, StagePackage, err)
	}
	res.State = StatePackaged
	res.OutputDir = tree.Root
	res.OutputBytes = dirSize(tree.Root)
	for _, spec := range res.Ladder.Renditions() {
		o.metrics.RenditionPublished(string(spec.Family), spec.Height)
	}

	if !o.cfg.KeepWork {
		if err := work.Remove(); err != nil {
			log.Warn().Err(err).Str(logging.FieldPath, work.Dir).Msg("could not remove work area")
		}
	}
	res.State = StateDone
	log.Info().
		Str(logging.FieldFinalPath, tree.Root).
		Str("size", display.FormatBytes(res.OutputBytes)).
		Dur(logging.FieldDuration, time.Since(start)).
		Msg("done")
	return res
}

// encode runs the H.264, AV1 and audio encodes of one source, concurrently
// when ParallelFamilies is set. An AV1 failure is returned separately as
// av1Err and does not cancel the other families; any other failure does.
func (o *Orchestrator) encode(ctx context.Context, asset probe.SourceAsset, ladder planner.Ladder, work layout.WorkArea) (files []ffmpeg.RenditionFile, audio string, av1Err error, err error) {
	var h264Files, av1Files []ffmpeg.RenditionFile

	g, gctx := errgroup.WithContext(ctx)
	if !o.cfg.ParallelFamilies {
		g.SetLimit(1)
	}
	start := time.Now()

	g.Go(func() error {
		var err error
		h264Files, err = o.encoder.Encode(gctx, familyJob(asset, ladder, planner.FamilyH264, work))
		return err
	})
	if len(ladder.AV1) > 0 {
		g.Go(func() error {
			var err error
			av1Files, err = o.encoder.Encode(gctx, familyJob(asset, ladder, planner.FamilyAV1, work))
			av1Err = err
			return nil
		})
	}
	if asset.HasAudio {
		g.Go(func() error {
			var err error
			audio, err = o.encoder.ExtractAudio(gctx, asset, work.Sub(string(planner.FamilyAudio)))
			return err
		})
	}

	err = g.Wait()
	o.metrics.ObserveStage(string(StageEncode), time.Since(start))
	if err != nil {
		o.recordEncodeFailure(err)
		return nil, "", nil, err
	}
	if av1Err != nil {
		if ctx.Err() != nil {
			return nil, "", nil, av1Err
		}
		o.recordEncodeFailure(av1Err)
		return h264Files, audio, av1Err, nil
	}
	return append(h264Files, av1Files...), audio, nil, nil
}

func (o *Orchestrator) recordEncodeFailure(err error) {
	var ee *ffmpeg.EncodeError
	if errors.As(err, &ee) {
		o.metrics.EncodeFailed(string(ee.Family), string(ee.Reason))
	}
}

func familyJob(asset probe.SourceAsset, ladder planner.Ladder, f planner.Family, work layout.WorkArea) ffmpeg.Job {
	backend := check.BackendH264
	if f == planner.FamilyAV1 {
		backend = ladder.AV1Backend
	}
	return ffmpeg.Job{
		Asset:   asset,
		Family:  f,
		Backend: backend,
		Specs:   ladder.Partition(f),
		OutDir:  work.Sub(string(f)),
	}
}

// fail moves res to failed at stage and logs the error with the tail of
// the failing tool's stderr.
func (o *Orchestrator) fail(log zerolog.Logger, res SourceResult, stage Stage, err error) SourceResult {
	res.State = StateFailed
	res.FailedAt = stage
	res.Err = err

	ev := log.Error().Err(err).Str(logging.FieldStage, string(stage))
	if tail := stderrTail(err); tail != "" {
		ev = ev.Str("stderr", tail)
	}
	ev.Msg("source failed")
	return res
}

// logDryRun logs every command the source would run.
func (o *Orchestrator) logDryRun(log zerolog.Logger, asset probe.SourceAsset, ladder planner.Ladder, work layout.WorkArea) {
	var files []ffmpeg.RenditionFile
	for _, f := range []planner.Family{planner.FamilyH264, planner.FamilyAV1} {
		job := familyJob(asset, ladder, f, work)
		if len(job.Specs) == 0 {
			continue
		}
		log.Info().
			Str(logging.FieldFamily, string(f)).
			Str(logging.FieldCommand, o.encoder.EncodeCommand(job).String()).
			Msg("[dry-run] would encode")
		for _, spec := range job.Specs {
			files = append(files, ffmpeg.RenditionFile{Spec: spec, Path: ffmpeg.OutputPath(job.OutDir, spec)})
		}
	}

	var audio string
	audioKbps := 0
	if asset.HasAudio {
		dir := work.Sub(string(planner.FamilyAudio))
		audio = filepath.Join(dir, ffmpeg.AudioFileName)
		audioKbps, _ = strconv.Atoi(strings.TrimSuffix(o.cfg.AudioBitrate, "k"))
		log.Info().
			Str(logging.FieldFamily, string(planner.FamilyAudio)).
			Str(logging.FieldCommand, o.encoder.AudioCommand(asset, dir).String()).
			Msg("[dry-run] would extract audio")
	}

	job := packager.Job{
		SourceID:        asset.ID,
		OutRoot:         o.cfg.OutputDir,
		Renditions:      files,
		AudioPath:       audio,
		SegmentDuration: o.cfg.SegmentDuration,
	}
	if c, err := o.packager.Command(job); err == nil {
		log.Info().Str(logging.FieldCommand, c.String()).Msg("[dry-run] would package")
	} else {
		log.Warn().Err(err).Msg("[dry-run] packaging not possible")
	}

	if est := planner.EstimateSize(ladder, asset.Duration, audioKbps); est.Known {
		log.Info().Str("estimate", display.FormatBytes(est.Total())).Msg("[dry-run] estimated H.264 + audio size")
	}
}

// stderrTail returns the last lines of a tool's stderr carried by err.
func stderrTail(err error) string {
	var stderr string
	var ee *ffmpeg.EncodeError
	var pe *packager.PackageError
	switch {
	case errors.As(err, &ee):
		stderr = ee.Stderr
	case errors.As(err, &pe):
		stderr = pe.Stderr
	}
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > stderrLines {
		lines = lines[len(lines)-stderrLines:]
	}
	return strings.Join(lines, "\n")
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}
