package pipeline

import (
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/facewatch/facewatch/internal/config"
	"github.com/facewatch/facewatch/internal/database"
	"github.com/facewatch/facewatch/internal/detect"
	"github.com/facewatch/facewatch/internal/gallery"
	"github.com/facewatch/facewatch/internal/imaging"
)

// Detector produces face embeddings for a frame payload.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]detect.Face, error)
}

// Gallery serves the current subject snapshot.
type Gallery interface {
	Current(ctx context.Context) *gallery.Snapshot
}

// Processor runs the per-frame pipeline: staleness check, write-completion
// wait, preprocessing, detection, matching and match recording. The frame
// file is deleted on every path, matched or not.
type Processor struct {
	cfg      config.Pipeline
	gallery  Gallery
	detector Detector
	matches  database.MatchWriter
	logger   *slog.Logger

	now               func() time.Time
	writeWaitAttempts int
	writeWaitDelay    time.Duration
}

func NewProcessor(cfg config.Pipeline, g Gallery, d Detector, matches database.MatchWriter, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:               cfg,
		gallery:           g,
		detector:          d,
		matches:           matches,
		logger:            logger,
		now:               time.Now,
		writeWaitAttempts: 5,
		writeWaitDelay:    100 * time.Millisecond,
	}
}

// Process handles one frame file by name. Failures are logged and absorbed
// so one bad frame never stalls the loop.
func (p *Processor) Process(ctx context.Context, name string) {
	path := filepath.Join(p.cfg.FramesDir, name)
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("failed to delete frame", "frame", name, "error", err)
		}
	}()

	now := p.now()
	info := ParseFrameName(name, now)
	if now.Sub(info.CapturedAt) > p.cfg.TimeWindow {
		p.logger.Debug("dropping stale frame", "frame", name, "captured_at", info.CapturedAt)
		return
	}

	if err := p.waitForWrite(path); err != nil {
		p.logger.Warn("failed to stat frame", "frame", name, "error", err)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		p.logger.Warn("failed to read frame", "frame", name, "error", err)
		return
	}
	img, err := imaging.Decode(data)
	if err != nil {
		p.logger.Warn("failed to decode frame", "frame", name, "error", err)
		return
	}

	if imaging.IsBlurry(img, p.cfg.BlurThreshold) {
		img = imaging.Sharpen(img)
	}
	if imaging.MeanLuma(img) < p.cfg.BrightnessThreshold {
		p.saveDebugCopy("before_"+name, img)
		img = imaging.AdjustBrightness(img, p.cfg.BrightnessBoost)
		p.saveDebugCopy("after_"+name, img)
	}
	img = imaging.ResizeToWidth(img, p.cfg.ResizeWidth)

	payload, err := imaging.EncodeJPEG(img)
	if err != nil {
		p.logger.Error("failed to encode frame", "frame", name, "error", err)
		return
	}

	faces, err := p.detector.DetectFaces(ctx, payload)
	if err != nil {
		p.logger.Error("face detection failed", "frame", name, "error", err)
		return
	}
	if len(faces) == 0 {
		p.logger.Debug("no faces in frame", "frame", name)
		return
	}

	snap := p.gallery.Current(ctx)
	m, ok := detect.FindMatch(faces, snap.Entries, p.cfg.MatchThreshold)
	if !ok {
		p.logger.Debug("no gallery match", "frame", name, "faces", len(faces))
		return
	}

	p.logger.Info("subject matched",
		"frame", name, "subject", m.Name, "distance", m.Distance)
	p.recordMatch(ctx, info, img, faces, m)
}

// waitForWrite waits until the frame file reports a stable non-zero size.
// The capture process writes frames in place, so a freshly listed file may
// still be growing. The wait is best effort: once the attempts run out the
// frame proceeds anyway and the decode step sorts it out.
func (p *Processor) waitForWrite(path string) error {
	var lastSize int64 = -1
	for range p.writeWaitAttempts {
		fi, err := os.Stat(path)
		if err != nil {
			return err
		}
		if fi.Size() > 0 && fi.Size() == lastSize {
			return nil
		}
		lastSize = fi.Size()
		time.Sleep(p.writeWaitDelay)
	}
	return nil
}

// recordMatch annotates the frame, stores it under the subject's directory
// and appends the match event. Storage failures are logged but never undo
// the match.
func (p *Processor) recordMatch(ctx context.Context, info FrameInfo, img *image.RGBA, faces []detect.Face, m *detect.Match) {
	var bbox []float64
	var embedding []float32
	for _, f := range faces {
		if f.FaceIndex == m.FaceIndex {
			bbox = f.BBox
			embedding = f.Embedding
			break
		}
	}

	imaging.AnnotateMatch(img, bbox, info.CapturedAt)
	if err := p.saveMatchedImage(m.Name, info.Name, img); err != nil {
		p.logger.Warn("failed to store matched image", "frame", info.Name, "error", err)
	}

	subjectID := m.SubjectID
	event := database.MatchEvent{
		CaptureTime: info.CapturedAt,
		Frame:       info.Name,
		CameraID:    info.CameraID,
		SubjectID:   &subjectID,
		SubjectName: m.Name,
		Distance:    m.Distance,
		Embedding:   embedding,
	}
	if err := p.matches.Append(ctx, event); err != nil {
		p.logger.Error("failed to record match event", "frame", info.Name, "subject", m.Name, "error", err)
	}
}

// saveMatchedImage writes the annotated frame under <MatchedDir>/<subject>/.
func (p *Processor) saveMatchedImage(subjectName, frameName string, img *image.RGBA) error {
	dir := filepath.Join(p.cfg.MatchedDir, SubjectSlug(subjectName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, asJPEGName(frameName)), data, 0o644)
}

// saveDebugCopy keeps a before/after pair of brightness-adjusted frames for
// tuning the thresholds.
func (p *Processor) saveDebugCopy(name string, img *image.RGBA) {
	dir := filepath.Join(p.cfg.FramesDir, "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.logger.Debug("failed to create debug dir", "error", err)
		return
	}
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(dir, asJPEGName(name)), data, 0o644); err != nil {
		p.logger.Debug("failed to write debug copy", "name", name, "error", err)
	}
}

func asJPEGName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
}
