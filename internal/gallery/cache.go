// Package gallery maintains the in-memory cache of known subjects and their
// reference embeddings.
package gallery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facewatch/facewatch/internal/database"
	"github.com/facewatch/facewatch/internal/detect"
)

// Snapshot is an immutable, point-in-time view of the active gallery.
// Entries are never mutated after the snapshot is published.
type Snapshot struct {
	Entries []detect.GalleryEntry
	BuiltAt time.Time
}

// Embedder produces face embeddings for subject reference imagery.
type Embedder interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]detect.Face, error)
	Dim() int
}

// Cache holds the current gallery snapshot and refreshes it when stale.
// Readers always see one consistent snapshot; a refresh builds the
// replacement off to the side and swaps a single pointer.
type Cache struct {
	subjects        database.SubjectReader
	embedder        Embedder
	refreshInterval time.Duration
	logger          *slog.Logger

	snap      atomic.Pointer[Snapshot]
	refreshMu sync.Mutex // single-flight guard, never held by readers
}

// New creates a gallery cache. The first call to Current triggers the
// initial load.
func New(subjects database.SubjectReader, embedder Embedder, refreshInterval time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		subjects:        subjects,
		embedder:        embedder,
		refreshInterval: refreshInterval,
		logger:          logger,
	}
}

// Current returns the active gallery snapshot, reloading it first if the
// existing one is older than the refresh interval. If another caller is
// already refreshing, the prior snapshot is returned immediately so matching
// is never blocked. A failed reload keeps the prior snapshot.
func (c *Cache) Current(ctx context.Context) *Snapshot {
	snap := c.snap.Load()
	if snap != nil && time.Since(snap.BuiltAt) <= c.refreshInterval {
		return snap
	}

	if !c.refreshMu.TryLock() {
		// Refresh already in flight; serve what we have.
		if snap != nil {
			return snap
		}
		// No snapshot yet: matching against an empty gallery is the
		// correct behavior until the initial load lands.
		return &Snapshot{BuiltAt: time.Now()}
	}
	defer c.refreshMu.Unlock()

	// Re-check after acquiring the lock; another caller may have finished.
	if cur := c.snap.Load(); cur != nil && time.Since(cur.BuiltAt) <= c.refreshInterval {
		return cur
	}

	if err := c.rebuild(ctx); err != nil {
		c.logger.Error("gallery refresh failed, keeping previous snapshot", "error", err)
	}
	if cur := c.snap.Load(); cur != nil {
		return cur
	}
	return &Snapshot{BuiltAt: time.Now()}
}

// Refresh forces a full reload regardless of snapshot age.
func (c *Cache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.rebuild(ctx)
}

// rebuild loads all subjects with imagery, resolves one reference embedding
// per subject and atomically publishes the new snapshot. Callers must hold
// refreshMu.
func (c *Cache) rebuild(ctx context.Context) error {
	subjects, err := c.subjects.GetAllWithImagery(ctx)
	if err != nil {
		return err
	}

	entries := make([]detect.GalleryEntry, 0, len(subjects))
	for _, sub := range subjects {
		emb, err := c.resolveEmbedding(ctx, sub)
		if err != nil {
			c.logger.Warn("excluding subject from gallery",
				"subject_id", sub.ID, "name", sub.FullName, "reason", err)
			continue
		}
		entries = append(entries, detect.GalleryEntry{
			SubjectID: sub.ID,
			Name:      sub.FullName,
			Embedding: emb,
		})
	}

	c.snap.Store(&Snapshot{Entries: entries, BuiltAt: time.Now()})
	c.logger.Info("gallery refreshed", "subjects", len(entries), "excluded", len(subjects)-len(entries))
	return nil
}

// resolveEmbedding prefers the stored reference embedding and falls back to
// computing one from the subject's imagery. The first detected face is used.
func (c *Cache) resolveEmbedding(ctx context.Context, sub database.Subject) ([]float32, error) {
	if len(sub.RefEmbedding) == c.embedder.Dim() {
		return sub.RefEmbedding, nil
	}

	faces, err := c.embedder.DetectFaces(ctx, sub.Image)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, errNoFace
	}
	return faces[0].Embedding, nil
}

// errNoFace marks subjects whose reference image yields no detectable face.
var errNoFace = errors.New("no face detected in reference image")
