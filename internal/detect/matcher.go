package detect

import (
	"github.com/facewatch/facewatch/internal/database"
)

// GalleryEntry is one known subject with its reference embedding.
type GalleryEntry struct {
	SubjectID int64
	Name      string
	Embedding []float32
}

// Match is the result of matching one detected face against the gallery.
type Match struct {
	SubjectID int64
	Name      string
	Distance  float64
	FaceIndex int // index of the detected face that matched
}

// FindMatch applies the match policy: faces are examined in detection order
// and the first face whose nearest gallery entry lies strictly below the
// threshold wins. Remaining faces are not examined. A distance exactly equal
// to the threshold is not a match. An empty gallery never matches.
func FindMatch(faces []Face, gallery []GalleryEntry, threshold float64) (*Match, bool) {
	if len(gallery) == 0 {
		return nil, false
	}

	for _, face := range faces {
		best := -1
		bestDist := 0.0
		for i, entry := range gallery {
			d := database.EuclideanDistance(face.Embedding, entry.Embedding)
			if best < 0 || d < bestDist {
				best = i
				bestDist = d
			}
		}
		if best >= 0 && bestDist < threshold {
			return &Match{
				SubjectID: gallery[best].SubjectID,
				Name:      gallery[best].Name,
				Distance:  bestDist,
				FaceIndex: face.FaceIndex,
			}, true
		}
	}
	return nil, false
}
