package playback

import (
	"time"

	"github.com/google/uuid"
)

// Track records one playback request and its lifecycle for status
// reporting. A fresh track is minted per Play call, so two plays of the
// same word are distinct tracks.
type Track struct {
	ID        string    // Unique track identifier
	URL       string    // Audio asset URL, empty for synthesis-only tracks
	Text      string    // Fallback text for speech synthesis
	Tier      Tier      // Tier that ended up serving the track
	StartedAt time.Time // When the play request was accepted
}

// newTrack mints a track for a request.
func newTrack(req Request) *Track {
	return &Track{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Text:      req.Text,
		StartedAt: time.Now(),
	}
}
