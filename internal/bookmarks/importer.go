// Package bookmarks imports the manifest's bookmark annotations once the
// missions they refer to have been processed.
package bookmarks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/mission-uploader/internal/mission"
	"github.com/fpang/mission-uploader/internal/server"
)

// ImportError reports one bookmark the server did not accept.
type ImportError struct {
	Mission string
	Index   int
	Body    string
	Err     error
}

func (e *ImportError) Error() string {
	msg := fmt.Sprintf("error importing bookmark %d of mission %s - %v", e.Index+1, e.Mission, e.Err)
	if e.Body != "" {
		msg += ". " + e.Body
	}
	return msg
}

func (e *ImportError) Unwrap() error { return e.Err }

// Creator posts one bookmark. *server.Client implements it.
type Creator interface {
	CreateBookmark(ctx context.Context, b *mission.Bookmark) error
}

// Summary counts the outcome of ImportAll.
type Summary struct {
	Imported int
	Failed   []*ImportError
}

// ImportAll posts every bookmark of every mission in order. Missing mission
// and sensor references are filled in from the owning mission and its first
// sensor. Failures are logged and collected; only ctx cancellation stops
// the import early.
func ImportAll(ctx context.Context, c Creator, missions []mission.Mission) (Summary, error) {
	var sum Summary
	for i := range missions {
		m := &missions[i]
		for j := range m.Bookmarks {
			if err := ctx.Err(); err != nil {
				return sum, err
			}

			b := &m.Bookmarks[j]
			Backfill(b, m)
			if err := c.CreateBookmark(ctx, b); err != nil {
				ie := &ImportError{Mission: m.Name, Index: j, Body: server.ResponseBody(err), Err: err}
				log.Error().Err(err).Str("mission", m.Name).Int("bookmark", j+1).Msg("Bookmark import failed")
				sum.Failed = append(sum.Failed, ie)
				continue
			}
			sum.Imported++
		}
	}
	if sum.Imported+len(sum.Failed) > 0 {
		log.Info().Int("imported", sum.Imported).Int("failed", len(sum.Failed)).Msg("Bookmarks imported")
	}
	return sum, nil
}

// Backfill sets the bookmark's mission and sensor references when empty.
func Backfill(b *mission.Bookmark, m *mission.Mission) {
	if b.MissionName == "" {
		b.MissionName = m.Name
	}
	if b.SensorName == "" {
		b.SensorName = m.FirstSensorName()
	}
}
