package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/mission-uploader/internal/jsonutil"
	"github.com/fpang/mission-uploader/internal/mission"
	"github.com/fpang/mission-uploader/internal/panics"
)

// Multipart field names understood by the upload endpoint.
const (
	FieldFiles              = "files"
	FieldServerLocatedFiles = "serverLocatedFiles"
)

// FilePart is one entry of a sensor upload. Local parts are streamed from
// disk; the others only carry the path for the server to resolve.
type FilePart struct {
	Path  string
	Local bool
}

type createMissionResponse struct {
	Mission mission.Mission `json:"mission"`
}

type processResponse struct {
	Tasks int `json:"tasks"`
}

// CreateMission posts m to the create-mission endpoint and returns the
// mission document the server stored.
func (c *Client) CreateMission(ctx context.Context, m *mission.Mission) (*mission.Mission, error) {
	body, err := c.sendJSON(ctx, http.MethodPost, "/api/missions", m)
	if err != nil {
		return nil, err
	}
	resp, err := jsonutil.Decode[createMissionResponse](body)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("mission", resp.Mission.Name).Str("id", resp.Mission.ID).Msg("Mission created")
	return &resp.Mission, nil
}

// UploadSensor streams one sensor's file set as a multipart body and asks
// the server to queue the mission for processing once the upload lands.
func (c *Client) UploadSensor(ctx context.Context, missionName, sensorName string, parts []FilePart) error {
	path := fmt.Sprintf("/api/missions/upload/%s/%s", url.PathEscape(missionName), url.PathEscape(sensorName))
	query := url.Values{"processAfterUpload": {"addToProcessingQueue"}}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	written := make(chan error, 1)
	go func() {
		var err error
		defer func() {
			pw.CloseWithError(err)
			written <- err
		}()
		defer panics.Capture(&err)
		err = c.writeBody(mw, parts)
	}()

	_, err := c.do(ctx, http.MethodPost, c.endpoint(path, query), pr, mw.FormDataContentType())
	pr.Close()
	// A panic in the writer surfaces only as a broken body to the transport.
	var pe *panics.Error
	if werr := <-written; errors.As(werr, &pe) {
		return werr
	}
	if err != nil {
		return err
	}
	log.Debug().Str("mission", missionName).Str("sensor", sensorName).Int("parts", len(parts)).Msg("Sensor uploaded")
	return nil
}

func (c *Client) writeBody(mw *multipart.Writer, parts []FilePart) error {
	if c.partWriter != nil {
		return c.partWriter(mw, parts)
	}
	return writeParts(mw, parts)
}

// writeParts writes every part and closes the multipart writer.
func writeParts(mw *multipart.Writer, parts []FilePart) error {
	for _, p := range parts {
		if !p.Local {
			if err := mw.WriteField(FieldServerLocatedFiles, p.Path); err != nil {
				return err
			}
			continue
		}
		if err := writeFilePart(mw, p.Path); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeFilePart(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	w, err := mw.CreateFormFile(FieldFiles, filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("stream %s: %w", path, err)
	}
	return nil
}

// TriggerProcessing asks the server to process everything queued and returns
// the number of tasks it scheduled.
func (c *Client) TriggerProcessing(ctx context.Context) (int, error) {
	body, err := c.sendJSON(ctx, http.MethodPut, "/api/missions/process", nil)
	if err != nil {
		return 0, err
	}
	resp, err := jsonutil.Decode[processResponse](body)
	if err != nil {
		return 0, err
	}
	return resp.Tasks, nil
}

// CreateBookmark posts one bookmark annotation.
func (c *Client) CreateBookmark(ctx context.Context, b *mission.Bookmark) error {
	_, err := c.sendJSON(ctx, http.MethodPost, "/api/bookmarks", b)
	return err
}
