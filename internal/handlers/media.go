package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"botqueue/internal/domain"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

// MediaPayload describes one media optimization job.
type MediaPayload struct {
	MediaID  string      `json:"media_id"`
	FilePath string      `json:"file_path"`
	Sizes    []MediaSize `json:"sizes,omitempty"`
	Quality  int         `json:"quality,omitempty"`
}

type MediaSize struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// DefaultSizes are produced when the payload names none.
func DefaultSizes() []MediaSize {
	return []MediaSize{
		{Name: "thumbnail", Width: 200, Height: 200},
		{Name: "medium", Width: 600, Height: 600},
		{Name: "original", Width: 1200, Height: 1200},
	}
}

// MediaProcessor re-encodes a source image into one JPEG per size
// spec under <BaseDir>/<mediaID>/. Images are fit inside the target
// bounds and never enlarged. Re-running a media id overwrites the
// same outputs, so the job is idempotent.
type MediaProcessor struct {
	BaseDir string
	Quality int
}

func (p *MediaProcessor) Handle(ctx context.Context, j domain.Job) error {
	var payload MediaPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return domain.Permanent(fmt.Errorf("decode media payload: %w", err))
	}
	if payload.MediaID == "" || payload.FilePath == "" {
		return domain.Permanent(errors.New("media payload missing media_id or file_path"))
	}

	results, err := p.Process(payload)
	if err != nil {
		return err
	}
	log.Ctx(ctx).Debug().Str("media", payload.MediaID).Int("outputs", len(results)).Msg("media processed")
	return nil
}

// Process runs the resize outside of the job plumbing and returns
// the size-name -> relative path map.
func (p *MediaProcessor) Process(payload MediaPayload) (map[string]string, error) {
	sizes := payload.Sizes
	if len(sizes) == 0 {
		sizes = DefaultSizes()
	}
	quality := payload.Quality
	if quality <= 0 {
		quality = p.Quality
	}
	if quality <= 0 {
		quality = 85
	}

	src, err := imaging.Open(payload.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, imaging.ErrUnsupportedFormat) {
			return nil, domain.Permanent(fmt.Errorf("open source image: %w", err))
		}
		return nil, fmt.Errorf("open source image: %w", err)
	}

	mediaDir := filepath.Join(p.BaseDir, payload.MediaID)
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}

	results := make(map[string]string, len(sizes))
	bounds := src.Bounds()
	for _, size := range sizes {
		out := src
		// imaging.Fit only scales down, which keeps the no-enlarge
		// guarantee for sources smaller than the target box.
		if bounds.Dx() > size.Width || bounds.Dy() > size.Height {
			out = imaging.Fit(src, size.Width, size.Height, imaging.Lanczos)
		}
		name := size.Name + ".jpg"
		path := filepath.Join(mediaDir, name)
		if err := imaging.Save(out, path, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("save %s: %w", name, err)
		}
		results[size.Name] = filepath.Join(payload.MediaID, name)
	}
	return results, nil
}
