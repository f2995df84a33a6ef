package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"trackrecon/internal/blob"
)

// RunInfo is stored as blob metadata next to the workbook.
type RunInfo struct {
	RunID   string
	Version string
	Mode    string // "file" or "sheets"
}

func (r RunInfo) metadata() map[string]string {
	md := map[string]string{"version": r.Version, "mode": r.Mode}
	if r.RunID != "" {
		md["run_id"] = r.RunID
	}
	return md
}

// Saved describes a persisted workbook.
type Saved struct {
	Key      string
	URL      string
	Size     int64
	Replaced bool
}

// Sink persists rendered workbooks into a blob store under Prefix.
type Sink struct {
	store  blob.Store
	prefix string
	log    *zap.Logger
}

// NewSink returns a sink writing into store. log may be nil.
func NewSink(store blob.Store, prefix string, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{store: store, prefix: prefix, log: log}
}

// Key returns the blob key for a file name.
func (s *Sink) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Save renders wb and stores it as name, replacing any previous workbook
// with the same name.
func (s *Sink) Save(ctx context.Context, name string, wb Workbook, run RunInfo) (Saved, error) {
	payload, err := wb.Render()
	if err != nil {
		return Saved{}, err
	}
	key := s.Key(name)
	saved := Saved{Key: key}
	if _, err := s.store.Head(ctx, key); err == nil {
		if _, err := s.store.Delete(ctx, key); err != nil {
			return Saved{}, fmt.Errorf("remove previous workbook %s: %w", key, err)
		}
		saved.Replaced = true
		s.log.Info("replacing existing workbook", zap.String("key", key))
	} else if !errors.Is(err, blob.ErrNotFound) {
		return Saved{}, fmt.Errorf("check workbook %s: %w", key, err)
	}
	info, err := s.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: ContentType, Metadata: run.metadata()})
	if err != nil {
		return Saved{}, fmt.Errorf("store workbook %s: %w", key, err)
	}
	saved.Size = info.Size
	saved.URL = info.URL
	u, err := s.store.PresignURL(ctx, key, blob.SignedURLOptions{Expiry: 24 * time.Hour})
	switch {
	case err == nil:
		saved.URL = u
	case errors.Is(err, blob.ErrUnsupported):
		if saved.URL == "" {
			saved.URL = string(s.store.Driver()) + "://" + key
		}
	default:
		s.log.Warn("could not build workbook url", zap.String("key", key), zap.Error(err))
	}
	s.log.Info("saved workbook", zap.String("key", key), zap.Int64("bytes", saved.Size), zap.String("driver", string(s.store.Driver())))
	return saved, nil
}
