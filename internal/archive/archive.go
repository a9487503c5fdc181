// Package archive keeps raw API payloads and CSV exports in Cloud Storage
// so warehouse loads can be replayed.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dvloznov/altcredit/internal/gcs"
	"github.com/dvloznov/altcredit/internal/logger"
)

// Archive writes objects under a bucket prefix. An Archive without a
// bucket is disabled and every write is a no-op.
type Archive struct {
	store  gcs.StorageService
	bucket string
	prefix string
}

// New creates an Archive. store may be nil when bucket is empty.
func New(store gcs.StorageService, bucket, prefix string) *Archive {
	return &Archive{store: store, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Enabled reports whether writes reach a bucket.
func (a *Archive) Enabled() bool {
	return a != nil && a.bucket != "" && a.store != nil
}

// SnapshotObjectName returns prefix/source/YYYY/MM/DD/kind-<unix>.json for t in UTC.
func SnapshotObjectName(prefix, source, kind string, t time.Time) string {
	t = t.UTC()
	name := fmt.Sprintf("%s/%04d/%02d/%02d/%s-%d.json", source, t.Year(), int(t.Month()), t.Day(), kind, t.Unix())
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		name = prefix + "/" + name
	}
	return name
}

// Snapshot stores a raw JSON payload and returns its gs:// URI, or "" when
// the archive is disabled.
func (a *Archive) Snapshot(ctx context.Context, source, kind string, payload []byte, t time.Time) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	object := SnapshotObjectName(a.prefix, source, kind, t)
	if err := a.store.UploadBytes(ctx, a.bucket, object, payload, "application/json"); err != nil {
		return "", fmt.Errorf("archive snapshot %s/%s: %w", source, kind, err)
	}

	uri := a.uri(object)
	log := logger.FromContext(ctx)
	log.Debug().Str("uri", uri).Int("bytes", len(payload)).Msg("Archived payload")
	return uri, nil
}

// UploadFile stores a local file under prefix/source/<file name> and
// returns its gs:// URI, or "" when the archive is disabled.
func (a *Archive) UploadFile(ctx context.Context, source, filePath string) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	object := path.Join(a.prefix, source, path.Base(filePath))
	if err := a.store.UploadFile(ctx, a.bucket, object, filePath); err != nil {
		return "", fmt.Errorf("archive upload %s: %w", filePath, err)
	}
	return a.uri(object), nil
}

// Fetch reads an archived object by gs:// URI.
func (a *Archive) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("archive fetch %s: no storage configured", ExtractFilenameFromGCSURI(gcsURI))
	}
	return a.store.FetchFromGCS(ctx, gcsURI)
}

func (a *Archive) uri(object string) string {
	return "gs://" + a.bucket + "/" + object
}
