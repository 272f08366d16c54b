package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// ObjectStore is the subset of MinIOStorage the snapshot archive needs.
type ObjectStore interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// SnapshotArchive writes the final operation log of a closed room to object
// storage under snapshots/<document>/<unix nanos>.json.
type SnapshotArchive struct {
	store ObjectStore
	now   func() time.Time
}

func NewSnapshotArchive(store ObjectStore) *SnapshotArchive {
	return &SnapshotArchive{store: store, now: time.Now}
}

func snapshotPrefix(documentID string) string {
	return "snapshots/" + documentID + "/"
}

// Archive implements collab.Archiver.
func (a *SnapshotArchive) Archive(ctx context.Context, documentID, content string) error {
	key := fmt.Sprintf("%s%d.json", snapshotPrefix(documentID), a.now().UnixNano())
	if err := a.store.UploadFile(ctx, key, strings.NewReader(content), int64(len(content)), "application/json"); err != nil {
		return fmt.Errorf("archive %s: %w", documentID, err)
	}
	return nil
}

// Snapshots lists the archived snapshot keys of a document, oldest first.
func (a *SnapshotArchive) Snapshots(ctx context.Context, documentID string) ([]string, error) {
	keys, err := a.store.ListKeys(ctx, snapshotPrefix(documentID))
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}
