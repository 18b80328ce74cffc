package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"livesync/core/reconcile"
	"livesync/core/storage"

	"github.com/minio/minio-go/v7"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Load for an unknown key.
var ErrNotFound = errors.New("archive not found")

// Config holds archive settings.
type Config struct {
	// Prefix is the key prefix under the bucket.
	Prefix string `mapstructure:"prefix" default:"snapshots"`
	// Retain is how many archives to keep per feed. Zero keeps everything.
	Retain int `mapstructure:"retain" default:"20" validate:"gte=0"`
	// OnShutdown archives each feed's final snapshot when the server stops.
	OnShutdown bool `mapstructure:"on_shutdown" default:"true"`
}

// Document is the stored form of a snapshot.
type Document struct {
	Feed       string              `json:"feed"`
	Version    uint64              `json:"version"`
	ArchivedAt time.Time           `json:"archived_at"`
	Count      int                 `json:"count"`
	Entities   *reconcile.Snapshot `json:"entities"`
}

// Loaded is a document read back from storage.
type Loaded struct {
	Key        string             `json:"key"`
	Feed       string             `json:"feed"`
	Version    uint64             `json:"version"`
	ArchivedAt time.Time          `json:"archived_at"`
	Count      int                `json:"count"`
	Entities   []reconcile.Entity `json:"entities"`
}

// Entry describes one stored archive.
type Entry struct {
	Key        string    `json:"key"`
	Size       int64     `json:"size"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Archiver writes snapshots to object storage as
// <prefix>/<feed>/<ulid>.json. ULIDs sort by creation time.
type Archiver struct {
	client storage.Client
	bucket string
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewArchiver creates an Archiver for bucket.
func NewArchiver(client storage.Client, bucket string, cfg Config, logger *zap.Logger) *Archiver {
	if cfg.Prefix == "" {
		cfg.Prefix = "snapshots"
	}
	return &Archiver{
		client: client,
		bucket: bucket,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Save stores snap and returns its key. Older archives beyond Retain are pruned.
func (a *Archiver) Save(ctx context.Context, feed string, snap *reconcile.Snapshot) (string, error) {
	now := a.now().UTC()
	doc := Document{
		Feed:       feed,
		Version:    snap.Version(),
		ArchivedAt: now,
		Count:      snap.Len(),
		Entities:   snap,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	id, err := ulid.New(ulid.Timestamp(now), ulid.DefaultEntropy())
	if err != nil {
		return "", fmt.Errorf("failed to generate archive id: %w", err)
	}
	key := path.Join(a.feedPrefix(feed), id.String()+".json")

	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive %s: %w", key, err)
	}
	a.logger.Info("Snapshot archived", zap.String("feed", feed), zap.String("key", key), zap.Int("entities", doc.Count))

	if a.cfg.Retain > 0 {
		if err := a.Prune(ctx, feed, a.cfg.Retain); err != nil {
			a.logger.Warn("Failed to prune old archives", zap.String("feed", feed), zap.Error(err))
		}
	}
	return key, nil
}

// List returns the archives of feed, newest first.
func (a *Archiver) List(ctx context.Context, feed string) ([]Entry, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    a.feedPrefix(feed) + "/",
		Recursive: true,
	}

	var entries []Entry
	for obj := range a.client.ListObjects(ctx, a.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list archives: %w", obj.Err)
		}
		id, err := ulid.ParseStrict(strings.TrimSuffix(path.Base(obj.Key), ".json"))
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Key:        obj.Key,
			Size:       obj.Size,
			ArchivedAt: ulid.Time(id.Time()).UTC(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key > entries[j].Key
	})
	return entries, nil
}

// Load reads one archive back.
func (a *Archiver) Load(ctx context.Context, key string) (*Loaded, error) {
	if _, err := a.client.StatObject(ctx, a.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat archive %s: %w", key, err)
	}

	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive %s: %w", key, err)
	}

	// Numbers stay json.Number so large integer ids survive the round trip.
	var loaded Loaded
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&loaded); err != nil {
		return nil, fmt.Errorf("failed to decode archive %s: %w", key, err)
	}
	loaded.Key = key
	return &loaded, nil
}

// Prune removes all but the newest keep archives of feed.
func (a *Archiver) Prune(ctx context.Context, feed string, keep int) error {
	entries, err := a.List(ctx, feed)
	if err != nil {
		return err
	}
	if len(entries) <= keep {
		return nil
	}

	stale := entries[keep:]
	objects := make(chan minio.ObjectInfo, len(stale))
	for _, e := range stale {
		objects <- minio.ObjectInfo{Key: e.Key}
	}
	close(objects)

	var errs []error
	for rerr := range a.client.RemoveObjects(ctx, a.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("%s: %w", rerr.ObjectName, rerr.Err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.logger.Debug("Pruned archives", zap.String("feed", feed), zap.Int("removed", len(stale)))
	return nil
}

func (a *Archiver) feedPrefix(feed string) string {
	return path.Join(a.cfg.Prefix, feed)
}
