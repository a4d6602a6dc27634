// Package artifact moves generated harness sources between the submit and
// judge services. Small sources travel inline in the job; larger ones are
// zstd compressed into object storage and referenced by key and digest.
package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"

	"ojcore/internal/common/storage"
	"ojcore/internal/judge/model"
	appErr "ojcore/pkg/errors"
)

const (
	defaultInlineLimit = 64 * 1024
	defaultMaxBytes    = 8 << 20
	contentType        = "application/zstd"
)

// Config controls the inline threshold and object layout.
type Config struct {
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	InlineLimit int    `yaml:"inlineLimit"`
	MaxBytes    int64  `yaml:"maxBytes"`
}

// Store attaches harness sources to jobs and resolves them back.
type Store struct {
	storage storage.ObjectStorage
	cfg     Config
}

// NewStore creates a store. A nil storage keeps every harness inline.
func NewStore(objectStorage storage.ObjectStorage, cfg Config) *Store {
	if cfg.InlineLimit <= 0 {
		cfg.InlineLimit = defaultInlineLimit
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "harness"
	}
	return &Store{storage: objectStorage, cfg: cfg}
}

// Attach sets either HarnessSource or HarnessRef on job.
func (s *Store) Attach(ctx context.Context, job *model.JudgeJob, source string) error {
	job.HarnessSource = ""
	job.HarnessRef = nil
	if len(source) <= s.cfg.InlineLimit || s.storage == nil {
		job.HarnessSource = source
		return nil
	}

	payload, err := compress([]byte(source))
	if err != nil {
		return err
	}
	sum := sha256.Sum256(payload)
	digest := hex.EncodeToString(sum[:])
	key := fmt.Sprintf("%s/%s/%d-%s.zst", strings.TrimSuffix(s.cfg.Prefix, "/"), job.SubmissionID, job.Attempt, digest[:16])
	if err := s.storage.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(payload), int64(len(payload)), contentType); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "upload harness failed")
	}
	job.HarnessRef = &model.HarnessRef{
		Bucket: s.cfg.Bucket,
		Key:    key,
		SHA256: digest,
		Size:   int64(len(payload)),
	}
	return nil
}

// Fetch returns the harness source of job, verifying the digest of
// offloaded artifacts.
func (s *Store) Fetch(ctx context.Context, job model.JudgeJob) (string, error) {
	if job.HarnessRef == nil {
		if job.HarnessSource == "" {
			return "", appErr.ValidationError("harness", "required")
		}
		return job.HarnessSource, nil
	}
	if s.storage == nil {
		return "", appErr.New(appErr.StorageError).WithMessage("object storage is not configured")
	}
	ref := job.HarnessRef
	bucket := ref.Bucket
	if bucket == "" {
		bucket = s.cfg.Bucket
	}
	reader, err := s.storage.GetObject(ctx, bucket, ref.Key)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "download harness failed")
	}
	defer reader.Close()

	hasher := sha256.New()
	payload, err := io.ReadAll(io.TeeReader(io.LimitReader(reader, s.cfg.MaxBytes+1), hasher))
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "read harness failed")
	}
	if int64(len(payload)) > s.cfg.MaxBytes {
		return "", appErr.New(appErr.ArtifactCorrupted).WithMessage("harness artifact too large")
	}
	if ref.SHA256 != "" {
		actual := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(actual, ref.SHA256) {
			return "", appErr.New(appErr.ArtifactCorrupted).WithMessage("harness hash mismatch")
		}
	}
	source, err := decompress(payload, s.cfg.MaxBytes)
	if err != nil {
		return "", err
	}
	return string(source), nil
}

// Remove deletes an offloaded harness once its result has landed.
func (s *Store) Remove(ctx context.Context, ref *model.HarnessRef) error {
	if ref == nil || s.storage == nil {
		return nil
	}
	bucket := ref.Bucket
	if bucket == "" {
		bucket = s.cfg.Bucket
	}
	if err := s.storage.RemoveObject(ctx, bucket, ref.Key); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "remove harness failed")
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "create zstd writer failed")
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return nil, appErr.Wrapf(err, appErr.StorageError, "compress harness failed")
	}
	if err := enc.Close(); err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "compress harness failed")
	}
	return buf.Bytes(), nil
}

func decompress(payload []byte, maxBytes int64) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(payload), zstd.WithDecoderMaxMemory(uint64(maxBytes)))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ArtifactCorrupted, "create zstd reader failed")
	}
	defer dec.Close()
	out, err := io.ReadAll(io.LimitReader(dec, maxBytes+1))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ArtifactCorrupted, "decompress harness failed")
	}
	if int64(len(out)) > maxBytes {
		return nil, appErr.New(appErr.ArtifactCorrupted).WithMessage("harness source too large")
	}
	return out, nil
}
