package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/proposalkeeper/internal/common"
	"github.com/dmitrijs2005/proposalkeeper/internal/logging"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/metrics"
)

// DefaultMaxSize is the upload limit used when none is configured.
const DefaultMaxSize int64 = 50 << 20

const maxBaseNameRunes = 100

var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
	".ppt":  {},
	".pptx": {},
	".hwp":  {},
	".hwpx": {},
}

// AllowedExtensions lists accepted document extensions, sorted.
func AllowedExtensions() []string {
	out := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(out)
	return out
}

// presigner is implemented by stores that can hand out direct download URLs.
type presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Manager enforces the upload rules and owns document naming.
type Manager struct {
	store      BlobStore
	maxSize    int64
	presignTTL time.Duration
	logger     logging.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewManager(store BlobStore, maxSize int64, logger logging.Logger, m *metrics.Metrics) *Manager {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Manager{
		store:      store,
		maxSize:    maxSize,
		presignTTL: 15 * time.Minute,
		logger:     logger.With("module", "attachments"),
		metrics:    m,
		now:        time.Now,
	}
}

func (m *Manager) MaxSize() int64 { return m.maxSize }

// Store validates the upload and writes it under a fresh unique name, which
// it returns.
func (m *Manager) Store(ctx context.Context, originalName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if _, ok := allowedExtensions[ext]; !ok {
		m.metrics.UploadRejected("unsupported_type")
		return "", fmt.Errorf("%w: %q, allowed: %s",
			common.ErrUnsupportedFileType, originalName, strings.Join(AllowedExtensions(), ", "))
	}

	size := int64(len(data))
	if size > m.maxSize {
		m.metrics.UploadRejected("too_large")
		return "", fmt.Errorf("%w: %s exceeds the %s limit",
			common.ErrFileTooLarge, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(m.maxSize)))
	}

	key, err := m.storedName(originalName, ext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrStorageFailure, err)
	}

	if err := m.store.Put(ctx, key, data); err != nil {
		m.logger.Error(ctx, "document write failed", "key", key, "error", err)
		return "", fmt.Errorf("%w: write document", common.ErrStorageFailure)
	}

	m.logger.Debug(ctx, "document stored", "key", key, "size", humanize.IBytes(uint64(size)))
	return key, nil
}

// Delete removes a stored document. Failures are logged and swallowed: a
// leftover blob is harmless, a failed user action is not.
func (m *Manager) Delete(ctx context.Context, storedName string) {
	if storedName == "" {
		return
	}
	if err := m.store.Delete(ctx, storedName); err != nil {
		m.logger.Warn(ctx, "document delete failed", "key", storedName, "error", err)
	}
}

// Open streams a stored document. A missing blob yields common.ErrorNotFound.
func (m *Manager) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	rc, err := m.store.Get(ctx, storedName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		m.logger.Error(ctx, "document read failed", "key", storedName, "error", err)
		return nil, fmt.Errorf("%w: read document", common.ErrStorageFailure)
	}
	return rc, nil
}

func (m *Manager) Exists(ctx context.Context, storedName string) bool {
	ok, err := m.store.Exists(ctx, storedName)
	if err != nil {
		m.logger.Warn(ctx, "document stat failed", "key", storedName, "error", err)
		return false
	}
	return ok
}

// DownloadURL returns a direct, time-limited URL when the store supports
// presigning; ok is false otherwise and the caller should stream via Open.
func (m *Manager) DownloadURL(ctx context.Context, storedName string) (url string, ok bool, err error) {
	p, can := m.store.(presigner)
	if !can {
		return "", false, nil
	}
	url, err = p.PresignGet(ctx, storedName, m.presignTTL)
	if err != nil {
		m.logger.Error(ctx, "presign failed", "key", storedName, "error", err)
		return "", false, fmt.Errorf("%w: presign document", common.ErrStorageFailure)
	}
	return url, true, nil
}

// storedName builds <base>_<utc timestamp with microseconds>_<random hex><ext>.
func (m *Manager) storedName(originalName, ext string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(strings.ReplaceAll(originalName, "\\", "/")), filepath.Ext(originalName))
	base = sanitizeBaseName(base)
	if base == "" {
		base = "document"
	}

	suffix, err := common.MakeRandHexString(3)
	if err != nil {
		return "", err
	}

	ts := m.now().UTC().Format("20060102150405.000000")
	return fmt.Sprintf("%s_%s_%s%s", base, ts, suffix, ext), nil
}

func sanitizeBaseName(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n >= maxBaseNameRunes {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		n++
	}
	return strings.Trim(b.String(), "_")
}
