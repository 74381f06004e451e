package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsr-backend/internal/queue"
	localstore "dsr-backend/internal/shared/storage/object/local"
	s3store "dsr-backend/internal/shared/storage/object/s3"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestService(t *testing.T) (*Service, string, *MemoryRepo) {
	t.Helper()
	root := t.TempDir()
	store, err := localstore.New(root)
	require.NoError(t, err)
	repo := NewMemoryRepo()
	return NewService(store, repo, DefaultMaxBytes), store.Root(), repo
}

func upload(t *testing.T, svc *Service, typ, name, mime string, data []byte) (StoredFile, error) {
	t.Helper()
	return svc.Upload(context.Background(), UploadInput{
		Type:         typ,
		OriginalName: name,
		MimeType:     mime,
		Size:         int64(len(data)),
		Body:         bytes.NewReader(data),
	})
}

func TestUploadRequiresFile(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Upload(context.Background(), UploadInput{Type: "employee", MimeType: "image/png"})
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestUploadAllowListDependsOnCategory(t *testing.T) {
	svc, root, _ := newTestService(t)
	pdf := []byte("%PDF-1.4\n%test\n")

	_, err := upload(t, svc, "employee", "report.pdf", "application/pdf", pdf)
	require.ErrorIs(t, err, ErrUnsupportedType)
	var typeErr *UnsupportedTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Contains(t, err.Error(), "JPEG, PNG, GIF and WebP")

	entries, _ := os.ReadDir(filepath.Join(root, "employees"))
	assert.Empty(t, entries, "rejected upload must not write anything")

	rec, err := upload(t, svc, "statement", "report.pdf", "application/pdf", pdf)
	require.NoError(t, err)
	assert.Equal(t, CategoryStatement, rec.Category)
	assert.True(t, strings.HasPrefix(rec.RelativePath, "statements/statement-"))
}

func TestUploadSizeCeiling(t *testing.T) {
	svc, _, _ := newTestService(t)

	exact := bytes.Repeat([]byte{0xAB}, int(DefaultMaxBytes))
	rec, err := upload(t, svc, "document", "scan.png", "image/png", exact)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxBytes, rec.SizeBytes)

	over := bytes.Repeat([]byte{0xAB}, int(DefaultMaxBytes)+1)
	_, err = upload(t, svc, "document", "scan.png", "image/png", over)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestUploadRejectsOversizedStreamWithUnknownSize(t *testing.T) {
	svc, root, repo := newTestService(t)
	svc.MaxBytes = 16

	_, err := svc.Upload(context.Background(), UploadInput{
		Type:         "misc",
		OriginalName: "a.gif",
		MimeType:     "image/gif",
		Size:         -1,
		Body:         bytes.NewReader(bytes.Repeat([]byte("x"), 17)),
	})
	require.ErrorIs(t, err, ErrTooLarge)

	entries, _ := os.ReadDir(filepath.Join(root, "misc"))
	assert.Empty(t, entries, "oversized stream must be removed")
	list, _ := repo.List(context.Background(), ListFilter{})
	assert.Empty(t, list)
}

func TestUploadRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	data := append(append([]byte{}, pngHeader...), []byte("payload")...)

	rec, err := upload(t, svc, "document", "Passport.PNG", "image/png", data)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^documents/document-[0-9a-f]{32}\.png$`), rec.RelativePath)
	assert.Equal(t, "image/png", rec.MimeType)
	assert.Equal(t, "image/png", rec.DetectedMimeType)
	assert.Equal(t, "Passport.PNG", rec.OriginalName)
	assert.Equal(t, "local", rec.StorageProvider)

	dl, err := svc.Open(context.Background(), rec.RelativePath)
	require.NoError(t, err)
	defer dl.Body.Close()
	got, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "image/png", dl.ContentType)
	assert.Equal(t, int64(len(data)), dl.Size)
}

func TestOpenStripsLegacyPrefix(t *testing.T) {
	svc, _, _ := newTestService(t)
	rec, err := upload(t, svc, "employee", "a.jpg", "image/jpeg", []byte("jpegbytes"))
	require.NoError(t, err)

	for _, p := range []string{"uploads/" + rec.RelativePath, "/" + rec.RelativePath, "/uploads/" + rec.RelativePath} {
		dl, err := svc.Open(context.Background(), p)
		require.NoError(t, err, p)
		dl.Body.Close()
	}
}

func TestUploadUniqueNamesUnderConcurrency(t *testing.T) {
	svc, _, _ := newTestService(t)
	const n = 32

	var wg sync.WaitGroup
	paths := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := svc.Upload(context.Background(), UploadInput{
				Type:         "employee",
				OriginalName: "same.png",
				MimeType:     "image/png",
				Size:         int64(len(pngHeader)),
				Body:         bytes.NewReader(pngHeader),
			})
			paths[i], errs[i] = rec.RelativePath, err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		_, dup := seen[paths[i]]
		require.False(t, dup, "duplicate path %s", paths[i])
		seen[paths[i]] = struct{}{}

		dl, err := svc.Open(context.Background(), paths[i])
		require.NoError(t, err)
		dl.Body.Close()
	}
}

func TestUploadUnknownTypeFallsBackToMisc(t *testing.T) {
	svc, root, _ := newTestService(t)

	rec, err := upload(t, svc, "detainee", "mugshot.webp", "image/webp", []byte("RIFFxxxxWEBP"))
	require.NoError(t, err)
	assert.Equal(t, CategoryMisc, rec.Category)
	assert.True(t, strings.HasPrefix(rec.RelativePath, "misc/detainee-"))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(rec.RelativePath)))
	assert.NoError(t, err)
}

func TestUploadSanitizesTypeAndExtension(t *testing.T) {
	svc, _, _ := newTestService(t)

	rec, err := upload(t, svc, "../../Evil Type", "x.p$g", "image/png", pngHeader)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^misc/eviltype-[0-9a-f]{32}$`), rec.RelativePath)
}

func TestPathConfinement(t *testing.T) {
	svc, root, _ := newTestService(t)
	outside := filepath.Join(filepath.Dir(root), "outside-secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	t.Cleanup(func() { os.Remove(outside) })

	attacks := []string{
		"../../etc/passwd",
		"../outside-secret.txt",
		"employees/../../outside-secret.txt",
		"uploads/../../outside-secret.txt",
		"//etc/passwd",
		"..\\outside-secret.txt",
	}
	for _, p := range attacks {
		_, err := svc.Open(context.Background(), p)
		assert.ErrorIs(t, err, ErrAccessDenied, "open %q", p)

		_, err = svc.Delete(context.Background(), p)
		assert.ErrorIs(t, err, ErrInvalidPath, "delete %q", p)
	}
	_, err := svc.Delete(context.Background(), "/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = os.Stat(outside)
	assert.NoError(t, err, "file outside root must survive")
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc, _, repo := newTestService(t)
	rec, err := upload(t, svc, "seizure", "knife.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)

	res, err := svc.Delete(context.Background(), rec.RelativePath)
	require.NoError(t, err)
	assert.True(t, res.Existed)

	res, err = svc.Delete(context.Background(), rec.RelativePath)
	require.NoError(t, err)
	assert.False(t, res.Existed)

	_, err = svc.Open(context.Background(), rec.RelativePath)
	assert.ErrorIs(t, err, ErrNotFound)

	live, _ := repo.List(context.Background(), ListFilter{})
	assert.Empty(t, live, "ledger row should be marked deleted")
}

func TestDeleteRejectsEmptyAndDirectories(t *testing.T) {
	svc, root, _ := newTestService(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "employees"), 0o755))

	for _, p := range []string{"", "   ", "uploads/", "employees", "employees/.."} {
		_, err := svc.Delete(context.Background(), p)
		assert.ErrorIs(t, err, ErrInvalidPath, "delete %q", p)
	}
	_, err := os.Stat(filepath.Join(root, "employees"))
	assert.NoError(t, err)
}

// emptyBucket answers every lookup with NotFound and counts the calls.
type emptyBucket struct{ calls int }

func (b *emptyBucket) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b.calls++
	return &s3.PutObjectOutput{}, nil
}

func (b *emptyBucket) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.calls++
	return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
}

func (b *emptyBucket) HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b.calls++
	return nil, &smithy.GenericAPIError{Code: "NotFound"}
}

func (b *emptyBucket) DeleteObject(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	b.calls++
	return &s3.DeleteObjectOutput{}, nil
}

func TestDeleteRejectsCategoryDirectoriesOnEveryBackend(t *testing.T) {
	local, _, _ := newTestService(t)
	bucket := &emptyBucket{}
	remote := NewService(s3store.NewWithClient(bucket, s3store.Config{Bucket: "dsr", Prefix: "uploads"}), NewMemoryRepo(), DefaultMaxBytes)

	for name, svc := range map[string]*Service{"local": local, "s3": remote} {
		for _, p := range []string{"employees", "employees/", "/uploads/statements/", "./misc"} {
			_, err := svc.Delete(context.Background(), p)
			assert.ErrorIs(t, err, ErrInvalidPath, "%s delete %q", name, p)
		}
		res, err := svc.Delete(context.Background(), "employees/missing.png")
		require.NoError(t, err, name)
		assert.False(t, res.Existed, name)
	}
	assert.Equal(t, 1, bucket.calls, "only the missing file should reach the bucket")
}

func TestOpenMissingAndDirectory(t *testing.T) {
	svc, root, _ := newTestService(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "documents"), 0o755))

	for _, p := range []string{"documents/nope.png", "documents", ""} {
		_, err := svc.Open(context.Background(), p)
		assert.ErrorIs(t, err, ErrNotFound, "open %q", p)
	}
}

type failingRepo struct{ MemoryRepo }

func (f *failingRepo) Create(context.Context, StoredFile) error { return errors.New("db down") }

func TestUploadLedgerFailureRemovesFile(t *testing.T) {
	root := t.TempDir()
	store, err := localstore.New(root)
	require.NoError(t, err)
	svc := NewService(store, &failingRepo{}, DefaultMaxBytes)

	_, err = upload(t, svc, "employee", "a.png", "image/png", pngHeader)
	require.ErrorIs(t, err, ErrStorage)

	entries, _ := os.ReadDir(filepath.Join(store.Root(), "employees"))
	assert.Empty(t, entries)
}

func TestListNewestFirst(t *testing.T) {
	svc, _, _ := newTestService(t)
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := upload(t, svc, "employee", "a.png", "image/png", pngHeader)
	require.NoError(t, err)
	second, err := upload(t, svc, "statement", "b.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)

	all, err := svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)

	statements, err := svc.List(context.Background(), ListFilter{Category: CategoryStatement})
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, second.ID, statements[0].ID)
}

type recordingQueue struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (q *recordingQueue) Send(_ context.Context, evt queue.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, evt)
	return q.err
}

func TestUploadAndDeletePublishEvents(t *testing.T) {
	svc, _, _ := newTestService(t)
	q := &recordingQueue{}
	svc.Events = q

	rec, err := svc.Upload(context.Background(), UploadInput{
		Type:         "employee",
		OriginalName: "a.png",
		MimeType:     "image/png",
		Size:         int64(len(pngHeader)),
		Body:         bytes.NewReader(pngHeader),
		UploadedBy:   "u-1",
	})
	require.NoError(t, err)
	_, err = svc.Delete(context.Background(), rec.RelativePath)
	require.NoError(t, err)
	_, err = svc.Delete(context.Background(), rec.RelativePath)
	require.NoError(t, err)

	require.Len(t, q.events, 2, "an absent file must not produce a delete event")
	assert.Equal(t, queue.EventFileStored, q.events[0].Type)
	assert.Equal(t, rec.RelativePath, q.events[0].FilePath)
	assert.Equal(t, "u-1", q.events[0].UploadedBy)
	assert.Equal(t, int64(len(pngHeader)), q.events[0].FileSize)
	assert.NotEmpty(t, q.events[0].OccurredAt)
	assert.Equal(t, queue.EventFileDeleted, q.events[1].Type)
	assert.Equal(t, "employee", q.events[1].Category)
}

func TestEventFailureDoesNotFailUpload(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.Events = &recordingQueue{err: errors.New("queue unavailable")}

	_, err := upload(t, svc, "misc", "a.gif", "image/gif", []byte("GIF89a"))
	assert.NoError(t, err)
}
