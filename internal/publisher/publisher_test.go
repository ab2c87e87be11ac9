package publisher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/content"
)

type stubPublisher struct {
	calls int
	uri   string
	err   error
}

func (s *stubPublisher) Publish(context.Context, content.Record) (string, error) {
	s.calls++
	return s.uri, s.err
}

func record() content.Record {
	return content.Record{
		Name:  "Drop",
		Image: "https://example.com/drop.png",
		Attributes: []content.Attribute{
			{TraitType: "edition", Value: "first"},
		},
	}
}

func TestPublishOnceCallsPublisherExactlyOnce(t *testing.T) {
	stub := &stubPublisher{uri: " https://cdn.example.com/a.json "}
	uri, err := NewAdapter(stub, nil).PublishOnce(context.Background(), record())
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/a.json", uri)
	require.Equal(t, 1, stub.calls)
}

func TestPublishOnceFailuresArePublishErrors(t *testing.T) {
	invalid := record()
	invalid.Name = ""
	cases := []struct {
		name      string
		stub      *stubPublisher
		record    content.Record
		wantCalls int
		wantErr   error
	}{
		{"invalid record", &stubPublisher{uri: "https://x/y"}, invalid, 0, content.ErrInvalidRecord},
		{"publisher error", &stubPublisher{err: errors.New("upload refused")}, record(), 1, nil},
		{"empty uri", &stubPublisher{uri: "  "}, record(), 1, ErrEmptyURI},
		{"uri too long", &stubPublisher{uri: "https://x/" + strings.Repeat("a", 200)}, record(), 1, ErrURITooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAdapter(tc.stub, nil).PublishOnce(context.Background(), tc.record)
			require.ErrorIs(t, err, apperr.ErrPublish)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			}
			require.Equal(t, tc.wantCalls, tc.stub.calls)
		})
	}
}

func TestFilePublisherWritesCanonicalObject(t *testing.T) {
	dir := t.TempDir()
	pub, err := NewFile(dir, "")
	require.NoError(t, err)

	uri, err := pub.Publish(context.Background(), record())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"), uri)

	want, err := record().Canonical()
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dir, content.ObjectKey(want)))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFilePublisherUsesBaseURL(t *testing.T) {
	pub, err := NewFile(t.TempDir(), "http://localhost:8080/meta/")
	require.NoError(t, err)
	uri, err := pub.Publish(context.Background(), record())
	require.NoError(t, err)
	body, err := record().Canonical()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/meta/"+content.ObjectKey(body), uri)
}

// fakeS3 is a path-style bucket that remembers uploaded objects.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodHead:
		if _, ok := f.objects[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		f.puts++
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3PublisherUploadsContentAddressedObject(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing-config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "missing-credentials"))
	bucket := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(bucket)
	defer srv.Close()

	pub, err := NewS3(context.Background(), S3Config{
		Bucket:          "drops",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		Prefix:          "meta/",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)

	uri, err := pub.Publish(context.Background(), record())
	require.NoError(t, err)

	body, err := record().Canonical()
	require.NoError(t, err)
	key := "meta/" + content.ObjectKey(body)
	require.Equal(t, srv.URL+"/drops/"+key, uri)
	require.Equal(t, body, bucket.objects["/drops/"+key])

	again, err := pub.Publish(context.Background(), record())
	require.NoError(t, err)
	require.Equal(t, uri, again)
	require.Equal(t, 1, bucket.puts, "existing objects are not uploaded twice")
}

func TestS3PublisherRequiresBucketAndRegion(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{Region: "us-east-1"})
	require.Error(t, err)
	_, err = NewS3(context.Background(), S3Config{Bucket: "drops"})
	require.Error(t, err)
}

func TestGCSPublisherUploadsToBucket(t *testing.T) {
	var (
		mu      sync.Mutex
		uploads [][]byte
		paths   []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		uploads = append(uploads, body)
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"bucket":"drops","name":"object.json","size":"1"}`)
	}))
	defer srv.Close()

	pub, err := NewGCS(context.Background(), GCSConfig{
		Bucket:   "drops",
		Endpoint: srv.URL + "/storage/v1/",
	})
	require.NoError(t, err)
	defer func() { _ = pub.Close() }()

	uri, err := pub.Publish(context.Background(), record())
	require.NoError(t, err)

	body, err := record().Canonical()
	require.NoError(t, err)
	require.Equal(t, "https://storage.googleapis.com/drops/"+content.ObjectKey(body), uri)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, uploads, 1)
	require.Contains(t, paths[0], "/b/drops/o")
	require.Contains(t, string(uploads[0]), string(body))
}
