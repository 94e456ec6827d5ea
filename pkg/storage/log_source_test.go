package storage_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "extjob/pkg/storage"
)

func TestParseS3Reference(t *testing.T) {
	tests := []struct {
		ref    string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://builds/2024/01/02/run.log", "builds", "2024/01/02/run.log", true},
		{"s3://builds/run.log", "builds", "run.log", true},
		{"s3://builds", "", "", false},
		{"s3://builds/", "", "", false},
		{"s3:///run.log", "", "", false},
		{"/tmp/run.log", "", "", false},
	}

	for _, tt := range tests {
		bucket, key, ok := ParseS3Reference(tt.ref)
		assert.Equal(t, tt.ok, ok, tt.ref)
		assert.Equal(t, tt.bucket, bucket, tt.ref)
		assert.Equal(t, tt.key, key, tt.ref)
	}
}

func TestFileLogSource_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	require.NoError(t, os.WriteFile(path, []byte("build ok\n"), 0644))

	data, err := FileLogSource{}.Retrieve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "build ok\n", string(data))
}

func TestFileLogSource_ReadsStdin(t *testing.T) {
	src := FileLogSource{Stdin: strings.NewReader("from a pipe")}

	data, err := src.Retrieve(context.Background(), "-")
	require.NoError(t, err)
	assert.Equal(t, "from a pipe", string(data))
}

func TestFileLogSource_MissingFile(t *testing.T) {
	_, err := FileLogSource{}.Retrieve(context.Background(), filepath.Join(t.TempDir(), "nope.log"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}

type fakeSource struct {
	refs []string
}

func (f *fakeSource) Retrieve(_ context.Context, ref string) ([]byte, error) {
	f.refs = append(f.refs, ref)
	return []byte("from s3"), nil
}

func TestRouter_DispatchesOnScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.log")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0644))

	fake := &fakeSource{}
	builds := 0
	r := &Router{S3: func(context.Context) (LogSource, error) {
		builds++
		return fake, nil
	}}

	data, err := r.Retrieve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
	assert.Zero(t, builds)

	for i := 0; i < 2; i++ {
		data, err = r.Retrieve(context.Background(), "s3://bucket/key.log")
		require.NoError(t, err)
		assert.Equal(t, "from s3", string(data))
	}
	assert.Equal(t, 1, builds)
	assert.Equal(t, []string{"s3://bucket/key.log", "s3://bucket/key.log"}, fake.refs)
}

func TestRouter_S3FactoryError(t *testing.T) {
	boom := errors.New("no credentials")
	r := &Router{S3: func(context.Context) (LogSource, error) { return nil, boom }}

	_, err := r.Retrieve(context.Background(), "s3://bucket/key")
	assert.ErrorIs(t, err, boom)
}

func TestRouter_NoS3Configured(t *testing.T) {
	_, err := (&Router{}).Retrieve(context.Background(), "s3://bucket/key")
	assert.Error(t, err)
}

// isolateAWSEnv keeps the developer's shared AWS config out of the test.
func isolateAWSEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
}

func TestS3LogSource_Retrieve(t *testing.T) {
	isolateAWSEnv(t)

	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		if r.URL.Path != "/builds/nightly/42.log" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("This test passed!\nYay!\n"))
	}))
	t.Cleanup(srv.Close)

	src, err := NewS3LogSource(context.Background(), S3Config{
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "k",
		SecretAccessKey: "s",
	})
	require.NoError(t, err)

	data, err := src.Retrieve(context.Background(), "s3://builds/nightly/42.log")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/builds/nightly/42.log", gotPath)
	assert.Equal(t, "This test passed!\nYay!\n", string(data))
}

func TestS3LogSource_RejectsNonS3Reference(t *testing.T) {
	isolateAWSEnv(t)
	src, err := NewS3LogSource(context.Background(), S3Config{
		Region:          "us-east-1",
		Endpoint:        "http://127.0.0.1:1",
		AccessKeyID:     "k",
		SecretAccessKey: "s",
	})
	require.NoError(t, err)

	_, err = src.Retrieve(context.Background(), "/tmp/run.log")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an s3 reference")
}
