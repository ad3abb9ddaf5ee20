//go:build cgo

package embeddings

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestArchiveFor(t *testing.T) {
	tests := []struct {
		goos   string
		goarch string
		want   string
	}{
		{"linux", "amd64", "linux-x64"},
		{"linux", "arm64", "linux-aarch64"},
		{"darwin", "amd64", "osx-x86_64"},
		{"darwin", "arm64", "osx-arm64"},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			got, err := archiveFor(tt.goos, tt.goarch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArchiveFor_Unsupported(t *testing.T) {
	_, err := archiveFor("windows", "amd64")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	assert.Contains(t, err.Error(), "windows/amd64")
}

func TestLibraryNameFor(t *testing.T) {
	assert.Equal(t, "libonnxruntime.so", libraryNameFor("linux"))
	assert.Equal(t, "libonnxruntime.dylib", libraryNameFor("darwin"))
}

func TestBuildDownloadURL(t *testing.T) {
	url := buildDownloadURL("1.23.0", "linux-x64")
	assert.Equal(t, "https://github.com/microsoft/onnxruntime/releases/download/v1.23.0/onnxruntime-linux-x64-1.23.0.tgz", url)
}

func TestCurrentPlatformSupported(t *testing.T) {
	if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
		_, err := archiveFor(runtime.GOOS, runtime.GOARCH)
		assert.NoError(t, err)
	}
}

// buildRuntimeArchive writes a minimal release tarball: a versioned
// library file, the unversioned symlink, and a file outside lib/.
func buildRuntimeArchive(t *testing.T, archive, version, libName string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	prefix := "onnxruntime-" + archive + "-" + version + "/"
	content := []byte("not a real library")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     prefix + "lib/" + libName + "." + version,
		Mode:     0644,
		Size:     int64(len(content)),
		Typeflag: tar.TypeReg,
	}))
	_, err := tw.Write(content)
	require.NoError(t, err)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     prefix + "lib/" + libName,
		Linkname: libName + "." + version,
		Typeflag: tar.TypeSymlink,
	}))

	readme := []byte("release notes")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     prefix + "README.md",
		Mode:     0644,
		Size:     int64(len(readme)),
		Typeflag: tar.TypeReg,
	}))
	_, err = tw.Write(readme)
	require.NoError(t, err)

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return &buf
}

func TestExtractRuntimeLibs(t *testing.T) {
	dir := t.TempDir()
	libName := libraryNameFor(runtime.GOOS)
	buf := buildRuntimeArchive(t, "linux-x64", "1.23.0", libName)

	require.NoError(t, extractRuntimeLibs(buf, dir, "1.23.0", "linux-x64"))

	_, err := os.Stat(filepath.Join(dir, libName+".1.23.0"))
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(dir, libName))
	require.NoError(t, err)
	assert.Equal(t, libName+".1.23.0", target)

	// Entries outside lib/ stay in the archive.
	_, err = os.Stat(filepath.Join(dir, "README.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractRuntimeLibs_MissingLibrary(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	err := extractRuntimeLibs(&buf, t.TempDir(), "1.23.0", "linux-x64")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in archive")
}

func TestEnsureONNXRuntime_UsesExistingPath(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, libraryNameFor(runtime.GOOS))
	require.NoError(t, os.WriteFile(libPath, []byte("stub"), 0644))

	t.Setenv("ONNX_PATH", libPath)

	got, err := EnsureONNXRuntime(context.Background(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, libPath, got)
	assert.Equal(t, libPath, os.Getenv("ONNX_PATH"))
}
