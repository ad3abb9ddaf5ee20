//go:build cgo

package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// DefaultONNXRuntimeVersion is the ONNX runtime release matching the
// onnxruntime_go binding in go.mod. Bump both together.
const DefaultONNXRuntimeVersion = "1.23.0"

// ErrUnsupportedPlatform indicates the current OS/arch has no ONNX
// runtime release.
var ErrUnsupportedPlatform = fmt.Errorf("unsupported platform")

// onnxArchives maps GOOS/GOARCH to upstream release archive names.
var onnxArchives = map[string]string{
	"linux/amd64":  "linux-x64",
	"linux/arm64":  "linux-aarch64",
	"darwin/amd64": "osx-x86_64",
	"darwin/arm64": "osx-arm64",
}

func archiveFor(goos, goarch string) (string, error) {
	archive, ok := onnxArchives[goos+"/"+goarch]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	return archive, nil
}

func libraryNameFor(goos string) string {
	if goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

// managedInstallDir is where the daemon keeps a runtime it downloaded
// itself, as opposed to one pointed at via ONNX_PATH.
func managedInstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "storefrontd", "lib")
}

// GetONNXLibraryPath resolves the ONNX runtime library: the ONNX_PATH
// environment variable wins, then the managed install under
// ~/.config/storefrontd/lib/. Returns "" when neither exists.
func GetONNXLibraryPath() string {
	if envPath := os.Getenv("ONNX_PATH"); envPath != "" {
		return envPath
	}

	managed := filepath.Join(managedInstallDir(), libraryNameFor(runtime.GOOS))
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

// setONNXPathEnv exports the library location for fastembed-go, which
// reads ONNX_PATH at session init. A var so tests can intercept it.
var setONNXPathEnv = func(path string) error {
	return os.Setenv("ONNX_PATH", path)
}

// EnsureONNXRuntime makes the ONNX runtime available, downloading it on
// first run, and exports its location through ONNX_PATH. Returns the
// path to the library file.
func EnsureONNXRuntime(ctx context.Context, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path := GetONNXLibraryPath(); path != "" {
		if err := setONNXPathEnv(path); err != nil {
			return "", fmt.Errorf("setting ONNX_PATH: %w", err)
		}
		return path, nil
	}

	logger.Info("ONNX runtime not found, downloading",
		zap.String("version", DefaultONNXRuntimeVersion),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))

	if err := DownloadONNXRuntime(ctx, ""); err != nil {
		return "", fmt.Errorf("failed to download ONNX runtime: %w (run 'storefrontd init' to install manually, or set ONNX_PATH)", err)
	}

	path := GetONNXLibraryPath()
	if path == "" {
		return "", fmt.Errorf("ONNX runtime download completed but library not found")
	}

	if err := setONNXPathEnv(path); err != nil {
		return "", fmt.Errorf("setting ONNX_PATH: %w", err)
	}

	logger.Info("ONNX runtime installed", zap.String("path", path))
	return path, nil
}

const onnxReleaseURLTemplate = "https://github.com/microsoft/onnxruntime/releases/download/v%s/onnxruntime-%s-%s.tgz"

func buildDownloadURL(version, platform string) string {
	return fmt.Sprintf(onnxReleaseURLTemplate, version, platform, version)
}

// DownloadONNXRuntime fetches the runtime release for the current
// platform into the managed install dir. An empty version means
// DefaultONNXRuntimeVersion.
func DownloadONNXRuntime(ctx context.Context, version string) error {
	if version == "" {
		version = DefaultONNXRuntimeVersion
	}

	archive, err := archiveFor(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}

	destDir := managedInstallDir()
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, buildDownloadURL(version, archive), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading ONNX runtime: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	if err := extractRuntimeLibs(resp.Body, destDir, version, archive); err != nil {
		return fmt.Errorf("extracting archive: %w", err)
	}
	return nil
}

// extractRuntimeLibs pulls the lib/ entries out of the release tarball.
// The archive carries the shared library plus version-suffixed symlinks;
// all of lib/ lands flat in destDir.
func extractRuntimeLibs(r io.Reader, destDir, version, archive string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	libPrefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", archive, version)
	libName := libraryNameFor(runtime.GOOS)

	tr := tar.NewReader(gzr)
	var foundMainLib bool
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if !strings.HasPrefix(name, libPrefix) || header.Typeflag == tar.TypeDir {
			continue
		}

		filename := filepath.Base(name)
		isLib, err := extractEntry(tr, header, filepath.Join(destDir, filename), libName)
		if err != nil {
			return err
		}
		if isLib {
			foundMainLib = true
		}
	}

	if !foundMainLib {
		return fmt.Errorf("library %s not found in archive", libName)
	}
	return nil
}

// extractEntry writes one tar entry to destPath and reports whether it
// provides the main shared library.
func extractEntry(tr *tar.Reader, header *tar.Header, destPath, libName string) (bool, error) {
	filename := filepath.Base(destPath)

	if header.Typeflag == tar.TypeSymlink {
		os.Remove(destPath)
		if err := os.Symlink(header.Linkname, destPath); err != nil {
			// The target file is also in the archive, so a failed
			// symlink is not fatal.
			return false, nil
		}
		return filename == libName, nil
	}

	outFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return false, fmt.Errorf("creating file %s: %w", filename, err)
	}
	if _, err := io.Copy(outFile, tr); err != nil {
		outFile.Close()
		return false, fmt.Errorf("writing file %s: %w", filename, err)
	}
	outFile.Close()

	return filename == libName || strings.HasPrefix(filename, libName+"."), nil
}
