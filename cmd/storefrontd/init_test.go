//go:build cgo

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func findInitCmd(t *testing.T) *cobra.Command {
	t.Helper()
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "init" {
			return cmd
		}
	}
	t.Fatal("init command not found in rootCmd")
	return nil
}

func TestInitCmd_Help(t *testing.T) {
	cmd := findInitCmd(t)

	if cmd.Short == "" {
		t.Error("init command should have Short description")
	}
	if cmd.Long == "" {
		t.Error("init command should have Long description")
	}

	// The Long description names the ONNX runtime and its install location
	if !strings.Contains(strings.ToLower(cmd.Long), "onnx") {
		t.Error("init command Long description should mention ONNX")
	}
	if !strings.Contains(cmd.Long, ".config/storefrontd/lib") {
		t.Error("init command Long description should name the install directory")
	}
}

func TestInitCmd_ForceFlag(t *testing.T) {
	cmd := findInitCmd(t)

	if cmd.Flags().Lookup("force") == nil {
		t.Error("init command should have --force flag")
	}
}

func TestInitCmd_AlreadyInstalled(t *testing.T) {
	tmpDir := t.TempDir()
	libPath := filepath.Join(tmpDir, "libonnxruntime.so")
	if err := os.WriteFile(libPath, []byte("fake lib"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ONNX_PATH", libPath)

	cmd := findInitCmd(t)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	// Without --force the existing install short-circuits the download
	if err := cmd.RunE(cmd, []string{}); err != nil {
		t.Errorf("init command failed: %v", err)
	}

	output := out.String()
	if !strings.Contains(strings.ToLower(output), "already") {
		t.Errorf("output should indicate ONNX is already installed, got: %s", output)
	}
	if !strings.Contains(output, libPath) {
		t.Errorf("output should name the installed path, got: %s", output)
	}
}
