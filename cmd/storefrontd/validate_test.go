package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testStoreConfig = `{
	"bot_token": "123456:token",
	"store_name": "Test Store",
	"indexing_fields": ["name"],
	"filters": ["category"],
	"config_version": 1
}`

const testStoreProducts = `[{"name": "Dog Food", "category": "Pets", "price": 250}]`

const testStorePrompts = `{"not_found": "Nothing found."}`

func writeTestStore(t *testing.T, root, name string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"config.json":   testStoreConfig,
		"products.json": testStoreProducts,
		"prompts.json":  testStorePrompts,
	}
	for f, content := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// runValidateOn runs the validate command against root and returns its output.
func runValidateOn(t *testing.T, root string) (string, error) {
	t.Helper()
	oldRoot := validateStoresRoot
	validateStoresRoot = root
	defer func() { validateStoresRoot = oldRoot }()

	var out bytes.Buffer
	validateCmd.SetOut(&out)
	validateCmd.SetErr(&out)
	err := runValidate(validateCmd, nil)
	return out.String(), err
}

func TestValidateCmd_AllValid(t *testing.T) {
	root := t.TempDir()
	writeTestStore(t, root, "acme-pets")
	writeTestStore(t, root, "beta-books")

	output, err := runValidateOn(t, root)
	if err != nil {
		t.Fatalf("runValidate() error = %v", err)
	}
	if !strings.Contains(output, "2 valid, 0 invalid") {
		t.Errorf("output missing summary, got: %s", output)
	}
	for _, slug := range []string{"acme-pets", "beta-books"} {
		if !strings.Contains(output, slug) {
			t.Errorf("output missing store %s, got: %s", slug, output)
		}
	}
}

func TestValidateCmd_BrokenStore(t *testing.T) {
	root := t.TempDir()
	writeTestStore(t, root, "acme-pets")

	dir := filepath.Join(root, "broken")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}

	output, err := runValidateOn(t, root)
	if err == nil {
		t.Fatal("runValidate() should fail when a store is invalid")
	}
	if !strings.Contains(err.Error(), "1 store(s) failed validation") {
		t.Errorf("runValidate() error = %v, want failed validation count", err)
	}
	if !strings.Contains(output, "FAIL") {
		t.Errorf("output should flag the broken store, got: %s", output)
	}
	if !strings.Contains(output, "1 valid, 1 invalid") {
		t.Errorf("output missing summary, got: %s", output)
	}
}

func TestValidateCmd_SlugCollision(t *testing.T) {
	root := t.TempDir()
	writeTestStore(t, root, "Acme-Pets")
	writeTestStore(t, root, "acme-pets")

	output, err := runValidateOn(t, root)
	if err == nil {
		t.Fatal("runValidate() should fail on slug collision")
	}
	if !strings.Contains(output, "slug collides with Acme-Pets") {
		t.Errorf("output should name the colliding directory, got: %s", output)
	}
	if !strings.Contains(output, "1 valid, 1 invalid") {
		t.Errorf("output missing summary, got: %s", output)
	}
}

func TestValidateCmd_SkipsHiddenAndFiles(t *testing.T) {
	root := t.TempDir()
	writeTestStore(t, root, "acme-pets")
	writeTestStore(t, root, ".archived")
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("# stores"), 0o644); err != nil {
		t.Fatal(err)
	}

	output, err := runValidateOn(t, root)
	if err != nil {
		t.Fatalf("runValidate() error = %v", err)
	}
	if !strings.Contains(output, "1 valid, 0 invalid") {
		t.Errorf("hidden directories and plain files should be skipped, got: %s", output)
	}
}

func TestValidateCmd_MissingRoot(t *testing.T) {
	_, err := runValidateOn(t, filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("runValidate() should fail for a missing root")
	}
	if !strings.Contains(err.Error(), "failed to read stores root") {
		t.Errorf("runValidate() error = %v", err)
	}
}
