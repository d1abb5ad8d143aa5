package main

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"postboard/internal/config"
)

var (
	configKeyBullet = regexp.MustCompile("^- `([a-z0-9_.]+)`")
	envKeyPattern   = regexp.MustCompile(`POSTBOARD_[A-Z0-9_]+`)
)

func TestReadmeDocumentsEveryConfigKey(t *testing.T) {
	section := readmeSection(t, "Supported config keys:", "Runtime environment:")

	var documented []string
	for _, line := range strings.Split(section, "\n") {
		if match := configKeyBullet.FindStringSubmatch(strings.TrimSpace(line)); match != nil {
			documented = append(documented, match[1])
		}
	}

	want := sortedCopy(config.AllowedKeys())
	if diff := cmp.Diff(want, sortedCopy(documented)); diff != "" {
		t.Fatalf("README config keys out of date (-allowed +documented):\n%s", diff)
	}
}

func TestReadmeDocumentsEveryCommand(t *testing.T) {
	section := readmeSection(t, "## Commands", "Global flags:")

	var documented []string
	for _, line := range strings.Split(section, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "postboard" {
			continue
		}
		var path []string
		for _, token := range fields[1:] {
			if strings.ContainsAny(token[:1], "#<[-") {
				break
			}
			path = append(path, token)
		}
		documented = append(documented, strings.Join(path, " "))
	}

	cfg := config.Default()
	want := leafCommandPaths(newRootCmd(&cfg))
	if diff := cmp.Diff(want, sortedCopy(documented)); diff != "" {
		t.Fatalf("README command list out of date (-cli +documented):\n%s", diff)
	}
}

func TestReadmeDocumentsRuntimeEnv(t *testing.T) {
	readme := loadReadme(t)
	documented := envKeyPattern.FindAllString(readme, -1)

	for _, key := range []string{
		logLevelEnvKey,
		"POSTBOARD_API_URL",
		"POSTBOARD_DB",
		"POSTBOARD_DB_DRIVER",
		"POSTBOARD_DATABASE_URL",
		"POSTBOARD_BLOB_BACKEND",
		"POSTBOARD_BLOB_ROOT",
		"POSTBOARD_S3_ENDPOINT",
		"POSTBOARD_S3_BUCKET",
		"POSTBOARD_IMAGE_MAX_BYTES",
		"POSTBOARD_IMAGE_ALLOWED_MEDIA_TYPES",
		"POSTBOARD_HTTP_TIMEOUT",
		"POSTBOARD_CONFIG_DIR",
		"POSTBOARD_TRUST_PROJECT_CONFIG",
		"POSTBOARD_ALLOW_REMOTE",
	} {
		if !slices.Contains(documented, key) {
			t.Errorf("README does not mention %s", key)
		}
	}
}

func loadReadme(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(file), "..", "..", "README.md"))
	if err != nil {
		t.Fatalf("read README.md: %v", err)
	}
	return string(data)
}

// readmeSection returns the README text between the start and end markers.
func readmeSection(t *testing.T, start, end string) string {
	t.Helper()
	readme := loadReadme(t)
	_, rest, ok := strings.Cut(readme, start)
	if !ok {
		t.Fatalf("README has no %q section", start)
	}
	section, _, ok := strings.Cut(rest, end)
	if !ok {
		t.Fatalf("README section %q is not followed by %q", start, end)
	}
	return section
}

func leafCommandPaths(root *cobra.Command) []string {
	var paths []string
	var walk func(cmd *cobra.Command, prefix []string)
	walk = func(cmd *cobra.Command, prefix []string) {
		children := visibleChildren(cmd)
		if len(children) == 0 && len(prefix) > 0 {
			paths = append(paths, strings.Join(prefix, " "))
		}
		for _, child := range children {
			walk(child, append(slices.Clone(prefix), child.Name()))
		}
	}
	walk(root, nil)
	return sortedCopy(paths)
}

func visibleChildren(cmd *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, child := range cmd.Commands() {
		if child.Hidden || child.Name() == "help" || child.Name() == "completion" {
			continue
		}
		out = append(out, child)
	}
	return out
}

func sortedCopy(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
