package lov

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
)

const levelsYAML = `
name: levels
items:
  - value: "3"
    label: Senior
    order: 3
  - value: "1"
    label: Junior
    order: 1
  - value: "2"
    order: 2
`

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()

	c, err := LoadCatalogFile(writeFile(t, dir, "levels.yaml", levelsYAML))
	require.NoError(t, err)
	assert.Equal(t, Static{
		{Value: "1", Label: "Junior"},
		{Value: "2", Label: "2"},
		{Value: "3", Label: "Senior"},
	}, c.Options())

	c, err = LoadCatalogFile(writeFile(t, dir, "colors.yml", "items:\n  - value: red\n"))
	require.NoError(t, err)
	assert.Equal(t, "colors", c.Name, "name defaults to file name")

	tests := []struct {
		name    string
		content string
	}{
		{"missing value", "items:\n  - label: x\n"},
		{"duplicate value", "items:\n  - value: a\n  - value: a\n"},
		{"bad yaml", "items: [\n"},
		{"too long", "items:\n" + longItems()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalogFile(writeFile(t, dir, "bad.yaml", tt.content))
			assert.Error(t, err)
		})
	}
}

func longItems() string {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("  - value: ")
		b.WriteString(strings.Repeat("x", 20))
		b.WriteString(string(rune('a' + i%26)))
		b.WriteString(strings.Repeat("y", i))
		b.WriteString("\n")
	}
	return b.String()
}

func TestLoadCatalogDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "levels.yaml", levelsYAML)
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	catalogs, err := LoadCatalogDir(dir)
	require.NoError(t, err)
	assert.Len(t, catalogs, 1)
	assert.Contains(t, catalogs, "levels")

	writeFile(t, dir, "other.yaml", "name: levels\nitems:\n  - value: a\n")
	_, err = LoadCatalogDir(dir)
	assert.ErrorContains(t, err, "defined twice")

	_, err = LoadCatalogDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	require.NoError(t, r.Register("yesno", Static{{Value: "Y", Label: "Yes"}, {Value: "N", Label: "No"}}))
	require.NoError(t, r.Register("now", ProviderFunc(func(ctx context.Context) ([]extension.LOVOption, error) {
		return []extension.LOVOption{{Value: "dyn", Label: "Dynamic"}}, nil
	})))
	assert.ErrorIs(t, r.Register("yesno", Static{}), apperrors.ErrConfiguration)
	assert.ErrorIs(t, r.Register("", Static{}), apperrors.ErrConfiguration)

	r.ReplaceCatalogs(map[string]Catalog{
		"levels": {Name: "levels", Items: []Item{{Value: "1", Label: "Junior"}}},
		"yesno":  {Name: "yesno", Items: []Item{{Value: "shadowed"}}},
	})
	assert.Equal(t, []string{"levels", "now", "yesno"}, r.Names())

	opts, err := r.Options(ctx, "yesno")
	require.NoError(t, err)
	assert.Equal(t, "Y", opts[0].Value, "registered providers shadow catalogs")

	opts, err = r.Options(ctx, "now")
	require.NoError(t, err)
	assert.Equal(t, "dyn", opts[0].Value)

	opts, err = r.Options(ctx, "levels")
	require.NoError(t, err)
	assert.Equal(t, []extension.LOVOption{{Value: "1", Label: "Junior"}}, opts)

	_, err = r.Options(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, r.Register("levels", Static{}), apperrors.ErrConfiguration)
}

func TestStatic_ReturnsCopy(t *testing.T) {
	s := Static{{Value: "a", Label: "A"}}
	opts, err := s.Options(context.Background())
	require.NoError(t, err)
	opts[0].Value = "changed"
	assert.Equal(t, "a", s[0].Value)
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "levels.yaml", levelsYAML)

	registry := NewRegistry()
	w := NewWatcher(dir, registry, 20*time.Millisecond, quietLogger())
	require.NoError(t, w.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// give the watcher a moment to register the directory
	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "colors.yaml", "items:\n  - value: red\n  - value: blue\n")

	assert.Eventually(t, func() bool {
		opts, err := registry.Options(context.Background(), "colors")
		return err == nil && len(opts) == 2
	}, 2*time.Second, 20*time.Millisecond)

	// a broken file keeps the previous catalogs
	writeFile(t, dir, "broken.yaml", "items: [\n")
	time.Sleep(150 * time.Millisecond)
	opts, err := registry.Options(context.Background(), "levels")
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	require.NoError(t, os.Remove(filepath.Join(dir, "broken.yaml")))
	require.NoError(t, os.Remove(filepath.Join(dir, "colors.yaml")))
	assert.Eventually(t, func() bool {
		_, err := registry.Options(context.Background(), "colors")
		return apperrors.IsNotFound(err)
	}, 2*time.Second, 20*time.Millisecond)
}
