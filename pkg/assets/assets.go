// Package assets holds the static files shipped with HTML reports and copies
// them next to reports that reference them externally.
package assets

import (
	"embed"
	"os"
	"path/filepath"

	"github.com/getgauge/common"
)

//go:embed web/report.css web/report.js
var assetFS embed.FS

// Stylesheet returns the built-in report stylesheet.
func Stylesheet() []byte {
	data, _ := assetFS.ReadFile("web/report.css")
	return data
}

// Script returns the built-in report script.
func Script() []byte {
	data, _ := assetFS.ReadFile("web/report.js")
	return data
}

// Manager places report assets next to a written report.
type Manager struct {
	themePath string
}

// NewManager creates a manager. themePath may name a directory of replacement
// assets; when it resolves to nothing, the built-in files are used.
func NewManager(themePath string) *Manager {
	return &Manager{themePath: themePath}
}

// CopyAssets mirrors the resolved asset directory into destDir. Reports
// written with embedded libraries never need this.
func (m *Manager) CopyAssets(destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	if dir := m.resolveThemeDir(); dir != "" {
		_, err := common.MirrorDir(dir, destDir)
		return err
	}

	// No theme on disk, fall back to the embedded defaults.
	for _, name := range []string{"report.css", "report.js"} {
		data, err := assetFS.ReadFile("web/" + name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(destDir, name), data, 0644); err != nil {
			return err
		}
	}
	return nil
}

// resolveThemeDir returns the on-disk asset directory, or "" when only the
// embedded defaults are available.
func (m *Manager) resolveThemeDir() string {
	if m.themePath == "" {
		return ""
	}
	if filepath.IsAbs(m.themePath) {
		if _, err := os.Stat(m.themePath); err == nil {
			return m.themePath
		}
		return ""
	}
	local := filepath.Join("themes", m.themePath)
	if _, err := os.Stat(local); err == nil {
		return local
	}
	return ""
}
