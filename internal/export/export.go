// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/util"
)

const generator = "sessionscope"

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a history in one file format.
type Exporter interface {
	// Export renders detail and, when the format shows them, its events.
	Export(detail *model.HistoryDetail, events []model.SessionEvent) ([]byte, error)

	// FileExtension returns the file extension including the dot.
	FileExtension() string

	// MimeType returns the MIME type of the output.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files are written. Default: "."
	OutputDir string

	// Filename overrides the generated file name when set.
	Filename string

	// OpenAfterExport opens the file in the default application.
	OpenAfterExport bool

	// IncludeMetadata adds the header with persona, model, and counts.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message timestamps.
	IncludeTimestamps bool

	// IncludeEvents appends the event log to Markdown and HTML output.
	IncludeEvents bool

	// Theme for HTML export ("light" or "dark"). Default: "dark"
	Theme string

	// Now stamps the export. Default: time.Now
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Theme:             "dark",
	}
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile renders detail with exporter and writes it atomically under
// opts.OutputDir. It returns the path of the written file.
func ExportToFile(detail *model.HistoryDetail, exporter Exporter, opts *Options, events ...model.SessionEvent) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(detail, events)
	if err != nil {
		return "", errors.Wrap(err, "export failed")
	}

	filename := opts.Filename
	if filename == "" {
		filename = fmt.Sprintf("history_%s_%s%s",
			sanitizeFilename(titleOf(detail)),
			opts.now().Format("20060102_150405"),
			exporter.FileExtension(),
		)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	outputPath := filepath.Join(dir, filename)
	if err := util.AtomicWriteFileWithDir(outputPath, content, 0644, 0755); err != nil {
		return "", errors.Wrap(err, "write export")
	}

	if opts.OpenAfterExport {
		if err := openFile(outputPath); err != nil {
			// The file exists either way.
			log.Warn().Err(err).Str("path", outputPath).Msg("could not open exported file")
		}
	}

	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func validate(detail *model.HistoryDetail) error {
	if detail == nil {
		return errors.New("history is nil")
	}
	if len(detail.Messages) == 0 {
		return errors.Errorf("history %s has no messages", detail.ID)
	}
	return nil
}

func titleOf(detail *model.HistoryDetail) string {
	if detail == nil {
		return ""
	}
	if t := strings.TrimSpace(detail.Title); t != "" {
		return t
	}
	if first, ok := detail.FirstUserMessage(); ok {
		return first.Preview(60)
	}
	return detail.DisplayTitle()
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}

	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "history"
	}
	return out
}

// openFile opens a file in the default application for the OS.
func openFile(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, path)
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	default:
		return errors.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// roleLabel returns the heading label for a message role.
func roleLabel(role model.Role) string {
	return "[" + role.DisplayName() + "]"
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
