// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"strings"

	"github.com/pkg/errors"
)

// Formats lists the accepted format names.
var Formats = []string{"markdown", "html", "json"}

// ForFormat returns the exporter for a format name or its usual extension.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, errors.Errorf("unsupported export format: %s (want one of %s)", format, strings.Join(Formats, ", "))
	}
}
