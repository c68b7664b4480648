// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export_test

import (
	"fmt"
	"os"
	"time"

	"github.com/jeranaias/sessionscope/internal/export"
	"github.com/jeranaias/sessionscope/internal/model"
)

// ExampleForFormat exports a recorded history to Markdown.
func ExampleForFormat() {
	detail := &model.HistoryDetail{
		HistorySummary: model.HistorySummary{ID: "hist-42", Title: "My First Chat"},
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "How do I print in Go?"},
			{Role: model.RoleAssistant, Content: "```go\nfmt.Println(\"hi\")\n```"},
		},
	}

	dir, err := os.MkdirTemp("", "export-example")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	opts := export.DefaultOptions()
	opts.OutputDir = dir
	opts.Now = func() time.Time { return time.Date(2025, 1, 24, 14, 30, 52, 0, time.UTC) }

	exporter, err := export.ForFormat("md", opts)
	if err != nil {
		fmt.Println(err)
		return
	}
	path, err := export.ExportToFile(detail, exporter, opts)
	if err != nil {
		fmt.Println(err)
		return
	}

	info, _ := os.Stat(path)
	fmt.Println(info.Name())
	// Output: history_My_First_Chat_20250124_143052.md
}
