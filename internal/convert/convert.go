// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns uploaded knowledge and session files into the text
// the Writer prompt carries. Plain text passes through, HTML becomes
// Markdown, and PDF and Office documents go through the markitdown
// container when it is enabled.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/docflow/internal/container"
	"github.com/pdiddy/docflow/pkg/types"
)

// ErrUnsupported reports a file type no configured converter handles.
var ErrUnsupported = errors.New("unsupported file type")

// Converter transforms the bytes of one file into text.
type Converter interface {
	Convert(ctx context.Context, name string, data []byte) (string, error)
}

var (
	textExts = map[string]bool{
		".txt": true, ".md": true, ".markdown": true, ".csv": true, ".json": true,
		".yaml": true, ".yml": true, ".xml": true, ".rst": true, ".tex": true,
	}
	htmlExts = map[string]bool{".html": true, ".htm": true, ".xhtml": true}
	docExts  = map[string]bool{
		".pdf": true, ".docx": true, ".pptx": true, ".xlsx": true, ".xls": true, ".epub": true,
	}
)

// Router picks a converter by file extension. Unknown extensions are
// accepted as text when the bytes are valid UTF-8.
type Router struct {
	Text Converter
	HTML Converter

	// Documents handles PDF and Office files. Nil leaves them unsupported.
	Documents Converter
}

// New returns a Router for cfg. When cfg.Markitdown is set a container
// runtime is detected and the markitdown image must exist.
func New(ctx context.Context, cfg types.ConvertConfig) (*Router, error) {
	r := &Router{Text: TextConverter{}, HTML: HTMLConverter{}}
	if !cfg.Markitdown {
		return r, nil
	}
	rt, err := container.DetectRuntime(ctx)
	if err != nil {
		return nil, err
	}
	m, err := NewMarkitdownConverter(ctx, rt, cfg.Image)
	if err != nil {
		return nil, err
	}
	r.Documents = m
	return r, nil
}

// Convert dispatches on the extension of name.
func (r *Router) Convert(ctx context.Context, name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case htmlExts[ext]:
		return r.HTML.Convert(ctx, name, data)
	case docExts[ext]:
		if r.Documents == nil {
			return "", fmt.Errorf("%s: %w (enable markitdown conversion)", name, ErrUnsupported)
		}
		return r.Documents.Convert(ctx, name, data)
	case textExts[ext]:
		return r.Text.Convert(ctx, name, data)
	}
	if !looksLikeText(data) {
		return "", fmt.Errorf("%s: %w", name, ErrUnsupported)
	}
	return r.Text.Convert(ctx, name, data)
}

// TextConverter passes UTF-8 text through, dropping a byte order mark and
// normalizing line endings.
type TextConverter struct{}

// Convert returns data as text.
func (TextConverter) Convert(_ context.Context, name string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: not valid UTF-8 text", name)
	}
	s := strings.TrimPrefix(string(data), "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return s, nil
}

// looksLikeText reports whether data is valid UTF-8 with no NUL bytes in
// its first block.
func looksLikeText(data []byte) bool {
	head := data
	if len(head) > 8192 {
		head = head[:8192]
	}
	return utf8.Valid(data) && !bytes.Contains(head, []byte{0})
}

// BatchResult holds the outcome of a LoadFiles run.
type BatchResult struct {
	Converted int
	Failed    int
}

// Total returns the number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Failed
}

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// LoadFiles reads and converts each path, printing per-file status to w.
// Files that fail are reported and left out of the result. Each file is
// named by its base name.
func LoadFiles(ctx context.Context, c Converter, paths []string, w io.Writer) ([]types.File, BatchResult) {
	var (
		files  []types.File
		result BatchResult
	)
	for _, p := range paths {
		name := filepath.Base(p)
		f, err := loadFile(ctx, c, p)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
			result.Failed++
			continue
		}
		fmt.Fprintf(w, "converted: %s (%d bytes)\n", name, len(f.Text))
		files = append(files, f)
		result.Converted++
	}
	return files, result
}

func loadFile(ctx context.Context, c Converter, path string) (types.File, error) {
	if err := ctx.Err(); err != nil {
		return types.File{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.File{}, err
	}
	name := filepath.Base(path)
	text, err := c.Convert(ctx, name, data)
	if err != nil {
		return types.File{}, err
	}
	if strings.TrimSpace(text) == "" {
		return types.File{}, fmt.Errorf("%s: no text after conversion", name)
	}
	return types.File{Name: name, Text: text}, nil
}
