// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// HTMLConverter turns an HTML page into Markdown.
type HTMLConverter struct{}

// Convert returns the Markdown rendering of data.
func (HTMLConverter) Convert(_ context.Context, name string, data []byte) (string, error) {
	md, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return "", fmt.Errorf("converting %s to markdown: %w", name, err)
	}
	return strings.TrimSpace(md) + "\n", nil
}
