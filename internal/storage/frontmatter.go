package storage

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dpshade/prompthive/internal/models"
)

const frontMatterDelimiter = "---"

// encodeFrontMatter serializes header as YAML between "---" lines, then a
// blank line and the body.
func encodeFrontMatter(header interface{}, body string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(frontMatterDelimiter + "\n")

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(header); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}

	buf.WriteString(frontMatterDelimiter + "\n\n")
	buf.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// splitFrontMatter separates the header block from the body. ok is false
// when the first line is not a delimiter or no closing delimiter exists.
// The returned body is trimmed of surrounding whitespace.
func splitFrontMatter(content string) (header string, body string, ok bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || !isDelimiter(lines[0]) {
		return "", "", false
	}

	for i := 1; i < len(lines); i++ {
		if isDelimiter(lines[i]) {
			header = strings.Join(lines[1:i], "\n")
			body = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			return header, body, true
		}
	}
	return "", "", false
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, "\r") == frontMatterDelimiter
}

// parseRecord decodes a record file. Headerless files and headers that are
// not valid YAML are not errors: they yield default metadata with the whole
// content as body, and a non-nil warning describing why.
func parseRecord(content []byte) (models.Metadata, string, error) {
	text := string(content)

	header, body, ok := splitFrontMatter(text)
	if !ok {
		return models.DefaultMetadata(), text, fmt.Errorf("missing frontmatter delimiter")
	}

	var meta models.Metadata
	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return models.DefaultMetadata(), text, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	return meta, body, nil
}
