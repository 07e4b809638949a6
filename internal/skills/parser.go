package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkillFilename is the expected filename for skill definitions inside a
// skill subdirectory.
const SkillFilename = "SKILL.md"

const frontmatterDelimiter = "---"

// parseFrontmatter splits an optional leading YAML frontmatter block off
// data and decodes it into a Metadata. A file with no frontmatter (no
// leading "---" line) is not an error — it yields zero-value Metadata and
// the full content as body.
func parseFrontmatter(data []byte) (Metadata, string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() {
		return Metadata{}, "", nil
	}
	firstLine := strings.TrimSpace(scanner.Text())
	if firstLine != frontmatterDelimiter {
		return Metadata{}, string(data), nil
	}

	var frontLines []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontmatterDelimiter {
			closed = true
			break
		}
		frontLines = append(frontLines, line)
	}
	if !closed {
		return Metadata{}, "", fmt.Errorf("missing closing frontmatter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Metadata{}, "", fmt.Errorf("scan skill file: %w", err)
	}

	var meta Metadata
	if err := yaml.Unmarshal([]byte(strings.Join(frontLines, "\n")), &meta); err != nil {
		return Metadata{}, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return meta, strings.TrimSpace(strings.Join(bodyLines, "\n")), nil
}
