package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentbridge/agentbridge/internal/errs"
)

// Loader reads skill definitions rooted at workspaceRoot/skills/.
type Loader struct {
	workspaceRoot string
}

// NewLoader creates a Loader rooted at workspaceRoot.
func NewLoader(workspaceRoot string) *Loader {
	return &Loader{workspaceRoot: workspaceRoot}
}

func (l *Loader) skillsDir() string {
	return filepath.Join(l.workspaceRoot, "skills")
}

// LoadContext reads the entries directly under workspace/skills/: the
// SKILL.md of each immediate subdirectory and each top-level *.md file.
// Directories nested deeper than one level are not searched. The bodies are
// concatenated into a single system-prompt string with "### Skill: <name>"
// headers. A missing skills directory yields an empty string, not an error.
func (l *Loader) LoadContext() (string, error) {
	root := l.skillsDir()
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errs.New(errs.KindGateway, "read skills directory", err).With("path", root)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var sections []string
	for _, entry := range entries {
		if entry.IsDir() {
			skillFile := filepath.Join(root, entry.Name(), SkillFilename)
			data, err := os.ReadFile(skillFile)
			if err != nil {
				continue
			}
			_, body, err := parseFrontmatter(data)
			if err != nil {
				continue
			}
			sections = append(sections, fmt.Sprintf("### Skill: %s\n\n%s", entry.Name(), body))
			continue
		}

		if strings.HasSuffix(entry.Name(), ".md") {
			data, err := os.ReadFile(filepath.Join(root, entry.Name()))
			if err != nil {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), ".md")
			sections = append(sections, fmt.Sprintf("### Skill: %s\n\n%s", name, strings.TrimSpace(string(data))))
		}
	}

	return strings.Join(sections, "\n\n"), nil
}

// LoadSkillMetadata parses the YAML frontmatter of workspace/skills/<name>/SKILL.md.
// name must be a single non-traversing path component.
func (l *Loader) LoadSkillMetadata(name string) (Metadata, error) {
	if err := validateSkillName(name); err != nil {
		return Metadata{}, err
	}

	skillFile := filepath.Join(l.skillsDir(), name, SkillFilename)
	data, err := os.ReadFile(skillFile)
	if err != nil {
		return Metadata{}, errs.New(errs.KindGateway, "read skill file", err).With("skill", name)
	}

	meta, _, err := parseFrontmatter(data)
	if err != nil {
		return Metadata{}, errs.New(errs.KindGateway, "parse skill metadata", err).With("skill", name)
	}
	return meta, nil
}

// validateSkillName rejects empty names, path separators, and traversal
// components — a skill name must resolve to exactly one directory directly
// under workspace/skills/.
func validateSkillName(name string) error {
	if name == "" {
		return fmt.Errorf("skill name must not be empty")
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("skill name %q must be a single non-traversing path component", name)
	}
	return nil
}
