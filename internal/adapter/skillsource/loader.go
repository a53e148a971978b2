package skillsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"inkwell-ai/internal/domain"
)

// maxSkillFileSize is the maximum allowed skill file size (1 MiB).
const maxSkillFileSize = 1 << 20

// FileSource loads skills from markdown files in a directory.
// It supports two layouts:
//   - Flat: skills/<id>.md (one file per skill)
//   - Subdirectory: skills/<id>/SKILL.md, with optional reference
//     documents under skills/<id>/references/*.md
type FileSource struct {
	dir string
}

var _ domain.SkillSource = (*FileSource)(nil)

// NewFileSource creates a skill source that reads from the given directory.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Load reads and parses every skill in the directory. Skill IDs come from
// the file or directory name; duplicates are an error.
func (s *FileSource) Load(_ context.Context) ([]domain.Skill, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read skill dir %s: %w", s.dir, err)
	}

	seen := make(map[string]bool)
	var skills []domain.Skill
	for _, entry := range entries {
		var id, path string
		var refDir string

		if entry.IsDir() {
			candidate := filepath.Join(s.dir, entry.Name(), "SKILL.md")
			if _, err := os.Stat(candidate); err != nil {
				continue // no SKILL.md inside, skip
			}
			id = entry.Name()
			path = candidate
			refDir = filepath.Join(s.dir, entry.Name(), "references")
		} else if strings.HasSuffix(entry.Name(), ".md") {
			id = strings.TrimSuffix(entry.Name(), ".md")
			path = filepath.Join(s.dir, entry.Name())
		} else {
			continue
		}

		skill, err := s.loadOne(id, path, refDir)
		if err != nil {
			return nil, err
		}

		if seen[skill.ID] {
			return nil, fmt.Errorf("duplicate skill id %q in %s", skill.ID, path)
		}
		seen[skill.ID] = true
		skills = append(skills, skill)
	}

	sort.Slice(skills, func(i, j int) bool { return skills[i].ID < skills[j].ID })
	return skills, nil
}

func (s *FileSource) loadOne(id, path, refDir string) (domain.Skill, error) {
	data, err := readBounded(path)
	if err != nil {
		return domain.Skill{}, err
	}

	skill, err := parseSkillFile(string(data))
	if err != nil {
		return domain.Skill{}, fmt.Errorf("parse skill file %s: %w", path, err)
	}
	skill.ID = id
	if skill.Name == "" {
		skill.Name = id
	}

	if refDir != "" {
		refs, order, err := loadReferences(refDir)
		if err != nil {
			return domain.Skill{}, err
		}
		skill.References = refs
		skill.RefOrder = order
	}

	return skill, nil
}

// loadReferences reads every .md file in refDir. A missing directory is
// not an error: most skills have no references.
func loadReferences(refDir string) (map[string]string, []string, error) {
	entries, err := os.ReadDir(refDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("read references dir %s: %w", refDir, err)
	}

	refs := make(map[string]string)
	var order []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(refDir, entry.Name())
		data, err := readBounded(path)
		if err != nil {
			return nil, nil, err
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		refs[name] = string(data)
		order = append(order, name)
	}
	sort.Strings(order)

	if len(refs) == 0 {
		return nil, nil, nil
	}
	return refs, order, nil
}

func readBounded(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat skill file %s: %w", path, err)
	}
	if info.Size() > maxSkillFileSize {
		return nil, fmt.Errorf("skill file %s too large (%d bytes, max %d)", path, info.Size(), maxSkillFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill file %s: %w", path, err)
	}
	return data, nil
}

// skillFrontmatter is the YAML header of a skill file.
type skillFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Tier        string `yaml:"tier"`
	Overview    string `yaml:"overview"`
}

// parseSkillFile parses a markdown file with YAML frontmatter (--- delimited).
// The body after the frontmatter becomes the skill content.
func parseSkillFile(content string) (domain.Skill, error) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "---") {
		return domain.Skill{}, fmt.Errorf("missing frontmatter delimiter")
	}

	parts := strings.SplitN(content[3:], "---", 2)
	if len(parts) != 2 {
		return domain.Skill{}, fmt.Errorf("missing closing frontmatter delimiter")
	}

	var fm skillFrontmatter
	if err := yaml.Unmarshal([]byte(parts[0]), &fm); err != nil {
		return domain.Skill{}, fmt.Errorf("parse frontmatter: %w", err)
	}

	return domain.Skill{
		Name:        fm.Name,
		Description: fm.Description,
		Category:    fm.Category,
		Tier:        fm.Tier,
		Overview:    fm.Overview,
		Content:     strings.TrimSpace(parts[1]),
	}, nil
}
