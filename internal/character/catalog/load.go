package catalog

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	apperrors "github.com/louisbranch/charforge/internal/platform/errors"
	"gopkg.in/yaml.v3"
)

// LoadFS reads every *.json, *.yaml and *.yml file under dir. Each file is a
// list of objects with a "name" field; the remaining fields become entry
// metadata and the file stem names the category. Files load in lexical
// order.
func LoadFS(fsys fs.FS, dir string) (*Catalog, error) {
	if fsys == nil {
		return nil, apperrors.New(apperrors.CodeCatalogNotFound, "catalog filesystem is required")
	}
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	items, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogNotFound, fmt.Sprintf("read catalog dir %s", dir), err)
	}

	var sections []Section
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		category, ok := categoryFromFile(item.Name())
		if !ok {
			continue
		}
		filePath := path.Join(dir, item.Name())
		data, err := fs.ReadFile(fsys, filePath)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeCatalogNotFound, fmt.Sprintf("read %s", filePath), err)
		}
		section, err := DecodeSection(category, data)
		if err != nil {
			return nil, apperrors.WrapWithMetadata(apperrors.CodeCatalogInvalid,
				fmt.Sprintf("decode %s", filePath), map[string]string{"File": filePath}, err)
		}
		sections = append(sections, section)
	}
	if len(sections) == 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeCatalogEmpty,
			fmt.Sprintf("no catalog files in %s", dir), map[string]string{"Dir": dir})
	}
	return New(sections...)
}

// DecodeSection parses one category document. JSON is accepted as YAML.
func DecodeSection(category string, data []byte) (Section, error) {
	var rows []map[string]any
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return Section{}, err
	}
	section := Section{Category: category, Entries: make([]Entry, 0, len(rows))}
	for i, row := range rows {
		name, _ := row["name"].(string)
		if strings.TrimSpace(name) == "" {
			return Section{}, fmt.Errorf("entry %d: name is required", i)
		}
		delete(row, "name")
		section.Entries = append(section.Entries, Entry{Name: name, Meta: row})
	}
	return section, nil
}

func categoryFromFile(name string) (string, bool) {
	ext := path.Ext(name)
	switch strings.ToLower(ext) {
	case ".json", ".yaml", ".yml":
		stem := strings.TrimSuffix(name, ext)
		return stem, stem != ""
	default:
		return "", false
	}
}
