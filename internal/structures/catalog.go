package structures

import (
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strings"

	"sideworld/internal/blocks"
)

const (
	templateExt      = ".structure"
	distributionFile = "distribution.structure"
)

// Category groups the template variants of one structure kind together with
// the weighted pick between them.
type Category struct {
	Name         string
	Templates    map[string]*Template
	Distribution []Weighted
}

// Extent is the largest template bounding box in the category.
func (c *Category) Extent() (width, height int) {
	for _, t := range c.Templates {
		if t.Width > width {
			width = t.Width
		}
		if t.Height > height {
			height = t.Height
		}
	}
	return width, height
}

// BlockNames lists every block name any template of the category can emit.
func (c *Category) BlockNames() []string {
	set := make(map[string]struct{})
	for _, t := range c.Templates {
		for _, cell := range t.Cells {
			for _, name := range cell.Names() {
				set[name] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (c *Category) validate() error {
	if len(c.Templates) == 0 {
		return fmt.Errorf("category %s has no templates", c.Name)
	}
	for _, w := range c.Distribution {
		if _, ok := c.Templates[w.Name]; !ok {
			return fmt.Errorf("category %s: distribution names unknown template %q", c.Name, w.Name)
		}
	}
	return nil
}

// Catalog is the read-only set of structure categories.
type Catalog struct {
	categories map[string]*Category
}

func NewCatalog(categories ...*Category) (*Catalog, error) {
	c := &Catalog{categories: make(map[string]*Category, len(categories))}
	for _, cat := range categories {
		if err := cat.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.categories[cat.Name]; dup {
			return nil, fmt.Errorf("category %s defined twice", cat.Name)
		}
		c.categories[cat.Name] = cat
	}
	return c, nil
}

func (c *Catalog) Category(name string) (*Category, bool) {
	cat, ok := c.categories[name]
	return cat, ok
}

func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.categories))
	for name := range c.categories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Load reads one category per sub-directory of dir. Each category holds
// *.structure templates and a distribution.structure file. Every block a
// template can emit must exist in reg.
func Load(fsys fs.FS, dir string, reg *blocks.Registry, logger *log.Logger) (*Catalog, error) {
	if logger == nil {
		logger = log.Default()
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read structure dir %s: %w", dir, err)
	}

	var categories []*Category
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		cat, err := loadCategory(fsys, path.Join(dir, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}
		if reg != nil {
			for _, name := range cat.BlockNames() {
				if !reg.Has(name) {
					return nil, fmt.Errorf("category %s: unknown block type %q", cat.Name, name)
				}
			}
		}
		w, h := cat.Extent()
		logger.Printf("structure category %s: %d templates, extent %dx%d", cat.Name, len(cat.Templates), w, h)
		categories = append(categories, cat)
	}
	return NewCatalog(categories...)
}

func loadCategory(fsys fs.FS, dir, name string) (*Category, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read category %s: %w", name, err)
	}
	cat := &Category{Name: name, Templates: make(map[string]*Template)}
	var sawDistribution bool
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), templateExt) {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("category %s: read %s: %w", name, entry.Name(), err)
		}
		if entry.Name() == distributionFile {
			if cat.Distribution, err = ParseDistribution(data); err != nil {
				return nil, fmt.Errorf("category %s: distribution: %w", name, err)
			}
			sawDistribution = true
			continue
		}
		tmplName := strings.TrimSuffix(entry.Name(), templateExt)
		tmpl, err := ParseTemplate(tmplName, data)
		if err != nil {
			return nil, fmt.Errorf("category %s: template %s: %w", name, tmplName, err)
		}
		cat.Templates[tmplName] = tmpl
	}
	if !sawDistribution {
		return nil, fmt.Errorf("category %s: missing %s", name, distributionFile)
	}
	return cat, nil
}
