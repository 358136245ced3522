// Package navigation holds the catalog of module pages: which pages each
// role owns and what its sidebar lists.
package navigation

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Page is one routable page of a module.
type Page struct {
	Path   string `yaml:"path" json:"path"`
	Name   string `yaml:"name" json:"name"`
	Icon   string `yaml:"icon" json:"icon"`
	Hidden bool   `yaml:"hidden" json:"-"`
}

// Module groups the pages owned by one role.
type Module struct {
	Role  domain.Role `yaml:"role" json:"role"`
	Title string      `yaml:"title" json:"title"`
	Pages []Page      `yaml:"pages" json:"pages"`
}

// Sidebar lists the module's visible pages.
func (m Module) Sidebar() []Page {
	out := make([]Page, 0, len(m.Pages))
	for _, p := range m.Pages {
		if !p.Hidden {
			out = append(out, p)
		}
	}
	return out
}

type catalogFile struct {
	Modules []Module `yaml:"modules"`
}

// Catalog is an immutable, validated set of modules.
type Catalog struct {
	modules []Module
	byRole  map[domain.Role]int
	byPath  map[string]pageRef
}

type pageRef struct {
	module int
	page   int
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes and validates a YAML catalog. Every module role must be
// present exactly once and every page path must live under its role.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}

	c := &Catalog{
		byRole: make(map[domain.Role]int),
		byPath: make(map[string]pageRef),
	}
	for _, m := range file.Modules {
		if !m.Role.IsModule() {
			return nil, fmt.Errorf("catalog module %q: %w", m.Role, domain.ErrUnknownRole)
		}
		if _, dup := c.byRole[m.Role]; dup {
			return nil, fmt.Errorf("catalog module %q listed twice", m.Role)
		}
		if len(m.Pages) == 0 {
			return nil, fmt.Errorf("catalog module %q has no pages", m.Role)
		}
		if m.Title == "" {
			m.Title = m.Role.Title()
		}

		idx := len(c.modules)
		root := m.Role.Path()
		for j, p := range m.Pages {
			if p.Path != root && !strings.HasPrefix(p.Path, root+"/") {
				return nil, fmt.Errorf("catalog page %q is outside module %q", p.Path, m.Role)
			}
			if _, dup := c.byPath[p.Path]; dup {
				return nil, fmt.Errorf("catalog page %q listed twice", p.Path)
			}
			c.byPath[p.Path] = pageRef{module: idx, page: j}
		}
		if _, ok := c.byPath[root]; !ok {
			return nil, fmt.Errorf("catalog module %q has no landing page %s", m.Role, root)
		}

		c.byRole[m.Role] = idx
		c.modules = append(c.modules, m)
	}

	for _, role := range domain.ModuleRoles() {
		if _, ok := c.byRole[role]; !ok {
			return nil, fmt.Errorf("catalog is missing module %q", role)
		}
	}
	return c, nil
}

// Modules returns every module in catalog order.
func (c *Catalog) Modules() []Module {
	return append([]Module(nil), c.modules...)
}

// Module returns the module owned by role.
func (c *Catalog) Module(role domain.Role) (Module, bool) {
	idx, ok := c.byRole[role]
	if !ok {
		return Module{}, false
	}
	return c.modules[idx], true
}

// Page looks up a page by its path.
func (c *Catalog) Page(path string) (Module, Page, bool) {
	ref, ok := c.byPath[path]
	if !ok {
		return Module{}, Page{}, false
	}
	m := c.modules[ref.module]
	return m, m.Pages[ref.page], true
}
