package timesheet

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/consultwithcase/portalsync/internal/apperr"
)

// DefaultMaxCategoryDepth bounds parent-chain walks.
const DefaultMaxCategoryDepth = 64

// CategoryKind tags a category.
type CategoryKind string

const (
	KindRegular CategoryKind = "regular"
	KindPTO     CategoryKind = "pto"
	KindOther   CategoryKind = "other"
)

// Category is a vendor work category: a job code, pay code or project/task.
type Category struct {
	ID string
	// ParentID is empty or "0" for root categories.
	ParentID string
	Kind     CategoryKind
	// Name is the vendor-native name, e.g. "9876.54.32.PROJECT.OY1".
	Name string
	// Task is an optional task name appended to the display name.
	Task string
	// ProjectCode marks Name as a dotted project code whose numeric
	// segments are stripped for display.
	ProjectCode bool
	// ProjectType is the vendor project type used by allow-list classification.
	ProjectType string
}

// IsRoot reports whether the category has no parent.
func (c Category) IsRoot() bool {
	return c.ParentID == "" || c.ParentID == "0"
}

// Catalog indexes categories by ID.
type Catalog map[string]Category

// NewCatalog builds a catalog. Later duplicates win.
func NewCatalog(categories ...Category) Catalog {
	c := make(Catalog, len(categories))
	for _, cat := range categories {
		c[cat.ID] = cat
	}
	return c
}

// Merge adds other's categories to c, returning c.
func (c Catalog) Merge(other Catalog) Catalog {
	for id, cat := range other {
		c[id] = cat
	}
	return c
}

var (
	spacesRegex     = regexp.MustCompile(`[ _]+`)
	optionYearRegex = regexp.MustCompile(`OY[0-9]`)
)

// DisplayName returns the human-readable name for categoryID. Project-code
// categories are normalized; any other name is shown as the vendor has it.
// Unknown IDs and nameless categories display as their ID.
func DisplayName(categoryID string, catalog Catalog) string {
	cat, ok := catalog[categoryID]
	if !ok {
		return categoryID
	}
	var name string
	switch {
	case cat.ProjectCode:
		name = NormalizeName(cat.Name, cat.Task)
	case cat.Task != "":
		name = cat.Name + " - " + cat.Task
	default:
		name = cat.Name
	}
	if strings.TrimSpace(name) == "" {
		return categoryID
	}
	return name
}

// NormalizeName strips vendor noise from a project name and optional task.
// Purely numeric dot-separated segments are dropped from the project; the task
// keeps only the text after a " - " separator and loses option-year tokens.
// A project made only of numeric segments keeps its code.
func NormalizeName(project, task string) string {
	var kept []string
	for _, seg := range strings.Split(project, ".") {
		if strings.IndexFunc(seg, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			kept = append(kept, seg)
		}
	}
	name := collapse(strings.Join(kept, " "))
	if name == "" {
		name = collapse(project)
	}

	if strings.Contains(task, " - ") {
		task = strings.Split(task, " - ")[1]
	}
	task = collapse(optionYearRegex.ReplaceAllString(task, ""))
	if task == "" {
		return name
	}
	return name + " - " + task
}

func collapse(s string) string {
	return strings.TrimSpace(spacesRegex.ReplaceAllString(s, " "))
}

// Classifier decides whether a category's hours are non-billable.
type Classifier interface {
	IsNonBillable(categoryID string) (bool, error)
}

// ParentChain classifies by walking a category's parent chain. A root is
// non-billable when its ID is a configured non-billable root or its kind is
// pto; any other category is non-billable when its parent is.
type ParentChain struct {
	Catalog Catalog
	Roots   map[string]bool
	// MaxDepth bounds the walk; zero means DefaultMaxCategoryDepth.
	MaxDepth int
}

// NewParentChain returns a ParentChain with the given non-billable roots.
func NewParentChain(catalog Catalog, rootIDs ...string) ParentChain {
	roots := make(map[string]bool, len(rootIDs))
	for _, id := range rootIDs {
		roots[id] = true
	}
	return ParentChain{Catalog: catalog, Roots: roots}
}

// IsNonBillable walks the parent chain of categoryID. Unknown categories are
// billable. A cycle or a chain deeper than MaxDepth is a configuration error.
func (p ParentChain) IsNonBillable(categoryID string) (bool, error) {
	maxDepth := p.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCategoryDepth
	}
	visited := make(map[string]bool)

	id := categoryID
	for depth := 0; ; depth++ {
		if visited[id] {
			return false, apperr.Configuration("classify category", "category %s has a cyclic parent chain", categoryID)
		}
		if depth >= maxDepth {
			return false, apperr.Configuration("classify category", "category %s exceeds parent depth %d", categoryID, maxDepth)
		}
		visited[id] = true

		cat, ok := p.Catalog[id]
		if !ok {
			return false, nil
		}
		if cat.IsRoot() {
			return p.Roots[cat.ID] || cat.Kind == KindPTO, nil
		}
		if p.Roots[cat.ParentID] {
			return true, nil
		}
		id = cat.ParentID
	}
}

// AllowList classifies a category as non-billable whenever its project type
// is not one of the billable types. There is no recursion.
type AllowList struct {
	Catalog  Catalog
	Billable []string
}

// IsNonBillable reports whether categoryID's project type is absent from the
// allow-list. Unknown categories are non-billable.
func (a AllowList) IsNonBillable(categoryID string) (bool, error) {
	cat := a.Catalog[categoryID]
	for _, t := range a.Billable {
		if cat.ProjectType == t {
			return false, nil
		}
	}
	return true, nil
}
