package analyzer

import (
	"strings"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

// ClassifyRule assigns Category to any lower-cased filename containing one of Needles.
type ClassifyRule struct {
	Category release.Category
	Needles  []string
}

// ClassifyRules is the ordered predicate chain. The first rule that matches
// wins, so a file such as tests/test_migration.sql lands in tests.
var ClassifyRules = []ClassifyRule{
	{Category: release.CategoryTests, Needles: []string{"test", "spec"}},
	{Category: release.CategoryDatabase, Needles: []string{".sql", ".migration", ".ddl"}},
	{Category: release.CategoryInfrastructure, Needles: []string{".tf", ".yaml", ".yml", "docker", "k8s"}},
	{Category: release.CategoryConfig, Needles: []string{".json", ".toml", ".env", "config"}},
	{Category: release.CategoryFrontend, Needles: []string{".js", ".jsx", ".tsx", ".ts", ".vue", ".css"}},
	{Category: release.CategoryBackend, Needles: []string{".py", ".go", ".java", ".rs", ".cpp", ".c"}},
}

// ClassifyFile returns the category of a single filename.
func ClassifyFile(filename string) release.Category {
	name := strings.ToLower(filename)
	for _, rule := range ClassifyRules {
		for _, needle := range rule.Needles {
			if strings.Contains(name, needle) {
				return rule.Category
			}
		}
	}
	return release.CategoryOther
}

// Classify buckets every file. Filenames are stored lower-cased and only
// non-empty categories are returned.
func Classify(files []release.FileChange) release.Classification {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}
	return ClassifyNames(names)
}

// ClassifyNames is Classify for bare filenames.
func ClassifyNames(names []string) release.Classification {
	out := release.Classification{}
	for _, n := range names {
		cat := ClassifyFile(n)
		out[cat] = append(out[cat], strings.ToLower(n))
	}
	return out
}
