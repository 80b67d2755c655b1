// Package loader gives the repository scan uniform access to source files,
// whether they live on the local filesystem or in an S3 bucket.
package loader

import (
	"context"
	"path"
	"sort"
	"strings"
)

// SourceFile is one file of a scanned repository. Path is relative to the
// repository root and always uses forward slashes.
//
// The actual file content is retrieved via the associated SourceLoader.
type SourceFile struct {
	Path   string
	Loader SourceLoader
}

// GetText retrieves the raw content of the file using its Loader.
//
// Example:
//
//	text, err := file.GetText(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(string(text))
func (f *SourceFile) GetText(ctx context.Context) ([]byte, error) {
	return f.Loader.Read(ctx, f.Path)
}

// Dir is the directory of the file relative to the repository root.
func (f *SourceFile) Dir() string {
	return path.Dir(f.Path)
}

// SourceLoader lists and reads the files of one repository.
// Implementations may load files from disk, cloud storage, or other sources.
type SourceLoader interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// Matcher decides whether a repository path is scanned.
type Matcher func(path string) bool

// HasSuffix matches paths ending in any of suffixes.
func HasSuffix(suffixes ...string) Matcher {
	return func(p string) bool {
		for _, s := range suffixes {
			if strings.HasSuffix(p, s) {
				return true
			}
		}
		return false
	}
}

// Not inverts m.
func Not(m Matcher) Matcher {
	return func(p string) bool { return !m(p) }
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
}

// Skipped reports whether p lies below a dependency, build or hidden directory.
func Skipped(p string) bool {
	for _, part := range strings.Split(path.Dir(p), "/") {
		if skipDirs[part] || (strings.HasPrefix(part, ".") && part != "." && part != "..") {
			return true
		}
	}
	return false
}

// Walk returns the files of l matching every matcher, sorted by path.
func Walk(ctx context.Context, l SourceLoader, matchers ...Matcher) ([]SourceFile, error) {
	paths, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var files []SourceFile
next:
	for _, p := range paths {
		if Skipped(p) {
			continue
		}
		for _, m := range matchers {
			if !m(p) {
				continue next
			}
		}
		files = append(files, SourceFile{Path: p, Loader: l})
	}
	return files, nil
}

// Resolve joins an import specifier onto the directory dir, both relative to
// the repository root. It reports false for package imports.
func Resolve(dir, specifier string) (string, bool) {
	if !strings.HasPrefix(specifier, "./") && !strings.HasPrefix(specifier, "../") {
		return "", false
	}
	joined := path.Join(dir, specifier)
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return "", false
	}
	return joined, true
}

// ModuleCandidates lists the files a resolved import may refer to, in the
// order Node.js tries them.
func ModuleCandidates(p string) []string {
	if path.Ext(p) == ".js" || path.Ext(p) == ".mjs" || path.Ext(p) == ".cjs" {
		return []string{p}
	}
	return []string{p, p + ".js", p + ".mjs", p + ".cjs", p + "/index.js"}
}
