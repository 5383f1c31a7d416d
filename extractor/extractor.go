// Package extractor finds links in YAML documents.
package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LinkKey is the mapping key whose scalar value is treated as a link.
const LinkKey = "link"

// Extensions lists the file extensions recognized as structured data.
var Extensions = []string{".yaml", ".yml"}

// urlPattern is a loose heuristic: optional scheme, dotted domain, a TLD of at
// least two letters and an optional path. It accepts "example.com/path". The
// path may not contain any Unicode whitespace.
var urlPattern = regexp.MustCompile(`^(https?://)?([a-zA-Z0-9-]+\.)*[a-zA-Z0-9-]+\.[a-zA-Z]{2,}(/[^\s\v\p{Z}\x{1c}-\x{1f}\x{85}]*)?$`)

// IsURL reports whether s looks like a link. A single trailing newline, as
// left by YAML block scalars, is ignored.
func IsURL(s string) bool {
	return urlPattern.MatchString(strings.TrimSuffix(s, "\n"))
}

// HasStructuredExt reports whether path ends in one of Extensions.
func HasStructuredExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Extractor walks directory trees and collects links from YAML files.
type Extractor struct {
	logger *zap.Logger
}

// New returns an Extractor that reports unreadable files to logger.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// FindFiles returns every structured-data file below root, relative to root
// and slash-separated, in lexical order. Directories whose name contains
// ".git" are not entered.
func (e *Extractor) FindFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			e.logger.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.Contains(d.Name(), ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		if !HasStructuredExt(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk '%s': %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// ExtractFile returns the unique links found in the YAML file at path.
func (e *Extractor) ExtractFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", path, err)
	}
	links, err := ExtractBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML file '%s': %w", path, err)
	}
	return links, nil
}

// ExtractAll maps every structured-data file below root that contains at
// least one link to its links. Files that cannot be read or parsed are
// logged and skipped.
func (e *Extractor) ExtractAll(root string) (map[string][]string, error) {
	files, err := e.FindFiles(root)
	if err != nil {
		return nil, err
	}

	results := make(map[string][]string)
	for _, rel := range files {
		links, err := e.ExtractFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			e.logger.Warn("Skipping file", zap.String("file", rel), zap.Error(err))
			continue
		}
		if len(links) > 0 {
			results[rel] = links
		}
	}
	return results, nil
}

// ExtractBytes parses data as a stream of YAML documents and returns the
// unique links found in all of them, sorted.
func ExtractBytes(data []byte) ([]string, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	found := make(map[string]struct{})
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, link := range Links(&doc) {
			found[link] = struct{}{}
		}
	}

	links := make([]string, 0, len(found))
	for link := range found {
		links = append(links, link)
	}
	sort.Strings(links)
	return links, nil
}

// Links returns every link in the tree rooted at n, in document order.
//
// A string scalar is a link when it sits directly under the "link" key or is
// an element of a sequence, and it matches IsURL. Every mapping value and
// every sequence element is descended into. Aliased nodes are visited once
// per candidate state, so self-referencing anchors terminate.
func Links(n *yaml.Node) []string {
	w := walker{visited: make(map[visit]struct{})}
	w.walk(n, false)
	return w.links
}

type visit struct {
	node      *yaml.Node
	candidate bool
}

type walker struct {
	visited map[visit]struct{}
	links   []string
}

func (w *walker) walk(n *yaml.Node, candidate bool) {
	if n == nil {
		return
	}
	v := visit{node: n, candidate: candidate}
	if _, seen := w.visited[v]; seen {
		return
	}
	w.visited[v] = struct{}{}

	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			w.walk(c, false)
		}
	case yaml.AliasNode:
		w.walk(n.Alias, candidate)
	case yaml.ScalarNode:
		if candidate && n.ShortTag() == "!!str" && IsURL(n.Value) {
			w.links = append(w.links, strings.TrimSuffix(n.Value, "\n"))
		}
	case yaml.SequenceNode:
		for _, c := range n.Content {
			w.walk(c, true)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			w.walk(value, key.Kind == yaml.ScalarNode && key.Value == LinkKey)
		}
	}
}
