// Package knowledge loads and serves the on-disk knowledge base: a tree of
// UTF-8 text files concatenated into a prompt corpus, plus a JSON product
// catalog with an accent-insensitive alias index.
//
// Snapshots are immutable. Reloads build a complete new snapshot and swap
// it atomically, so concurrent readers never observe a partial update.
package knowledge

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Product is a single catalog entry.
type Product struct {
	Slug       string   `json:"slug"`
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Aliases    []string `json:"aliases"`
	EnrollURL  string   `json:"enrollUrl,omitempty"`
	ProgramURL string   `json:"programUrl,omitempty"`
	Dates      string   `json:"dates,omitempty"`
	Location   string   `json:"location,omitempty"`
}

// catalogFile is the on-disk shape of the product catalog.
type catalogFile struct {
	Products []Product `json:"products"`
}

// aliasEntry maps a normalized alias to a product slug. Entries keep
// registration order: on duplicate aliases the first registration wins.
type aliasEntry struct {
	alias string
	slug  string
}

// Snapshot is an immutable view of the knowledge base.
type Snapshot struct {
	// Corpus is the concatenated text content with per-source headers.
	Corpus string

	// Signature identifies the directory state this snapshot was built from.
	Signature string

	// LoadedAt is when the snapshot was built.
	LoadedAt time.Time

	products map[string]Product
	aliases  []aliasEntry
}

// ProductBySlug looks up a product by its slug.
func (s *Snapshot) ProductBySlug(slug string) (Product, bool) {
	p, ok := s.products[slug]
	return p, ok
}

// MatchAlias scans the normalized text for the first registered alias that
// appears as a substring and returns the matching product. Matching is
// case- and accent-insensitive, first registration wins, no ranking.
func (s *Snapshot) MatchAlias(text string) (Product, bool) {
	needle := NormalizeText(text)
	if needle == "" {
		return Product{}, false
	}
	for _, e := range s.aliases {
		if strings.Contains(needle, e.alias) {
			return s.products[e.slug], true
		}
	}
	return Product{}, false
}

// ProductCount returns the number of catalog products.
func (s *Snapshot) ProductCount() int { return len(s.products) }

// CorpusSize returns the corpus size in bytes.
func (s *Snapshot) CorpusSize() int { return len(s.Corpus) }

// emptySnapshot is used when the knowledge directory is missing so readers
// always get a complete, usable snapshot.
func emptySnapshot() *Snapshot {
	return &Snapshot{
		LoadedAt: time.Now(),
		products: map[string]Product{},
	}
}

// Loader builds snapshots from a knowledge directory.
type Loader struct {
	dir              string
	catalogFile      string
	maxCorpusBytes   int
	priorityKeywords []string
	logger           *slog.Logger
}

// NewLoader creates a Loader for the given directory.
func NewLoader(dir, catalogFile string, maxCorpusBytes int, priorityKeywords []string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if catalogFile == "" {
		catalogFile = "catalog.json"
	}
	if maxCorpusBytes <= 0 {
		maxCorpusBytes = 120_000
	}
	return &Loader{
		dir:              dir,
		catalogFile:      catalogFile,
		maxCorpusBytes:   maxCorpusBytes,
		priorityKeywords: priorityKeywords,
		logger:           logger.With("component", "knowledge"),
	}
}

// Load walks the knowledge directory and builds a complete snapshot:
// corpus (priority files first, capped at the byte budget) and product
// catalog with the derived alias index.
func (l *Loader) Load() (*Snapshot, error) {
	files, err := l.eligibleFiles()
	if err != nil {
		return nil, err
	}

	snap := emptySnapshot()

	var priority, regular []string
	for _, f := range files {
		if filepath.Base(f.path) == l.catalogFile {
			if err := l.loadCatalog(filepath.Join(l.dir, f.path), snap); err != nil {
				l.logger.Warn("catalog load failed", "file", f.path, "error", err)
			}
			continue
		}
		if l.isPriority(f.path) {
			priority = append(priority, f.path)
		} else {
			regular = append(regular, f.path)
		}
	}

	snap.Corpus = l.buildCorpus(priority, regular)

	sig, err := l.Signature()
	if err == nil {
		snap.Signature = sig
	}

	l.logger.Info("knowledge base loaded",
		"corpus_bytes", snap.CorpusSize(),
		"products", snap.ProductCount(),
		"files", len(files))
	return snap, nil
}

// buildCorpus concatenates file contents with per-source headers. Priority
// files are placed first and never truncated ahead of regular content: when
// priority content alone exceeds the budget, regular files are dropped
// entirely.
func (l *Loader) buildCorpus(priority, regular []string) string {
	var b strings.Builder
	remaining := l.maxCorpusBytes

	appendFile := func(relPath string) bool {
		if remaining <= 0 {
			return false
		}
		data, err := os.ReadFile(filepath.Join(l.dir, relPath))
		if err != nil {
			l.logger.Warn("corpus file unreadable", "file", relPath, "error", err)
			return true
		}
		block := fmt.Sprintf("[%s]\n%s\n\n", relPath, strings.TrimSpace(string(data)))
		if len(block) > remaining {
			block = block[:remaining]
		}
		b.WriteString(block)
		remaining -= len(block)
		return remaining > 0
	}

	for _, p := range priority {
		if !appendFile(p) {
			return b.String()
		}
	}
	for _, p := range regular {
		if !appendFile(p) {
			break
		}
	}
	return b.String()
}

// loadCatalog parses the catalog JSON and registers products and aliases.
func (l *Loader) loadCatalog(path string, snap *Snapshot) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	var cat catalogFile
	if err := json.Unmarshal(data, &cat); err != nil {
		return fmt.Errorf("parsing catalog: %w", err)
	}

	registered := make(map[string]bool)
	for _, p := range cat.Products {
		if p.Slug == "" {
			l.logger.Warn("catalog product without slug skipped", "title", p.Title)
			continue
		}
		snap.products[p.Slug] = p
		for _, a := range p.Aliases {
			na := NormalizeText(a)
			if na == "" || registered[na] {
				continue // first-registered alias wins
			}
			registered[na] = true
			snap.aliases = append(snap.aliases, aliasEntry{alias: na, slug: p.Slug})
		}
	}
	return nil
}

// fileStat is one eligible file with its change-detection attributes.
type fileStat struct {
	path  string // relative to the knowledge dir
	mtime int64
	size  int64
}

// eligibleFiles walks the directory and returns text and catalog files
// sorted by relative path.
func (l *Loader) eligibleFiles() ([]fileStat, error) {
	var files []fileStat
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !eligibleExt(path) && filepath.Base(path) != l.catalogFile {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // file vanished between walk and stat
		}
		rel, err := filepath.Rel(l.dir, path)
		if err != nil {
			return nil
		}
		files = append(files, fileStat{
			path:  filepath.ToSlash(rel),
			mtime: info.ModTime().UnixNano(),
			size:  info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking knowledge dir: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// eligibleExt reports whether the file is part of the text corpus.
func eligibleExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// isPriority reports whether the file name carries a priority keyword.
func (l *Loader) isPriority(relPath string) bool {
	name := NormalizeText(filepath.Base(relPath))
	for _, kw := range l.priorityKeywords {
		if kw != "" && strings.Contains(name, NormalizeText(kw)) {
			return true
		}
	}
	return false
}

// NormalizeText lower-cases and strips combining accent marks, so
// "Pós-Graduação" and "pos-graduacao" compare equal.
func NormalizeText(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}
