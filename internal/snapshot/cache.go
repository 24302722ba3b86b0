package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"gopkg.in/yaml.v3"
)

// Current is the live side of a validation: what the repository and session
// inputs look like right now.
type Current struct {
	GitHead         string // "" when unavailable
	RepoSignature   string
	ComponentScopes []string
}

// Verdict is the outcome of validating a snapshot. Invalid verdicts name the
// first mismatch; there is no partial trust.
type Verdict struct {
	Valid  bool
	Reason string
}

// Cache validates and stores snapshots on disk, one file per repository
// fingerprint. Reads may happen concurrently across sessions; writes are
// serialized per fingerprint and performed atomically (write-temp-then-
// rename) so a reader never observes a partial snapshot.
type Cache struct {
	Dir string

	// verdicts memoizes validation results keyed by a digest of every
	// field validation compares, making repeat validation idempotent and
	// cheap.
	verdicts *lru.Cache[string, Verdict]

	mu      sync.Mutex
	writers map[string]*sync.Mutex
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string) (*Cache, error) {
	verdicts, err := lru.New[string, Verdict](256)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{
		Dir:      dir,
		verdicts: verdicts,
		writers:  make(map[string]*sync.Mutex),
	}, nil
}

// Validate checks a snapshot against the current repository state. Valid
// requires the schema version, an identity check (git head when both sides
// provide one, repository signature otherwise), and the component-scope set
// to all match. Any mismatch invalidates the whole snapshot.
func (c *Cache) Validate(s *Snapshot, cur Current) Verdict {
	key := memoKey(s, cur)
	if v, ok := c.verdicts.Get(key); ok {
		return v
	}

	v := validate(s, cur)
	c.verdicts.Add(key, v)
	return v
}

// memoKey digests both sides of the comparison. A rewritten snapshot under
// the same fingerprint must never reuse the previous document's verdict.
func memoKey(s *Snapshot, cur Current) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s\n", s.Fingerprint, s.SchemaVersion, s.GitHead, s.RepoSignature, scopeKey(s.ComponentScopes))
	fmt.Fprintf(h, "%s|%s|%s", cur.GitHead, cur.RepoSignature, scopeKey(cur.ComponentScopes))
	return hex.EncodeToString(h.Sum(nil))
}

func validate(s *Snapshot, cur Current) Verdict {
	if s.SchemaVersion != SchemaVersion {
		return Verdict{Reason: "schema-version-mismatch"}
	}

	if s.GitHead != SentinelUnknown && cur.GitHead != "" {
		if s.GitHead != cur.GitHead {
			return Verdict{Reason: "githead-mismatch"}
		}
	} else if s.RepoSignature != cur.RepoSignature {
		return Verdict{Reason: "signature-mismatch"}
	}

	if scopeKey(s.ComponentScopes) != scopeKey(cur.ComponentScopes) {
		return Verdict{Reason: "scope-mismatch"}
	}
	return Verdict{Valid: true}
}

// Write persists a snapshot atomically under its fingerprint. At most one
// writer per fingerprint runs at a time.
func (c *Cache) Write(s *Snapshot) error {
	if err := s.validate(); err != nil {
		return err
	}

	lock := c.writerLock(s.Fingerprint)
	lock.Lock()
	defer lock.Unlock()

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	final := c.Path(s.Fingerprint)
	tmp, err := os.CreateTemp(c.Dir, s.Fingerprint+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Read loads the snapshot for a fingerprint. Returns nil when none exists.
func (c *Cache) Read(fingerprint string) (*Snapshot, error) {
	s, err := Load(c.Path(fingerprint))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// Path returns the on-disk location for a fingerprint's snapshot.
func (c *Cache) Path(fingerprint string) string {
	return filepath.Join(c.Dir, fingerprint+".yaml")
}

func (c *Cache) writerLock(fingerprint string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.writers[fingerprint]
	if !ok {
		lock = &sync.Mutex{}
		c.writers[fingerprint] = lock
	}
	return lock
}

func scopeKey(scopes []string) string {
	sorted := make([]string, len(scopes))
	copy(sorted, scopes)
	sort.Strings(sorted)
	key := ""
	for _, s := range sorted {
		key += s + ";"
	}
	return key
}
