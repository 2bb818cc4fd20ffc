package descriptor

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/specialistvlad/nativebind/internal/artifact"
	"github.com/specialistvlad/nativebind/internal/digest"
	"github.com/specialistvlad/nativebind/internal/surface"
)

// Key identifies a descriptor. The target is part of the key because a fat
// slice serves several targets and the descriptor records which one.
type Key struct {
	Artifact digest.Hash
	Slice    string
	Surface  digest.Hash
	Strategy string
	Module   string
	Target   string
	// Wiring digests the remaining options so a cache shared between
	// manifests never returns another package's descriptor.
	Wiring digest.Hash
}

func (k Key) String() string {
	return k.Module + "/" + k.Strategy + "/" + k.Target + "/" + k.Slice + "/" +
		k.Artifact.Short() + "/" + k.Surface.Short() + "/" + k.Wiring.Short()
}

// Cache memoizes Build. Concurrent builds of the same key run once.
// Failed builds are not cached.
type Cache struct {
	group   singleflight.Group
	entries sync.Map // Key -> *Descriptor
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// KeyFor computes the cache key for a Build call.
func KeyFor(art *artifact.BinaryArtifact, s *artifact.Slice, surf *surface.Surface, opts Options) Key {
	return Key{
		Artifact: art.Identity(),
		Slice:    s.ID,
		Surface:  surf.Hash(),
		Strategy: opts.Strategy,
		Module:   opts.Module,
		Target:   opts.Target.String(),
		Wiring:   wiringHash(opts),
	}
}

func wiringHash(opts Options) digest.Hash {
	view := struct {
		Node          string
		Package       string
		SchemaVersion int
		Headers       []string
		Namespace     string
		Link          LinkRequirement
		Compiled      bool
		Deps          []string
	}{opts.Node, opts.Package, opts.SchemaVersion, opts.HeaderSearchPaths, opts.Namespace, opts.Link, opts.Compiled, nil}
	if opts.Graph != nil {
		root := opts.Node
		if root == "" {
			root = opts.Module
		}
		// A failing order fails Build too, so the hash is irrelevant then.
		view.Deps, _ = opts.Graph.LinkOrder(root)
	}
	h, _ := digest.Of(digest.DescriptorDomain, view)
	return h
}

// Build returns the cached descriptor for the inputs or builds it.
func (c *Cache) Build(art *artifact.BinaryArtifact, s *artifact.Slice, surf *surface.Surface, opts Options) (*Descriptor, error) {
	key := KeyFor(art, s, surf, opts)
	if d, ok := c.entries.Load(key); ok {
		c.hits.Add(1)
		return d.(*Descriptor), nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if d, ok := c.entries.Load(key); ok {
			return d, nil
		}
		c.misses.Add(1)
		d, err := Build(art, s, surf, opts)
		if err != nil {
			return nil, err
		}
		c.entries.Store(key, d)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Descriptor), nil
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached descriptors.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
