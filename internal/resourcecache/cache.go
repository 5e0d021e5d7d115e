package resourcecache

import (
	"context"
	"sync"
	"time"

	"sqlgateway/internal/metrics"
	"sqlgateway/internal/registry"
	"sqlgateway/pkg/logging"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// RegistrySource is the subset of *registry.Registry the cache depends on;
// modeled as an interface so tests can supply an in-memory fake.
type RegistrySource interface {
	All() []*registry.Session
}

// Cache presents an up-to-date AggregatedCatalog to the pipeline with
// at-most-once concurrent refresh per server (spec.md §4.3).
type Cache struct {
	registry RegistrySource
	ttl      time.Duration

	mu        sync.RWMutex
	snapshots map[string]ResourceSnapshot

	group singleflight.Group

	stopRefresher context.CancelFunc
}

// New constructs a Cache bound to a registry, with the given TTL.
func New(reg RegistrySource, ttl time.Duration) *Cache {
	return &Cache{
		registry:  reg,
		ttl:       ttl,
		snapshots: make(map[string]ResourceSnapshot),
	}
}

// Catalog returns the current merged view. If no snapshot has ever been
// produced for a ready server, this blocks on a refresh for that server;
// otherwise it returns immediately from cache without network I/O. A
// snapshot older than the TTL is not refetched here: it contributes an
// empty entry set until the background refresher, an explicit Refresh, or
// an Invalidate followed by the next Catalog call replaces it.
func (c *Cache) Catalog(ctx context.Context) (AggregatedCatalog, error) {
	sessions := c.registry.All()

	var needsFetch []*registry.Session
	c.mu.RLock()
	for _, s := range sessions {
		if _, ok := c.snapshots[s.Descriptor.ID]; !ok {
			needsFetch = append(needsFetch, s)
		}
	}
	c.mu.RUnlock()

	if len(needsFetch) > 0 {
		if err := c.refreshSessions(ctx, needsFetch); err != nil {
			return AggregatedCatalog{}, err
		}
	}

	return c.snapshot(sessions), nil
}

// Refresh fetches from every ready session in parallel and atomically
// swaps in new snapshots (spec.md §4.3).
func (c *Cache) Refresh(ctx context.Context) error {
	return c.refreshSessions(ctx, c.registry.All())
}

// Invalidate discards the snapshot for one server, forcing the next
// Catalog() call to refetch it.
func (c *Cache) Invalidate(serverID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, serverID)
}

func (c *Cache) refreshSessions(ctx context.Context, sessions []*registry.Session) error {
	group, gctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		s := s
		group.Go(func() error {
			_, err, _ := c.group.Do(s.Descriptor.ID, func() (interface{}, error) {
				return nil, c.refreshOne(gctx, s)
			})
			return err
		})
	}
	return group.Wait()
}

func (c *Cache) refreshOne(ctx context.Context, s *registry.Session) error {
	start := time.Now()

	uris, err := s.Client.ListResources(ctx)
	if err != nil {
		logging.Warn("ResourceCache", "list_resources failed for %q: %v", s.Descriptor.ID, err)
		return err
	}

	entries := make(map[string]ResourceEntry, len(uris))
	for _, res := range uris {
		payload, err := s.Client.ReadResource(ctx, res.URI)
		if err != nil {
			logging.Warn("ResourceCache", "read_resource %q failed for %q: %v", res.URI, s.Descriptor.ID, err)
			continue
		}
		entries[res.URI] = ResourceEntry{
			ServerID:    s.Descriptor.ID,
			URI:         res.URI,
			Name:        res.Name,
			MimeType:    res.MIMEType,
			Description: res.Description,
			Payload:     decodeResourcePayload(payload),
		}
	}

	snapshot := ResourceSnapshot{
		ServerID:      s.Descriptor.ID,
		Entries:       entries,
		FetchedAt:     time.Now(),
		FetchDuration: time.Since(start),
	}
	snapshot.MetadataHash = computeMetadataHash(entries)
	metrics.CacheRefreshDuration.WithLabelValues(s.Descriptor.ID).Observe(snapshot.FetchDuration.Seconds())

	c.mu.Lock()
	c.snapshots[s.Descriptor.ID] = snapshot
	c.mu.Unlock()
	return nil
}

func (c *Cache) snapshot(sessions []*registry.Session) AggregatedCatalog {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshots := make(map[string]ResourceSnapshot)
	priorities := make(map[string]int)
	domains := make(map[string][]string)
	for _, s := range sessions {
		snap, ok := c.snapshots[s.Descriptor.ID]
		if !ok || !snap.isValid(c.ttl) {
			// Missing or TTL-expired: contribute an empty snapshot rather
			// than block; the background refresher or next explicit
			// Refresh() will repopulate it (spec.md §8 B1).
			snap = ResourceSnapshot{ServerID: s.Descriptor.ID, Entries: map[string]ResourceEntry{}}
		}
		snapshots[s.Descriptor.ID] = snap
		priorities[s.Descriptor.ID] = s.Descriptor.Priority
		domains[s.Descriptor.ID] = s.Descriptor.Domains
	}
	return buildCatalog(snapshots, priorities, domains)
}

// StartBackgroundRefresher runs Refresh every interval until ctx is
// cancelled (spec.md §4.3, default 1800s).
func (c *Cache) StartBackgroundRefresher(ctx context.Context, interval time.Duration) {
	refreshCtx, cancel := context.WithCancel(ctx)
	c.stopRefresher = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				if err := c.Refresh(refreshCtx); err != nil {
					logging.Warn("ResourceCache", "background refresh failed: %v", err)
				}
			}
		}
	}()
}

// Stop halts the background refresher, if running.
func (c *Cache) Stop() {
	if c.stopRefresher != nil {
		c.stopRefresher()
	}
}
