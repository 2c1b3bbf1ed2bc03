package engine

import (
	"hash/fnv"
	"sync"
)

// registry maps workflow IDs to their resident actors. It is the only
// structure touched by multiple workflows' call paths at once, so it
// is sharded: a lookup for one workflow never blocks behind an
// unrelated workflow's shard.
type registry struct {
	shards []registryShard
}

type registryShard struct {
	mu     sync.Mutex
	actors map[string]*actor
}

func newRegistry(shardCount int) *registry {
	r := &registry{shards: make([]registryShard, shardCount)}
	for i := range r.shards {
		r.shards[i].actors = make(map[string]*actor)
	}
	return r
}

func (r *registry) shardFor(workflowID string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(workflowID))
	return &r.shards[h.Sum32()%uint32(len(r.shards))]
}

// get returns the resident actor for the workflow, creating one via
// create on first reference. create must not block; the actor does its
// cold-start loading on its own goroutine.
func (r *registry) get(workflowID string, create func(string) *actor) *actor {
	s := r.shardFor(workflowID)
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors[workflowID]
	if !ok {
		a = create(workflowID)
		s.actors[workflowID] = a
	}
	return a
}

// lookup returns the resident actor without creating one.
func (r *registry) lookup(workflowID string) (*actor, bool) {
	s := r.shardFor(workflowID)
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors[workflowID]
	return a, ok
}

// remove deregisters the actor, but only if it is still the registered
// one and idle reports true under the shard lock. This closes the race
// between idle eviction and a caller that just resolved the actor:
// such a caller has either already enqueued (idle fails) or will
// observe the closed actor and retry through get.
func (r *registry) remove(workflowID string, a *actor, idle func() bool) bool {
	s := r.shardFor(workflowID)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.actors[workflowID]
	if !ok || current != a {
		return false
	}
	if !idle() {
		return false
	}
	delete(s.actors, workflowID)
	return true
}

// detach deregisters and returns the actor, if resident. Used by
// close/delete paths that stop the actor themselves.
func (r *registry) detach(workflowID string) (*actor, bool) {
	s := r.shardFor(workflowID)
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors[workflowID]
	if ok {
		delete(s.actors, workflowID)
	}
	return a, ok
}

// detachAll deregisters and returns every resident actor.
func (r *registry) detachAll() []*actor {
	var all []*actor
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for id, a := range s.actors {
			all = append(all, a)
			delete(s.actors, id)
		}
		s.mu.Unlock()
	}
	return all
}
