package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/domain"
)

// Fingerprint identifies one exact generation request for in-flight
// coalescing: same material, same artifact type, same source content, same
// generation parameters. It backs the dedup lock and nothing else; it is
// never persisted.
type Fingerprint struct {
	MaterialID uuid.UUID
	Type       domain.ArtifactType
	SourceHash string
	ParamsHash string
}

func (f Fingerprint) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", f.MaterialID, f.Type, f.SourceHash, f.ParamsHash)
}

// HashParams renders a parameter map deterministically (json marshals map
// keys in sorted order) and hashes it for the fingerprint.
func HashParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// Flight is one in-flight generation. The leader populates the result and
// closes done; joiners block on done and read the same result.
type Flight struct {
	done    chan struct{}
	version *domain.ArtifactVersion
	err     error
}

// Wait blocks until the flight completes or the caller's context ends.
// Every waiter observes the identical outcome, success or failure.
func (f *Flight) Wait(ctx context.Context) (*domain.ArtifactVersion, error) {
	select {
	case <-f.done:
		return f.version, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FlightRegistry guarantees at most one in-flight generation per
// fingerprint. The first caller for a key leads; everyone else joins the
// existing flight and waits on its result instead of issuing a duplicate
// upstream call.
type FlightRegistry struct {
	mu       sync.Mutex
	inflight map[string]*Flight
}

func NewFlightRegistry() *FlightRegistry {
	return &FlightRegistry{inflight: make(map[string]*Flight)}
}

// JoinOrLead returns the flight for key and whether the caller is its
// leader. Exactly one caller per key observes leader=true at any moment.
func (r *FlightRegistry) JoinOrLead(key string) (*Flight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.inflight[key]; ok {
		return existing, false
	}
	created := &Flight{done: make(chan struct{})}
	r.inflight[key] = created
	return created, true
}

// Complete publishes the flight's outcome, releases all waiters and removes
// the entry so a later request can try again. Called exactly once per
// flight, on every path, success or failure.
func (r *FlightRegistry) Complete(key string, f *Flight, version *domain.ArtifactVersion, err error) {
	r.mu.Lock()
	if current, ok := r.inflight[key]; ok && current == f {
		delete(r.inflight, key)
	}
	r.mu.Unlock()

	f.version = version
	f.err = err
	close(f.done)
}

// Len reports the number of in-flight generations, for introspection.
func (r *FlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}
