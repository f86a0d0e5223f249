// Package services contains the server-side business logic: handing out
// story parts, the moderation-gated completion lifecycle, user resolution
// and read-only story queries.
package services

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dmitrijs2005/relaytale/internal/server/models"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/dmitrijs2005/relaytale/internal/server/services")

// Gate checks text and returns the violations found, or nothing.
type Gate interface {
	Check(text string) []string
}

// Archiver receives stories once their final part is complete.
type Archiver interface {
	Archive(ctx context.Context, story *models.StoryWithParts) error
}

// NopArchiver discards stories.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, *models.StoryWithParts) error { return nil }

// Picker chooses uniformly among candidates. It is safe for concurrent use.
type Picker struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPicker returns a Picker with a fixed seed, for reproducible runs.
func NewPicker(seed1, seed2 uint64) *Picker {
	return &Picker{rnd: rand.New(rand.NewPCG(seed1, seed2))}
}

// NewRandomPicker returns a Picker seeded from crypto/rand.
func NewRandomPicker() *Picker {
	var b [16]byte
	_, _ = crand.Read(b[:])
	return NewPicker(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:]))
}

// Pick returns one of ids, or "" when ids is empty.
func (p *Picker) Pick(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	p.mu.Lock()
	i := p.rnd.IntN(len(ids))
	p.mu.Unlock()
	return ids[i]
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
