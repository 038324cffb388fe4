package pool

import (
	"time"

	"github.com/ejneale/inkpress/internal/watermark"
)

// VariantKind tags how a task relates to the caller's submission.
type VariantKind uint8

const (
	// VariantWhole is a standalone single-image task.
	VariantWhole VariantKind = iota
	// VariantChunk is one member of a batch submission.
	VariantChunk
)

// Variant is the explicit task-shape tag, decided at construction time and
// never inferred from the payload.
type Variant struct {
	Kind  VariantKind
	Index int
	Total int
}

// Whole returns the variant for a standalone task.
func Whole() Variant {
	return Variant{Kind: VariantWhole}
}

// Chunk returns the variant for batch member index out of total.
func Chunk(index, total int) Variant {
	return Variant{Kind: VariantChunk, Index: index, Total: total}
}

// Task is one unit of work: input bytes, a canonical watermark config, and a
// single-settlement future. The input buffer is handed to exactly one worker
// and never shared.
type Task struct {
	ID      uint64
	Input   []byte
	Config  watermark.Config
	Variant Variant

	future       *Future
	dispatchedAt time.Time
}
