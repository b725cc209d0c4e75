// Package tiny64 generates short, lexically time-sortable 64-bit
// identifiers rendered as 11-character URL-safe strings.
//
// # Format
//
// A Tiny64 value packs three fields, most significant first:
//
//	[ 42 bits: milliseconds since the Unix epoch ]
//	[ 12 bits: per-millisecond sequence          ]
//	[ 10 bits: random entropy                    ]
//
// The text form encodes the value with a base-64 alphabet ordered by ASCII,
// so byte-wise comparison of encoded strings equals numeric comparison of
// the values and therefore chronological order.
//
// # Monotonicity
//
// A Generator guards its (last_ms, sequence) state with a mutex and
// guarantees strictly increasing (timestamp_ms, sequence) pairs:
//   - If the system clock regresses, it pins to the last seen millisecond
//     and keeps incrementing the sequence until real time catches up.
//   - If 4096 IDs are issued within one millisecond, it waits (yielding,
//     bounded by the caller's context) for the clock to advance.
//
// # Cross-process coordination
//
// With WithSharedState, generators in independent processes share one
// logical sequence counter through a state file guarded by a filesystem
// lock (see pkg/lockfile). Without it, processes are fully independent and
// rely on the 10-bit random field for distinctness.
//
// Entropy is not cryptographically unpredictable and the timestamp is
// deliberately readable; neither is a goal of the format.
//
// Usage
//
//	g, _ := tiny64.NewGenerator()
//	id, err := g.Next(ctx)
//	s := id.String()        // e.g. "Obrl8O3-0QB"
//	back, err := tiny64.Parse(s)
package tiny64
