// Package reserve implements the optional collision-reservation store: a
// Pebble database recording a first-writer-wins claim per issued ID. The
// core generator does not depend on it; the runtime consults it when
// enabled to turn "collisions are improbable" into "collisions are
// detected".
package reserve
