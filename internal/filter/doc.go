// Package filter compiles CEL expressions over decoded Tiny64 fields, used
// by the inspect command and the batch decode API to select IDs by
// timestamp, sequence, randomness or age.
package filter
