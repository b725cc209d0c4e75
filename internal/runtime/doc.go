// Package runtime wires configuration, the ID generator, and the optional
// reservation store into one single-node instance consumed by the HTTP
// server and the CLI.
package runtime
