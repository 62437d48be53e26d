// Package cmd implements the command-line interface of dOrder. It provides
// a hierarchical command structure for running a node and for exercising the
// ordering layer in-process.
//
// The package is organized into several subpackages:
//
//   - serve: starts a node with its membership source and status endpoint
//   - simulate: runs an ordering scenario against an in-process node
//   - config: prints the effective node configuration
//   - util: shared utilities for flags and configuration (internal use)
//
// See dorder -help for a list of all commands.
package cmd
