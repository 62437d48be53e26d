// Package common holds the ambient pieces shared by every node component:
// the log output format and the node configuration.
//
// Logging goes through the Dragonboat logger facade. Every package obtains its
// logger once with logger.GetLogger("<name>") and InitLoggers installs the
// formatting factory and applies the configured level to all known names, so
// that raft internals and admission components print in one format.
//
// NodeConfig collects every tunable of a node (membership source, segment
// layout, worker pool size, lock timeouts, version generator kind and status
// endpoint). The cmd packages fill it from flags, environment variables and
// .env files; String renders a human readable summary for the startup log.
package common
