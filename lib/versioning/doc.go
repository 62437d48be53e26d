// Package versioning provides entry versions and the generators that create
// them.
//
// Versions are compared with a four-way result (Before, After, Equal,
// Conflicting). Two versions of different concrete kinds cannot be compared
// and yield ErrIncomparableVersions. The NonExisting sentinel stands for a key
// that was never written; it is Before every real version and Equal to itself.
//
// Version kinds:
//
//   - NumericVersion:          one 64 bit counter, ordered by magnitude
//   - SimpleClusteredVersion:  (topology id, counter), ordered by topology id
//     first and counter second
//
// Generators:
//
//   - NumericVersionGenerator (local):      a plain counter
//   - NumericVersionGenerator (clustered):  the counter is or'ed with a rank
//     prefix (viewID << 48 | rank << 32) maintained by a RankCalculator, so
//     that nodes with independent counters never produce the same number
//   - SimpleClusteredVersionGenerator:      stamps versions with the current
//     topology id, which it receives as a cluster topology listener
//   - RandomVersionGenerator:               random numeric versions that only
//     support equality checks
//
// Clustered generators fail fast with ErrRankNotInitialized until the first
// view or topology was observed.
package versioning
