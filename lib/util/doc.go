// Package util provides small concurrency and hashing building blocks shared
// by the admission layer.
//
// The package contains:
//   - functions: key hashing (FNV-1a) and seed generation
//   - future: a single-resolution Future with a listener list
//   - mpsc: a lock-free Multi-Producer Single-Consumer queue used to hand work
//     from many I/O goroutines to a single control goroutine
//
// None of the types in this package block the producer side. The Future only
// blocks when a caller explicitly waits on its Done channel.
package util
