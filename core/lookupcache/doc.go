// Package lookupcache provides a small TTL cache with stampede protection.
//
// It replaces the usual module-level cache singleton: the cache is an
// explicit object owned by the process's dependency-injection root,
// constructed once at startup with an explicit TTL, and passed by reference
// to consumers. Concurrent misses for the same key share a single load via
// singleflight.
//
// The primary consumer is the partition catalog: the mapping from partition
// name to remote table reference, which changes rarely but is needed by
// every sync run and web request.
package lookupcache
