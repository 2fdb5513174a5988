// Package albumcover searches pluggable cover-art providers for an artist/album
// pair and picks the best image among their results.
//
// A Fetcher queues requests and runs at most MaxConcurrentRequests searches at a
// time. Each Search fans the query out to every registered Provider, waits for
// them (bounded by SearchTimeout), and unless the request is search-only, downloads
// candidate images in rounds, one per provider per round, until an image scores at
// least GoodScore or the candidates run out. Every request produces exactly one
// outcome unless it is cancelled.
package albumcover
