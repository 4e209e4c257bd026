// Package cache provides the caching layers for pronunciation audio.
// It includes an in-memory LRU cache for decoded audio buffers and a
// persistent zstd-compressed disk cache for raw fetched assets.
package cache
