// Package ratelimit is per-client-IP token bucket limiting for the tile
// API with background eviction of idle clients.
//
// State is in-memory and per instance. A tile viewer fans out dozens of
// tile requests per map move, so the bucket's burst should cover a full
// viewport. The visitor map is capped so a spray of unique addresses
// cannot grow it without bound; new addresses are refused at the cap while
// known ones keep their buckets.
package ratelimit
