// Package cache keeps synthesized utterances so repeated text is not sent
// to an engine twice. It has an in-memory LRU (L1) and a compressed disk
// store (L2) that survives restarts.
package cache
