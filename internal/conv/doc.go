// Package conv provides checked integer conversions.
//
// Page counts are uint64, byte sizes are int, and page bitmaps index with
// uint32. Crossing between them goes through these helpers wherever the value
// comes from a caller; conversions bounded by construction use plain casts.
package conv
