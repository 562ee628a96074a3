// Package render batches drawing operations, applying them to a [Surface]
// once per display frame.
//
// Operations are device independent: coordinates are in the units the
// compute side draws in, and the Surface is responsible for scaling them.
// Within a frame, operations are applied in exactly the order they were
// appended, e.g. a [CopyRect] used to scroll must be applied before the
// [DrawText] that fills the exposed region.
package render
