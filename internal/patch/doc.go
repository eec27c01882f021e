// Package patch applies backend-provided line patches to the live buffer.
//
// A patch is an ordered sequence of line operations (delete, replace,
// append) with 1-based line numbers. Operations are applied exactly in the
// order given and line numbers are NOT adjusted for the effect of earlier
// operations in the same patch. Producers must emit line numbers that stay
// valid under sequential application, typically by ordering multi-line
// edits from the bottom of the document to the top.
//
// The cursor position is captured before the first operation and restored
// after the last, clamped to the buffer if it shrank.
package patch
