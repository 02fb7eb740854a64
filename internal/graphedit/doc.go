// Package graphedit applies exact-text replacements to a pretty-printed
// workflow graph document.
//
// Matching tries an ordered list of variants of the old text (raw, then with
// literal \n sequences unescaped, then with newlines escaped) and uses the
// first variant that occurs. A replacement landing inside a JSON string
// literal is re-encoded as a string body so the document stays valid JSON;
// one landing outside any string literal is inserted verbatim.
//
// Apply is a pure function. Fetching, re-parsing and persisting the result
// are the caller's job (see package graphsync).
package graphedit
