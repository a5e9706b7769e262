// Package dom is the in-memory document that components mount into.
//
// A Container stands in for a browser mount point: it holds the HTML of
// the last render, the node tree it came from, the listeners bound to that
// tree, and named child containers (slots) that nested components render
// into. A detached container silently ignores writes, so late results from
// a page the user already navigated away from cannot resurface.
package dom
