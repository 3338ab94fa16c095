// Package mdtext flattens markdown into plain-text excerpts.
//
// Agent replies and user messages arrive as markdown. Thread listings and
// titles want a single short line of text, so Excerpt parses the markdown,
// walks the AST collecting visible text, drops code blocks and images, and
// truncates on a rune boundary.
package mdtext
