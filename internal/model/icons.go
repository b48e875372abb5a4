package model

// Glyphs used by the terminal and report renderers.
// Using simple single-width characters for consistent terminal rendering
const (
	GlyphDepth    = "| " // One level of call nesting
	GlyphHidden   = "·"  // Entry whose subtree is hidden
	GlyphVisible  = "●"  // Entry whose subtree is shown
	GlyphSelected = " > "
	GlyphStale    = "≈" // Trace file changed on disk since last load
)
