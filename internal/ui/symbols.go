package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Check passed
	SymbolFail     = "✗" // Build or check failed
	SymbolPending  = "○" // Detail line
	SymbolProgress = "◐" // Step in progress
	SymbolComplete = "●" // Build complete
	SymbolSkipped  = "⊘" // Application skipped
	SymbolWarning  = "!" // Something the user should look at
)
