package dgwidgets

// emoji constants
const (
	NavRight     = "➡"
	NavLeft      = "⬅"
	NavEnd       = "⏩"
	NavBeginning = "⏪"
	NavNumbers   = "🔢"
)
