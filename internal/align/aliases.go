package align

// DefaultAliases is the built-in accent-alias table, keyed and valued in
// canonical form. It captures recognizer confusions observed with young
// readers speaking Indian English: retroflex 't' heard as 'th', 'v'/'w'
// swaps, and article reductions. Additional pairs can be layered on via
// configuration.
var DefaultAliases = map[string][]string{
	// 't' often sounds like 'th' to the recognizer.
	"three": {"tree", "free"},
	"tree":  {"three"},

	// 'v'/'w' confusion.
	"wery": {"very"},
	"ving": {"wing", "swing"},
	"wing": {"swing"},

	// Article and short-word reductions.
	"de":  {"the", "a"},
	"da":  {"the", "a"},
	"d":   {"the"},
	"dev": {"the"},
	"im":  {"in"},
	"art": {"are"},
	"ken": {"can"},

	// Singular/plural slips that should still earn credit.
	"love":   {"loves"},
	"animal": {"animals"},

	// Frequent near-homophones.
	"pram": {"from"},
	"menu": {"many"},
	"mean": {"many"},
	"he":   {"she"},
	"sure": {"she"},
	"salt": {"talk"},
}
