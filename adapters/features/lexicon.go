package features

// Semantic categories, in the order encoded into the semantic_category feature.
const (
	CategoryNeutral = iota
	CategoryPower
	CategoryNature
	CategoryTechnology
	CategoryWealth
	CategoryMyth
	CategoryPerson
)

// categoryRoots maps each non-neutral category to the word roots that select it.
var categoryRoots = [][]string{
	CategoryNeutral:    nil,
	CategoryPower:      {"king", "max", "titan", "force", "power", "war", "iron", "steel", "thunder", "strong"},
	CategoryNature:     {"storm", "river", "wolf", "tree", "sun", "moon", "ocean", "leaf", "stone", "rain", "wind", "sea"},
	CategoryTechnology: {"tech", "byte", "bit", "net", "chain", "data", "cyber", "soft", "matic", "tron", "link"},
	CategoryWealth:     {"gold", "cash", "coin", "money", "bank", "pay", "fund", "rich", "silver", "dollar"},
	CategoryMyth:       {"zeus", "thor", "dragon", "odin", "apollo", "titan", "phoenix", "atlas", "hydra", "loki"},
	CategoryPerson:     {"son", "man", "ann", "ella", "ton", "berg", "stein", "sky", "ova", "ez"},
}

var authorityRoots = []string{
	"king", "lord", "prime", "max", "chief", "royal", "imperial", "supreme",
	"master", "general", "titan", "empire", "crown", "alpha",
}

var prestigeRoots = []string{
	"gold", "royal", "elite", "prime", "platinum", "crown", "noble", "grand",
	"diamond", "premier", "luxe", "regal",
}
