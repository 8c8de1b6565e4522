package constants

// EntityType tags a span found by the entity tagger.
type EntityType string

const (
	EntityDate       EntityType = "DATE"
	EntityParty      EntityType = "PARTY"
	EntityObligation EntityType = "OBLIGATION"
)

// EntityTypes lists the tag categories in tagger output order.
var EntityTypes = []EntityType{EntityDate, EntityParty, EntityObligation}
