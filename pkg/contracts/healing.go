package contracts

// HealingDomain is the closed set of failure domains the dispatcher routes
// on. Adding a domain means adding a strategy table entry, so the type is
// deliberately not open-ended.
type HealingDomain string

const (
	DomainUI       HealingDomain = "UI"
	DomainNetwork  HealingDomain = "NETWORK"
	DomainLogic    HealingDomain = "LOGIC"
	DomainDatabase HealingDomain = "DATABASE"
)

// StrategyName identifies a healing strategy in reports, events, and
// predictor state.
type StrategyName string

const (
	StrategyNeuralMapRelocate   StrategyName = "NEURAL_MAP_RELOCATE"
	StrategySemanticReconstruct StrategyName = "SEMANTIC_RECONSTRUCT"
	StrategyResurrectNode       StrategyName = "RESURRECT_NODE"
	StrategyRotateNode          StrategyName = "ROTATE_NODE"
	StrategyFallbackStub        StrategyName = "FALLBACK_STUB"
	StrategyHeuristicPatch      StrategyName = "HEURISTIC_PATCH"
)

// ErrorSignature is the coarse classification of an error message used to
// key predictor lookups.
type ErrorSignature string

const (
	SignatureTimeout ErrorSignature = "TIMEOUT"
	SignatureVisual  ErrorSignature = "VISUAL"
	SignatureSyntax  ErrorSignature = "SYNTAX"
	SignatureDBConn  ErrorSignature = "DB_CONN"
	SignatureGeneric ErrorSignature = "GENERIC"
)
