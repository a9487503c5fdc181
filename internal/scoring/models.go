package scoring

// Transaction is one purchase record as supplied by a transaction source.
// Only Date, Amount and Category take part in scoring; the rest is carried
// through for callers that display the records.
type Transaction struct {
	ID          string  `json:"id,omitempty"`
	Date        string  `json:"date"`               // ISO-8601, "Z" suffix allowed
	Amount      float64 `json:"amount,omitempty"`   // absent decodes to 0
	Category    string  `json:"category,omitempty"` // empty is ignored by diversity
	Description string  `json:"description,omitempty"`
	Merchant    string  `json:"merchant,omitempty"`
}

// Factor names used as keys of Breakdown.Factors.
const (
	FactorVolume         = "volume"
	FactorConsistency    = "consistency"
	FactorAmount         = "amount"
	FactorDiversity      = "diversity"
	FactorRecentActivity = "recentActivity"
)

// Score bounds and constants.
const (
	MinScore     = 300
	MaxScore     = 850
	BaseScore    = 500
	DefaultScore = 650

	MaxVolumeScore         = 100
	MaxConsistencyScore    = 100
	MaxAmountScore         = 100
	MaxDiversityScore      = 100
	MaxRecentActivityScore = 50
)

// Factor is a single sub-score in a Breakdown.
type Factor struct {
	Score       int    `json:"score"`
	MaxScore    int    `json:"maxScore"`
	Description string `json:"description"`
}

// Breakdown exposes the aggregate score together with its five sub-scores.
// It is recomputed on every call.
type Breakdown struct {
	TotalScore int               `json:"totalScore"`
	Factors    map[string]Factor `json:"factors"`
}
