package summarize

// ChunkSummary is MAP's per-chunk output, retained only until REDUCE
// completes.
type ChunkSummary struct {
	ChunkIndex int
	Text       string
}

// Contact is one attendee extracted from the transcript.
type Contact struct {
	Name            *string `json:"name" jsonschema:"nullable"`
	Role            *string `json:"role" jsonschema:"nullable"`
	Location        *string `json:"location" jsonschema:"nullable"`
	IsDecisionMaker *bool   `json:"is_decision_maker" jsonschema:"nullable"`
	TenureDuration  *string `json:"tenure_duration" jsonschema:"nullable"`
}

// Company is one organization mentioned in the transcript.
type Company struct {
	Name                    *string  `json:"name" jsonschema:"nullable"`
	AUM                     *string  `json:"aum" jsonschema:"nullable"`
	ICPClassification       *int     `json:"icp_classification" jsonschema:"nullable,enum=1,enum=2"`
	Location                *string  `json:"location" jsonschema:"nullable"`
	IsClient                *bool    `json:"is_client" jsonschema:"nullable"`
	CompetitorProducts      []string `json:"competitor_products"`
	StrategiesOfInterest    []string `json:"strategies_of_interest"`
}

// Deal is one prospective or existing transaction discussed.
type Deal struct {
	TicketSize        *string  `json:"ticket_size" jsonschema:"nullable"`
	ProductsOfInterest []string `json:"products_of_interest"`
}

// MeetingData is the structured extraction output.
type MeetingData struct {
	Contacts  []Contact `json:"contacts"`
	Companies []Company `json:"companies"`
	Deals     []Deal    `json:"deals"`
}

// Empty returns a MeetingData with empty (non-nil) arrays, used as the
// low-content guard's synthesized result and as the fallback after two
// failed extraction attempts.
func Empty() MeetingData {
	return MeetingData{
		Contacts:  []Contact{},
		Companies: []Company{},
		Deals:     []Deal{},
	}
}
