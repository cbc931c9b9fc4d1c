package entity

// ErrorPolicy decides what the aggregation engine does with a failed fetch.
type ErrorPolicy int

const (
	// PolicySurface reports the failure in the user-visible error list.
	PolicySurface ErrorPolicy = iota
	// PolicySwallow only traces the failure; used by supplementary account types (earn, staking).
	PolicySwallow
)

func (p ErrorPolicy) String() string {
	if p == PolicySwallow {
		return "swallow"
	}
	return "surface"
}

// SourceCategory groups registered sources for presentation.
type SourceCategory string

const (
	SourceCategoryExchange SourceCategory = "cex"
	SourceCategoryHot      SourceCategory = "hot"
	SourceCategoryCold     SourceCategory = "cold"
)

// SourceInfo is an entry of the known-sources registry.
type SourceInfo struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Category SourceCategory `json:"category"`
	Kind     string         `json:"kind,omitempty"`
}
