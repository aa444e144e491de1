package models

// Scope values for issue_applies_to.
const (
	ScopeEntireRoute  = "Entire route"
	ScopeSpecificStop = "Specific stop"
)

// DefaultUnknownOption is the first entry of the liaison and vehicle lists.
const DefaultUnknownOption = "I don't know"

var IDCLiaisonOptions = []string{
	DefaultUnknownOption,
	"Adam M.",
	"Azhar N.",
	"Bhugesh Y.",
	"Emmanuelle L.",
	"Jeffrey L.",
	"Meshwa K.",
	"Farsheed F.",
	"Safiétou D.",
	"Sam A.",
	"Will M.",
}

var VehicleTypeOptions = []string{
	DefaultUnknownOption,
	"Gas 120 cuft",
	"Gas 280 cuft",
	"Cargo Bikes",
	"Ford E-transit EV",
	"Esprinter EV",
	"Brightdrop EV",
}

var ScopeOptions = []string{ScopeEntireRoute, ScopeSpecificStop}

// SeverityOptions is ordered from least to most severe.
var SeverityOptions = []string{"Low", "Medium", "High", "Critical"}

// SatisfactionOptions is the 0-5 rating scale; "0" means not applicable.
var SatisfactionOptions = []string{"0", "1", "2", "3", "4", "5"}

var TimeLostOptions = []string{"0–15 min", "15–30 min", "30–60 min", "60+ min"}

// IssueCategory is one node of the fixed two-level issue taxonomy.
type IssueCategory struct {
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}

// IssueCategories is the taxonomy in display order.
var IssueCategories = []IssueCategory{
	{Name: "Routing", Subcategories: []string{"Unnecessary detour", "Loop / backtracking", "Stop order doesn’t make sense"}},
	{Name: "Address / GPS location", Subcategories: []string{"Incorrect address", "Incorrect GPS pin", "Entrance/door is not at the right location"}},
	{Name: "Access", Subcategories: []string{"Gated community / security", "Access code", "Drop-off location hard to find"}},
	{Name: "Road conditions", Subcategories: []string{"Traffic", "Construction", "Weather"}},
	{Name: "Parking", Subcategories: []string{"Hard to park", "Truck restrictions"}},
	{Name: "Business / customer issue", Subcategories: []string{"Business closed", "Missing or inadequate instructions"}},
	{Name: "Problems related to the app", Subcategories: []string{"Connection problems (uploading POD)", "Offline map issues"}},
}

// SubcategoriesFor returns the allowed sub-categories of a main category and
// whether the category exists.
func SubcategoriesFor(category string) ([]string, bool) {
	for _, c := range IssueCategories {
		if c.Name == category {
			return c.Subcategories, true
		}
	}
	return nil, false
}

// ContainsOption reports whether value is one of options.
func ContainsOption(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

// Attachment extension allow-lists. The documents variant widens the image set.
var (
	ImageExtensions    = []string{".png", ".jpg", ".jpeg"}
	DocumentExtensions = []string{".png", ".jpg", ".jpeg", ".pdf", ".xlsx", ".csv", ".txt"}
)
