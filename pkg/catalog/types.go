package catalog

// Category identifies one of the fixed scenario categories.
type Category string

const (
	CategoryVisaApplication    Category = "visa_application"
	CategoryStatusChange       Category = "status_change"
	CategoryFamilyImmigration  Category = "family_immigration"
	CategoryDeportationDefense Category = "deportation_defense"
	CategoryHumanitarian       Category = "humanitarian"
)

// Categories lists every scenario category in display order.
var Categories = []Category{
	CategoryVisaApplication,
	CategoryStatusChange,
	CategoryFamilyImmigration,
	CategoryDeportationDefense,
	CategoryHumanitarian,
}

// CategoryDisplay maps categories to human-readable names.
var CategoryDisplay = map[Category]string{
	CategoryVisaApplication:    "Visa Application",
	CategoryStatusChange:       "Status Change",
	CategoryFamilyImmigration:  "Family Immigration",
	CategoryDeportationDefense: "Deportation Defense",
	CategoryHumanitarian:       "Humanitarian",
}

// ValidCategory reports whether c belongs to the fixed category set.
func ValidCategory(c Category) bool {
	_, ok := CategoryDisplay[c]
	return ok
}

// Persona describes a simulated immigration client counterparty.
// Reference data, read-only during orchestration.
type Persona struct {
	Name            string   `json:"name"`
	Age             int      `json:"age"`
	Nationality     string   `json:"nationality"`
	CountryFlag     string   `json:"countryFlag"`
	CurrentStatus   string   `json:"currentStatus"`
	VisaType        string   `json:"visaType"`
	ComplexityLevel string   `json:"complexityLevel"` // low, medium, high
	Backstory       string   `json:"backstory"`
	Goals           []string `json:"goals"`
	Challenges      []string `json:"challenges"`
	FamilyInfo      string   `json:"familyInfo,omitempty"`
	EmploymentInfo  string   `json:"employmentInfo,omitempty"`
	EducationInfo   string   `json:"educationInfo,omitempty"`
	Tags            []string `json:"tags"`
}

// ToolParameter defines one typed parameter of a simulated tool.
type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Tool describes a callable capability offered to the agent under test.
// The declared return shape also drives the tool simulator.
type Tool struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Parameters        []ToolParameter `json:"parameters"`
	ReturnType        string          `json:"returnType"`
	ReturnDescription string          `json:"returnDescription"`
}

// Scenario is one evaluation scenario binding a persona to a situation.
type Scenario struct {
	Title           string   `json:"title"`
	Category        Category `json:"category"`
	Complexity      string   `json:"complexity"` // low, medium, high
	Description     string   `json:"description"`
	PersonaIndex    int      `json:"personaIndex"`
	ExpectedTools   []string `json:"expectedTools"`
	SuccessCriteria []string `json:"successCriteria"`
	MaxTurns        int      `json:"maxTurns"`
}
