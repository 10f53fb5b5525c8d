package extraction

// Term is a trigger phrase of a category. Importance scales each occurrence.
type Term struct {
	Text       string
	Importance float64
}

// Category is a named set of trigger terms. Intent categories are recognized
// in queries by fixed patterns instead of the term scan.
type Category struct {
	Name   string
	Terms  []Term
	Intent bool
}

// Category and intent concept names.
const (
	CategoryBusiness       = "business"
	CategoryTechnical      = "technical"
	CategoryWeather        = "weather"
	CategoryGreeting       = "greeting"
	CategoryEducation      = "education"
	CategoryHealthcare     = "healthcare"
	CategoryProduct        = "product"
	CategoryLocation       = "location"
	CategoryTime           = "time"
	CategoryFinancial      = "financial"
	CategoryWeatherRequest = "weather_request"
)

var highImportance = map[string]bool{
	"weather": true, "temperature": true, "policy": true,
	"employee": true, "system": true, "algorithm": true,
}

var mediumImportance = map[string]bool{
	"work": true, "data": true, "meeting": true, "project": true, "feature": true,
}

// importance returns 2.0 for high-importance terms, 1.5 for medium and 1.0 otherwise.
func importance(term string) float64 {
	switch {
	case highImportance[term]:
		return 2.0
	case mediumImportance[term]:
		return 1.5
	}
	return 1.0
}

func terms(texts ...string) []Term {
	out := make([]Term, len(texts))
	for i, t := range texts {
		out[i] = Term{Text: t, Importance: importance(t)}
	}
	return out
}

// DefaultCategories is the built-in category table. Table order breaks weight
// ties in extraction output.
var DefaultCategories = []Category{
	{Name: CategoryBusiness, Terms: terms(
		"policy", "procedure", "employee", "company", "work", "office", "meeting",
		"salary", "benefits", "vacation", "hours", "schedule", "department",
		"manager", "team", "project", "deadline", "budget", "revenue",
	)},
	{Name: CategoryTechnical, Terms: terms(
		"algorithm", "data", "structure", "programming", "software", "system",
		"database", "server", "network", "security", "bug", "feature",
		"deployment", "testing", "debugging", "optimization", "performance",
	)},
	{Name: CategoryWeather, Terms: terms(
		"weather", "temperature", "forecast", "rain", "sunny", "cloudy", "wind",
		"storm", "snow", "humidity", "climate",
	)},
	{Name: CategoryGreeting, Intent: true, Terms: terms(
		"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
		"thanks", "thank you", "bye", "goodbye",
	)},
	{Name: CategoryEducation, Terms: terms(
		"course", "syllabus", "assignment", "exam", "student", "grade", "class",
		"homework", "lecture", "professor", "university", "degree",
	)},
	{Name: CategoryHealthcare, Terms: terms(
		"patient", "medical", "diagnosis", "treatment", "symptom", "medication",
		"doctor", "hospital", "clinic", "health", "disease", "therapy",
	)},
	{Name: CategoryProduct, Terms: terms(
		"specification", "feature", "price", "warranty", "manual", "guide",
		"quality", "brand", "model", "version", "catalog",
	)},
	{Name: CategoryLocation, Terms: terms(
		"address", "location", "place", "city", "country", "street", "building",
		"map", "directions", "distance", "travel", "transportation",
	)},
	{Name: CategoryTime, Terms: terms(
		"date", "schedule", "calendar", "appointment", "deadline",
		"duration", "period", "monday", "friday", "weekend",
	)},
	{Name: CategoryFinancial, Terms: terms(
		"money", "cost", "price", "payment", "budget", "invoice", "bill",
		"discount", "tax", "profit", "expense", "financial", "banking",
	)},
	{Name: CategoryWeatherRequest, Intent: true, Terms: terms(
		"weather in", "temperature in", "forecast for", "what's the weather",
	)},
}
