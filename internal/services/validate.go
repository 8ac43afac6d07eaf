package services

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// SubmissionInput carries the class content fields accepted when creating
// or editing a submission. Optional fields are empty strings / nil.
type SubmissionInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`

	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Timezone  string `json:"timezone"`

	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`

	InstructorName string `json:"instructor_name"`
	ProviderName   string `json:"provider_name"`
	ContactEmail   string `json:"contact_email"`
	ContactPhone   string `json:"contact_phone"`

	Price           string `json:"price"`
	CECredits       *int   `json:"ce_credits"`
	RegistrationURL string `json:"registration_url"`
	ImageURL        string `json:"image_url"`
}

// Categories a class can be listed under.
var Categories = []string{
	"Implants",
	"Endodontics",
	"Pediatric Dentistry",
	"Orthodontics",
	"Periodontics",
	"Oral Surgery",
	"Cosmetic Dentistry",
	"Restorative",
	"Practice Management",
	"Compliance",
	"Sedation",
	"Digital Dentistry",
	"Laser Dentistry",
	"Emergency Medicine",
	"Geriatric Dentistry",
	"Photography",
	"Wellness",
	"Other",
}

var states = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true,
}

var (
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

func parsePrice(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func isCategory(c string) bool {
	for _, cat := range Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// Normalize trims whitespace from all free-text fields.
func (in *SubmissionInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.AddressLine1 = strings.TrimSpace(in.AddressLine1)
	in.AddressLine2 = strings.TrimSpace(in.AddressLine2)
	in.City = strings.TrimSpace(in.City)
	in.ZipCode = strings.TrimSpace(in.ZipCode)
	in.InstructorName = strings.TrimSpace(in.InstructorName)
	in.ProviderName = strings.TrimSpace(in.ProviderName)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	in.ContactPhone = strings.TrimSpace(in.ContactPhone)
	in.Price = strings.TrimSpace(in.Price)
	in.RegistrationURL = strings.TrimSpace(in.RegistrationURL)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
}

// Validate checks the content rules. Returns a *ValidationError naming
// the first offending field, or nil.
func (in *SubmissionInput) Validate() error {
	if in.Title == "" {
		return &ValidationError{"title", "title is required"}
	}
	if utf8.RuneCountInString(in.Title) > 100 {
		return &ValidationError{"title", "title must be 100 characters or less"}
	}
	if in.Description == "" {
		return &ValidationError{"description", "description is required"}
	}
	if utf8.RuneCountInString(in.Description) > 1000 {
		return &ValidationError{"description", "description must be 1000 characters or less"}
	}
	if !isCategory(in.Category) {
		return &ValidationError{"category", "unknown category"}
	}

	if _, err := time.Parse(dateLayout, in.StartDate); err != nil {
		return &ValidationError{"start_date", "start date must be YYYY-MM-DD"}
	}
	if in.EndDate != "" {
		if _, err := time.Parse(dateLayout, in.EndDate); err != nil {
			return &ValidationError{"end_date", "end date must be YYYY-MM-DD"}
		}
		// ISO dates compare lexicographically
		if in.EndDate < in.StartDate {
			return &ValidationError{"end_date", "end date must be after start date"}
		}
	}
	if _, err := time.Parse(timeLayout, in.StartTime); err != nil {
		return &ValidationError{"start_time", "start time must be HH:MM"}
	}
	if _, err := time.Parse(timeLayout, in.EndTime); err != nil {
		return &ValidationError{"end_time", "end time must be HH:MM"}
	}

	if in.AddressLine1 == "" {
		return &ValidationError{"address_line1", "address is required"}
	}
	if in.City == "" {
		return &ValidationError{"city", "city is required"}
	}
	if !states[in.State] {
		return &ValidationError{"state", "unknown state"}
	}
	if !zipPattern.MatchString(in.ZipCode) {
		return &ValidationError{"zip_code", "invalid ZIP code"}
	}

	if in.InstructorName == "" {
		return &ValidationError{"instructor_name", "instructor name is required"}
	}
	if in.ProviderName == "" {
		return &ValidationError{"provider_name", "provider name is required"}
	}
	if in.ContactEmail != "" && !emailPattern.MatchString(in.ContactEmail) {
		return &ValidationError{"contact_email", "invalid email format"}
	}

	price, err := parsePrice(in.Price)
	if err != nil {
		return &ValidationError{"price", "price must be a valid number"}
	}
	if price.IsNegative() {
		return &ValidationError{"price", "price must not be negative"}
	}
	if in.CECredits != nil && *in.CECredits < 0 {
		return &ValidationError{"ce_credits", "CE credits must not be negative"}
	}

	if !strings.HasPrefix(in.RegistrationURL, "http://") && !strings.HasPrefix(in.RegistrationURL, "https://") {
		return &ValidationError{"registration_url", "URL must start with http:// or https://"}
	}

	return nil
}
