// Package analysis provides functionalities for analyzing user complaints.
// It includes logic for determining the severity of complaints and their weight
// towards an automatic ban.
package analysis

import (
	"strangerchat/backend/internal/config"
	"strings"
)

// GetWeight returns the weight (penalty) for a given complaint type.
// It returns 0 if the complaint type is not recognized.
func GetWeight(complaintType string) int {
	return config.ComplaintWeights[complaintType]
}

// Categorize maps a /report keyword to its complaint category.
func Categorize(keyword string) (string, bool) {
	category, ok := config.ComplaintCategories[strings.ToLower(strings.TrimSpace(keyword))]
	return category, ok
}
