package parser

import (
	"strings"

	"voicexpense/internal/core"
)

type categoryKeywords struct {
	category string
	keywords []string
}

// taxonomy is scanned linearly; the first category with any matching
// keyword wins, so declaration order is part of the classification
// contract. Do not reorder.
var taxonomy = []categoryKeywords{
	{core.CategoryFood, []string{"coffee", "dinner", "lunch", "breakfast", "restaurant", "snack", "meal", "cafe", "canteen"}},
	{core.CategorySubscription, []string{"netflix", "spotify", "prime", "membership", "youtube"}},
	{core.CategoryTravel, []string{"cab", "taxi", "uber", "ola", "bus", "train", "flight", "airport"}},
	{core.CategoryGroceries, []string{"grocery", "market", "vegetables", "milk", "bread", "supermarket"}},
	{core.CategoryHealth, []string{"medicine", "doctor", "hospital", "clinic", "pharmacy", "gym"}},
	{core.CategoryUtilities, []string{"electricity", "water", "internet", "wifi", "bill", "mobile", "phone"}},
	{core.CategoryShopping, []string{"clothes", "shoes", "mall", "shopping"}},
	{core.CategoryEntertainment, []string{"movie", "game", "party", "concert"}},
	{core.CategoryEducation, []string{"book", "course", "class", "tuition", "stationery"}},
}

// ClassifyCategory maps a description to a category by case-insensitive
// keyword substring matching. Unmatched descriptions fall back to Other;
// a miss is a defined default, not an error.
func ClassifyCategory(description string) string {
	lower := strings.ToLower(description)
	for _, entry := range taxonomy {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return core.CategoryOther
}
