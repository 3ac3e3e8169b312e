package analytics

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	CategoryTacos   = "Tacos"
	CategoryBebidas = "Bebidas"
	CategoryConsome = "Consomé"
	CategoryKilos   = "Kilos"
	CategoryOtros   = "Otros"
)

// Checked in order; the first group with a matching keyword wins.
var categoryKeywords = []struct {
	name     string
	keywords []string
}{
	{CategoryTacos, []string{"taco"}},
	{CategoryBebidas, []string{"refresco", "agua", "café", "jugo", "boing", "coca"}},
	{CategoryConsome, []string{"consomé", "consome", "caldo"}},
	{CategoryKilos, []string{"kilo", "kg"}},
}

var categoryOrder = []string{CategoryTacos, CategoryBebidas, CategoryConsome, CategoryKilos, CategoryOtros}

var categoryPalette = []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7", "#DDA0DD"}

// Classify maps an item name to its menu category by case-insensitive
// substring match.
func Classify(name string) string {
	return newClassifier().classify(name)
}

// classifier is not safe for concurrent use; cases.Caser keeps state.
type classifier struct {
	caser cases.Caser
}

func newClassifier() *classifier {
	return &classifier{caser: cases.Fold()}
}

func (c *classifier) fold(s string) string {
	return c.caser.String(norm.NFC.String(s))
}

func (c *classifier) classify(name string) string {
	folded := c.fold(name)
	for _, group := range categoryKeywords {
		for _, keyword := range group.keywords {
			if strings.Contains(folded, c.fold(keyword)) {
				return group.name
			}
		}
	}
	return CategoryOtros
}
