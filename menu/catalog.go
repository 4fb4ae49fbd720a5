package menu

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jrkphani/heybo-engine/errors"
)

// Catalog is the resolved ingredient menu plus the curated signature
// bowls. Immutable after construction; lookups are safe for concurrent
// use.
type Catalog struct {
	byID       map[string]Ingredient
	byCategory map[Category][]Ingredient
	signatures []SignatureBowl
}

// SignatureBowl is a curated, always-available bowl definition. The
// signature set is the terminal tier of the recommendation fallback
// chain, so it must resolve fully against the catalog at load time.
type SignatureBowl struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	IngredientIDs []string `yaml:"ingredients" json:"ingredients"`
	Popularity    int      `yaml:"popularity,omitempty" json:"popularity,omitempty"`
}

// catalogFile is the YAML document shape.
type catalogFile struct {
	Ingredients    []Ingredient    `yaml:"ingredients"`
	SignatureBowls []SignatureBowl `yaml:"signatureBowls"`
}

// NewCatalog builds a catalog from ingredients and signature bowls,
// validating every entry and every signature-bowl reference.
func NewCatalog(ingredients []Ingredient, signatures []SignatureBowl) (*Catalog, error) {
	c := &Catalog{
		byID:       make(map[string]Ingredient, len(ingredients)),
		byCategory: make(map[Category][]Ingredient),
	}

	for _, ing := range ingredients {
		if err := ing.Validate(); err != nil {
			return nil, errors.WrapAs(errors.CategoryValidation, err, "catalog", "NewCatalog", "validate ingredient")
		}
		if _, dup := c.byID[ing.ID]; dup {
			return nil, errors.WrapAs(errors.CategoryValidation,
				fmt.Errorf("duplicate ingredient id %q", ing.ID),
				"catalog", "NewCatalog", "check uniqueness")
		}
		c.byID[ing.ID] = ing
		c.byCategory[ing.Category] = append(c.byCategory[ing.Category], ing)
	}

	for _, sig := range signatures {
		if sig.ID == "" || len(sig.IngredientIDs) == 0 {
			return nil, errors.WrapAs(errors.CategoryValidation,
				fmt.Errorf("signature bowl %q is incomplete", sig.ID),
				"catalog", "NewCatalog", "validate signature bowl")
		}
		for _, id := range sig.IngredientIDs {
			if _, ok := c.byID[id]; !ok {
				return nil, errors.WrapAs(errors.CategoryValidation,
					fmt.Errorf("signature bowl %q references unknown ingredient %q", sig.ID, id),
					"catalog", "NewCatalog", "resolve signature bowl")
			}
		}
	}
	c.signatures = append([]SignatureBowl(nil), signatures...)

	return c, nil
}

// LoadCatalog parses a YAML catalog document.
func LoadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.WrapAs(errors.CategoryValidation, err, "catalog", "LoadCatalog", "parse yaml")
	}
	return NewCatalog(file.Ingredients, file.SignatureBowls)
}

// LoadCatalogFile reads and parses a YAML catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "catalog", "LoadCatalogFile", "read file")
	}
	return LoadCatalog(data)
}

// Lookup returns the ingredient with id.
func (c *Catalog) Lookup(id string) (Ingredient, bool) {
	ing, ok := c.byID[id]
	return ing, ok
}

// ByCategory returns all ingredients in a category, in catalog order.
func (c *Catalog) ByCategory(cat Category) []Ingredient {
	return append([]Ingredient(nil), c.byCategory[cat]...)
}

// Len returns the number of catalog ingredients.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// SignatureBowls returns the curated signature set.
func (c *Catalog) SignatureBowls() []SignatureBowl {
	return append([]SignatureBowl(nil), c.signatures...)
}

// BuildSignature assembles the named signature bowl from live catalog
// ingredients.
func (c *Catalog) BuildSignature(id string) (Bowl, error) {
	var def *SignatureBowl
	for i := range c.signatures {
		if c.signatures[i].ID == id {
			def = &c.signatures[i]
			break
		}
	}
	if def == nil {
		return Bowl{}, errors.WrapAs(errors.CategoryValidation,
			fmt.Errorf("unknown signature bowl %q", id),
			"catalog", "BuildSignature", "find definition")
	}

	var bowl Bowl
	for _, ingID := range def.IngredientIDs {
		ing, ok := c.Lookup(ingID)
		if !ok {
			return Bowl{}, errors.WrapAs(errors.CategoryValidation, errors.ErrIngredientUnknown,
				"catalog", "BuildSignature", fmt.Sprintf("resolve ingredient %s", ingID))
		}
		if err := bowl.Add(ing); err != nil {
			return Bowl{}, errors.Wrap(err, "catalog", "BuildSignature", fmt.Sprintf("add ingredient %s", ingID))
		}
	}
	return bowl, nil
}

// Filter returns ingredients matching every dietary tag and carrying
// none of the excluded allergens.
func (c *Catalog) Filter(tags []DietaryTag, excludeAllergens []string) []Ingredient {
	var out []Ingredient
	for _, cat := range []Category{CategoryBase, CategoryProtein, CategorySide, CategorySauce, CategoryGarnish} {
		for _, ing := range c.byCategory[cat] {
			if ing.HasAnyAllergen(excludeAllergens) {
				continue
			}
			match := true
			for _, tag := range tags {
				if !ing.HasTag(tag) {
					match = false
					break
				}
			}
			if match {
				out = append(out, ing)
			}
		}
	}
	return out
}
