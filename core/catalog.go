package core

import (
	"fmt"
	"sort"
)

// Catalog holds the immutable achievement and collection definitions supplied
// at process start. Runtime code never creates or destroys definitions.
type Catalog struct {
	achievements []AchievementDef
	achByID      map[string]AchievementDef
	collections  []CollectionDef
	colByID      map[string]CollectionDef
}

// NewCatalog validates every definition and rejects duplicate ids. A
// requirement may reference a counter no code ever writes; it simply
// evaluates against zero.
func NewCatalog(achievements []AchievementDef, collections []CollectionDef) (*Catalog, error) {
	c := &Catalog{
		achByID: make(map[string]AchievementDef, len(achievements)),
		colByID: make(map[string]CollectionDef, len(collections)),
	}
	for _, def := range achievements {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.achByID[def.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement id %s", def.ID)
		}
		SortRequirements(def.Requirements)
		c.achByID[def.ID] = def
		c.achievements = append(c.achievements, def)
	}
	for _, def := range collections {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.colByID[def.ID]; dup {
			return nil, fmt.Errorf("duplicate collection id %s", def.ID)
		}
		c.colByID[def.ID] = def
		c.collections = append(c.collections, def)
	}
	// Priority is a display ordering only; ties break on id for stability.
	sort.SliceStable(c.achievements, func(i, j int) bool {
		if c.achievements[i].Priority != c.achievements[j].Priority {
			return c.achievements[i].Priority < c.achievements[j].Priority
		}
		return c.achievements[i].ID < c.achievements[j].ID
	})
	sort.SliceStable(c.collections, func(i, j int) bool { return c.collections[i].ID < c.collections[j].ID })
	return c, nil
}

// Achievement looks up a definition by id.
func (c *Catalog) Achievement(id string) (AchievementDef, bool) {
	def, ok := c.achByID[id]
	return def, ok
}

// Achievements returns definitions in display order.
func (c *Catalog) Achievements() []AchievementDef {
	out := make([]AchievementDef, len(c.achievements))
	copy(out, c.achievements)
	return out
}

// Collection looks up a definition by id.
func (c *Catalog) Collection(id string) (CollectionDef, bool) {
	def, ok := c.colByID[id]
	return def, ok
}

// Collections returns definitions ordered by id.
func (c *Catalog) Collections() []CollectionDef {
	out := make([]CollectionDef, len(c.collections))
	copy(out, c.collections)
	return out
}

// Item resolves a collection item definition.
func (c *Catalog) Item(collectionID, itemID string) (CollectionItemDef, bool) {
	def, ok := c.colByID[collectionID]
	if !ok {
		return CollectionItemDef{}, false
	}
	for _, it := range def.Items {
		if it.ID == itemID {
			return it, true
		}
	}
	return CollectionItemDef{}, false
}
