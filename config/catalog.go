package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"achievekit/core"
)

// catalogDoc is the on-disk shape of the content catalog.
type catalogDoc struct {
	Achievements []achievementDoc `json:"achievements" yaml:"achievements"`
	Collections  []collectionDoc  `json:"collections" yaml:"collections"`
}

type achievementDoc struct {
	ID           string           `json:"id" yaml:"id"`
	Name         string           `json:"name" yaml:"name"`
	Description  string           `json:"description" yaml:"description"`
	Category     string           `json:"category" yaml:"category"`
	Rarity       string           `json:"rarity" yaml:"rarity"`
	Requirements []requirementDoc `json:"requirements" yaml:"requirements"`
	Reward       []rewardDoc      `json:"reward" yaml:"reward"`
	Priority     int              `json:"priority" yaml:"priority"`
}

type requirementDoc struct {
	Key       string `json:"key" yaml:"key"`
	Threshold int64  `json:"threshold" yaml:"threshold"`
}

type rewardDoc struct {
	Kind   string `json:"kind" yaml:"kind"`
	Amount int64  `json:"amount" yaml:"amount"`
	ItemID string `json:"item_id,omitempty" yaml:"item_id,omitempty"`
}

type collectionDoc struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Items       []itemDoc   `json:"items" yaml:"items"`
	Reward      []rewardDoc `json:"reward" yaml:"reward"`
}

type itemDoc struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	Rarity      string `json:"rarity" yaml:"rarity"`
}

// LoadCatalog reads the content catalog from a YAML or JSON file and builds
// the validated runtime catalog. Any malformed definition fails the load;
// content errors are configuration errors and should stop startup.
func LoadCatalog(path string) (*core.Catalog, error) {
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	var doc catalogDoc
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("catalog file %s: unsupported extension (want .yaml, .yml or .json)", path)
	}

	return buildCatalog(doc)
}

func buildCatalog(doc catalogDoc) (*core.Catalog, error) {
	achievements := make([]core.AchievementDef, 0, len(doc.Achievements))
	for _, a := range doc.Achievements {
		reqs := make([]core.Requirement, 0, len(a.Requirements))
		for _, r := range a.Requirements {
			reqs = append(reqs, core.Requirement{Key: core.CounterKey(r.Key), Threshold: r.Threshold})
		}
		achievements = append(achievements, core.AchievementDef{
			ID:           a.ID,
			Name:         a.Name,
			Description:  a.Description,
			Category:     core.Category(a.Category),
			Rarity:       core.Rarity(a.Rarity),
			Requirements: reqs,
			Reward:       buildManifest(a.Reward),
			Priority:     a.Priority,
		})
	}

	collections := make([]core.CollectionDef, 0, len(doc.Collections))
	for _, c := range doc.Collections {
		items := make([]core.CollectionItemDef, 0, len(c.Items))
		for _, it := range c.Items {
			items = append(items, core.CollectionItemDef{
				ID:          it.ID,
				Name:        it.Name,
				Description: it.Description,
				Category:    it.Category,
				Rarity:      core.Rarity(it.Rarity),
			})
		}
		collections = append(collections, core.CollectionDef{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Items:       items,
			Reward:      buildManifest(c.Reward),
		})
	}

	catalog, err := core.NewCatalog(achievements, collections)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog content: %w", err)
	}
	return catalog, nil
}

func buildManifest(docs []rewardDoc) core.Manifest {
	if len(docs) == 0 {
		return nil
	}
	m := make(core.Manifest, 0, len(docs))
	for _, r := range docs {
		m = append(m, core.Reward{Kind: core.RewardKind(r.Kind), Amount: r.Amount, ItemID: r.ItemID})
	}
	return m
}
