package quota

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Unlimited marks a quota with no ceiling.
const Unlimited = -1

const (
	TierFree  = "free"
	TierTwo   = "tier2"
	TierThree = "tier3"

	MethodOpenAI = "openai"
	MethodHybrid = "hybrid"
)

// TierProfile holds the entitlements of one subscription tier.
type TierProfile struct {
	Name                string `yaml:"name" json:"name"`
	Rank                int    `yaml:"rank" json:"rank"`
	MonthlyPlans        int    `yaml:"monthlyPlans" json:"monthlyPlans"`
	SwapsPerPlan        int    `yaml:"swapsPerPlan" json:"swapsPerPlan"`
	GenerationMethod    string `yaml:"generationMethod" json:"generationMethod"`
	NutritionValidation bool   `yaml:"nutritionValidation" json:"nutritionValidation"`
	CanSave             bool   `yaml:"canSave" json:"canSave"`
	HasPantry           bool   `yaml:"hasPantry" json:"hasPantry"`
	RequireLogin        bool   `yaml:"requireLogin" json:"requireLogin"`
	ExternalSearch      bool   `yaml:"externalSearch" json:"externalSearch"`
}

// DefaultProfiles returns the built-in tiers.
func DefaultProfiles() map[string]TierProfile {
	return map[string]TierProfile{
		TierFree: {
			Name: TierFree, Rank: 0, MonthlyPlans: 1, SwapsPerPlan: 1,
			GenerationMethod: MethodOpenAI,
		},
		TierTwo: {
			Name: TierTwo, Rank: 1, MonthlyPlans: 10, SwapsPerPlan: 3,
			GenerationMethod: MethodHybrid, NutritionValidation: true, CanSave: true, RequireLogin: true,
		},
		TierThree: {
			Name: TierThree, Rank: 2, MonthlyPlans: Unlimited, SwapsPerPlan: Unlimited,
			GenerationMethod: MethodHybrid, NutritionValidation: true, CanSave: true, HasPantry: true,
			RequireLogin: true, ExternalSearch: true,
		},
	}
}

type profilesFile struct {
	Tiers []TierProfile `yaml:"tiers"`
}

// LoadProfiles reads tier overrides from a YAML file and merges them over the defaults.
// An empty path returns the defaults.
func LoadProfiles(path string) (map[string]TierProfile, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tier profiles: %w", err)
	}
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tier profiles: %w", err)
	}

	for _, p := range file.Tiers {
		if p.Name == "" {
			return nil, fmt.Errorf("tier profile without name")
		}
		if p.GenerationMethod != MethodOpenAI && p.GenerationMethod != MethodHybrid {
			return nil, fmt.Errorf("tier %s: unknown generation method %q", p.Name, p.GenerationMethod)
		}
		profiles[p.Name] = p
	}
	return profiles, nil
}

// Names lists tier names ordered by rank.
func Names(profiles map[string]TierProfile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return profiles[names[i]].Rank < profiles[names[j]].Rank
	})
	return names
}
