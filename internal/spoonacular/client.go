// Package spoonacular is a small client for the Spoonacular food API covering
// ingredient analysis, recipe search and recipe detail lookups.
package spoonacular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meal-plan-generator/internal/config"
	"meal-plan-generator/internal/shared"
)

// ErrUnavailable marks a failed or rejected call to the API.
var ErrUnavailable = errors.New("spoonacular unavailable")

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client from configuration. It returns nil when no API key is set.
func NewClient(cfg *config.Config) *Client {
	if cfg.SpoonacularAPIKey == "" {
		return nil
	}
	return &Client{
		apiKey:  cfg.SpoonacularAPIKey,
		baseURL: strings.TrimRight(cfg.SpoonacularBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.ProviderTimeout,
		},
	}
}

type Nutrient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

type RecipeSummary struct {
	ID              int      `json:"id"`
	Title           string   `json:"title"`
	ReadyInMinutes  int      `json:"readyInMinutes"`
	Servings        int      `json:"servings"`
	PricePerServing float64  `json:"pricePerServing"`
	DishTypes       []string `json:"dishTypes"`
	Cuisines        []string `json:"cuisines"`
	Diets           []string `json:"diets"`
}

type ExtendedIngredient struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
	Original string  `json:"original"`
}

type InstructionStep struct {
	Number int    `json:"number"`
	Step   string `json:"step"`
}

type AnalyzedInstruction struct {
	Steps []InstructionStep `json:"steps"`
}

type RecipeDetail struct {
	RecipeSummary
	ExtendedIngredients  []ExtendedIngredient  `json:"extendedIngredients"`
	Instructions         string                `json:"instructions"`
	AnalyzedInstructions []AnalyzedInstruction `json:"analyzedInstructions"`
	Nutrition            struct {
		Nutrients []Nutrient `json:"nutrients"`
	} `json:"nutrition"`
}

// SearchParams maps onto complexSearch query parameters. Empty fields are omitted.
type SearchParams struct {
	Query              string
	Cuisine            string
	Diet               string
	Intolerances       []string
	ExcludeIngredients []string
	Type               string
	MaxReadyTime       int
	Sort               string
	Number             int
	Offset             int
}

func (p SearchParams) values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("query", p.Query)
	set("cuisine", p.Cuisine)
	set("diet", p.Diet)
	set("intolerances", strings.Join(p.Intolerances, ","))
	set("excludeIngredients", strings.Join(p.ExcludeIngredients, ","))
	set("type", p.Type)
	set("sort", p.Sort)
	if p.MaxReadyTime > 0 {
		v.Set("maxReadyTime", strconv.Itoa(p.MaxReadyTime))
	}
	number := p.Number
	if number <= 0 {
		number = 20
	}
	v.Set("number", strconv.Itoa(number))
	if p.Offset > 0 {
		v.Set("offset", strconv.Itoa(p.Offset))
	}
	v.Set("addRecipeInformation", "true")
	return v
}

// ParseIngredients analyses "quantity unit name" lines and returns per-serving nutrient totals.
func (c *Client) ParseIngredients(ctx context.Context, lines []string, servings int) ([]Nutrient, error) {
	if servings <= 0 {
		servings = 1
	}
	form := url.Values{}
	form.Set("ingredientList", strings.Join(lines, "\n"))
	form.Set("servings", strconv.Itoa(servings))
	form.Set("includeNutrition", "true")

	var parsed []struct {
		Name      string `json:"name"`
		Nutrition struct {
			Nutrients []Nutrient `json:"nutrients"`
		} `json:"nutrition"`
	}
	if err := c.do(ctx, http.MethodPost, "/recipes/parseIngredients", nil, form, &parsed); err != nil {
		return nil, err
	}

	totals := map[string]*Nutrient{}
	var order []string
	for _, ing := range parsed {
		for _, n := range ing.Nutrition.Nutrients {
			key := strings.ToLower(n.Name)
			if t, ok := totals[key]; ok {
				t.Amount += n.Amount
				continue
			}
			nutrient := n
			totals[key] = &nutrient
			order = append(order, key)
		}
	}
	out := make([]Nutrient, 0, len(order))
	for _, key := range order {
		out = append(out, *totals[key])
	}
	return out, nil
}

// SearchRecipes runs a complexSearch query.
func (c *Client) SearchRecipes(ctx context.Context, params SearchParams) ([]RecipeSummary, error) {
	var resp struct {
		Results      []RecipeSummary `json:"results"`
		TotalResults int             `json:"totalResults"`
	}
	if err := c.do(ctx, http.MethodGet, "/recipes/complexSearch", params.values(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// RecipeInformation fetches full details, including nutrition, for one recipe.
func (c *Client) RecipeInformation(ctx context.Context, id int) (*RecipeDetail, error) {
	q := url.Values{}
	q.Set("includeNutrition", "true")
	var detail RecipeDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/recipes/%d/information", id), q, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) do(ctx context.Context, method, path string, query, form url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", c.apiKey)
	endpoint := c.baseURL + path + "?" + query.Encode()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to send request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s %s status=%d body=%s latency=%s",
			ErrUnavailable, method, path, resp.StatusCode, shared.Truncate(string(bodyBytes), 200), time.Since(start))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
