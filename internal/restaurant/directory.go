// Package restaurant は対応レストランの一覧を提供する。
package restaurant

import (
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/menuman/internal/model"
)

//go:embed restaurants.yaml
var defaultYAML []byte

// Directory はレストラン定義の読み取り専用の一覧。
type Directory struct {
	restaurants []model.Restaurant
	byID        map[string]int
}

type document struct {
	Restaurants []model.Restaurant `yaml:"restaurants"`
}

// Default は組み込みのレストラン一覧を返す。
// 組み込みデータが不正な場合はpanicする。
func Default() *Directory {
	d, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded restaurant directory: %v", err))
	}
	return d
}

// Parse はYAMLからDirectoryを生成する。
// IDの重複、未知のプロバイダ、JAMIX系プロバイダのID欠落はエラーにする。
func Parse(raw []byte) (*Directory, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse restaurant directory: %w", err)
	}

	d := &Directory{byID: make(map[string]int, len(doc.Restaurants))}
	for i, r := range doc.Restaurants {
		if r.ID == "" {
			return nil, fmt.Errorf("restaurant #%d: id is required", i)
		}
		if _, dup := d.byID[r.ID]; dup {
			return nil, fmt.Errorf("restaurant %s: duplicate id", r.ID)
		}
		kind, ok := r.Provider.FeedKind()
		if !ok {
			return nil, fmt.Errorf("restaurant %s: unknown provider %q", r.ID, r.Provider)
		}
		if kind == model.FeedNestedKitchen && (r.CustomerID <= 0 || r.KitchenID <= 0) {
			return nil, fmt.Errorf("restaurant %s: customer_id and kitchen_id are required for %s", r.ID, r.Provider)
		}
		d.byID[r.ID] = len(d.restaurants)
		d.restaurants = append(d.restaurants, r)
	}
	return d, nil
}

// Find はIDでレストランを探す。
func (d *Directory) Find(id string) (model.Restaurant, bool) {
	i, ok := d.byID[id]
	if !ok {
		return model.Restaurant{}, false
	}
	return d.restaurants[i], true
}

// All は全レストランを定義順で返す。
func (d *Directory) All() []model.Restaurant {
	return slices.Clone(d.restaurants)
}

// ByCity は指定都市のレストランを定義順で返す。
func (d *Directory) ByCity(city string) []model.Restaurant {
	var out []model.Restaurant
	for _, r := range d.restaurants {
		if r.City == city {
			out = append(out, r)
		}
	}
	return out
}

// Cities はレストランのある都市を重複なしの昇順で返す。
func (d *Directory) Cities() []string {
	var cities []string
	for _, r := range d.restaurants {
		if !slices.Contains(cities, r.City) {
			cities = append(cities, r.City)
		}
	}
	slices.Sort(cities)
	return cities
}
