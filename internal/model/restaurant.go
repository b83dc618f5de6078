package model

// Provider はメニューを配信する上流事業者を表す。
type Provider string

const (
	ProviderSodexo       Provider = "sodexo"
	ProviderJuvenes      Provider = "juvenes"
	ProviderCampusravita Provider = "campusravita"
)

// FeedKind はプロバイダが配信するフィード形式を返す。
// 未知のプロバイダの場合はokがfalseになる。
func (p Provider) FeedKind() (kind FeedKind, ok bool) {
	switch p {
	case ProviderSodexo:
		return FeedFlatWeekly, true
	case ProviderJuvenes, ProviderCampusravita:
		return FeedNestedKitchen, true
	default:
		return 0, false
	}
}

// Restaurant はレストラン定義を表す。
// JAMIX系プロバイダの場合のみCustomerIDとKitchenIDを持つ。
type Restaurant struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	City       string   `json:"city" yaml:"city"`
	Address    string   `json:"address" yaml:"address"`
	Provider   Provider `json:"provider" yaml:"provider"`
	CustomerID int      `json:"customer_id,omitempty" yaml:"customer_id,omitempty"`
	KitchenID  int      `json:"kitchen_id,omitempty" yaml:"kitchen_id,omitempty"`
}
