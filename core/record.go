package core

// Interaction 是一条原始交互事件（浏览/加购/购买），两个推荐器的数据来源。
// 只读：训练时只做聚合，不做修改。
type Interaction struct {
	UserID       string `json:"user_id" validate:"required"`
	ProductID    string `json:"product_id" validate:"required"`
	CategoryID   string `json:"category_id"`
	CategoryCode string `json:"category_code"`
	Brand        string `json:"brand"`
}

// ProductRatings 是某用户对某个规范化标题的全部评分，每个评分都在 [1, 5] 内。
type ProductRatings struct {
	Title   string    `json:"title" validate:"required"`
	Ratings []float64 `json:"ratings" validate:"dive,gte=1,lte=5"`
}

// UserRatings 是评分语料（JSONL）中的一行。
type UserRatings struct {
	UserID   string           `json:"user_id" validate:"required"`
	Products []ProductRatings `json:"products" validate:"dive"`
}

// RatingRecord 是展开后的 (user, title, rating) 三元组。
type RatingRecord struct {
	UserID string
	Title  string
	Rating float64
}

// Flatten 把评分语料展开为三元组；同一 (user, title) 的多次评分视为重复观测。
func Flatten(users []UserRatings) []RatingRecord {
	var out []RatingRecord
	for _, u := range users {
		for _, p := range u.Products {
			for _, r := range p.Ratings {
				out = append(out, RatingRecord{UserID: u.UserID, Title: p.Title, Rating: r})
			}
		}
	}
	return out
}
