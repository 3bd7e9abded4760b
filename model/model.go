package model

// RatingModel 是排序阶段的最小抽象：给定用户与标题，输出一个可比较的预测评分。
// 具体实现可以是协同过滤（SVD）、内容相似度或二者的混合。
type RatingModel interface {
	Name() string
	PredictRating(userID, title string) (float64, error)
}

// RatingFunc 把普通函数适配为 RatingModel。
type RatingFunc struct {
	ModelName string
	Fn        func(userID, title string) (float64, error)
}

func (f RatingFunc) Name() string { return f.ModelName }

func (f RatingFunc) PredictRating(userID, title string) (float64, error) {
	return f.Fn(userID, title)
}
