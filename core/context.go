package core

// RecommendContext 是一次请求在链路中透传的上下文。
type RecommendContext struct {
	UserID string
	// Scene 标记调用方：user、history、similar
	Scene string
	// Params 是请求级参数：product_id、exclude_ids、alpha、n
	Params map[string]any
}

// NewContext 创建带空 Params 的上下文。
func NewContext(userID, scene string) *RecommendContext {
	return &RecommendContext{UserID: userID, Scene: scene, Params: make(map[string]any)}
}

// SetParam 写入请求参数，返回 rctx 以便链式调用。
func (rctx *RecommendContext) SetParam(key string, v any) *RecommendContext {
	if rctx.Params == nil {
		rctx.Params = make(map[string]any)
	}
	rctx.Params[key] = v
	return rctx
}

// Param 读取请求参数，rctx 为 nil 时安全返回 (nil, false)。
func (rctx *RecommendContext) Param(key string) (any, bool) {
	if rctx == nil || rctx.Params == nil {
		return nil, false
	}
	v, ok := rctx.Params[key]
	return v, ok
}
