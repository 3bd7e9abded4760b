package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/catalogrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译好的布尔表达式，可并发复用。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：label.recall_source == "unrated"
//   - 数值：item.score > 3.5
//   - 元信息：item.meta.brand != "apple" / item.meta.product_type == "mouse"
//   - 逻辑：item.meta.brand == "logitech" && item.score >= 4
//   - 请求参数：rctx.params.min_score <= item.score
//
// 访问不存在的 key 会在求值时报错，可先用 has(item.meta.brand) 判断。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式。表达式的结果类型必须是 bool（或动态类型）。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "compile filter expression", issues.Err())
	}
	if t := ast.OutputType().String(); t != "bool" && t != "dyn" {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput,
			fmt.Sprintf("filter expression must return bool, got %s", t))
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// String 返回原始表达式。
func (p *Program) String() string { return p.expr }

// Eval 对单个物品求值。求值失败（例如访问不存在的 key）返回 INVALID_INPUT。
func (p *Program) Eval(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, core.WrapDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "evaluate filter expression", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput,
			fmt.Sprintf("filter expression must return bool, got %T", out.Value()))
	}
	return result, nil
}

func buildInput(it *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(it.Labels))
	labelValues := make(map[string]any, len(it.Labels))
	for k, v := range it.Labels {
		labels[k] = map[string]any{"value": v.Value, "source": v.Source}
		labelValues[k] = v.Value
	}
	meta := it.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	item := map[string]any{
		"id":     it.ID,
		"score":  it.Score,
		"meta":   meta,
		"labels": labels,
	}

	rc := map[string]any{
		"user_id": "",
		"scene":   "",
		"params":  map[string]any{},
	}
	if rctx != nil {
		rc["user_id"] = rctx.UserID
		rc["scene"] = rctx.Scene
		if rctx.Params != nil {
			rc["params"] = rctx.Params
		}
	}

	return map[string]any{
		"item":  item,
		"label": labelValues,
		"rctx":  rc,
	}
}
