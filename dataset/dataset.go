// Package dataset 是原始数据的解析边界：商品目录 CSV、交互事件 CSV、评分 JSONL。
//
// 每种记录都有显式的结构体与校验；不符合的记录被跳过并计入 Report，
// 缺少必需列等结构性问题作为 INVALID_INPUT 返回给调用方。
package dataset

import (
	"github.com/go-playground/validator/v10"

	"github.com/rushteam/catalogrec/core"
)

// Report 汇总一次加载的读取与跳过条数。
type Report struct {
	Source  string
	Read    int
	Skipped int
}

var validate = validator.New()

func invalidInput(msg string, err error) error {
	if err == nil {
		return core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput, msg)
	}
	return core.WrapDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput, msg, err)
}
