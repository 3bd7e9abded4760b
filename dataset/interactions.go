package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rushteam/catalogrec/core"
)

// InteractionColumns 是交互事件 CSV 的必需列。
var InteractionColumns = []string{"user_id", "product_id", "category_id", "category_code", "brand"}

// LoadInteractionsFile 打开文件并调用 LoadInteractions。
func LoadInteractionsFile(path string) ([]core.Interaction, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{Source: "interactions"}, invalidInput("dataset: open interactions", err)
	}
	defer f.Close()
	return LoadInteractions(f)
}

// LoadInteractions 解析交互事件。缺少必需列返回 INVALID_INPUT；
// user_id / product_id 为空或行格式错误的记录跳过并计数。其余列忽略。
func LoadInteractions(r io.Reader) ([]core.Interaction, Report, error) {
	report := Report{Source: "interactions"}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, report, invalidInput("dataset: read interactions header", err)
	}
	idx := make([]int, len(InteractionColumns))
	var missing []string
	for i, col := range InteractionColumns {
		idx[i] = indexOf(header, col)
		if idx[i] < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, report, invalidInput("dataset: interactions missing columns: "+strings.Join(missing, ","), nil)
	}

	var out []core.Interaction
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				report.Read++
				report.Skipped++
				continue
			}
			return nil, report, invalidInput("dataset: read interactions", err)
		}
		report.Read++

		field := func(i int) string {
			if idx[i] < len(rec) {
				return strings.TrimSpace(rec[idx[i]])
			}
			return ""
		}
		it := core.Interaction{
			UserID:       field(0),
			ProductID:    field(1),
			CategoryID:   field(2),
			CategoryCode: field(3),
			Brand:        field(4),
		}
		if err := validate.Struct(it); err != nil {
			report.Skipped++
			continue
		}
		out = append(out, it)
	}
	return out, report, nil
}
