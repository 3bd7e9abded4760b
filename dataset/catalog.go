package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// NameColumns 是目录 CSV 中商品名所在列的候选列名，按顺序取第一个存在的。
var NameColumns = []string{"name", "Product"}

// LoadCatalog 读取 dir 下全部 *.csv 的商品名：去空、转小写、按首次出现去重。
// 文件按名字排序读取，保证结果顺序稳定。
func LoadCatalog(dir string) ([]string, Report, error) {
	report := Report{Source: "catalog"}
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, report, invalidInput("dataset: glob catalog dir", err)
	}
	if len(files) == 0 {
		return nil, report, invalidInput("dataset: no csv files in catalog dir "+dir, nil)
	}
	sort.Strings(files)

	seen := make(map[string]struct{})
	var names []string
	for _, path := range files {
		if err := readCatalogFile(path, func(name string) {
			report.Read++
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				report.Skipped++
				return
			}
			if _, ok := seen[name]; ok {
				return
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}); err != nil {
			return nil, report, err
		}
	}
	if len(names) == 0 {
		return nil, report, invalidInput("dataset: catalog has no product names", nil)
	}
	return names, report, nil
}

func readCatalogFile(path string, fn func(name string)) error {
	f, err := os.Open(path)
	if err != nil {
		return invalidInput("dataset: open "+filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return invalidInput("dataset: read header of "+filepath.Base(path), err)
	}
	col := -1
	for _, want := range NameColumns {
		if col = indexOf(header, want); col >= 0 {
			break
		}
	}
	if col < 0 {
		return invalidInput("dataset: "+filepath.Base(path)+" has no name column", nil)
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				fn("")
				continue
			}
			return invalidInput("dataset: read "+filepath.Base(path), err)
		}
		if col < len(rec) {
			fn(rec[col])
		} else {
			fn("")
		}
	}
}

func indexOf(header []string, col string) int {
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == col {
			return i
		}
	}
	return -1
}
