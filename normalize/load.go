package normalize

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/catalogrec/core"
)

var validate = validator.New()

// LoadTaxonomy 从 YAML 文件读取字典，用于覆盖内置字典。
//
// 格式：
//
//	types:
//	  - name: monitor stand
//	    keywords: [monitor stand, screen stand]
//	brands:
//	  - keyword: dell
//	    brand: Dell
func LoadTaxonomy(path string) (Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, core.WrapDomainError(core.ModuleNormalize, core.ErrorCodeInvalidInput, "normalize: read taxonomy", err)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy 解析并校验 YAML 字典。品牌关键词与类型名不允许重复：
// 冲突必须在编写字典时解决。
func ParseTaxonomy(data []byte) (Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Taxonomy{}, core.WrapDomainError(core.ModuleNormalize, core.ErrorCodeInvalidInput, "normalize: parse taxonomy", err)
	}
	if err := validate.Struct(t); err != nil {
		return Taxonomy{}, core.WrapDomainError(core.ModuleNormalize, core.ErrorCodeInvalidInput, "normalize: invalid taxonomy", err)
	}

	types := make(map[string]struct{}, len(t.Types))
	for _, e := range t.Types {
		if _, dup := types[e.Name]; dup {
			return Taxonomy{}, core.NewDomainError(core.ModuleNormalize, core.ErrorCodeInvalidInput,
				fmt.Sprintf("normalize: duplicate type %q", e.Name))
		}
		types[e.Name] = struct{}{}
	}
	brands := make(map[string]string, len(t.Brands))
	for _, b := range t.Brands {
		kw := strings.ToLower(b.Keyword)
		if prev, dup := brands[kw]; dup {
			return Taxonomy{}, core.NewDomainError(core.ModuleNormalize, core.ErrorCodeInvalidInput,
				fmt.Sprintf("normalize: brand keyword %q maps to both %q and %q", kw, prev, b.Brand))
		}
		brands[kw] = b.Brand
	}
	return t, nil
}
