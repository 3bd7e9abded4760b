package normalize

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sort"

	"github.com/goccy/go-json"

	"github.com/rushteam/catalogrec/pkg/conv"
)

// 语料工具：流式处理 JSONL 评分语料（每行 {"user_id":..., "products":[{"title":..., "ratings":[...]}]}）。
// 解析失败的行跳过并计数，不中断处理。

const ctxCheckEvery = 1024

// UnknownCount 是一个未识别标题及其出现次数。
type UnknownCount struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

// SimplifyStats 是 SimplifyCorpus 的处理统计。
type SimplifyStats struct {
	Lines       int
	Malformed   int
	Products    int
	Unknown     int
	TopUnknowns []UnknownCount
}

// SimplifyOptions 控制 SimplifyCorpus。
type SimplifyOptions struct {
	// UnknownOut 非 nil 时，每个未识别标题写出一行 {"original_title","user_id"}
	UnknownOut io.Writer
	// TopN 统计出现最多的未识别标题个数，默认 10
	TopN int
}

type unknownLine struct {
	OriginalTitle string `json:"original_title"`
	UserID        any    `json:"user_id"`
}

// SimplifyCorpus 把每个产品标题替换为规范标题，其余字段原样保留。
func (n *Normalizer) SimplifyCorpus(ctx context.Context, r io.Reader, w io.Writer, opts SimplifyOptions) (SimplifyStats, error) {
	topN := opts.TopN
	if topN <= 0 {
		topN = 10
	}
	var (
		stats   SimplifyStats
		unknown = make(map[string]int)
		order   []string
	)
	out := bufio.NewWriter(w)
	var unk *bufio.Writer
	if opts.UnknownOut != nil {
		unk = bufio.NewWriter(opts.UnknownOut)
	}

	err := eachLine(ctx, r, func(line []byte) error {
		stats.Lines++
		rec, err := decodeRecord(line)
		if err != nil {
			stats.Malformed++
			return nil
		}
		products, _ := rec["products"].([]any)
		for _, p := range products {
			prod, ok := p.(map[string]any)
			if !ok {
				continue
			}
			title, ok := prod["title"].(string)
			if !ok {
				continue
			}
			stats.Products++
			simplified := n.SimplifyTitle(title)
			if simplified == Unknown {
				stats.Unknown++
				if unknown[title] == 0 {
					order = append(order, title)
				}
				unknown[title]++
				if unk != nil {
					if err := writeJSONLine(unk, unknownLine{OriginalTitle: title, UserID: rec["user_id"]}); err != nil {
						return err
					}
				}
			}
			prod["title"] = simplified
		}
		return writeJSONLine(out, rec)
	})
	if err != nil {
		return stats, err
	}
	if err := out.Flush(); err != nil {
		return stats, err
	}
	if unk != nil {
		if err := unk.Flush(); err != nil {
			return stats, err
		}
	}

	stats.TopUnknowns = topCounts(unknown, order, topN)
	return stats, nil
}

// CleanStats 是 CleanCorpus 的处理统计。
type CleanStats struct {
	Users           int
	RemovedUsers    int
	RemovedProducts int
	Malformed       int
}

// CleanCorpus 移除规范标题为 UNKNOWN 的产品，再移除剩余产品数 <= 1 的用户。
func CleanCorpus(ctx context.Context, r io.Reader, w io.Writer) (CleanStats, error) {
	var stats CleanStats
	out := bufio.NewWriter(w)
	err := eachLine(ctx, r, func(line []byte) error {
		rec, err := decodeRecord(line)
		if err != nil {
			stats.Malformed++
			return nil
		}
		stats.Users++
		products, ok := rec["products"].([]any)
		if !ok {
			stats.RemovedUsers++
			return nil
		}
		kept := make([]any, 0, len(products))
		for _, p := range products {
			if prod, ok := p.(map[string]any); ok && prod["title"] == Unknown {
				stats.RemovedProducts++
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) <= 1 {
			stats.RemovedUsers++
			return nil
		}
		rec["products"] = kept
		return writeJSONLine(out, rec)
	})
	if err != nil {
		return stats, err
	}
	return stats, out.Flush()
}

// AggregateStats 是 AggregateReviews 的处理统计。
type AggregateStats struct {
	Lines         int
	Skipped       int
	Users         int
	RetainedUsers int
}

type reviewLine struct {
	UserID conv.FlexString `json:"user_id"`
	Title  string          `json:"title"`
	Rating *float64        `json:"rating"`
}

type aggregatedProduct struct {
	Title   string    `json:"title"`
	Ratings []float64 `json:"ratings"`
}

type aggregatedUser struct {
	UserID   conv.FlexString     `json:"user_id"`
	Products []aggregatedProduct `json:"products"`
}

// AggregateReviews 把逐条评论（{"user_id","title","rating"}）聚合为每用户一行的评分语料，
// 只保留评价过多于一个产品的用户。用户与产品均按首次出现顺序输出。
func AggregateReviews(ctx context.Context, r io.Reader, w io.Writer) (AggregateStats, error) {
	var (
		stats  AggregateStats
		users  []*aggregatedUser
		byUser = make(map[string]*aggregatedUser)
		byPair = make(map[[2]string]int)
	)
	err := eachLine(ctx, r, func(line []byte) error {
		stats.Lines++
		var rv reviewLine
		if err := json.Unmarshal(line, &rv); err != nil || rv.UserID == "" || rv.Title == "" || rv.Rating == nil {
			stats.Skipped++
			return nil
		}
		uid := rv.UserID.String()
		u, ok := byUser[uid]
		if !ok {
			u = &aggregatedUser{UserID: rv.UserID}
			byUser[uid] = u
			users = append(users, u)
		}
		key := [2]string{uid, rv.Title}
		idx, ok := byPair[key]
		if !ok {
			idx = len(u.Products)
			byPair[key] = idx
			u.Products = append(u.Products, aggregatedProduct{Title: rv.Title})
		}
		u.Products[idx].Ratings = append(u.Products[idx].Ratings, *rv.Rating)
		return nil
	})
	if err != nil {
		return stats, err
	}

	stats.Users = len(users)
	out := bufio.NewWriter(w)
	for _, u := range users {
		if len(u.Products) <= 1 {
			continue
		}
		stats.RetainedUsers++
		if err := writeJSONLine(out, u); err != nil {
			return stats, err
		}
	}
	return stats, out.Flush()
}

// FilterStats 是 FilterRareTitles 的处理统计。
type FilterStats struct {
	Lines        int
	Malformed    int
	Titles       int
	KeptTitles   int
	WrittenUsers int
}

// FilterRareTitles 两遍扫描：先统计每个标题被多少用户拥有，再只保留被 minUsers 个以上用户拥有的标题，
// 并丢弃过滤后产品数 <= 1 的用户。minUsers <= 0 时取 2。
func FilterRareTitles(ctx context.Context, r io.ReadSeeker, w io.Writer, minUsers int) (FilterStats, error) {
	if minUsers <= 0 {
		minUsers = 2
	}
	var stats FilterStats
	owners := make(map[string]int)

	err := eachLine(ctx, r, func(line []byte) error {
		stats.Lines++
		var rec aggregatedUser
		if err := json.Unmarshal(line, &rec); err != nil {
			stats.Malformed++
			return nil
		}
		seen := make(map[string]struct{}, len(rec.Products))
		for _, p := range rec.Products {
			if p.Title == "" {
				continue
			}
			if _, ok := seen[p.Title]; ok {
				continue
			}
			seen[p.Title] = struct{}{}
			owners[p.Title]++
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	stats.Titles = len(owners)
	for _, c := range owners {
		if c >= minUsers {
			stats.KeptTitles++
		}
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return stats, err
	}
	out := bufio.NewWriter(w)
	err = eachLine(ctx, r, func(line []byte) error {
		var rec aggregatedUser
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil
		}
		kept := rec.Products[:0]
		for _, p := range rec.Products {
			if owners[p.Title] >= minUsers {
				kept = append(kept, p)
			}
		}
		if len(kept) <= 1 {
			return nil
		}
		rec.Products = kept
		stats.WrittenUsers++
		return writeJSONLine(out, rec)
	})
	if err != nil {
		return stats, err
	}
	return stats, out.Flush()
}

// eachLine 逐行回调（跳过空行），不限制单行长度。
func eachLine(ctx context.Context, r io.Reader, fn func(line []byte) error) error {
	br := bufio.NewReaderSize(r, 1<<20)
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		line, err := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if ferr := fn(trimmed); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// decodeRecord 保留数字原文（json.Number），超过 2^53 的数字型 user_id 写回时不丢精度。
func decodeRecord(line []byte) (map[string]any, error) {
	var rec map[string]any
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func writeJSONLine(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// topCounts 按次数降序取前 n 个，次数相同按首次出现顺序。
func topCounts(counts map[string]int, order []string, n int) []UnknownCount {
	out := make([]UnknownCount, 0, len(order))
	for _, t := range order {
		out = append(out, UnknownCount{Title: t, Count: counts[t]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
