package dataset

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pkg/conv"
)

type ratingLine struct {
	UserID   conv.FlexString `json:"user_id"`
	Products []struct {
		Title   string    `json:"title"`
		Ratings []float64 `json:"ratings"`
	} `json:"products"`
}

// LoadRatingsFile 打开文件并调用 LoadRatings。
func LoadRatingsFile(path string) ([]core.UserRatings, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{Source: "ratings"}, invalidInput("dataset: open ratings", err)
	}
	defer f.Close()
	return LoadRatings(f)
}

// LoadRatings 解析评分语料 JSONL。无法解析、缺少 user_id、含空标题或评分超出 [1, 5] 的行整行跳过。
func LoadRatings(r io.Reader) ([]core.UserRatings, Report, error) {
	report := Report{Source: "ratings"}
	br := bufio.NewReaderSize(r, 1<<20)

	var out []core.UserRatings
	for {
		line, err := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			report.Read++
			if rec, ok := parseRatingLine(trimmed); ok {
				out = append(out, rec)
			} else {
				report.Skipped++
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, report, invalidInput("dataset: read ratings", err)
		}
	}
	return out, report, nil
}

func parseRatingLine(line []byte) (core.UserRatings, bool) {
	var raw ratingLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return core.UserRatings{}, false
	}
	rec := core.UserRatings{
		UserID:   raw.UserID.String(),
		Products: make([]core.ProductRatings, 0, len(raw.Products)),
	}
	for _, p := range raw.Products {
		rec.Products = append(rec.Products, core.ProductRatings{Title: p.Title, Ratings: p.Ratings})
	}
	if err := validate.Struct(rec); err != nil {
		return core.UserRatings{}, false
	}
	return rec, true
}
