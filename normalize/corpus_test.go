package normalize

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func decodeLines(t *testing.T, data string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad output line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func titles(rec map[string]any) []string {
	var out []string
	for _, p := range rec["products"].([]any) {
		out = append(out, p.(map[string]any)["title"].(string))
	}
	return out
}

func TestSimplifyCorpus(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		`{"user_id":"u1","products":[{"title":"Logitech MX Master 3 Wireless Mouse","ratings":[5]},{"title":"zzz thing","ratings":[3]}]}`,
		`not json`,
		``,
		`{"user_id":"u2","products":[{"title":"zzz thing","ratings":[4]},{"title":"qqq","ratings":[1]}]}`,
	}, "\n")

	var out, unknown bytes.Buffer
	stats, err := Default().SimplifyCorpus(context.Background(), strings.NewReader(in), &out, SimplifyOptions{UnknownOut: &unknown})
	if err != nil {
		t.Fatalf("SimplifyCorpus: %v", err)
	}
	if stats.Lines != 3 || stats.Malformed != 1 || stats.Products != 4 || stats.Unknown != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.TopUnknowns) != 2 || stats.TopUnknowns[0].Title != "zzz thing" || stats.TopUnknowns[0].Count != 2 {
		t.Errorf("TopUnknowns = %+v", stats.TopUnknowns)
	}

	recs := decodeLines(t, out.String())
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}
	if got := titles(recs[0]); got[0] != "Logitech mouse" || got[1] != Unknown {
		t.Errorf("titles = %v", got)
	}
	if recs[1]["user_id"] != "u2" {
		t.Errorf("user_id not preserved: %v", recs[1]["user_id"])
	}
	if n := len(decodeLines(t, unknown.String())); n != 3 {
		t.Errorf("unknown lines = %d, want 3", n)
	}
}

func TestCleanCorpus(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		`{"user_id":"u1","products":[{"title":"Dell monitor","ratings":[5]},{"title":"UNKNOWN","ratings":[3]},{"title":"Logitech mouse","ratings":[4]}]}`,
		`{"user_id":"u2","products":[{"title":"Dell monitor","ratings":[4]},{"title":"UNKNOWN","ratings":[1]}]}`,
		`{"user_id":"u3"}`,
		`{bad`,
	}, "\n")

	var out bytes.Buffer
	stats, err := CleanCorpus(context.Background(), strings.NewReader(in), &out)
	if err != nil {
		t.Fatalf("CleanCorpus: %v", err)
	}
	want := CleanStats{Users: 3, RemovedUsers: 2, RemovedProducts: 2, Malformed: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	recs := decodeLines(t, out.String())
	if len(recs) != 1 || recs[0]["user_id"] != "u1" {
		t.Fatalf("records = %v", recs)
	}
	if got := titles(recs[0]); len(got) != 2 || got[0] != "Dell monitor" || got[1] != "Logitech mouse" {
		t.Errorf("titles = %v", got)
	}
}

func TestAggregateReviews(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		`{"user_id":"u1","title":"Dell monitor","rating":5}`,
		`{"user_id":"u1","title":"Logitech mouse","rating":4}`,
		`{"user_id":"u1","title":"Dell monitor","rating":3}`,
		`{"user_id":"u2","title":"Dell monitor","rating":2}`,
		`{"user_id":"u3","title":"Dell monitor"}`,
		`{"user_id":77,"title":"HP laptop","rating":1}`,
		`{"user_id":77,"title":"HP mouse","rating":2}`,
	}, "\n")

	var out bytes.Buffer
	stats, err := AggregateReviews(context.Background(), strings.NewReader(in), &out)
	if err != nil {
		t.Fatalf("AggregateReviews: %v", err)
	}
	if stats.Lines != 7 || stats.Skipped != 1 || stats.Users != 3 || stats.RetainedUsers != 2 {
		t.Errorf("stats = %+v", stats)
	}

	var first aggregatedUser
	line := strings.SplitN(out.String(), "\n", 2)[0]
	if err := json.Unmarshal([]byte(line), &first); err != nil {
		t.Fatal(err)
	}
	if first.UserID != "u1" || len(first.Products) != 2 {
		t.Fatalf("first = %+v", first)
	}
	if r := first.Products[0].Ratings; len(r) != 2 || r[0] != 5 || r[1] != 3 {
		t.Errorf("ratings = %v", r)
	}
	if !strings.Contains(out.String(), `"user_id":"77"`) {
		t.Errorf("numeric user id should be kept as string: %s", out.String())
	}
}

func TestFilterRareTitles(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		`{"user_id":"u1","products":[{"title":"a","ratings":[5]},{"title":"b","ratings":[4]},{"title":"rare","ratings":[1]}]}`,
		`{"user_id":"u2","products":[{"title":"a","ratings":[3]},{"title":"b","ratings":[2]}]}`,
		`{"user_id":"u3","products":[{"title":"a","ratings":[3]},{"title":"solo","ratings":[2]}]}`,
	}, "\n")

	var out bytes.Buffer
	stats, err := FilterRareTitles(context.Background(), strings.NewReader(in), &out, 0)
	if err != nil {
		t.Fatalf("FilterRareTitles: %v", err)
	}
	if stats.Titles != 4 || stats.KeptTitles != 2 || stats.WrittenUsers != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if strings.Contains(out.String(), "rare") || strings.Contains(out.String(), "u3") {
		t.Errorf("output = %s", out.String())
	}
}

func TestCorpus_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	if _, err := CleanCorpus(ctx, strings.NewReader(`{"user_id":"u1"}`), &out); err == nil {
		t.Fatal("expected context error")
	}
}

func TestCorpus_LargeNumericUserID(t *testing.T) {
	t.Parallel()

	// 2^53 + 1 无法用 float64 精确表示
	const id = "9007199254740993"
	in := `{"user_id":` + id + `,"products":[{"title":"Logitech Wireless Mouse M185","ratings":[5]},{"title":"qwerty gadget","ratings":[3]}]}` + "\n"

	var simplified, unknown bytes.Buffer
	if _, err := Default().SimplifyCorpus(context.Background(), strings.NewReader(in), &simplified, SimplifyOptions{UnknownOut: &unknown}); err != nil {
		t.Fatal(err)
	}
	for name, out := range map[string]string{"simplified": simplified.String(), "unknown": unknown.String()} {
		if !strings.Contains(out, `"user_id":`+id) {
			t.Errorf("%s output lost user_id precision: %s", name, out)
		}
	}

	var cleaned bytes.Buffer
	twoProducts := `{"user_id":` + id + `,"products":[{"title":"logitech mouse","ratings":[5]},{"title":"dell monitor","ratings":[4]}]}` + "\n"
	if _, err := CleanCorpus(context.Background(), strings.NewReader(twoProducts), &cleaned); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(cleaned.String(), `"user_id":`+id) {
		t.Errorf("clean output lost user_id precision: %s", cleaned.String())
	}
}
