package conv

import (
	"reflect"
	"testing"

	"github.com/goccy/go-json"
)

func TestToString(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   string
		wantOK bool
	}{
		{name: "string", in: "p1", want: "p1", wantOK: true},
		{name: "int", in: 42, want: "42", wantOK: true},
		{name: "integral float", in: float64(1004856), want: "1004856", wantOK: true},
		{name: "fraction", in: 2.5, want: "2.5", wantOK: true},
		{name: "nil", in: nil, wantOK: false},
		{name: "bool", in: true, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToString(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ToString(%v) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestToFloat64(t *testing.T) {
	if f, ok := ToFloat64("0.7"); !ok || f != 0.7 {
		t.Errorf("ToFloat64(\"0.7\") = %v, %v", f, ok)
	}
	if _, ok := ToFloat64("abc"); ok {
		t.Errorf("ToFloat64(\"abc\") should fail")
	}
	if f, ok := ToFloat64(3); !ok || f != 3 {
		t.Errorf("ToFloat64(3) = %v, %v", f, ok)
	}
}

func TestToStringSlice(t *testing.T) {
	got := ToStringSlice([]any{"a", 7.0, true})
	if !reflect.DeepEqual(got, []string{"a", "7"}) {
		t.Errorf("ToStringSlice = %v", got)
	}
	if ToStringSlice(12) != nil {
		t.Errorf("non-slice should give nil")
	}
}

func TestFlexString_UnmarshalJSON(t *testing.T) {
	var rec struct {
		UserID FlexString `json:"user_id"`
	}
	for _, tt := range []struct {
		in   string
		want string
	}{
		{`{"user_id":"AE2X"}`, "AE2X"},
		{`{"user_id":512475445}`, "512475445"},
	} {
		if err := json.Unmarshal([]byte(tt.in), &rec); err != nil {
			t.Fatalf("Unmarshal(%s): %v", tt.in, err)
		}
		if rec.UserID.String() != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, rec.UserID, tt.want)
		}
	}
	if err := json.Unmarshal([]byte(`{"user_id":[1]}`), &rec); err == nil {
		t.Errorf("array id should fail")
	}
}

func TestConfigGet(t *testing.T) {
	cfg := map[string]any{"name": "x", "n": 3, "f": float64(7), "flag": true, "bad": "nope"}
	if got := ConfigGet(cfg, "name", ""); got != "x" {
		t.Errorf("name = %q", got)
	}
	if got := ConfigGet(cfg, "flag", false); !got {
		t.Error("flag")
	}
	if got := ConfigGet(cfg, "missing", "def"); got != "def" {
		t.Errorf("missing = %q", got)
	}
	if got := ConfigGetInt(cfg, "n", 0); got != 3 {
		t.Errorf("n = %d", got)
	}
	if got := ConfigGetInt(cfg, "f", 0); got != 7 {
		t.Errorf("f = %d", got)
	}
	if got := ConfigGetInt(cfg, "bad", 5); got != 5 {
		t.Errorf("bad = %d", got)
	}
	if got := ConfigGetInt(nil, "n", 9); got != 9 {
		t.Errorf("nil cfg = %d", got)
	}
}
