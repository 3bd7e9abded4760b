package utils

import (
	"reflect"
	"testing"
)

func TestMergeLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing Label
		incoming Label
		want     Label
	}{
		{"empty existing", Label{}, RecallLabel("similar"), RecallLabel("similar")},
		{"empty incoming", RankLabel("hybrid"), Label{}, RankLabel("hybrid")},
		{"accumulate", RecallLabel("p1"), RecallLabel("p2"), Label{Value: "p1|p2", Source: "recall"}},
		{"duplicate value", RecallLabel("p1"), RecallLabel("p1"), RecallLabel("p1")},
		{"different source", RecallLabel("a"), RankLabel("b"), Label{Value: "a|b", Source: "recall,rank"}},
		{"no existing source", Label{Value: "a"}, RankLabel("b"), Label{Value: "a|b", Source: "rank"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeLabel(tt.existing, tt.incoming); got != tt.want {
				t.Errorf("MergeLabel = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLabel_Values(t *testing.T) {
	t.Parallel()

	if got := (Label{}).Values(); got != nil {
		t.Errorf("empty = %v", got)
	}
	merged := MergeLabel(MergeLabel(RecallLabel("p1"), RecallLabel("p2")), RecallLabel("p3"))
	if got := merged.Values(); !reflect.DeepEqual(got, []string{"p1", "p2", "p3"}) {
		t.Errorf("Values = %v", got)
	}
}
