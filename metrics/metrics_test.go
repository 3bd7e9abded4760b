package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRecommend(t *testing.T) {
	ok := RecommendRequests.WithLabelValues("test_kind", "ok")
	failed := RecommendRequests.WithLabelValues("test_kind", "error")
	beforeOK, beforeErr := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveRecommend("test_kind", time.Now(), nil)
	ObserveRecommend("test_kind", time.Now(), errors.New("boom"))
	ObserveRecommend("test_kind", time.Now(), nil)

	if got := testutil.ToFloat64(ok) - beforeOK; got != 2 {
		t.Errorf("ok delta = %v", got)
	}
	if got := testutil.ToFloat64(failed) - beforeErr; got != 1 {
		t.Errorf("error delta = %v", got)
	}
}

func TestObserveDataset(t *testing.T) {
	ObserveDataset("test_source", 10, 3)
	if got := testutil.ToFloat64(DatasetRecords.WithLabelValues("test_source", "read")); got != 10 {
		t.Errorf("read = %v", got)
	}
	if got := testutil.ToFloat64(DatasetRecords.WithLabelValues("test_source", "skipped")); got != 3 {
		t.Errorf("skipped = %v", got)
	}
}
