// Package service 把四个核心组件组装成只读快照，并提供边界操作。
//
// 快照一旦构建完成就不再修改；重建时构建新快照并原子替换，
// 正在处理的请求继续使用旧快照。
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/dataset"
	"github.com/rushteam/catalogrec/logging"
	"github.com/rushteam/catalogrec/metrics"
	"github.com/rushteam/catalogrec/model"
	"github.com/rushteam/catalogrec/normalize"
	"github.com/rushteam/catalogrec/recall"
	"github.com/rushteam/catalogrec/suggest"
)

// Snapshot 是一次构建得到的全部已拟合组件。
type Snapshot struct {
	Version    string
	BuiltAt    time.Time
	Trie       *suggest.Trie
	KNN        *recall.ItemKNN
	Hybrid     *model.Hybrid
	Normalizer *normalize.Normalizer
	Reports    []dataset.Report
}

// Sources 是三份输入数据的位置。
type Sources struct {
	CatalogDir   string
	Interactions string
	Ratings      string
	// Taxonomy 可选，为空时使用内置词典
	Taxonomy string
}

// Builder 从 Sources 构建 Snapshot。
type Builder struct {
	Sources Sources

	// K 近邻数（含自身）
	K int

	// SVD 超参数，零值使用默认
	Factors        int
	Epochs         int
	LearningRate   float64
	Regularization float64
	Seed           int64

	// Alpha 为协同估计的权重，原样使用：0 表示只用内容估计
	Alpha float64

	// NGram 为 true 时子串降级使用 n-gram 倒排索引
	NGram bool
}

// Build 并发加载三份数据并拟合各组件。任一加载或拟合失败都返回错误。
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	snap := &Snapshot{Version: uuid.NewString()}
	reports := make([]dataset.Report, 3)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		names, rep, err := dataset.LoadCatalog(b.Sources.CatalogDir)
		reports[0] = rep
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		var opts []suggest.Option
		if b.NGram {
			opts = append(opts, suggest.WithSubstringIndex(suggest.NewNGramIndex()))
		}
		trie := suggest.New(opts...)
		trie.InsertAll(names)
		snap.Trie = trie
		return nil
	})

	g.Go(func() error {
		records, rep, err := dataset.LoadInteractionsFile(b.Sources.Interactions)
		reports[1] = rep
		if err != nil {
			return fmt.Errorf("load interactions: %w", err)
		}
		knn, err := recall.NewItemKNN(b.K, records)
		if err != nil {
			return fmt.Errorf("fit neighbors: %w", err)
		}
		snap.KNN = knn
		return nil
	})

	g.Go(func() error {
		users, rep, err := dataset.LoadRatingsFile(b.Sources.Ratings)
		reports[2] = rep
		if err != nil {
			return fmt.Errorf("load ratings: %w", err)
		}
		h := model.NewHybrid()
		h.SVD = &model.SVD{
			Factors:        b.Factors,
			Epochs:         b.Epochs,
			LearningRate:   b.LearningRate,
			Regularization: b.Regularization,
			Seed:           b.Seed,
		}
		h.Alpha = b.Alpha
		if err := h.Fit(gctx, users); err != nil {
			return fmt.Errorf("fit hybrid: %w", err)
		}
		snap.Hybrid = h
		return nil
	})

	g.Go(func() error {
		if b.Sources.Taxonomy == "" {
			snap.Normalizer = normalize.Default()
			return nil
		}
		tax, err := normalize.LoadTaxonomy(b.Sources.Taxonomy)
		if err != nil {
			return fmt.Errorf("load taxonomy: %w", err)
		}
		snap.Normalizer = normalize.New(tax)
		return nil
	})

	err := g.Wait()
	for _, rep := range reports {
		if rep.Source == "" {
			continue
		}
		metrics.ObserveDataset(rep.Source, rep.Read, rep.Skipped)
		ev := logging.Info()
		if rep.Skipped > 0 {
			ev = logging.Warn()
		}
		ev.Str("source", rep.Source).Int("read", rep.Read).Int("skipped", rep.Skipped).Msg("dataset loaded")
	}
	metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SnapshotBuilds.WithLabelValues("error").Inc()
		return nil, err
	}

	snap.Reports = reports
	snap.BuiltAt = time.Now()
	metrics.SnapshotBuilds.WithLabelValues("ok").Inc()
	snap.observe()
	return snap, nil
}

func (s *Snapshot) observe() {
	products, users := s.KNN.Size()
	metrics.SnapshotSize.WithLabelValues("words").Set(float64(s.Trie.Len()))
	metrics.SnapshotSize.WithLabelValues("products").Set(float64(products))
	metrics.SnapshotSize.WithLabelValues("users").Set(float64(users))
	metrics.SnapshotSize.WithLabelValues("titles").Set(float64(len(s.Hybrid.Titles())))
	metrics.SnapshotTimestamp.Set(float64(s.BuiltAt.Unix()))
}

var errNotReady = core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable, "service: no snapshot loaded")
