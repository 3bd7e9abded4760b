// Command normalize 是评分语料的离线整理工具。
//
//	normalize aggregate -in reviews.jsonl -out users.jsonl
//	normalize simplify  -in users.jsonl -out simplified.jsonl [-unknown unknown.jsonl] [-taxonomy taxonomy.yaml]
//	normalize clean     -in simplified.jsonl -out cleaned.jsonl
//	normalize filter    -in cleaned.jsonl -out ratings.jsonl [-min-users 2]
//
// 输出为每用户一行的 JSON Lines，可直接作为服务的 data.ratings。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rushteam/catalogrec/logging"
	"github.com/rushteam/catalogrec/normalize"
)

const usage = `usage: normalize <aggregate|simplify|clean|filter> -in FILE -out FILE [flags]`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Init(logging.Config{Level: "info", Format: "console", Timestamp: true})
	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logging.Fatal().Err(err).Msg("normalize")
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return flag.ErrHelp
	}
	cmd := args[0]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	in := fs.String("in", "", "input JSON Lines file")
	out := fs.String("out", "", "output JSON Lines file")
	taxonomy := fs.String("taxonomy", "", "optional taxonomy YAML (simplify)")
	unknown := fs.String("unknown", "", "optional file for unrecognized titles (simplify)")
	minUsers := fs.Int("min-users", 2, "minimum owners per title (filter)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("%s: -in and -out are required", cmd)
	}

	src, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(*out)
	if err != nil {
		return err
	}

	err = dispatch(ctx, cmd, src, dst, *taxonomy, *unknown, *minUsers)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return err
}

func dispatch(ctx context.Context, cmd string, src *os.File, dst io.Writer, taxonomy, unknown string, minUsers int) error {
	log := logging.With().Str("cmd", cmd).Str("in", src.Name()).Logger()

	switch cmd {
	case "aggregate":
		st, err := normalize.AggregateReviews(ctx, src, dst)
		if err != nil {
			return err
		}
		log.Info().Int("lines", st.Lines).Int("skipped", st.Skipped).
			Int("users", st.Users).Int("retained_users", st.RetainedUsers).Msg("aggregated reviews")

	case "simplify":
		n := normalize.Default()
		if taxonomy != "" {
			t, err := normalize.LoadTaxonomy(taxonomy)
			if err != nil {
				return err
			}
			n = normalize.New(t)
		}
		var opts normalize.SimplifyOptions
		if unknown != "" {
			f, err := os.Create(unknown)
			if err != nil {
				return err
			}
			defer f.Close()
			opts.UnknownOut = f
		}
		st, err := n.SimplifyCorpus(ctx, src, dst, opts)
		if err != nil {
			return err
		}
		log.Info().Int("lines", st.Lines).Int("malformed", st.Malformed).
			Int("products", st.Products).Int("unknown", st.Unknown).Msg("simplified titles")
		for _, u := range st.TopUnknowns {
			log.Info().Str("title", u.Title).Int("count", u.Count).Msg("frequent unknown title")
		}

	case "clean":
		st, err := normalize.CleanCorpus(ctx, src, dst)
		if err != nil {
			return err
		}
		log.Info().Int("users", st.Users).Int("removed_users", st.RemovedUsers).
			Int("removed_products", st.RemovedProducts).Int("malformed", st.Malformed).Msg("cleaned corpus")

	case "filter":
		st, err := normalize.FilterRareTitles(ctx, src, dst, minUsers)
		if err != nil {
			return err
		}
		log.Info().Int("lines", st.Lines).Int("titles", st.Titles).Int("kept_titles", st.KeptTitles).
			Int("written_users", st.WrittenUsers).Msg("filtered rare titles")

	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	return nil
}
