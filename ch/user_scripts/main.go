// Command user_scripts is a ClickHouse executable UDF resolving dictionary lookups. Each
// stdin line is dictionary<TAB>attribute<TAB>key and gets one output line, \N for null.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/danthegoodman1/directdict/catalog"
	"github.com/danthegoodman1/directdict/crdb"
	"github.com/danthegoodman1/directdict/datastore"
	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/gologger"
	"github.com/danthegoodman1/directdict/metastore"
	"github.com/danthegoodman1/directdict/utils"
	"github.com/rs/zerolog"
)

func main() {
	// stdout carries results
	logger := gologger.NewLogger().Output(os.Stderr)
	zerolog.DefaultContextLogger = &logger
	ctx := logger.WithContext(context.Background())

	deps := catalog.Deps{}
	if utils.CRDB_DSN != "" {
		pool, err := crdb.ConnectToDB(ctx, utils.CRDB_DSN, crdb.PoolOptions{MaxConns: 2})
		if err != nil {
			logger.Fatal().Err(err).Msg("error connecting to CRDB")
		}
		defer pool.Close()
		deps.Pool = pool
	}
	store, err := datastore.NewDiskDataStore(utils.DATA_ROOT)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening datastore")
	}
	deps.DataStore = store

	cat := catalog.NewCatalog(nil, deps)
	defer cat.Shutdown(ctx)
	defs, err := metastore.LoadDefinitionFiles(ctx, utils.SplitList(utils.DICTIONARY_FILES))
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading definition files")
	}
	if _, err = cat.LoadAll(ctx, defs); err != nil {
		logger.Error().Err(err).Msg("some dictionaries failed to load")
	}

	if err = run(ctx, cat, os.Stdin, os.Stdout); err != nil {
		logger.Fatal().Err(err).Msg("lookup failed")
	}
}

type batch struct {
	dictionary string
	attribute  string
	keys       []dictionary.Key
}

// run answers lookups until in is exhausted. Consecutive lines for the same dictionary and
// attribute form one batch, flushed when the pair changes or no more input is buffered.
func run(ctx context.Context, cat *catalog.Catalog, in io.Reader, out io.Writer) error {
	r := bufio.NewReader(in)
	w := bufio.NewWriter(out)
	var b batch

	flush := func() error {
		if len(b.keys) > 0 {
			if err := b.resolve(ctx, cat, w); err != nil {
				return err
			}
			b.keys = b.keys[:0]
		}
		return w.Flush()
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("error reading stdin: %w", err)
		}
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			parts := strings.Split(line, "\t")
			if len(parts) != 3 {
				return fmt.Errorf("expected 3 tab separated fields, got %d in %q", len(parts), line)
			}
			key, perr := strconv.ParseUint(parts[2], 10, 64)
			if perr != nil {
				return fmt.Errorf("bad key %q: %w", parts[2], perr)
			}
			if parts[0] != b.dictionary || parts[1] != b.attribute {
				if ferr := flush(); ferr != nil {
					return ferr
				}
				b.dictionary, b.attribute = parts[0], parts[1]
			}
			b.keys = append(b.keys, key)
		}
		if errors.Is(err, io.EOF) {
			return flush()
		}
		if r.Buffered() == 0 {
			if err = flush(); err != nil {
				return err
			}
		}
	}
}

func (b *batch) resolve(ctx context.Context, cat *catalog.Catalog, w io.Writer) error {
	d, err := cat.Get(b.dictionary)
	if err != nil {
		return err
	}
	attr, err := d.GetAttribute(b.attribute)
	if err != nil {
		return err
	}
	col, err := d.GetColumn(ctx, b.attribute, attr.Type, b.keys, dictionary.Defaults{})
	if err != nil {
		return err
	}
	for _, v := range dictionary.Values(col) {
		if _, err = io.WriteString(w, formatTSV(v)+"\n"); err != nil {
			return fmt.Errorf("error writing result: %w", err)
		}
	}
	return nil
}

var tsvEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`)

func formatTSV(v any) string {
	switch t := v.(type) {
	case nil:
		return `\N`
	case string:
		return tsvEscaper.Replace(t)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
