package http_server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/parquet_accumulator"
	"github.com/danthegoodman1/directdict/utils"
	"github.com/rs/zerolog"
)

const (
	FormatNDJSON  = "ndjson"
	FormatParquet = "parquet"
)

type (
	DumpQuery struct {
		Format string `query:"format" validate:"omitempty,oneof=ndjson parquet"`
		// Upload stores a parquet dump in the dump store instead of returning it
		Upload bool `query:"upload"`
	}

	DumpStats struct {
		Path   string `json:"path"`
		Rows   int64  `json:"rows"`
		Bytes  int64  `json:"bytes"`
		TimeMS int64  `json:"time_ms"`
	}
)

// DumpHandler streams every row the source returns for a full load.
func (s *HTTPServer) DumpHandler(c *CustomContext) error {
	var q DumpQuery
	if err := ValidateRequest(c, &q); err != nil {
		return err
	}
	d, err := s.catalog.Get(c.Param("name"))
	if err != nil {
		return c.DictionaryError(err, "error getting dictionary")
	}
	if q.Format == FormatParquet || q.Upload {
		return s.dumpParquet(c, d, q.Upload)
	}
	return s.dumpNDJSON(c, d)
}

func (s *HTTPServer) dumpNDJSON(c *CustomContext, d *dictionary.Dictionary) error {
	ctx := c.Request().Context()
	logger := zerolog.Ctx(ctx)
	stream, err := d.DumpAll(ctx)
	if err != nil {
		return c.DictionaryError(err, "error in DumpAll")
	}

	attrs := d.Attributes()
	idName := d.Structure().IDName()
	enc := json.NewEncoder(c.Response())
	enc.SetEscapeHTML(false)
	started := false
	var rows int64

	err = dictionary.ForEachBlock(ctx, stream, func(b *dictionary.Block) error {
		if !started {
			c.Response().Header().Set("Content-Type", "application/x-ndjson")
			c.Response().WriteHeader(http.StatusOK)
			started = true
		}
		for i, id := range b.IDs {
			row := make(map[string]any, len(attrs)+1)
			row[idName] = id
			for a := range attrs {
				cell := b.Columns[a][i]
				if cell != nil {
					v, err := attrs[a].Type.Coerce(cell)
					if err != nil {
						return fmt.Errorf("error converting attribute '%s' of id %d: %w", attrs[a].Name, id, err)
					}
					cell = v
				}
				row[attrs[a].Name] = cell
			}
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("error writing row: %w", err)
			}
			rows++
		}
		c.Response().Flush()
		return nil
	})
	if err != nil {
		if started {
			// the status is already sent, cut the stream short
			logger.Error().Err(err).Int64("rows", rows).Msg("ndjson dump failed mid stream")
			return nil
		}
		return c.DictionaryError(err, "error dumping dictionary")
	}
	if !started {
		return c.NoContent(http.StatusOK)
	}
	return nil
}

func (s *HTTPServer) dumpParquet(c *CustomContext, d *dictionary.Dictionary, upload bool) error {
	ctx := c.Request().Context()
	logger := zerolog.Ctx(ctx)
	start := time.Now()
	if upload && s.dumpStore == nil {
		return c.String(http.StatusNotImplemented, "no dump store configured")
	}

	pa, err := parquet_accumulator.FromStructure(d.Structure())
	if err != nil {
		return c.InternalError(err, "error building parquet schema")
	}
	var b bytes.Buffer
	pw, err := parquet_accumulator.NewWriter(pa, &b)
	if err != nil {
		return c.InternalError(err, "error creating parquet writer")
	}

	stream, err := d.DumpAll(ctx)
	if err != nil {
		return c.DictionaryError(err, "error in DumpAll")
	}
	if err = dictionary.ForEachBlock(ctx, stream, pw.WriteBlock); err != nil {
		return c.DictionaryError(err, "error dumping dictionary")
	}
	if err = pw.Close(); err != nil {
		return c.InternalError(err, "error in parquet writer Close")
	}

	if !upload {
		return c.Blob(http.StatusOK, "application/vnd.apache.parquet", b.Bytes())
	}

	stats := DumpStats{
		Path:  fmt.Sprintf("%s/%s.parquet", d.FullName(), utils.GenKSortedID("")),
		Rows:  pw.Rows(),
		Bytes: int64(b.Len()),
	}
	if err = s.dumpStore.WriteFile(ctx, stats.Path, &b); err != nil {
		return c.InternalError(err, "error uploading dump")
	}
	stats.TimeMS = time.Since(start).Milliseconds()
	logger.Debug().Interface("stats", stats).Msg("uploaded parquet dump")
	return c.JSON(http.StatusCreated, stats)
}
