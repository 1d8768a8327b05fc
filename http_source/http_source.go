package http_source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/gologger"
	"github.com/danthegoodman1/gojsonutils"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
)

var (
	logger = gologger.NewLogger()

	ErrNotFlatMap = errors.New("not a flat map")
)

const DefaultBlockSize = 1024

type (
	Config struct {
		URL string `json:"url" yaml:"url" validate:"required,url"`
		// IDField defaults to the dictionary's id name
		IDField   string            `json:"id_field,omitempty" yaml:"id_field,omitempty"`
		Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
		TimeoutMS int64             `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
		BlockSize int               `json:"block_size,omitempty" yaml:"block_size,omitempty"`
	}

	// HTTPSource POSTs {"ids":[...]} for selective loads and GETs the URL for full loads.
	// Responses are NDJSON objects holding the id field and one field per attribute.
	HTTPSource struct {
		client    *http.Client
		cfg       Config
		idField   string
		attrs     []string
		blockSize int
	}

	idsRequest struct {
		IDs []dictionary.Key `json:"ids"`
	}
)

func NewHTTPSource(cfg Config, structure dictionary.Structure) (*HTTPSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http source needs a url")
	}
	hs := &HTTPSource{
		client:    cleanhttp.DefaultPooledClient(),
		cfg:       cfg,
		idField:   cfg.IDField,
		attrs:     structure.AttributeNames(),
		blockSize: cfg.BlockSize,
	}
	if hs.idField == "" {
		hs.idField = structure.IDName()
	}
	if cfg.TimeoutMS > 0 {
		hs.client.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	if hs.blockSize <= 0 {
		hs.blockSize = DefaultBlockSize
	}
	return hs, nil
}

func (hs *HTTPSource) SupportsSelectiveLoad() bool {
	return true
}

func (hs *HTTPSource) LoadIDs(_ context.Context, ids []dictionary.Key) (dictionary.RowStream, error) {
	if ids == nil {
		ids = []dictionary.Key{}
	}
	body, err := json.Marshal(idsRequest{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("error in json.Marshal: %w", err)
	}
	return &stream{src: hs, method: http.MethodPost, body: body}, nil
}

func (hs *HTTPSource) LoadAll(context.Context) (dictionary.RowStream, error) {
	return &stream{src: hs, method: http.MethodGet}, nil
}

func (hs *HTTPSource) Shutdown(context.Context) error {
	hs.client.CloseIdleConnections()
	return nil
}

type stream struct {
	src    *HTTPSource
	method string
	body   []byte

	resp *http.Response
	dec  *json.Decoder
}

func (s *stream) Open(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	var body io.Reader
	if s.body != nil {
		body = bytes.NewReader(s.body)
	}
	req, err := http.NewRequestWithContext(ctx, s.method, s.src.cfg.URL, body)
	if err != nil {
		return fmt.Errorf("error in http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Accept", "application/x-ndjson")
	if s.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range s.src.cfg.Headers {
		req.Header.Set(k, v)
	}

	s.resp, err = s.src.client.Do(req)
	if err != nil {
		return fmt.Errorf("error in client.Do: %w", err)
	}
	if s.resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(s.resp.Body, 512))
		return fmt.Errorf("http source returned %d: %s", s.resp.StatusCode, string(msg))
	}
	logger.Debug().Str("method", s.method).Str("url", s.src.cfg.URL).Msg("opened http source")

	s.dec = json.NewDecoder(s.resp.Body)
	s.dec.UseNumber()
	return nil
}

func (s *stream) Read(context.Context) (*dictionary.Block, error) {
	if s.dec == nil {
		return nil, fmt.Errorf("stream not opened")
	}
	block := dictionary.NewBlock(len(s.src.attrs), s.src.blockSize)
	values := make([]any, len(s.src.attrs))
	for block.Rows() < s.src.blockSize {
		var raw map[string]any
		err := s.dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error decoding NDJSON row: %w", err)
		}
		id, err := s.src.row(raw, values)
		if err != nil {
			return nil, err
		}
		block.AppendRow(id, values)
	}
	if block.Rows() == 0 {
		return nil, io.EOF
	}
	return block, nil
}

// row flattens one decoded object and fills values in attribute order.
func (hs *HTTPSource) row(raw map[string]any, values []any) (dictionary.Key, error) {
	flat, err := gojsonutils.Flatten(raw, nil)
	if err != nil {
		return 0, fmt.Errorf("error flattening JSON map: %w", err)
	}
	flatMap, ok := flat.(map[string]any)
	if !ok {
		return 0, ErrNotFlatMap
	}

	rawID, ok := flatMap[hs.idField]
	if !ok || rawID == nil {
		return 0, fmt.Errorf("row without id field '%s'", hs.idField)
	}
	id, err := dictionary.Type{Kind: dictionary.KindUInt64}.Coerce(rawID)
	if err != nil {
		return 0, fmt.Errorf("bad id %v: %w", rawID, err)
	}
	for i, name := range hs.attrs {
		values[i] = flatMap[name]
	}
	return id.(uint64), nil
}

func (s *stream) Close(context.Context) error {
	if s.resp == nil {
		return nil
	}
	err := s.resp.Body.Close()
	s.resp, s.dec = nil, nil
	if err != nil {
		return fmt.Errorf("error closing response body: %w", err)
	}
	return nil
}
