package http_server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/danthegoodman1/directdict/catalog"
	"github.com/danthegoodman1/directdict/datastore"
	"github.com/danthegoodman1/directdict/dictionary"
)

var memoryRows = map[uint64][]any{
	1: {uint64(0), "earth", uint64(8000)},
	2: {uint64(1), "europe", nil},
	3: {uint64(2), "france", uint64(67)},
}

// memorySource serves memoryRows in id order.
type memorySource struct{}

func (memorySource) SupportsSelectiveLoad() bool { return true }

func (m memorySource) LoadIDs(_ context.Context, ids []dictionary.Key) (dictionary.RowStream, error) {
	want := map[uint64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	b := dictionary.NewBlock(3, len(memoryRows))
	for id := uint64(1); id <= 3; id++ {
		if ids == nil || want[id] {
			b.AppendRow(id, memoryRows[id])
		}
	}
	return dictionary.NewSliceStream(b), nil
}

func (m memorySource) LoadAll(ctx context.Context) (dictionary.RowStream, error) {
	return m.LoadIDs(ctx, nil)
}

const regionsBody = `{
	"name": "regions",
	"database": "geo",
	"layout": "direct",
	"structure": {
		"id": {"name": "region_id"},
		"attributes": [
			{"name": "parent", "type": "UInt64", "hierarchical": true},
			{"name": "name", "type": "String", "null_value": "?"},
			{"name": "population", "type": "Nullable(UInt64)"}
		]
	},
	"source": {"type": "memory"}
}`

const flatBody = `{
	"name": "flat",
	"structure": {"attributes": [{"name": "v", "type": "Int8"}]},
	"source": {"type": "memory"}
}`

func newTestServer(t *testing.T) (*HTTPServer, string) {
	t.Helper()
	root := t.TempDir()
	store, err := datastore.NewDiskDataStore(root)
	if err != nil {
		t.Fatal(err)
	}
	cat := catalog.NewCatalog(nil, catalog.Deps{DataStore: store})
	cat.RegisterSource("memory", func(context.Context, catalog.Deps, map[string]any, dictionary.Structure) (dictionary.Source, error) {
		return memorySource{}, nil
	})
	s := NewHTTPServer(cat, store)

	if rec := do(s, http.MethodPost, "/dictionaries", regionsBody); rec.Code != http.StatusCreated {
		t.Fatalf("create failed %d: %s", rec.Code, rec.Body.String())
	}
	return s, root
}

func do(s *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if rec.Code != http.StatusOK && rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatal(err)
	}
}

func TestHealthAndDescribe(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, http.MethodGet, "/hc", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatal("bad health check", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("no request id header")
	}

	var info DictionaryInfo
	decode(t, do(s, http.MethodGet, "/dictionaries/geo.regions", ""), &info)
	if info.Type != "Direct" || info.IDName != "region_id" || !info.HasHierarchy || info.SourceType != "memory" {
		t.Fatalf("bad info %+v", info)
	}
	if len(info.Attributes) != 3 || !info.Attributes[2].Nullable || info.Attributes[1].NullValue != "?" {
		t.Fatalf("bad attributes %+v", info.Attributes)
	}

	var list []DictionaryInfo
	decode(t, do(s, http.MethodGet, "/dictionaries", ""), &list)
	if len(list) != 1 || list[0].Name != "geo.regions" {
		t.Fatalf("bad list %+v", list)
	}

	if rec = do(s, http.MethodPost, "/dictionaries", regionsBody); rec.Code != http.StatusConflict {
		t.Fatal("expected conflict, got", rec.Code)
	}
	bad := strings.Replace(regionsBody, `"layout": "direct"`, `"layout": "flat"`, 1)
	bad = strings.Replace(bad, `"name": "regions"`, `"name": "hashed_regions"`, 1)
	if rec = do(s, http.MethodPost, "/dictionaries", bad); rec.Code != http.StatusBadRequest {
		t.Fatal("expected bad request, got", rec.Code, rec.Body.String())
	}
}

func TestGet(t *testing.T) {
	s, _ := newTestServer(t)

	var res GetResponse
	decode(t, do(s, http.MethodPost, "/dictionaries/geo.regions/get", `{"attribute": "name", "keys": [3, 1, 99]}`), &res)
	if !reflect.DeepEqual(res.Values, []any{"france", "earth", "?"}) || res.Nulls != nil {
		t.Fatalf("bad values %+v", res)
	}

	res = GetResponse{}
	decode(t, do(s, http.MethodPost, "/dictionaries/geo.regions/get", `{"attribute": "name", "keys": [99, 2], "default": "none"}`), &res)
	if !reflect.DeepEqual(res.Values, []any{"none", "europe"}) {
		t.Fatalf("bad values %+v", res)
	}

	res = GetResponse{}
	decode(t, do(s, http.MethodPost, "/dictionaries/geo.regions/get", `{"attribute": "population", "keys": [1, 2, 99], "defaults": [null, null, 5]}`), &res)
	if !reflect.DeepEqual(res.Values, []any{float64(8000), nil, float64(5)}) || !reflect.DeepEqual(res.Nulls, []bool{false, true, false}) {
		t.Fatalf("bad values %+v", res)
	}

	cases := map[string]int{
		`{"attribute": "nope", "keys": [1]}`:                       http.StatusNotFound,
		`{"attribute": "name", "type": "UInt8", "keys": [1]}`:      http.StatusBadRequest,
		`{"attribute": "name", "type": "Bogus", "keys": [1]}`:      http.StatusBadRequest,
		`{"attribute": "name", "keys": [1, 2], "defaults": ["a"]}`: http.StatusBadRequest,
		`{"keys": [1]}`: http.StatusBadRequest,
	}
	for body, code := range cases {
		if rec := do(s, http.MethodPost, "/dictionaries/geo.regions/get", body); rec.Code != code {
			t.Errorf("%s: expected %d, got %d: %s", body, code, rec.Code, rec.Body.String())
		}
	}
	if rec := do(s, http.MethodPost, "/dictionaries/geo.nope/get", `{"attribute": "name", "keys": [1]}`); rec.Code != http.StatusNotFound {
		t.Fatal("expected not found, got", rec.Code)
	}
}

func TestHierarchy(t *testing.T) {
	s, _ := newTestServer(t)

	var has struct{ Found []bool }
	decode(t, do(s, http.MethodPost, "/dictionaries/geo.regions/has", `{"keys": [1, 4, 3]}`), &has)
	if !reflect.DeepEqual(has.Found, []bool{true, false, true}) {
		t.Fatalf("bad has %+v", has)
	}

	var parents struct{ Parents []uint64 }
	decode(t, do(s, http.MethodPost, "/dictionaries/geo.regions/parents", `{"keys": [3, 2, 1, 99]}`), &parents)
	if !reflect.DeepEqual(parents.Parents, []uint64{2, 1, 0, 0}) {
		t.Fatalf("bad parents %+v", parents)
	}

	isIn := map[string][]bool{
		`{"children": [3, 2], "ancestor": 1}`:      {true, true},
		`{"child": 3, "ancestors": [1, 2, 3, 99]}`: {true, true, true, false},
		`{"children": [3, 1], "ancestors": [1, 3]}`: {true, false},
	}
	for body, want := range isIn {
		var res struct {
			IsIn []bool `json:"is_in"`
		}
		decode(t, do(s, http.MethodPost, "/dictionaries/geo.regions/is_in", body), &res)
		if !reflect.DeepEqual(res.IsIn, want) {
			t.Errorf("%s: got %v, want %v", body, res.IsIn, want)
		}
	}
	if rec := do(s, http.MethodPost, "/dictionaries/geo.regions/is_in", `{"child": 3, "ancestor": 1}`); rec.Code != http.StatusBadRequest {
		t.Fatal("expected bad request, got", rec.Code)
	}
	if rec := do(s, http.MethodPost, "/dictionaries/geo.regions/is_in", `{"children": [3], "ancestors": [1, 2]}`); rec.Code != http.StatusBadRequest {
		t.Fatal("expected bad request for length mismatch, got", rec.Code)
	}

	if rec := do(s, http.MethodPost, "/dictionaries", flatBody); rec.Code != http.StatusCreated {
		t.Fatal("create failed", rec.Code, rec.Body.String())
	}
	if rec := do(s, http.MethodPost, "/dictionaries/flat/parents", `{"keys": [1]}`); rec.Code != http.StatusNotImplemented {
		t.Fatal("expected not implemented, got", rec.Code)
	}
}

func TestDump(t *testing.T) {
	s, root := newTestServer(t)

	rec := do(s, http.MethodGet, "/dictionaries/geo.regions/dump", "")
	if rec.Code != http.StatusOK {
		t.Fatal("dump failed", rec.Code, rec.Body.String())
	}
	var lines []map[string]any
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var row map[string]any
		if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
			t.Fatal(err)
		}
		lines = append(lines, row)
	}
	if len(lines) != 3 || lines[2]["name"] != "france" || lines[1]["population"] != nil || lines[0]["region_id"] != float64(1) {
		t.Fatalf("bad dump %+v", lines)
	}

	rec = do(s, http.MethodGet, "/dictionaries/geo.regions/dump?format=parquet", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "PAR1") {
		t.Fatal("bad parquet dump", rec.Code)
	}

	var stats DumpStats
	decode(t, do(s, http.MethodGet, "/dictionaries/geo.regions/dump?format=parquet&upload=1", ""), &stats)
	if stats.Rows != 3 || !strings.HasPrefix(stats.Path, "geo.regions/") {
		t.Fatalf("bad stats %+v", stats)
	}
	if _, err := os.Stat(filepath.Join(root, stats.Path)); err != nil {
		t.Fatal(err)
	}

	if rec = do(s, http.MethodGet, "/dictionaries/geo.regions/dump?format=csv", ""); rec.Code != http.StatusBadRequest {
		t.Fatal("expected bad request, got", rec.Code)
	}
}

func TestMetricsAndDrop(t *testing.T) {
	s, _ := newTestServer(t)
	do(s, http.MethodPost, "/dictionaries/geo.regions/has", `{"keys": [1, 2]}`)

	rec := do(s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatal("metrics failed", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `directdict_dictionary_queries_total{dictionary="geo.regions"} 2`) {
		t.Fatal("query counter missing from metrics")
	}
	if !strings.Contains(rec.Body.String(), "directdict_http_requests_total") {
		t.Fatal("request counter missing from metrics")
	}

	var def map[string]any
	decode(t, do(s, http.MethodGet, "/dictionaries/geo.regions/definition", ""), &def)
	if def["name"] != "regions" {
		t.Fatalf("bad definition %+v", def)
	}

	if rec = do(s, http.MethodDelete, "/dictionaries/geo.regions", ""); rec.Code != http.StatusNoContent {
		t.Fatal("drop failed", rec.Code)
	}
	if rec = do(s, http.MethodGet, "/dictionaries/geo.regions", ""); rec.Code != http.StatusNotFound {
		t.Fatal("expected not found, got", rec.Code)
	}
}
