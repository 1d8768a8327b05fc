package pg_source

import (
	"context"
	"math/big"
	"reflect"
	"testing"

	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/utils"
	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
)

var regions = dictionary.Structure{
	ID: &dictionary.IDSpec{Name: "region_id"},
	Attributes: []dictionary.AttributeSpec{
		{Name: "parent", Type: "UInt64", Hierarchical: true},
		{Name: "name", Type: "String"},
		{Name: "area", Type: "Decimal64(2)"},
	},
}

func testSource(cfg Config) *PGSource {
	ps, err := NewPGSource(context.Background(), &pgxpool.Pool{}, cfg, regions)
	if err != nil {
		panic(err)
	}
	return ps
}

func TestQuery(t *testing.T) {
	ps := testSource(Config{Table: "geo.regions"})

	sql, args, err := ps.query([]dictionary.Key{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if sql != `SELECT "region_id", "parent", "name", "area" FROM "geo"."regions" WHERE "region_id" = ANY($1)` {
		t.Fatal("bad sql", sql)
	}
	if !reflect.DeepEqual(args, []any{[]int64{1, 2}}) {
		t.Fatal("bad args", args)
	}

	sql, args, err = ps.query(nil)
	if err != nil {
		t.Fatal(err)
	}
	if sql != `SELECT "region_id", "parent", "name", "area" FROM "geo"."regions"` || len(args) != 0 {
		t.Fatal("bad full load", sql, args)
	}

	ps = testSource(Config{Table: "regions", IDColumn: "id", Where: "active"})
	sql, _, err = ps.query([]dictionary.Key{})
	if err != nil {
		t.Fatal(err)
	}
	if sql != `SELECT "id", "parent", "name", "area" FROM "regions" WHERE "id" = ANY($1) AND (active)` {
		t.Fatal("bad sql", sql)
	}

	if _, _, err = ps.query([]dictionary.Key{1 << 63}); err == nil {
		t.Fatal("id above bigint accepted")
	}
}

func TestNormalize(t *testing.T) {
	v, err := normalize(pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Status: pgtype.Present})
	if err != nil {
		t.Fatal(err)
	}
	if !v.(decimal.Decimal).Equal(decimal.RequireFromString("123.45")) {
		t.Fatal("bad decimal", v)
	}

	if _, err = normalize(pgtype.Numeric{NaN: true, Status: pgtype.Present}); err == nil {
		t.Fatal("NaN accepted")
	}

	id := uuid.New()
	if v, _ = normalize([16]byte(id)); v != id {
		t.Fatal("bad uuid", v)
	}

	if v, _ = normalize("x"); v != "x" {
		t.Fatal("string changed", v)
	}

	k, err := toKey(pgtype.Numeric{Int: big.NewInt(7), Exp: 0, Status: pgtype.Present})
	if err != nil || k != 7 {
		t.Fatal("bad numeric key", k, err)
	}
	if _, err = toKey(int64(-1)); err == nil {
		t.Fatal("negative key accepted")
	}
}

func TestPGSourceIntegration(t *testing.T) {
	if utils.CRDB_DSN == "" {
		t.Skip("CRDB_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.Connect(ctx, utils.CRDB_DSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		DROP TABLE IF EXISTS test_regions;
		CREATE TABLE test_regions (region_id INT8 PRIMARY KEY, parent INT8, name TEXT, area DECIMAL(18,2));
		INSERT INTO test_regions VALUES (10, 0, 'earth', 510.10), (20, 10, 'europe', NULL), (30, 20, 'france', 0.64);
	`)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Exec(ctx, "DROP TABLE IF EXISTS test_regions")

	src, err := NewPGSource(ctx, pool, Config{Table: "test_regions", BlockSize: 2}, regions)
	if err != nil {
		t.Fatal(err)
	}
	d, err := dictionary.New("regions", regions, src)
	if err != nil {
		t.Fatal(err)
	}

	col, err := d.GetColumn(ctx, "area", dictionary.Type{Kind: dictionary.KindDecimal64, Scale: 2}, []dictionary.Key{10, 20, 99}, dictionary.Defaults{})
	if err != nil {
		t.Fatal(err)
	}
	got := dictionary.Values(col)
	if got[0].(decimal.Decimal).String() != "510.1" || !got[1].(decimal.Decimal).IsZero() || !got[2].(decimal.Decimal).IsZero() {
		t.Fatal("bad areas", got)
	}

	in, err := d.IsInVectorConstant(ctx, []dictionary.Key{30, 99}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, []bool{true, false}) {
		t.Fatal("bad is in", in)
	}
}
