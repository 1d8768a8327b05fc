package parquet_accumulator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danthegoodman1/directdict/dictionary"
)

type (
	// ParquetSchemaAccumulator collects typed columns and renders the parquet-go JSON
	// schema for them.
	ParquetSchemaAccumulator struct {
		schema  ParquetSchema
		columns []Column
	}

	Column struct {
		Name     string
		Type     dictionary.Type
		Nullable bool
	}

	ParquetSchema struct {
		TagStructs SchemaTag        `json:"-,omitempty"`
		Fields     []*ParquetSchema `json:",omitempty"`
	}

	ParquetJSONSchema struct {
		Tag    string               `json:",omitempty"`
		Fields []*ParquetJSONSchema `json:",omitempty"`
	}

	SchemaTag struct {
		Name           string         `json:"name,omitempty"`
		Type           string         `json:"type,omitempty"`
		ConvertedType  string         `json:"convertedtype,omitempty"`
		RepetitionType RepetitionType `json:"repetitiontype,omitempty"`
		Encoding       string         `json:"encoding,omitempty"`
	}

	RepetitionType string
)

var (
	Optional RepetitionType = "OPTIONAL"
	Required RepetitionType = "REQUIRED"
)

func NewParquetAccumulator() ParquetSchemaAccumulator {
	return ParquetSchemaAccumulator{
		schema: ParquetSchema{
			TagStructs: SchemaTag{
				Name:           "parquet_go_root",
				RepetitionType: Required,
			},
		},
	}
}

// FromStructure lays out the id column (required UInt64) followed by every attribute as
// an optional column.
func FromStructure(s dictionary.Structure) (ParquetSchemaAccumulator, error) {
	pa := NewParquetAccumulator()
	if err := pa.AddColumn(s.IDName(), dictionary.Type{Kind: dictionary.KindUInt64}, false); err != nil {
		return pa, err
	}
	for _, attr := range s.Attributes {
		t, _, err := dictionary.ParseType(attr.Type)
		if err != nil {
			return pa, fmt.Errorf("error parsing type of attribute '%s': %w", attr.Name, err)
		}
		if err = pa.AddColumn(attr.Name, t, true); err != nil {
			return pa, err
		}
	}
	return pa, nil
}

// AddColumn appends a column, nullable columns are OPTIONAL and the rest REQUIRED.
func (pa *ParquetSchemaAccumulator) AddColumn(name string, t dictionary.Type, nullable bool) error {
	if pa.fieldExists(name) {
		return fmt.Errorf("duplicate column '%s'", name)
	}
	schema, err := getParquetSchema(name, t)
	if err != nil {
		return err
	}
	if nullable {
		schema.TagStructs.RepetitionType = Optional
	}
	pa.schema.Fields = append(pa.schema.Fields, schema)
	pa.columns = append(pa.columns, Column{Name: name, Type: t, Nullable: nullable})
	return nil
}

// getParquetSchema maps a dictionary type onto its physical and converted parquet types.
// Decimals and UUIDs are written as their canonical strings.
func getParquetSchema(name string, t dictionary.Type) (*ParquetSchema, error) {
	schema := &ParquetSchema{
		TagStructs: SchemaTag{
			Name:           name,
			RepetitionType: Required,
		},
	}
	tag := &schema.TagStructs
	switch t.Kind {
	case dictionary.KindUInt8:
		tag.Type, tag.ConvertedType = "INT32", "UINT_8"
	case dictionary.KindUInt16:
		tag.Type, tag.ConvertedType = "INT32", "UINT_16"
	case dictionary.KindUInt32:
		tag.Type, tag.ConvertedType = "INT32", "UINT_32"
	case dictionary.KindUInt64:
		tag.Type, tag.ConvertedType = "INT64", "UINT_64"
	case dictionary.KindInt8:
		tag.Type, tag.ConvertedType = "INT32", "INT_8"
	case dictionary.KindInt16:
		tag.Type, tag.ConvertedType = "INT32", "INT_16"
	case dictionary.KindInt32:
		tag.Type = "INT32"
	case dictionary.KindInt64:
		tag.Type = "INT64"
	case dictionary.KindFloat32:
		tag.Type = "FLOAT"
	case dictionary.KindFloat64:
		tag.Type = "DOUBLE"
	case dictionary.KindDecimal32, dictionary.KindDecimal64, dictionary.KindDecimal128,
		dictionary.KindUUID, dictionary.KindString:
		tag.Type, tag.ConvertedType, tag.Encoding = "BYTE_ARRAY", "UTF8", "PLAIN"
	default:
		return nil, fmt.Errorf("no parquet type for %s", t)
	}
	return schema, nil
}

func (pa *ParquetSchemaAccumulator) fieldExists(fieldName string) (exists bool) {
	for _, field := range pa.schema.Fields {
		if field.TagStructs.Name == fieldName {
			return true
		}
	}
	return
}

func (pa *ParquetSchemaAccumulator) GetColumnNames() []string {
	var cols []string
	for _, field := range pa.schema.Fields {
		cols = append(cols, field.TagStructs.Name)
	}
	return cols
}

// Columns returns the columns in the order they were added.
func (pa *ParquetSchemaAccumulator) Columns() []Column {
	return pa.columns
}

// ToParquetJSONSchema recursively converts
func (ps *ParquetSchema) ToParquetJSONSchema() *ParquetJSONSchema {
	var tagArr []string
	if ps.TagStructs.Type != "" {
		tagArr = append(tagArr, "type="+ps.TagStructs.Type)
	}
	if ps.TagStructs.ConvertedType != "" {
		tagArr = append(tagArr, "convertedtype="+ps.TagStructs.ConvertedType)
	}
	if ps.TagStructs.Encoding != "" {
		tagArr = append(tagArr, "encoding="+ps.TagStructs.Encoding)
	}
	if ps.TagStructs.Name != "" {
		tagArr = append(tagArr, "name="+ps.TagStructs.Name)
	}
	if string(ps.TagStructs.RepetitionType) != "" {
		tagArr = append(tagArr, "repetitiontype="+string(ps.TagStructs.RepetitionType))
	}
	var fields []*ParquetJSONSchema
	for _, field := range ps.Fields {
		fields = append(fields, field.ToParquetJSONSchema())
	}
	return &ParquetJSONSchema{
		Tag:    strings.Join(tagArr, ", "),
		Fields: fields,
	}
}

// GetSchemaString returns the JSON formatted schema string
func (pa *ParquetSchemaAccumulator) GetSchemaString() (string, error) {
	var fields []*ParquetJSONSchema
	for _, field := range pa.schema.Fields {
		fields = append(fields, field.ToParquetJSONSchema())
	}
	pjs := ParquetJSONSchema{
		Tag:    "name=parquet_go_root, repetitiontype=REQUIRED",
		Fields: fields,
	}

	b, err := json.Marshal(pjs)
	if err != nil {
		return "", fmt.Errorf("error in json.Marshal: %w", err)
	}
	return string(b), nil
}
