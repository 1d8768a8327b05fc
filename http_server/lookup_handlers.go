package http_server

import (
	"net/http"
	"time"

	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/metastore"
	"github.com/labstack/echo/v4"
)

type (
	GetReqBody struct {
		Attribute string `json:"attribute" validate:"required"`
		// Type defaults to the attribute's own type
		Type string   `json:"type"`
		Keys []uint64 `json:"keys"`
		// Default applies to every missing key, Defaults gives one per key
		Default  any   `json:"default"`
		Defaults []any `json:"defaults"`
	}

	GetResponse struct {
		Values []any `json:"values"`
		// Nulls is set for nullable attributes
		Nulls []bool `json:"nulls,omitempty"`
	}

	KeysReqBody struct {
		Keys []uint64 `json:"keys"`
	}

	// IsInReqBody takes a child or children, and an ancestor or ancestors. At least one side
	// must be a list.
	IsInReqBody struct {
		Child     *uint64  `json:"child"`
		Children  []uint64 `json:"children"`
		Ancestor  *uint64  `json:"ancestor"`
		Ancestors []uint64 `json:"ancestors"`
	}

	AttributeInfo struct {
		Name         string `json:"name"`
		Type         string `json:"type"`
		Nullable     bool   `json:"nullable"`
		Hierarchical bool   `json:"hierarchical"`
		Injective    bool   `json:"injective"`
		NullValue    any    `json:"null_value"`
	}

	DictionaryInfo struct {
		Name           string          `json:"name"`
		Type           string          `json:"type"`
		IDName         string          `json:"id_name"`
		SourceType     string          `json:"source_type"`
		Attributes     []AttributeInfo `json:"attributes"`
		HasHierarchy   bool            `json:"has_hierarchy"`
		QueryCount     uint64          `json:"query_count"`
		ElementCount   uint64          `json:"element_count"`
		HitRate        float64         `json:"hit_rate"`
		BytesAllocated int             `json:"bytes_allocated"`
		CreatedAt      time.Time       `json:"created_at"`
	}
)

func (s *HTTPServer) info(d *dictionary.Dictionary) DictionaryInfo {
	info := DictionaryInfo{
		Name:           d.FullName(),
		Type:           d.TypeName(),
		IDName:         d.Structure().IDName(),
		HasHierarchy:   d.HasHierarchy(),
		QueryCount:     d.QueryCount(),
		ElementCount:   d.ElementCount(),
		HitRate:        d.HitRate(),
		BytesAllocated: d.BytesAllocated(),
		CreatedAt:      d.CreatedAt(),
	}
	if def, err := s.catalog.Definition(d.FullName()); err == nil {
		info.SourceType = def.Source.Type
	}
	for _, attr := range d.Attributes() {
		info.Attributes = append(info.Attributes, AttributeInfo{
			Name:         attr.Name,
			Type:         attr.Type.String(),
			Nullable:     attr.Nullable,
			Hierarchical: attr.Hierarchical,
			Injective:    attr.Injective,
			NullValue:    attr.NullValue(),
		})
	}
	return info
}

func (s *HTTPServer) ListDictionaries(c *CustomContext) error {
	infos := make([]DictionaryInfo, 0)
	for _, d := range s.catalog.Dictionaries() {
		infos = append(infos, s.info(d))
	}
	return c.JSON(http.StatusOK, infos)
}

func (s *HTTPServer) DescribeDictionary(c *CustomContext) error {
	d, err := s.catalog.Get(c.Param("name"))
	if err != nil {
		return c.DictionaryError(err, "error getting dictionary")
	}
	return c.JSON(http.StatusOK, s.info(d))
}

func (s *HTTPServer) CreateDictionary(c *CustomContext) error {
	var def metastore.Definition
	if err := c.Bind(&def); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	d, err := s.catalog.CreateDictionary(c.Request().Context(), def)
	if err != nil {
		return c.DictionaryError(err, "error creating dictionary")
	}
	return c.JSON(http.StatusCreated, s.info(d))
}

func (s *HTTPServer) DropDictionary(c *CustomContext) error {
	if err := s.catalog.Drop(c.Request().Context(), c.Param("name")); err != nil {
		return c.DictionaryError(err, "error dropping dictionary")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) GetHandler(c *CustomContext) error {
	var reqBody GetReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return err
	}
	d, err := s.catalog.Get(c.Param("name"))
	if err != nil {
		return c.DictionaryError(err, "error getting dictionary")
	}
	attr, err := d.GetAttribute(reqBody.Attribute)
	if err != nil {
		return c.DictionaryError(err, "error getting attribute")
	}

	resultType := attr.Type
	if reqBody.Type != "" {
		resultType, _, err = dictionary.ParseType(reqBody.Type)
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
	}

	var defaults dictionary.Defaults
	switch {
	case reqBody.Defaults != nil:
		defaults = dictionary.RowDefaults(reqBody.Defaults)
	case reqBody.Default != nil:
		defaults = dictionary.ConstantDefault(reqBody.Default)
	}

	col, err := d.GetColumn(c.Request().Context(), reqBody.Attribute, resultType, orEmpty(reqBody.Keys), defaults)
	if err != nil {
		return c.DictionaryError(err, "error in GetColumn")
	}

	res := GetResponse{Values: dictionary.Values(col)}
	if nc, ok := col.(*dictionary.NullableColumn); ok {
		res.Nulls = make([]bool, nc.Len())
		for i := range res.Nulls {
			res.Nulls[i] = nc.IsNull(i)
		}
	}
	return c.JSON(http.StatusOK, res)
}

func (s *HTTPServer) HasHandler(c *CustomContext) error {
	var reqBody KeysReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return err
	}
	d, err := s.catalog.Get(c.Param("name"))
	if err != nil {
		return c.DictionaryError(err, "error getting dictionary")
	}
	found, err := d.HasKeys(c.Request().Context(), orEmpty(reqBody.Keys))
	if err != nil {
		return c.DictionaryError(err, "error in HasKeys")
	}
	return c.JSON(http.StatusOK, echo.Map{"found": found})
}

func (s *HTTPServer) ParentsHandler(c *CustomContext) error {
	var reqBody KeysReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return err
	}
	d, err := s.catalog.Get(c.Param("name"))
	if err != nil {
		return c.DictionaryError(err, "error getting dictionary")
	}
	parents, err := d.ToParent(c.Request().Context(), orEmpty(reqBody.Keys))
	if err != nil {
		return c.DictionaryError(err, "error in ToParent")
	}
	return c.JSON(http.StatusOK, echo.Map{"parents": parents})
}

func (s *HTTPServer) IsInHandler(c *CustomContext) error {
	var reqBody IsInReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return err
	}
	d, err := s.catalog.Get(c.Param("name"))
	if err != nil {
		return c.DictionaryError(err, "error getting dictionary")
	}
	ctx := c.Request().Context()

	var result []bool
	switch {
	case reqBody.Children != nil && reqBody.Ancestors != nil:
		result, err = d.IsInVectorVector(ctx, reqBody.Children, reqBody.Ancestors)
	case reqBody.Children != nil && reqBody.Ancestor != nil:
		result, err = d.IsInVectorConstant(ctx, reqBody.Children, *reqBody.Ancestor)
	case reqBody.Child != nil && reqBody.Ancestors != nil:
		result, err = d.IsInConstantVector(ctx, *reqBody.Child, reqBody.Ancestors)
	default:
		return c.String(http.StatusBadRequest, "is_in needs children or child, with ancestors or ancestor, and at least one list")
	}
	if err != nil {
		return c.DictionaryError(err, "error in IsIn")
	}
	return c.JSON(http.StatusOK, echo.Map{"is_in": result})
}

func orEmpty(keys []uint64) []uint64 {
	if keys == nil {
		return []uint64{}
	}
	return keys
}
