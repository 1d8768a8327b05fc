package http_server

import (
	"net/http"
)

// GetDefinition returns the stored definition including its source params.
func (s *HTTPServer) GetDefinition(c *CustomContext) error {
	def, err := s.catalog.Definition(c.Param("name"))
	if err != nil {
		return c.DictionaryError(err, "error getting definition")
	}
	return c.JSON(http.StatusOK, def)
}
