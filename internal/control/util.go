package control

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
)

// bindOptionalJSON decodes the request body into v, treating an empty body
// as "no fields patched" rather than an error — several PATCH endpoints
// are valid with an empty object or no body at all.
func bindOptionalJSON(c *gin.Context, v interface{}) error {
	dec := json.NewDecoder(c.Request.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
