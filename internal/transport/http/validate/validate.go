package validate

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// IsUUID reports whether s parses as any RFC 4122 UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
