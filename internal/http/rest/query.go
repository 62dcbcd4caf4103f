package rest

import (
	"net/http"
	"reflect"
	"time"

	"github.com/gorilla/schema"
)

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.RegisterConverter(time.Time{}, func(s string) reflect.Value {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(t)
	})
	return d
}

// decodeQuery fills dst from the URL query. Keys listed in required must be
// present; their absence is reported the way validator failures are.
func decodeQuery(r *http.Request, dst interface{}, required ...string) error {
	q := r.URL.Query()

	missing := fieldErrors{}
	for _, key := range required {
		if q.Get(key) == "" {
			missing[key] = "required"
		}
	}
	if len(missing) > 0 {
		return missing
	}

	if err := queryDecoder.Decode(dst, q); err != nil {
		return queryConversionErrors(err)
	}
	return nil
}

func queryConversionErrors(err error) error {
	multi, ok := err.(schema.MultiError)
	if !ok {
		return err
	}
	out := fieldErrors{}
	for key := range multi {
		out[key] = "invalid"
	}
	return out
}
