package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"stonklytics/internal/domain"
)

const maxBodyBytes = 1 << 20

// Request bodies. Strings are trimmed before validation.

type createWatchlistBody struct {
	// Name is a pointer so an omitted name can default.
	Name *string `json:"name" validate:"omitempty,max=100"`
}

type createWatchlistV2Body struct {
	Name string `json:"name" validate:"required,max=100"`
}

type addItemBody struct {
	Ticker      string `json:"ticker" validate:"required,max=16"`
	Name        string `json:"name" validate:"max=200"`
	WatchlistID string `json:"watchlist_id" validate:"omitempty,max=64"`
}

type addItemV2Body struct {
	Symbol string `json:"symbol" validate:"required,max=16"`
}

type chatBody struct {
	Message   string                   `json:"message" validate:"required,max=4000"`
	History   []domain.ChatTurn        `json:"history" validate:"max=200"`
	Watchlist *domain.WatchlistContext `json:"watchlist"`
}

// Response bodies not shared with the client package.

type messageResponse struct {
	Message string `json:"message"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type createWatchlistV2Response struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type chatResponse struct {
	Message string `json:"message"`
	Role    string `json:"role"`
}

// fieldMessages are the user-facing messages for failed "required" checks,
// keyed by JSON field name.
var fieldMessages = map[string]string{
	"ticker":  "Ticker is required",
	"symbol":  "symbol is required",
	"name":    "Watchlist name is required",
	"message": "Message is required",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody reads a JSON body into dst, trims its strings and validates it.
// The returned error message is safe to show to the user.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("Invalid JSON body")
	}
	trimStrings(dst)

	err := s.validate.Struct(dst)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		if fe.Tag() == "required" {
			if msg, ok := fieldMessages[fe.Field()]; ok {
				return errors.New(msg)
			}
			return fmt.Errorf("%s is required", fe.Field())
		}
		return fmt.Errorf("Invalid %s", fe.Field())
	}
	return err
}

// trimStrings trims every top-level string and *string field of the struct
// dst points to.
func trimStrings(dst any) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return
	}
	v = v.Elem()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		switch {
		case f.Kind() == reflect.String && f.CanSet():
			f.SetString(strings.TrimSpace(f.String()))
		case f.Kind() == reflect.Pointer && !f.IsNil() && f.Elem().Kind() == reflect.String:
			f.Elem().SetString(strings.TrimSpace(f.Elem().String()))
		}
	}
}
