package api

import (
	"encoding/json"
	"net/http"

	"github.com/kostiamol/farmms/log"
)

type (
	// Meta is implemented by response metadata blocks.
	Meta interface {
		GetMeta() map[string]interface{}
	}

	// Pagination describes a page of the reading history.
	Pagination struct {
		ResultCount uint `json:"result_count"`
		Limit       uint `json:"limit"`
		Offset      uint `json:"offset"`
	}

	envelope struct {
		Data interface{}            `json:"data"`
		Meta map[string]interface{} `json:"meta,omitempty"`
	}

	errorBody struct {
		Code             string                 `json:"code"`
		Message          string                 `json:"message"`
		ValidationErrors map[string]interface{} `json:"validation_errors,omitempty"`
	}
)

// GetMeta returns pagination meta.
func (p Pagination) GetMeta() map[string]interface{} {
	return map[string]interface{}{
		"pagination": map[string]uint{
			"total":  p.ResultCount,
			"limit":  p.Limit,
			"offset": p.Offset,
		},
	}
}

func resp(w http.ResponseWriter, l log.Logger, data interface{}, md ...Meta) {
	env := envelope{Data: data}
	for _, mt := range md {
		if env.Meta == nil {
			env.Meta = make(map[string]interface{})
		}
		for k, v := range mt.GetMeta() {
			env.Meta[k] = v
		}
	}
	writeJSON(w, l, http.StatusOK, env)
}

func respError(w http.ResponseWriter, l log.Logger, err error) {
	body := errorBody{Code: ErrService, Message: "Internal Server Error"}
	code := http.StatusInternalServerError

	switch e := err.(type) {
	case apiError:
		body.Code, body.Message = e.Code, e.Message
		code = statusOf(e.Code)
	case validationError:
		global := e.GlobalMessage
		if global == nil {
			global = []string{}
		}
		body.Code, body.Message = e.Code, e.Message
		body.ValidationErrors = map[string]interface{}{"_error": global, "errors": e.Errors}
		code = http.StatusBadRequest
	default:
		l.Errorf("func respError: %s", err)
	}
	writeJSON(w, l, code, body)
}

func statusOf(code string) int {
	switch code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrBadParam:
		return http.StatusBadRequest
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, l log.Logger, code int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		l.Errorf("func Marshal: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		l.Errorf("func Write: %s", err)
	}
}
