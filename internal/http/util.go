package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

var errBodyTooLarge = errors.New("request body too large")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

// readBody reads at most maxBytes; a larger body is an error rather than a
// silently truncated document.
func readBody(r *http.Request, maxBytes int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// decodeBody 读取请求体 → schema 校验 → 解码；失败时已写好响应并返回 false
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, schema *gojsonschema.Schema, out any, logger *zap.Logger) bool {
	body, err := readBody(r, maxBytes)
	if errors.Is(err, errBodyTooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, Fail("Request body too large"))
		return false
	}
	if err != nil {
		logger.Warn("Failed to read request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, Fail("Invalid request body"))
		return false
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, Fail("Invalid JSON body"))
		return false
	}
	if schema != nil {
		msg, err := validateBody(schema, body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("Invalid JSON body"))
			return false
		}
		if msg != "" {
			writeJSON(w, http.StatusBadRequest, Fail(msg))
			return false
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("Invalid request body"))
		return false
	}
	return true
}
