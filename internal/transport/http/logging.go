package http

import (
	"encoding/json"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	requestBodyLogKey  = "http.request.body.summary"
	responseBodyLogKey = "http.response.body.summary"
	maxLoggedBody      = 2048
	redacted           = "redacted"
)

// sensitiveKeys lists substrings of field names whose values never reach the log.
var sensitiveKeys = []string{"password", "secret", "token"}

func registerLogging(e *echo.Echo) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			accountID := "anonymous"
			if principal, ok := CurrentPrincipal(c); ok {
				accountID = strconv.FormatInt(principal.AccountID, 10)
			}

			payload := struct {
				Time      string `json:"time"`
				AccountID string `json:"account_id"`
				LatencyMS int64  `json:"latency_ms"`
				Request   struct {
					Method string `json:"method"`
					URI    string `json:"uri"`
					Body   any    `json:"body,omitempty"`
				} `json:"request"`
				Response struct {
					Status int    `json:"status"`
					Body   any    `json:"body,omitempty"`
					Error  string `json:"error,omitempty"`
				} `json:"response"`
			}{
				Time:      v.StartTime.UTC().Format(time.RFC3339),
				AccountID: accountID,
				LatencyMS: v.Latency.Milliseconds(),
			}

			payload.Request.Method = v.Method
			payload.Request.URI = redactURI(v.URI)
			payload.Request.Body = c.Get(requestBodyLogKey)
			payload.Response.Status = v.Status
			payload.Response.Body = c.Get(responseBodyLogKey)
			if v.Error != nil {
				payload.Response.Error = v.Error.Error()
			}

			buf, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			log.Println(string(buf))
			return nil
		},
	}))

	e.Use(middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/metrics" || strings.HasPrefix(path, "/swagger")
		},
		Handler: func(c echo.Context, reqBody, resBody []byte) {
			if summary := sanitizeBody(reqBody, c.Request().Header.Get(echo.HeaderContentType)); summary != nil {
				c.Set(requestBodyLogKey, summary)
			}
			if summary := sanitizeBody(resBody, c.Response().Header().Get(echo.HeaderContentType)); summary != nil {
				c.Set(responseBodyLogKey, summary)
			}
		},
	}))
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// redactURI blanks sensitive query values such as ?token=.
func redactURI(raw string) string {
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	values := u.Query()
	changed := false
	for key := range values {
		if isSensitive(key) {
			values.Set(key, redacted)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = values.Encode()
	return u.RequestURI()
}

func sanitizeBody(body []byte, contentType string) any {
	if len(body) == 0 {
		return nil
	}

	loweredType := strings.ToLower(strings.TrimSpace(contentType))

	if strings.HasPrefix(loweredType, "application/json") || json.Valid(body) {
		var data any
		if err := json.Unmarshal(body, &data); err == nil {
			return sanitizeJSON(data)
		}
	}

	if strings.HasPrefix(loweredType, "application/x-www-form-urlencoded") {
		if values, err := url.ParseQuery(string(body)); err == nil && len(values) > 0 {
			sanitized := make(map[string]any, len(values))
			for key, vals := range values {
				if isSensitive(key) {
					sanitized[key] = redacted
					continue
				}
				sanitized[key] = clampString(strings.Join(vals, ","))
			}
			return sanitized
		}
	}

	if containsBinaryBytes(body) {
		return "binary"
	}
	text := string(body)
	if isSensitive(text) {
		return redacted
	}
	return clampString(text)
}

func sanitizeJSON(value any) any {
	switch v := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			if isSensitive(key) {
				result[key] = redacted
				continue
			}
			result[key] = sanitizeJSON(val)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = sanitizeJSON(item)
		}
		return result
	case string:
		if containsBinaryBytes([]byte(v)) {
			return "binary"
		}
		return clampString(v)
	default:
		return v
	}
}

func containsBinaryBytes(data []byte) bool {
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			return true
		}
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return true
		}
		data = data[size:]
	}
	return false
}

func clampString(value string) string {
	if len(value) <= maxLoggedBody {
		return value
	}
	truncated := value[:maxLoggedBody]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + "...(truncated)"
}
