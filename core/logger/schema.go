package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var allowedStatus = map[string]string{
	"ok":       "ok",
	"fail":     "fail",
	"skip":     "skip",
	"rejected": "rejected",
}

var allowedAlert = map[string]string{
	"normal":  "normal",
	"caution": "caution",
	"warning": "warning",
	"danger":  "danger",
}

var allowedOutcome = map[string]string{
	"ok":        "ok",
	"fail":      "fail",
	"cancelled": "cancelled",
	"fallback":  "fallback",
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return "", false
	}
	if mapped, ok := allowedStatus[status]; ok {
		return mapped, true
	}
	return status, false
}

func normalizeAlert(alert string) (string, bool) {
	val, ok := allowedAlert[strings.ToLower(strings.TrimSpace(alert))]
	return val, ok
}

func normalizeOutcome(outcome string) (string, bool) {
	val, ok := allowedOutcome[strings.ToLower(strings.TrimSpace(outcome))]
	return val, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"method",
	"path",
	"http_code",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"outcome",
	"duration_ms",
	"device_id",
	"temperature",
	"humidity",
	"pm25",
	"alert",
	"has_location",
	"lat",
	"lon",
	"name",
	"topic",
	"action",
	"mode",
	"listen",
	"public_url",
	"host",
	"port",
	"db",
	"err",
	"error_kind",
	"attempts",
	"elapsed_ms",
}
