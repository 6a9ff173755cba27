package report

// AlertLevel grades PM2.5 air quality.
type AlertLevel string

const (
	AlertNormal  AlertLevel = "normal"
	AlertCaution AlertLevel = "caution"
	AlertWarning AlertLevel = "warning"
	AlertDanger  AlertLevel = "danger"
)

// ClassifyPM25 applies strict upper thresholds: above 75, 50 and 25.
func ClassifyPM25(pm25 float64) AlertLevel {
	switch {
	case pm25 > 75:
		return AlertDanger
	case pm25 > 50:
		return AlertWarning
	case pm25 > 25:
		return AlertCaution
	default:
		return AlertNormal
	}
}

// Line renders the alert as the closing line of a sensor notification.
func (l AlertLevel) Line() string {
	switch l {
	case AlertDanger:
		return "🚨 Danger! PM2.5 is very high"
	case AlertWarning:
		return "⚠️ Warning! PM2.5 is high"
	case AlertCaution:
		return "🟡 Caution: PM2.5 is rising"
	default:
		return "✅ Normal: air quality is good"
	}
}
