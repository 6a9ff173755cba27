// Package report renders chat messages from the relay state.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/sensorbridge/internal/state"
)

// TimeLayout is how timestamps appear in chat.
const TimeLayout = "02/01/2006 15:04:05"

const (
	// LocationFormatError is sent when a /location command has no lat,lon pair.
	LocationFormatError = "❌ Invalid format\nUse: /location 13.7563,100.5018 Place name"
	// LocationParseError is sent when a /location command cannot be read at all.
	LocationParseError = "❌ Could not read the location"
)

// Formatter renders messages with times shown in Loc.
type Formatter struct {
	Loc *time.Location
}

// NewFormatter returns a formatter for loc, defaulting to UTC.
func NewFormatter(loc *time.Location) Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return Formatter{Loc: loc}
}

func (f Formatter) stamp(t time.Time) string {
	loc := f.Loc
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimeLayout)
}

// Num prints v in its shortest form, 65 rather than 65.000000.
func Num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Welcome greets firstName and lists the commands.
func (f Formatter) Welcome(firstName string) string {
	return fmt.Sprintf(`🌤️ Hello %s!

🔧 Sensor relay
📡 ESP32 ↔ server ↔ Telegram

📍 Send a location to get started:
1. Tap 📎 → Location
2. Or type: /location 13.7563,100.5018 Bangkok

🎮 Commands:
/status - current status
/test - run a system test

🚀 Ready for ESP32 data!`, firstName)
}

// LocationConfirm echoes the stored location.
func (f Formatter) LocationConfirm(loc state.Location) string {
	return fmt.Sprintf(`✅ Location received!

📍 Place: %s
🌐 Coordinates: %s, %s

🔄 System ready!
- The ESP32 can start sending data
- Readings will be forwarded to you automatically

⏰ Waiting for ESP32 data...`, loc.Name, loc.Lat, loc.Lon)
}

// Status summarizes the location and the latest reading as of now.
func (f Formatter) Status(loc state.Location, r state.SensorReading, now time.Time) string {
	var b strings.Builder
	b.WriteString("📊 System status\n\n📍 Location:\n")
	if loc.HasLocation {
		fmt.Fprintf(&b, "✅ %s\n🌐 %s, %s", loc.Name, loc.Lat, loc.Lon)
	} else {
		b.WriteString("❌ Location not set")
	}
	b.WriteString("\n\n📡 Sensor data:\n")
	if r.HasData() {
		fmt.Fprintf(&b, "✅ Last update: %s\n🌡️ Temperature: %s°C\n💧 Humidity: %s%%\n🌫️ PM2.5: %s μg/m³",
			f.stamp(r.LastUpdate), Num(r.Temperature), Num(r.Humidity), Num(r.PM25))
	} else {
		b.WriteString("❌ No data from ESP32 yet")
	}
	fmt.Fprintf(&b, "\n\n🚀 Server: running\n⏰ Server time: %s", f.stamp(now))
	return b.String()
}

// Test echoes a synthesized sample reading.
func (f Formatter) Test(r state.SensorReading) string {
	return fmt.Sprintf(`🧪 System test

📊 Sample data:
🌡️ Temperature: %s°C
💧 Humidity: %s%%
🌫️ PM2.5: %s μg/m³
🏷️ Device: %s
⏰ Time: %s

✅ Server: OK
✅ Telegram: OK
✅ Data processing: OK

🎯 Ready for ESP32 data!`, Num(r.Temperature), Num(r.Humidity), Num(r.PM25), r.DeviceID, f.stamp(r.LastUpdate))
}

// SensorNotification renders a reading for the operator chat.
// ok is false when no reading was ever stored.
func (f Formatter) SensorNotification(loc state.Location, r state.SensorReading) (text string, ok bool) {
	if !r.HasData() {
		return "", false
	}
	return fmt.Sprintf(`📊 ESP32 reading

📍 Place: %s
🏷️ Device: %s

🌡️ Temperature: %s°C
💧 Humidity: %s%%
🌫️ PM2.5: %s μg/m³

⏰ Time: %s

%s`, loc.Name, r.DeviceID, Num(r.Temperature), Num(r.Humidity), Num(r.PM25),
		f.stamp(r.LastUpdate), ClassifyPM25(r.PM25).Line()), true
}
