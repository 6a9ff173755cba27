package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

const (
	locationPrefix      = "/location "
	defaultLocationName = "Unknown Location"

	rawLocationKey = "chat.raw_location"
)

var (
	// ErrLocationFormat means the command had no single lat,lon pair.
	ErrLocationFormat = errors.New("chat: expected /location <lat>,<lon> [name]")
	errNotLocation    = errors.New("chat: not a location command")
)

// LocationCommand is a parsed /location command. Coordinates keep their text.
type LocationCommand struct {
	Lat  string
	Lon  string
	Name string
}

// ParseLocationCommand reads "/location <lat>,<lon> [name...]".
// Tokens are split on single spaces; the first must hold exactly one comma.
func ParseLocationCommand(text string) (LocationCommand, error) {
	if !strings.HasPrefix(text, locationPrefix) {
		return LocationCommand{}, errNotLocation
	}
	parts := strings.Split(strings.TrimPrefix(text, locationPrefix), " ")
	coords := strings.Split(parts[0], ",")
	if len(coords) != 2 {
		return LocationCommand{}, fmt.Errorf("%w: got %q", ErrLocationFormat, parts[0])
	}
	name := strings.Join(parts[1:], " ")
	if name == "" {
		name = defaultLocationName
	}
	return LocationCommand{Lat: coords[0], Lon: coords[1], Name: name}, nil
}

// FromAttachment converts a shared location. The name is the coordinates
// rounded to four places; lat and lon keep the shortest exact text.
func FromAttachment(loc *tele.Location) LocationCommand {
	lat, lon := float64(loc.Lat), float64(loc.Lng)
	return LocationCommand{
		Lat:  strconv.FormatFloat(lat, 'f', -1, 32),
		Lon:  strconv.FormatFloat(lon, 'f', -1, 32),
		Name: fmt.Sprintf("%.4f, %.4f", lat, lon),
	}
}

// RawLocation holds shared coordinates as sent, before telebot narrows them to float32.
type RawLocation struct {
	Lat json.Number `json:"latitude"`
	Lon json.Number `json:"longitude"`
}

// AttachRawLocation decodes message.location from the raw update body and
// keeps it on c, so the attachment handler can store full precision.
// Bodies without a location leave c untouched.
func AttachRawLocation(c tele.Context, body []byte) {
	var u struct {
		Message *struct {
			Location *RawLocation `json:"location"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &u); err != nil || u.Message == nil || u.Message.Location == nil {
		return
	}
	c.Set(rawLocationKey, *u.Message.Location)
}

func (r RawLocation) command() (LocationCommand, error) {
	lat, err := r.Lat.Float64()
	if err != nil {
		return LocationCommand{}, fmt.Errorf("chat: latitude: %w", err)
	}
	lon, err := r.Lon.Float64()
	if err != nil {
		return LocationCommand{}, fmt.Errorf("chat: longitude: %w", err)
	}
	return LocationCommand{
		Lat:  strconv.FormatFloat(lat, 'f', -1, 64),
		Lon:  strconv.FormatFloat(lon, 'f', -1, 64),
		Name: fmt.Sprintf("%.4f, %.4f", lat, lon),
	}, nil
}

// attachmentCommand prefers the raw coordinates kept by AttachRawLocation.
// Long-polled updates only carry telebot's float32 values.
func attachmentCommand(c tele.Context) LocationCommand {
	if raw, ok := c.Get(rawLocationKey).(RawLocation); ok {
		if cmd, err := raw.command(); err == nil {
			return cmd
		}
	}
	return FromAttachment(c.Message().Location)
}
