package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/sensorbridge/internal/relay"
	"github.com/m3rciful/sensorbridge/internal/report"
	"github.com/m3rciful/sensorbridge/internal/state"

	tele "gopkg.in/telebot.v4"
)

func TestParseLocationCommand(t *testing.T) {
	cases := []struct {
		text string
		want LocationCommand
	}{
		{"/location 13.7563,100.5018 Bangkok", LocationCommand{"13.7563", "100.5018", "Bangkok"}},
		{"/location 13.7563,100.5018", LocationCommand{"13.7563", "100.5018", "Unknown Location"}},
		{"/location 13.7563,100.5018 Grand Palace Bangkok", LocationCommand{"13.7563", "100.5018", "Grand Palace Bangkok"}},
		{"/location 13.7563,100.5018 ", LocationCommand{"13.7563", "100.5018", "Unknown Location"}},
		{"/location abc,def Nowhere", LocationCommand{"abc", "def", "Nowhere"}},
	}
	for _, tc := range cases {
		got, err := ParseLocationCommand(tc.text)
		require.NoError(t, err, tc.text)
		assert.Equal(t, tc.want, got, tc.text)
	}
}

func TestParseLocationCommandRejects(t *testing.T) {
	for _, text := range []string{
		"/location invalid",
		"/location 1,2,3 Too many",
		"/location  13.7,100.5",
	} {
		_, err := ParseLocationCommand(text)
		assert.ErrorIs(t, err, ErrLocationFormat, text)
	}

	_, err := ParseLocationCommand("/status")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocationFormat)
}

func TestFromAttachmentRoundsName(t *testing.T) {
	got := FromAttachment(&tele.Location{Lat: 13.75629, Lng: 100.50176})

	assert.Equal(t, "13.7563, 100.5018", got.Name)
	assert.Equal(t, "13.75629", got.Lat)
	assert.Equal(t, "100.50176", got.Lon)
}

type message struct {
	chatID int64
	text   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []message
}

func (n *recordingNotifier) Notify(_ context.Context, chatID int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, message{chatID: chatID, text: text})
}

func (n *recordingNotifier) messages() []message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]message(nil), n.sent...)
}

type harness struct {
	bot      *tele.Bot
	svc      *relay.Service
	notifier *recordingNotifier
	handler  tele.HandlerFunc
	nextID   int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Token: "123:test", Offline: true, Synchronous: true})
	require.NoError(t, err)
	n := &recordingNotifier{}
	svc := relay.New(relay.Options{
		Formatter:      report.NewFormatter(time.UTC),
		Notifier:       n,
		OperatorChatID: 1704,
	})
	return &harness{bot: bot, svc: svc, notifier: n, handler: NewRouter(svc).Handler()}
}

func (h *harness) send(t *testing.T, msg *tele.Message) {
	t.Helper()
	h.nextID++
	msg.Chat = &tele.Chat{ID: 555, Type: tele.ChatPrivate}
	msg.Sender = &tele.User{ID: 777, FirstName: "Somchai"}
	require.NoError(t, h.handler(h.bot.NewContext(tele.Update{ID: h.nextID, Message: msg})))
}

func TestStartGreetsSender(t *testing.T) {
	h := newHarness(t)
	h.send(t, &tele.Message{Text: "/start"})
	h.send(t, &tele.Message{Text: "/start@sensorbridge_bot"})

	msgs := h.notifier.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(555), msgs[0].chatID)
	assert.Contains(t, msgs[0].text, "Hello Somchai!")
}

func TestLocationAttachmentSetsLocation(t *testing.T) {
	h := newHarness(t)
	h.send(t, &tele.Message{Location: &tele.Location{Lat: 13.75629, Lng: 100.50176}})

	loc := h.svc.Location()
	assert.True(t, loc.HasLocation)
	assert.Equal(t, "13.7563, 100.5018", loc.Name)

	msgs := h.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].text, "13.7563, 100.5018")
}

func TestRawLocationKeepsFullPrecision(t *testing.T) {
	h := newHarness(t)
	body := []byte(`{"update_id":9,"message":{"message_id":1,"date":0,"chat":{"id":555,"type":"private"},` +
		`"location":{"latitude":13.756331,"longitude":100.501762}}}`)
	c := h.bot.NewContext(tele.Update{ID: 9, Message: &tele.Message{
		Chat:     &tele.Chat{ID: 555, Type: tele.ChatPrivate},
		Location: &tele.Location{Lat: 13.756331, Lng: 100.501762},
	}})
	AttachRawLocation(c, body)
	require.NoError(t, h.handler(c))

	loc := h.svc.Location()
	assert.Equal(t, "13.756331", loc.Lat)
	assert.Equal(t, "100.501762", loc.Lon)
	assert.Equal(t, "13.7563, 100.5018", loc.Name)
}

func TestAttachRawLocationIgnoresOtherBodies(t *testing.T) {
	h := newHarness(t)
	c := h.bot.NewContext(tele.Update{ID: 1, Message: &tele.Message{Text: "/status"}})

	AttachRawLocation(c, []byte(`{"update_id":1,"message":{"text":"/status"}}`))
	AttachRawLocation(c, []byte(`not json`))

	assert.Nil(t, c.Get(rawLocationKey))
}

func TestLocationCommand(t *testing.T) {
	h := newHarness(t)
	h.send(t, &tele.Message{Text: "/location 13.7563,100.5018 Bangkok"})

	assert.Equal(t, state.Location{Lat: "13.7563", Lon: "100.5018", Name: "Bangkok", HasLocation: true}, h.svc.Location())
	require.Len(t, h.notifier.messages(), 1)
	assert.Contains(t, h.notifier.messages()[0].text, "Bangkok")
}

func TestInvalidLocationLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	h.send(t, &tele.Message{Text: "/location 1.5,2.5 Home"})
	before := h.svc.Location()

	h.send(t, &tele.Message{Text: "/location invalid"})

	assert.Equal(t, before, h.svc.Location())
	msgs := h.notifier.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, report.LocationFormatError, msgs[1].text)
}

func TestStatusReflectsState(t *testing.T) {
	h := newHarness(t)
	h.send(t, &tele.Message{Text: "/status"})
	h.send(t, &tele.Message{Text: "/status now"})

	msgs := h.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].text, "Location not set")
	assert.Contains(t, msgs[0].text, "No data from ESP32 yet")
}

func TestTestCommandStoresSampleAndRepliesOnce(t *testing.T) {
	h := newHarness(t)
	h.send(t, &tele.Message{Text: "/location 1,2 Home"})
	h.send(t, &tele.Message{Text: "/test"})

	r := h.svc.Reading()
	assert.Equal(t, relay.SampleReading, state.ReadingInput{Temperature: r.Temperature, Humidity: r.Humidity, PM25: r.PM25, DeviceID: r.DeviceID})

	msgs := h.notifier.messages()
	require.Len(t, msgs, 2)
	reply := msgs[1]
	assert.Equal(t, int64(555), reply.chatID)
	for _, want := range []string{"28.5", "65", "35.2", "TEST_001", r.LastUpdate.UTC().Format(report.TimeLayout)} {
		assert.Contains(t, reply.text, want)
	}
}

func TestUnmatchedMessagesAreIgnored(t *testing.T) {
	h := newHarness(t)
	h.send(t, &tele.Message{Text: "hello"})
	h.send(t, &tele.Message{Text: "/location"})
	h.send(t, &tele.Message{Text: "/help"})

	assert.Empty(t, h.notifier.messages())
	assert.False(t, h.svc.Location().HasLocation)
}

func TestHandlerRecoversPanics(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Token: "123:test", Offline: true})
	require.NoError(t, err)
	h := NewRouter(nil).Handler()

	upd := tele.Update{ID: 1, Message: &tele.Message{Text: "/status", Chat: &tele.Chat{ID: 1}}}
	assert.Error(t, h(bot.NewContext(upd)))
}
