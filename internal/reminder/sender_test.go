package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outbound() OutboundMessage {
	return OutboundMessage{
		OrgID:      uuid.New(),
		ReminderID: uuid.New(),
		To:         "+5215512345678",
		Body:       "Recordatorio de tu cita.",
	}
}

func TestHTTPSenderSuccess(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL, "test-key", ChannelWhatsapp, time.Second, nil)
	msg := outbound()
	require.NoError(t, sender.Send(context.Background(), msg))

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, msg.To, gotPayload["to"])
	assert.Equal(t, msg.Body, gotPayload["text"])
}

func TestHTTPSenderServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL, "test-key", ChannelSms, time.Second, nil)
	err := sender.Send(context.Background(), outbound())
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusBadGateway, de.StatusCode)
}

func TestHTTPSenderRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL, "test-key", ChannelSms, time.Second, nil)
	assert.True(t, IsTransient(sender.Send(context.Background(), outbound())))
}

func TestHTTPSenderClientErrorIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown recipient", http.StatusBadRequest)
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL, "test-key", ChannelWhatsapp, time.Second, nil)
	err := sender.Send(context.Background(), outbound())
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestHTTPSenderConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	sender := NewHTTPSender(srv.URL, "test-key", ChannelWhatsapp, time.Second, nil)
	err := sender.Send(context.Background(), outbound())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestHTTPSenderValidation(t *testing.T) {
	sender := NewHTTPSender("http://example.invalid", "", ChannelWhatsapp, time.Second, nil)
	err := sender.Send(context.Background(), outbound())
	require.Error(t, err, "missing credentials")
	assert.False(t, IsTransient(err))

	sender = NewHTTPSender("http://example.invalid", "key", ChannelWhatsapp, time.Second, nil)
	msg := outbound()
	msg.To = ""
	assert.False(t, IsTransient(sender.Send(context.Background(), msg)))

	msg = outbound()
	msg.Body = "   "
	assert.False(t, IsTransient(sender.Send(context.Background(), msg)))
}

func TestIsTransientPlainErrors(t *testing.T) {
	assert.True(t, IsTransient(errors.New("read tcp: connection reset")))
}

func TestSenderRegistryUnknownChannel(t *testing.T) {
	reg := SenderRegistry{}
	err := reg.Send(context.Background(), ChannelSms, outbound())
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}
