package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/model"
	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/notify"
)

func Test_NotifyRegistration_ResolvesAndSends(t *testing.T) {
	// setup
	directory := &fakeDirectory{email: "u1@example.com"}
	mailer := &fakeMailer{}
	notifier := notify.New(directory, mailer)

	eventID := uuid.New()

	// act
	err := notifier.NotifyRegistration(context.Background(), "u1", eventID, model.ActionRegister)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "u1", directory.lastUserID)
	assert.Equal(t, "u1@example.com", mailer.lastTo)
	assert.Equal(t, "Registration confirmed", mailer.lastSubject)
	assert.Contains(t, mailer.lastBody, eventID.String())
}

func Test_NotifyRegistration_UnregisterUsesCancellationMessage(t *testing.T) {
	// setup
	mailer := &fakeMailer{}
	notifier := notify.New(&fakeDirectory{email: "u1@example.com"}, mailer)

	// act
	err := notifier.NotifyRegistration(context.Background(), "u1", uuid.New(), model.ActionUnregister)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "You have been unregistered", mailer.lastSubject)
}

func Test_NotifyRegistration_UnresolvableUserAbortsSend(t *testing.T) {
	// setup
	mailer := &fakeMailer{}
	notifier := notify.New(&fakeDirectory{err: notify.ErrUserNotFound}, mailer)

	// act
	err := notifier.NotifyRegistration(context.Background(), "ghost", uuid.New(), model.ActionRegister)

	// assert
	assert.ErrorIs(t, err, notify.ErrUserNotFound)
	assert.Equal(t, 0, mailer.calls, "no send without a resolved address")
}

func Test_NotifyRegistration_SendFailureSurfaces(t *testing.T) {
	// setup
	notifier := notify.New(
		&fakeDirectory{email: "u1@example.com"},
		&fakeMailer{err: errors.New("gateway timeout")},
	)

	// act
	err := notifier.NotifyRegistration(context.Background(), "u1", uuid.New(), model.ActionRegister)

	// assert
	assert.Error(t, err)
}

func Test_HTTPDirectory_ResolveEmail(t *testing.T) {
	// setup
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/u1/email", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"u1@example.com"}`))
	}))
	defer srv.Close()

	directory := notify.NewHTTPDirectory(srv.URL, srv.Client())

	// act
	email, err := directory.ResolveEmail(context.Background(), "u1")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", email)
}

func Test_HTTPDirectory_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "404 response",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "empty address",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"email":""}`))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			directory := notify.NewHTTPDirectory(srv.URL, srv.Client())

			_, err := directory.ResolveEmail(context.Background(), "ghost")

			assert.ErrorIs(t, err, notify.ErrUserNotFound)
		})
	}
}

func Test_HTTPMailer_Send(t *testing.T) {
	// setup
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	mailer := notify.NewHTTPMailer(srv.URL, srv.Client())

	// act
	err := mailer.Send(context.Background(), "u1@example.com", "Registration confirmed", "hello")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", received["to"])
	assert.Equal(t, "Registration confirmed", received["subject"])
	assert.Equal(t, "hello", received["body"])
}

func Test_HTTPMailer_NonSuccessStatusIsAnError(t *testing.T) {
	// setup
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	mailer := notify.NewHTTPMailer(srv.URL, srv.Client())

	// act
	err := mailer.Send(context.Background(), "u1@example.com", "s", "b")

	// assert
	assert.Error(t, err)
}

// Test doubles

type fakeDirectory struct {
	email      string
	err        error
	lastUserID string
}

func (f *fakeDirectory) ResolveEmail(_ context.Context, userID string) (string, error) {
	f.lastUserID = userID
	return f.email, f.err
}

type fakeMailer struct {
	calls       int
	err         error
	lastTo      string
	lastSubject string
	lastBody    string
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.calls++
	f.lastTo = to
	f.lastSubject = subject
	f.lastBody = body
	return f.err
}
