package sms

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAfricasTalkingSend(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/version1/messaging" || r.Header.Get("ApiKey") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		r.ParseForm()
		form = map[string]string{"to": r.Form.Get("to"), "from": r.Form.Get("from"), "username": r.Form.Get("username")}
		status := "Success"
		if r.Form.Get("to") == "+2348000000000" {
			status = "InvalidPhoneNumber"
		}
		fmt.Fprintf(w, `{"SMSMessageData":{"Message":"Sent to 1/1","Recipients":[{"number":%q,"status":%q}]}}`, r.Form.Get("to"), status)
	}))
	defer srv.Close()

	at := NewAfricasTalking(srv.URL, "sandbox", "key", "myRite")
	require.NoError(t, at.Send(context.Background(), "+2348012345678", "Payout received"))
	require.Equal(t, "+2348012345678", form["to"])
	require.Equal(t, "myRite", form["from"])
	require.Equal(t, "sandbox", form["username"])

	require.ErrorIs(t, at.Send(context.Background(), "+2348000000000", "hi"), ErrNotDelivered)
	require.ErrorIs(t, at.Send(context.Background(), "123", "hi"), ErrInvalidPhone)
	require.ErrorIs(t, at.Send(context.Background(), "+2348012345678", "  "), ErrEmptyMessage)

	bad := NewAfricasTalking(srv.URL, "sandbox", "wrong", "myRite")
	require.Error(t, bad.Send(context.Background(), "+2348012345678", "hi"))
}
