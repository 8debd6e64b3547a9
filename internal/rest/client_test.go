package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pedrohba/convo/internal/model"
)

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/channels/c1/messages" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		var req SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Body != "hello" || req.Kind != model.KindText {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(model.Message{ID: "m123", ChannelID: "c1", Body: req.Body, CreatedAt: 1000})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	msg, err := c.SendMessage(t.Context(), SendRequest{ChannelID: "c1", Body: "hello", Kind: model.KindText})
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "m123" {
		t.Errorf("ID = %q, want m123", msg.ID)
	}
}

func TestFetchMessagesQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("before") != "m50" || q.Get("limit") != "25" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode(Page{
			Messages: []*model.Message{{ID: "m49", ChannelID: "c1", CreatedAt: 49}},
			HasMore:  true,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	page, err := c.FetchMessages(t.Context(), "c1", "m50", 25)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 1 || !page.HasMore {
		t.Errorf("page = %+v", page)
	}
}

func TestFetchMessagesNewestPageOmitsCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("before") {
			t.Error("before cursor sent for newest page")
		}
		json.NewEncoder(w).Encode(Page{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.FetchMessages(t.Context(), "c1", "", 0); err != nil {
		t.Fatal(err)
	}
}

func TestUploadAttachmentMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/channels/c1/attachments" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatal(err)
		}
		defer file.Close()
		if header.Filename != "note.ogg" {
			t.Errorf("filename = %q", header.Filename)
		}
		if r.FormValue("kind") != "voice" || r.FormValue("durationMs") != "1200" {
			t.Errorf("fields: kind=%q durationMs=%q", r.FormValue("kind"), r.FormValue("durationMs"))
		}
		json.NewEncoder(w).Encode(model.Attachment{ID: "att1", Name: header.Filename, Kind: "voice"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	att, err := c.UploadAttachment(t.Context(), UploadRequest{
		ChannelID: "c1", Name: "note.ogg", Kind: "voice", DurationMs: 1200,
		Data: strings.NewReader("oggbytes"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if att.ID != "att1" {
		t.Errorf("attachment = %+v", att)
	}
}

func TestToggleReactionBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/channels/c1/messages/m1/reactions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["symbol"] != "👍" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.ToggleReaction(t.Context(), "c1", "m1", "👍"); err != nil {
		t.Fatal(err)
	}
}

func TestSetPinned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/channels/c1/messages/m1/pin" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		var body map[string]bool
		json.NewDecoder(r.Body).Decode(&body)
		if !body["pinned"] {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.SetPinned(t.Context(), "c1", "m1", true); err != nil {
		t.Fatal(err)
	}
}

func TestAPIErrorParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "not a member"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.SendMessage(t.Context(), SendRequest{ChannelID: "c1", Body: "x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Message != "not a member" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestAPIErrorFallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	err := c.DeleteMessage(t.Context(), "c1", "m1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != http.StatusText(http.StatusBadGateway) {
		t.Errorf("Message = %q", apiErr.Message)
	}
}
