package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vladkruhlyk/git-bot.statistic/internal/apperror"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListAdAccounts_SinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/adaccounts" {
			t.Errorf("path = %q, want /me/adaccounts", r.URL.Path)
		}
		if got := r.URL.Query().Get("access_token"); got != "tok-1" {
			t.Errorf("access_token = %q, want tok-1", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"id": "act_1", "account_id": "1", "name": "First", "currency": "USD"},
				{"id": "act_2", "account_id": "2", "name": "Second", "currency": "EUR"},
			},
		})
	}))
	defer srv.Close()

	c := newClientWithBaseURL(srv.URL, testLogger())
	accounts, err := c.ListAdAccounts(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("ListAdAccounts() error = %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("len(accounts) = %d, want 2", len(accounts))
	}
	if accounts[0].AccountID != "1" || accounts[1].Currency != "EUR" {
		t.Errorf("accounts = %+v", accounts)
	}
}

func TestListAdAccounts_FollowsCursor(t *testing.T) {
	var srv *httptest.Server
	calls := 0
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			json.NewEncoder(w).Encode(map[string]any{
				"data":   []map[string]string{{"id": "act_1", "account_id": "1"}},
				"paging": map[string]string{"next": srv.URL + "/me/adaccounts?after=cursor"},
			})
		case 2:
			// No paging.next: the traversal must stop here.
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]string{{"id": "act_2", "account_id": "2"}},
			})
		default:
			t.Error("client kept following a cursor that was never returned")
		}
	}))
	defer srv.Close()

	c := newClientWithBaseURL(srv.URL, testLogger())
	accounts, err := c.ListAdAccounts(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ListAdAccounts() error = %v", err)
	}
	if len(accounts) != 2 {
		t.Errorf("len(accounts) = %d, want 2 across pages", len(accounts))
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestListAdAccounts_TokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":190,"message":"Error validating access token"}}`)
	}))
	defer srv.Close()

	c := newClientWithBaseURL(srv.URL, testLogger())
	_, err := c.ListAdAccounts(context.Background(), "expired")
	if !errors.Is(err, apperror.ErrTokenRejected) {
		t.Errorf("error = %v, want ErrTokenRejected", err)
	}
}

func TestListAdAccounts_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := newClientWithBaseURL(srv.URL, testLogger())
	_, err := c.ListAdAccounts(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrTokenRejected) {
		t.Errorf("error = %v, want ErrTokenRejected for plain 401", err)
	}
}

func TestListAdAccounts_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"code":1,"message":"An unknown error occurred"}}`)
	}))
	defer srv.Close()

	c := newClientWithBaseURL(srv.URL, testLogger())
	_, err := c.ListAdAccounts(context.Background(), "tok")
	if !errors.Is(err, apperror.ErrTransient) {
		t.Errorf("error = %v, want ErrTransient", err)
	}
}

func TestListAdAccounts_ConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := newClientWithBaseURL(srv.URL, testLogger())
	_, err := c.ListAdAccounts(context.Background(), "tok")
	if !errors.Is(err, apperror.ErrTransient) {
		t.Errorf("error = %v, want ErrTransient", err)
	}
}

func TestAccountInsights_NormalizesAccountID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{
				"spend":  "123.45",
				"clicks": "67",
				"actions": []map[string]string{
					{"action_type": "lead", "value": "4"},
				},
			}},
		})
	}))
	defer srv.Close()

	c := newClientWithBaseURL(srv.URL, testLogger())
	row, err := c.AccountInsights(context.Background(), "tok", "12345", "2024-06-01", "2024-06-10")
	if err != nil {
		t.Fatalf("AccountInsights() error = %v", err)
	}
	if gotPath != "/act_12345/insights" {
		t.Errorf("path = %q, want act_-prefixed insights edge", gotPath)
	}
	if row.Spend != "123.45" || row.Clicks != "67" {
		t.Errorf("row = %+v", row)
	}
	if len(row.Actions) != 1 || row.Actions[0].ActionType != "lead" {
		t.Errorf("actions = %+v", row.Actions)
	}
}

func TestAccountInsights_KeepsExistingPrefix(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c := newClientWithBaseURL(srv.URL, testLogger())
	if _, err := c.AccountInsights(context.Background(), "tok", "act_777", "2024-06-01", "2024-06-10"); err != nil {
		t.Fatalf("AccountInsights() error = %v", err)
	}
	if gotPath != "/act_777/insights" {
		t.Errorf("path = %q, want /act_777/insights", gotPath)
	}
}

func TestAccountInsights_EmptyDataIsZeroRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c := newClientWithBaseURL(srv.URL, testLogger())
	row, err := c.AccountInsights(context.Background(), "tok", "1", "2024-06-01", "2024-06-10")
	if err != nil {
		t.Fatalf("AccountInsights() error = %v", err)
	}
	if row.Spend != "" || len(row.Actions) != 0 {
		t.Errorf("row = %+v, want zero row", row)
	}
}
