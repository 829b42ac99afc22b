package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bilancio/internal/core"
)

func decode(t *testing.T, body string, dst any) error {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return decodeJSON(httptest.NewRecorder(), req, dst)
}

func requestStatus(err error) int {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.status
	}
	return 0
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"valid", `{"monthId":"m1","category":"Rent","amount":25000,"tag":"need"}`, 0, ""},
		{"string amount", `{"monthId":"m1","category":"Rent","amount":"12.50"}`, 0, ""},
		{"empty body", ``, http.StatusBadRequest, "request body is empty"},
		{"malformed", `{"monthId":`, http.StatusBadRequest, "malformed JSON body"},
		{"non numeric amount", `{"monthId":"m1","category":"Rent","amount":"lots"}`, http.StatusBadRequest, "malformed JSON body"},
		{"exponent amount", `{"monthId":"m1","category":"Rent","amount":1e200000000}`, http.StatusBadRequest, "malformed JSON body"},
		{"exponent string amount", `{"monthId":"m1","category":"Rent","amount":"9E999999"}`, http.StatusBadRequest, "malformed JSON body"},
		{"oversized amount", `{"monthId":"m1","category":"Rent","amount":10000000000000000}`, http.StatusBadRequest, "malformed JSON body"},
		{"missing amount", `{"monthId":"m1","category":"Rent"}`, http.StatusBadRequest, "amount is required"},
		{"blank category", `{"monthId":"m1","category":"   ","amount":1}`, http.StatusBadRequest, "category must not be blank"},
		{"bad tag", `{"monthId":"m1","category":"Rent","amount":1,"tag":"luxury"}`, http.StatusBadRequest, "tag must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req addEntryRequest
			err := decode(t, tt.body, &req)
			if tt.wantStatus == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if got := requestStatus(err); got != tt.wantStatus {
				t.Fatalf("status = %d, want %d (err %v)", got, tt.wantStatus, err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	body := `{"monthId":"m1","category":"Rent","amount":1,"note":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	var req addEntryRequest
	if got := requestStatus(decode(t, body, &req)); got != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", got)
	}
}

func TestDecodeJSON_CreateMonthRange(t *testing.T) {
	tests := []struct {
		body string
		ok   bool
	}{
		{`{"userId":"u1","year":2025,"month":0}`, true},
		{`{"userId":"u1","year":2025,"month":11}`, true},
		{`{"userId":"u1","year":2025,"month":12}`, false},
		{`{"userId":"u1","year":2025,"month":-1}`, false},
		{`{"userId":"u1","year":2025}`, false},
		{`{"userId":"","year":2025,"month":1}`, false},
	}
	for _, tt := range tests {
		var req createMonthRequest
		err := decode(t, tt.body, &req)
		if (err == nil) != tt.ok {
			t.Errorf("%s: err = %v", tt.body, err)
		}
	}
}

func TestDecodeJSON_TemplateAmounts(t *testing.T) {
	for _, body := range []string{
		`{"userId":"u1","category":"Rent","amount":1e200000000}`,
		`{"userId":"u1","category":"Rent","amount":"1e5"}`,
	} {
		var create createTemplateRequest
		if got := requestStatus(decode(t, body, &create)); got != http.StatusBadRequest {
			t.Errorf("create %s: status = %d", body, got)
		}
		var update updateTemplateRequest
		if got := requestStatus(decode(t, body, &update)); got != http.StatusBadRequest {
			t.Errorf("update %s: status = %d", body, got)
		}
	}
}

func TestPathSide(t *testing.T) {
	for _, side := range []string{"income", "expense"} {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.SetPathValue("side", side)
		got, err := pathSide(r)
		if err != nil || string(got) != side {
			t.Errorf("pathSide(%s) = %q, %v", side, got, err)
		}
	}
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.SetPathValue("side", "savings")
	if _, err := pathSide(r); requestStatus(err) != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown side, got %v", err)
	}
}

func TestNonNegative(t *testing.T) {
	neg := core.MoneyFromInt(-1)
	if err := nonNegative(&neg); err == nil {
		t.Error("negative amount accepted")
	}
	zero := core.MoneyFromInt(0)
	if err := nonNegative(&zero); err != nil {
		t.Errorf("zero rejected: %v", err)
	}
	if err := nonNegative(nil); err != nil {
		t.Errorf("nil rejected: %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  Rent  ":        "Rent",
		"Groc\x00eries":   "Groceries",
		"line\nbreak":     "line\nbreak",
		"\x07bell\x1b[0m": "bell[0m",
		"":                "",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}
