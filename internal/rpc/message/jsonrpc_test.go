package message

import (
	"encoding/json"
	"testing"
)

func TestID_Kinds(t *testing.T) {
	s := StringID("req-1")
	if !s.IsString() || s.IsNumber() || s.String() != "req-1" {
		t.Errorf("unexpected string ID: %v", s)
	}
	if _, ok := s.Int64(); ok {
		t.Error("string ID must not convert to int64")
	}

	n := NumberID(42)
	if !n.IsNumber() || n.String() != "42" {
		t.Errorf("unexpected number ID: %v", n)
	}
	if v, ok := n.Int64(); !ok || v != 42 {
		t.Errorf("Int64() = %d, %v", v, ok)
	}

	var nilID *ID
	if nilID.String() != "<nil>" {
		t.Errorf("nil ID String() = %q", nilID.String())
	}
	if _, ok := nilID.Int64(); ok {
		t.Error("nil ID must not convert to int64")
	}
}

func TestID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		data    string
		want    string
		wantErr bool
	}{
		{`"abc"`, "abc", false},
		{`7`, "7", false},
		{`7.0`, "7", false},
		{`null`, "", false},
		{`{}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			var id ID
			err := json.Unmarshal([]byte(tt.data), &id)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != "" && id.String() != tt.want {
				t.Errorf("String() = %q, want %q", id.String(), tt.want)
			}
		})
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(NumberID(1), "groups.rename", map[string]string{"group_id": "g1"})
	if err != nil {
		t.Fatalf("NewRequest error: %v", err)
	}
	if req.JSONRPC != Version || req.IsNotification() {
		t.Errorf("unexpected request: %+v", req)
	}
	if string(req.Params) != `{"group_id":"g1"}` {
		t.Errorf("Params = %s", req.Params)
	}

	if _, err := NewRequest(nil, "x", make(chan int)); err == nil {
		t.Error("expected error for unmarshalable params")
	}
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"valid", `{"jsonrpc":"2.0","id":1,"method":"sessions.list"}`, false},
		{"notification", `{"jsonrpc":"2.0","method":"event"}`, false},
		{"invalid json", `not json`, true},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"x"}`, true},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseEnvelope(t *testing.T) {
	resp, err := ParseEnvelope([]byte(`{"jsonrpc":"2.0","id":3,"result":{"code":"ABCD"}}`))
	if err != nil {
		t.Fatalf("ParseEnvelope error: %v", err)
	}
	if !resp.IsResponse() || resp.IsNotification() {
		t.Error("expected a response")
	}
	if id, _ := resp.Response().ID.Int64(); id != 3 {
		t.Errorf("ID = %d, want 3", id)
	}

	notif, err := ParseEnvelope([]byte(`{"jsonrpc":"2.0","method":"qr","params":{"code":"2@x"}}`))
	if err != nil {
		t.Fatalf("ParseEnvelope error: %v", err)
	}
	if !notif.IsNotification() || notif.IsResponse() {
		t.Error("expected a notification")
	}

	failed, err := ParseEnvelope([]byte(`{"jsonrpc":"2.0","id":4,"error":{"code":-32029,"message":"rate-overlimit"}}`))
	if err != nil {
		t.Fatalf("ParseEnvelope error: %v", err)
	}
	if !failed.Response().IsError() || failed.Error.Code != RateLimited {
		t.Errorf("unexpected error response: %+v", failed.Error)
	}

	for _, bad := range []string{`{"jsonrpc":"2.0"}`, `{"jsonrpc":"1.0","id":1}`, `[]`} {
		if _, err := ParseEnvelope([]byte(bad)); err == nil {
			t.Errorf("expected error for %s", bad)
		}
	}
}

func TestResponse_RoundTrip(t *testing.T) {
	original, err := NewSuccessResponse(NumberID(42), map[string]string{"result": "ok"})
	if err != nil {
		t.Fatalf("NewSuccessResponse error: %v", err)
	}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	parsed, err := ParseResponse(data)
	if err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
	if parsed.ID.String() != "42" || parsed.IsError() {
		t.Errorf("unexpected response: %+v", parsed)
	}

	failure := NewErrorResponse(StringID("x"), ErrMethodNotFound("nope"))
	if !failure.IsError() || failure.Error.Code != MethodNotFound {
		t.Errorf("unexpected error response: %+v", failure)
	}
}

func TestError_StatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"data status wins", NewErrorWithData(Unavailable, "x", ErrorData{Status: 401}), 401},
		{"unauthorized", NewError(Unauthorized, "x"), 401},
		{"not found", NewError(NotFound, "x"), 404},
		{"timeout", NewError(Timeout, "x"), 408},
		{"rate limited", NewError(RateLimited, "x"), 429},
		{"unavailable", NewError(Unavailable, "x"), 503},
		{"internal", NewError(InternalError, "x"), 0},
		{"bad data ignored", &Error{Code: NotFound, Data: json.RawMessage(`"oops"`)}, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.StatusCode(); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorCodeName(t *testing.T) {
	if ErrorCodeName(RateLimited) != "RateLimited" {
		t.Errorf("unexpected name %q", ErrorCodeName(RateLimited))
	}
	if ErrorCodeName(-1) != "UnknownError(-1)" {
		t.Errorf("unexpected name %q", ErrorCodeName(-1))
	}
}
