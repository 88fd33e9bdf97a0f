package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuthMiddleware(t *testing.T) {
	operator := Auth{Keys: []string{"secret"}}
	mixed := Auth{Keys: []string{"op"}, ReadOnlyKeys: []string{"view"}}

	tests := []struct {
		name     string
		auth     Auth
		method   string
		path     string
		header   string
		want     int
		wantCode ErrorCode
	}{
		{name: "no keys passes through", path: "/runs", want: http.StatusOK},
		{name: "blank keys pass through", auth: Auth{Keys: []string{""}, ReadOnlyKeys: []string{""}}, path: "/runs", want: http.StatusOK},
		{name: "missing header", auth: operator, path: "/runs", want: http.StatusUnauthorized, wantCode: CodeUnauthorized},
		{name: "basic scheme", auth: operator, path: "/runs", header: "Basic dXNlcjpwYXNz", want: http.StatusUnauthorized, wantCode: CodeUnauthorized},
		{name: "wrong token", auth: operator, path: "/runs", header: "Bearer wrong-key", want: http.StatusUnauthorized, wantCode: CodeUnauthorized},
		{name: "operator reads", auth: operator, path: "/runs", header: "Bearer secret", want: http.StatusOK},
		{name: "operator deletes", auth: mixed, method: http.MethodDelete, path: "/runs/x", header: "Bearer op", want: http.StatusOK},
		{name: "viewer reads", auth: mixed, path: "/runs/x/features", header: "Bearer view", want: http.StatusOK},
		{name: "viewer cannot delete", auth: mixed, method: http.MethodDelete, path: "/runs/x", header: "Bearer view", want: http.StatusForbidden, wantCode: CodeForbidden},
		{name: "viewer only config", auth: Auth{ReadOnlyKeys: []string{"view"}}, path: "/runs", want: http.StatusUnauthorized, wantCode: CodeUnauthorized},
		{name: "health is exempt", auth: operator, path: "/health", want: http.StatusOK},
		{name: "metrics is exempt", auth: operator, path: "/metrics", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req := httptest.NewRequest(method, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			BearerAuthMiddleware(tt.auth)(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d", rr.Code, tt.want)
			}
			if tt.wantCode == "" {
				return
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != tt.wantCode {
				t.Errorf("error code: got %s, want %s", errResp.Code, tt.wantCode)
			}
		})
	}
}

func TestLookup_OperatorWinsOverViewer(t *testing.T) {
	h := BearerAuthMiddleware(Auth{Keys: []string{"same"}, ReadOnlyKeys: []string{"same"}})(okHandler())
	req := httptest.NewRequest(http.MethodDelete, "/runs/x", http.NoBody)
	req.Header.Set("Authorization", "Bearer same")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("key listed in both sets should have full access, got %d", rr.Code)
	}
}
