package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"precatorios/internal/auth"
	"precatorios/internal/core"
	applog "precatorios/internal/log"
	"precatorios/internal/middleware/trace"
	"precatorios/internal/refresh"
)

// NotificationType mirrors the toast levels of the front end.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// Notification is the body of every error response. Error is a stable
// code for clients; Message is shown to the user.
type Notification struct {
	Error        string `json:"error"`
	Notification Notice `json:"notification"`
	RequestID    string `json:"request_id,omitempty"`
}

type Notice struct {
	Type    NotificationType `json:"type"`
	Message string           `json:"message"`
}

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes
// only the status.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "component", applog.ComponentHTTP, "error", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"encode_failed","notification":{"type":"error","message":"Erro interno"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}

func writeNotification(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, Notification{
		Error:        code,
		Notification: Notice{Type: NotificationError, Message: message},
		RequestID:    trace.GetRequestID(r.Context()),
	})
}

// errBadRequest marks malformed input.
var errBadRequest = errors.New("bad request")

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }
func (e badRequest) Unwrap() error { return errBadRequest }

func invalidParam(msg string) error { return badRequest{msg: msg} }

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "E-mail ou senha inválidos"},
	{auth.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Sessão inválida ou expirada. Entre novamente."},
	{auth.ErrForbidden, http.StatusForbidden, "forbidden", "Acesso restrito a administradores"},
	{auth.ErrSetupDone, http.StatusConflict, "setup_done", "O primeiro usuário já foi criado"},
	{auth.ErrUserExists, http.StatusConflict, "user_exists", "E-mail já cadastrado"},
	{auth.ErrUserNotFound, http.StatusNotFound, "user_not_found", "Usuário não encontrado"},
	{auth.ErrSelfDelete, http.StatusBadRequest, "self_delete", "Você não pode excluir o próprio usuário"},
	{auth.ErrWeakPassword, http.StatusUnprocessableEntity, "weak_password", "A senha deve ter pelo menos 8 caracteres"},
	{auth.ErrEmptyName, http.StatusUnprocessableEntity, "empty_name", "Informe o nome completo"},
	{core.ErrInvalidEmail, http.StatusUnprocessableEntity, "invalid_email", "E-mail inválido"},
	{core.ErrInvalidRole, http.StatusUnprocessableEntity, "invalid_role", "Perfil de acesso inválido"},
	{refresh.ErrNoDataset, http.StatusServiceUnavailable, "no_dataset", "Dados ainda não carregados. Tente atualizar."},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", "A operação demorou demais. Tente novamente."},
}

// writeError maps err to a status and notification. Unknown errors are
// logged and reported as 500 without leaking details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var br badRequest
	if errors.As(err, &br) {
		writeNotification(w, r, http.StatusBadRequest, "bad_request", br.msg)
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeNotification(w, r, m.status, m.code, m.message)
			return
		}
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(), "Request failed", err, applog.OpRead,
		applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()))
	writeNotification(w, r, http.StatusInternalServerError, "internal", "Erro interno. Tente novamente.")
}
