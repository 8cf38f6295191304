// Пакет apiclient — HTTP-клиент к REST API библиотеки.
//
// Gateway хранит общее для всех сессий: базовый URL, *http.Client и группу
// singleflight для обновления токенов. Client привязан к одному TokenStore
// (одной сессии) и выполняет запросы:
//   - Authorization: Bearer подставляется, если есть access token;
//   - на 401 выполняется ровно одно обновление токена и один повтор запроса;
//   - параллельные 401 одной сессии разделяют один запрос обновления;
//   - неудачное обновление или повторный 401 очищают токены (ErrSessionExpired);
//   - прочие ошибки возвращаются как *APIError без изменений.
package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// refreshPath — endpoint обновления access token.
const refreshPath = "/users/refresh-token/"

// Gateway — общий транспорт к REST API.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// refreshGroup объединяет одновременные обновления по значению refresh token
	refreshGroup singleflight.Group
}

// NewGateway создаёт транспорт к REST API.
// baseURL — базовый URL API (например, http://localhost:8000/api).
// httpClient — HTTP-клиент (nil — клиент с таймаутом 30s).
func NewGateway(baseURL string, httpClient *http.Client, logger *slog.Logger) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "api_client")),
	}
}

// BaseURL возвращает базовый URL API.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Client возвращает клиент, привязанный к хранилищу токенов одной сессии.
func (g *Gateway) Client(tokens TokenStore) *Client {
	return &Client{gw: g, tokens: tokens}
}

// NewHTTPClient создаёт HTTP-клиент с таймаутом и, при наличии,
// дополнительным CA-сертификатом в пуле доверия.
func NewHTTPClient(caCertPath string, timeout time.Duration) (*http.Client, error) {
	httpClient := &http.Client{Timeout: timeout}
	if caCertPath == "" {
		return httpClient, nil
	}

	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}
	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("в %s нет PEM-сертификатов", caCertPath)
	}

	httpClient.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: caCertPool, MinVersion: tls.VersionTLS12},
	}
	return httpClient, nil
}

// Client — клиент REST API одной сессии.
type Client struct {
	gw     *Gateway
	tokens TokenStore
}

// Tokens возвращает хранилище токенов клиента.
func (c *Client) Tokens() TokenStore {
	return c.tokens
}

// request — подготовленный запрос. Тело хранится байтами, чтобы повтор
// после обновления токена отправлял то же самое.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	// public — запрос без авторизации (вход, регистрация, сброс пароля):
	// 401 на него — обычная ошибка, а не повод обновлять токен
	public bool
}

// response — прочитанный ответ.
type response struct {
	status int
	header http.Header
	body   []byte
}

func newRequest(method, path string, query url.Values) request {
	return request{method: method, path: path, query: query}
}

// withJSON сериализует payload в тело запроса.
func (r request) withJSON(payload any) (request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return r, fmt.Errorf("сериализация тела запроса: %w", err)
	}
	r.body = data
	r.contentType = "application/json"
	return r, nil
}

// Do выполняет запрос и декодирует JSON-ответ в out (nil — ответ игнорируется).
// Возвращает заголовки успешного ответа.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) (http.Header, error) {
	req := newRequest(method, path, query)
	if body != nil {
		var err error
		if req, err = req.withJSON(body); err != nil {
			return nil, err
		}
	}
	return c.do(ctx, req, out)
}

// do — основной цикл запроса с однократным обновлением токена.
func (c *Client) do(ctx context.Context, req request, out any) (http.Header, error) {
	var token string
	if !req.public {
		token = c.tokens.AccessToken()
	}

	resp, err := c.gw.send(ctx, req, token)
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusUnauthorized && !req.public {
		fresh, err := c.refreshAfter(ctx, token)
		if err != nil {
			return nil, err
		}

		resp, err = c.gw.send(ctx, req, fresh)
		if err != nil {
			return nil, err
		}
		if resp.status == http.StatusUnauthorized {
			c.tokens.Clear()
			c.gw.logger.Warn("Повторный запрос отклонён после обновления токена",
				slog.String("method", req.method),
				slog.String("path", req.path),
			)
			return nil, fmt.Errorf("%w: %w", ErrSessionExpired, newAPIError(resp.status, resp.body))
		}
	}

	if resp.status < 200 || resp.status >= 300 {
		return nil, newAPIError(resp.status, resp.body)
	}

	if out != nil && len(bytes.TrimSpace(resp.body)) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return nil, fmt.Errorf("декодирование ответа %s %s: %w", req.method, req.path, err)
		}
	}
	return resp.header, nil
}

// refreshAfter возвращает access token для повтора запроса, отправленного
// с токеном stale. Если токен уже заменён другим запросом — обновление
// не выполняется.
func (c *Client) refreshAfter(ctx context.Context, stale string) (string, error) {
	if current := c.tokens.AccessToken(); current != "" && current != stale {
		tokenRefreshTotal.WithLabelValues("skipped").Inc()
		return current, nil
	}

	refresh := c.tokens.RefreshToken()
	if refresh == "" {
		c.tokens.Clear()
		tokenRefreshTotal.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("%w: refresh token отсутствует", ErrSessionExpired)
	}

	// Отмена запроса, который первым начал обновление, не должна
	// проваливать обновление для остальных ожидающих.
	refreshCtx := context.WithoutCancel(ctx)
	v, err, shared := c.gw.refreshGroup.Do(refresh, func() (any, error) {
		return c.gw.requestRefresh(refreshCtx, refresh)
	})
	if err != nil {
		c.tokens.Clear()
		tokenRefreshTotal.WithLabelValues("failure").Inc()
		c.gw.logger.Info("Не удалось обновить access token, сессия завершена",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	pair := v.(tokenPair)
	if pair.refresh != "" && pair.refresh != refresh {
		c.tokens.SetTokens(pair.access, pair.refresh)
	} else {
		c.tokens.SetAccessToken(pair.access)
	}

	if shared {
		tokenRefreshTotal.WithLabelValues("shared").Inc()
	} else {
		tokenRefreshTotal.WithLabelValues("success").Inc()
	}
	return pair.access, nil
}

// tokenPair — результат входа или обновления.
type tokenPair struct {
	access  string
	refresh string
}

// tokenBody — варианты имён полей токенов в ответах API.
type tokenBody struct {
	Access       string `json:"access"`
	AccessToken  string `json:"access_token"`
	Refresh      string `json:"refresh"`
	RefreshToken string `json:"refresh_token"`
}

// extractTokens достаёт токены из тела ответа, а при отсутствии — из Set-Cookie.
func extractTokens(header http.Header, body []byte) tokenPair {
	var tb tokenBody
	_ = json.Unmarshal(body, &tb)

	pair := tokenPair{
		access:  firstNonEmpty(tb.Access, tb.AccessToken),
		refresh: firstNonEmpty(tb.Refresh, tb.RefreshToken),
	}

	cookies := (&http.Response{Header: header}).Cookies()
	for _, ck := range cookies {
		switch ck.Name {
		case "access_token":
			if pair.access == "" {
				pair.access = ck.Value
			}
		case "refresh_token":
			if pair.refresh == "" {
				pair.refresh = ck.Value
			}
		}
	}
	return pair
}

// requestRefresh вызывает endpoint обновления. Refresh token передаётся
// и в теле, и в cookie: сервер принимает любой из вариантов.
func (g *Gateway) requestRefresh(ctx context.Context, refresh string) (tokenPair, error) {
	req, err := newRequest(http.MethodPost, refreshPath, nil).withJSON(map[string]string{
		"refresh":       refresh,
		"refresh_token": refresh,
	})
	if err != nil {
		return tokenPair{}, err
	}
	req.public = true

	resp, err := g.sendWithCookie(ctx, req, "", &http.Cookie{Name: "refresh_token", Value: refresh})
	if err != nil {
		return tokenPair{}, err
	}
	if resp.status < 200 || resp.status >= 300 {
		return tokenPair{}, newAPIError(resp.status, resp.body)
	}

	pair := extractTokens(resp.header, resp.body)
	if pair.access == "" {
		return tokenPair{}, ErrNoToken
	}
	g.logger.Debug("Access token обновлён")
	return pair, nil
}

// send выполняет один HTTP-запрос и читает ответ целиком.
func (g *Gateway) send(ctx context.Context, req request, token string) (*response, error) {
	return g.sendWithCookie(ctx, req, token, nil)
}

func (g *Gateway) sendWithCookie(ctx context.Context, req request, token string, cookie *http.Cookie) (*response, error) {
	reqURL := g.baseURL + req.path
	if len(req.query) > 0 {
		reqURL += "?" + req.query.Encode()
	}

	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if cookie != nil {
		httpReq.AddCookie(cookie)
	}

	start := time.Now()
	httpResp, err := g.httpClient.Do(httpReq)
	upstreamRequestDuration.WithLabelValues(req.method).Observe(time.Since(start).Seconds())
	if err != nil {
		upstreamRequestsTotal.WithLabelValues(req.method, "error").Inc()
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("запрос %s %s: %w", req.method, req.path, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение ответа %s %s: %w", req.method, req.path, err)
	}

	upstreamRequestsTotal.WithLabelValues(req.method, strconv.Itoa(httpResp.StatusCode)).Inc()
	if httpResp.StatusCode >= 500 {
		g.logger.Warn("REST API вернул ошибку сервера",
			slog.String("method", req.method),
			slog.String("path", req.path),
			slog.Int("status", httpResp.StatusCode),
			slog.String("request_id", requestID),
		)
	}

	return &response{status: httpResp.StatusCode, header: httpResp.Header, body: body}, nil
}

// CheckReady проверяет доступность API через публичный список книг.
// Реализует handlers.ReadinessChecker.
func (g *Gateway) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := g.send(ctx, newRequest(http.MethodGet, "/books/", url.Values{"page_size": {"1"}}), "")
	if err != nil {
		return "fail", fmt.Sprintf("REST API недоступен: %v", err)
	}
	if resp.status >= 500 {
		return "fail", fmt.Sprintf("REST API вернул статус %d", resp.status)
	}
	return "ok", "REST API доступен"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
