package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/support-escalation-bot/cmd/mainconfig"
	"github.com/wolfman30/support-escalation-bot/internal/api/router"
	"github.com/wolfman30/support-escalation-bot/internal/app/bootstrap"
	appconfig "github.com/wolfman30/support-escalation-bot/internal/config"
	"github.com/wolfman30/support-escalation-bot/internal/conversation"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if err := checkStore(cfg); err != nil {
		logger.Error("unusable store for lambda", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.New(context.Background(), cfg, logger,
		bootstrap.WithAWSConfigLoader(mainconfig.LoadAWSConfig),
	)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	h := router.New(&router.Config{
		Logger:          logger,
		Webhook:         conversation.NewHandler(app.Router, app.Store, cfg.TwitterConsumerSecret, logger),
		AdminAuthSecret: cfg.AdminJWTSecret,
		RequestTimeout:  cfg.RequestTimeout,
	})
	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, h, evt)
	})
}

// checkStore accepts postgres, or sqlite under /tmp (the only writable path
// on Lambda).
func checkStore(cfg *appconfig.Config) error {
	switch cfg.StoreDriver {
	case "postgres", "postgresql":
		return nil
	case "", "sqlite":
		dir := filepath.Clean(filepath.Dir(cfg.DatabasePath))
		if filepath.IsAbs(dir) && (dir == "/tmp" || strings.HasPrefix(dir, "/tmp/")) {
			return nil
		}
		return fmt.Errorf("sqlite path %q is not under /tmp; set STORE_DRIVER=postgres", cfg.DatabasePath)
	default:
		return fmt.Errorf("store driver %q is not supported on lambda; set STORE_DRIVER=postgres", cfg.StoreDriver)
	}
}

// handle replays an API Gateway v2 event through the HTTP router.
func handle(ctx context.Context, h http.Handler, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}
	if path == "" {
		path = "/"
	}
	if path == "/_health" {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK, Body: "ok"}, nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
	}

	target := path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid request"}, nil
	}
	for k, v := range evt.Headers {
		req.Header.Set(k, v)
	}
	if ip := strings.TrimSpace(evt.RequestContext.HTTP.SourceIP); ip != "" {
		req.RemoteAddr = ip + ":0"
	}

	rw := newResponseBuffer()
	h.ServeHTTP(rw, req)

	out := events.APIGatewayV2HTTPResponse{
		StatusCode: rw.status,
		Body:       rw.body.String(),
		Headers:    map[string]string{},
	}
	for k, values := range rw.header {
		if len(values) > 0 {
			out.Headers[strings.ToLower(k)] = strings.Join(values, ",")
		}
	}
	return out, nil
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(evt.Body)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

// responseBuffer captures a handler's response for the Lambda reply.
type responseBuffer struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{header: http.Header{}, status: http.StatusOK}
}

func (r *responseBuffer) Header() http.Header { return r.header }

func (r *responseBuffer) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
}

func (r *responseBuffer) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(p)
}
