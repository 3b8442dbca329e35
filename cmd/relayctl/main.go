package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/joho/godotenv"
	mailrelay "mailrelay.app/engine"
	"mailrelay.app/engine/common/logger"
	"mailrelay.app/engine/common/otel"
	"mailrelay.app/engine/core/config"
	"mailrelay.app/engine/internal/graph"
	"mailrelay.app/engine/internal/model"
)

func main() {
	_ = godotenv.Load()

	subject := flag.String("subject", "Can we meet Thursday?", "email subject")
	body := flag.String("body", "Hi, are you free Thursday afternoon to go over the proposal?", "email body")
	sender := flag.String("sender", "Jane Doe <jane@example.com>", "email From header")
	userEmail := flag.String("user", "me@example.com", "mailbox this run acts on behalf of")
	userName := flag.String("name", "", "name to sign the composed reply with")
	flag.Parse()

	cfg := config.Load()
	if cfg.LLMAPIKey == "" {
		fmt.Fprintln(os.Stderr, "LLM_API_KEY is required")
		os.Exit(1)
	}
	if cfg.ConsentJWTSecret == "" {
		cfg.ConsentJWTSecret = "relayctl-demo-secret"
	}

	telemetry, err := otel.Setup(context.Background(), cfg.OTel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up telemetry: %v\n", err)
		os.Exit(1)
	}
	if telemetry != nil {
		defer telemetry.Shutdown(context.Background())
	}
	logger.Setup(cfg)

	engine, err := mailrelay.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build engine: %v\n", err)
		os.Exit(1)
	}

	display, address := splitSenderHeader(*sender)
	token, err := demoConsentToken(cfg.ConsentJWTSecret, *userEmail, model.ScopeEmailRead)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to mint demo consent token: %v\n", err)
		os.Exit(1)
	}

	resp, err := engine.GenerateResponse(context.Background(), graph.Request{
		Email: model.EmailContext{
			Subject:       *subject,
			SenderDisplay: display,
			SenderAddress: address,
			Body:          *body,
		},
		UserID:       *userEmail,
		UserAddress:  *userEmail,
		UserName:     *userName,
		PrimaryToken: token,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate_response failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))
}

func splitSenderHeader(header string) (display, address string) {
	for i := len(header) - 1; i >= 0; i-- {
		if header[i] == '<' {
			display = header[:i]
			address = header[i+1:]
			if len(address) > 0 && address[len(address)-1] == '>' {
				address = address[:len(address)-1]
			}
			return trimSpace(display), trimSpace(address)
		}
	}
	return "", trimSpace(header)
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

// demoConsentToken signs a short-lived consent token for local demo runs.
// A real deployment mints this in the issuer service, never here.
func demoConsentToken(secret, userID string, scope model.ConsentScope) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"scope":   string(scope),
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
