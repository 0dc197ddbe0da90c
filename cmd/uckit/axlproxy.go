package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voiceops/uckit/axlproxy"
)

var axlProxyCmd = &cobra.Command{
	Use:   "axl-proxy",
	Short: "REST front for the CUCM AXL API",
}

var axlServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the provisioning API",
	Long: `Serve the provisioning API.

POST /api/v1/macd/listphone?name=...&devicePoolName=... lists phones matching
every given criterion; POST /api/v1/macd/getphone?name=... returns one phone.
The AXL credentials come from axl.password (env or file) and the proxy will
not start without them. When server.jwt_secret is set, API calls need an
"Authorization: Bearer" token from "uckit axl-proxy token".`,
	RunE: runAXLServe,
}

var axlTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the provisioning API",
	RunE:  runAXLToken,
}

func init() {
	axlServeCmd.Flags().String("listen", "", "listen address (default from config, 127.0.0.1:5000)")
	axlTokenCmd.Flags().String("subject", "", "who the token is for")
	_ = axlTokenCmd.MarkFlagRequired("subject")

	axlProxyCmd.AddCommand(axlServeCmd)
	axlProxyCmd.AddCommand(axlTokenCmd)
}

func tokenIssuer() (*axlproxy.JWTIssuer, error) {
	if !cfg.Server.JWTSecret.IsSet() {
		return nil, nil
	}
	secret, err := cfg.Server.JWTSecret.Resolve()
	if err != nil {
		return nil, err
	}
	if secret == "" {
		return nil, errors.New("server.jwt_secret is empty")
	}
	return axlproxy.NewJWTIssuer([]byte(secret), cfg.Server.TokenTTL), nil
}

func runAXLServe(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.Server.Listen = v
	}
	if err := cfg.ValidateAXL(); err != nil {
		return fmt.Errorf("refusing to start: %w", err)
	}
	password, err := cfg.AXL.Password.Resolve()
	if err != nil {
		return err
	}
	client, err := axlproxy.NewClient(axlproxy.Upstream{
		URL:                cfg.AXL.URL,
		Version:            cfg.AXL.Version,
		Username:           cfg.AXL.Username,
		Password:           password,
		CAFile:             cfg.AXL.CAFile,
		InsecureSkipVerify: cfg.AXL.InsecureSkipVerify,
		Timeout:            cfg.AXL.Timeout,
	})
	if err != nil {
		return fmt.Errorf("refusing to start: %w", err)
	}
	tokens, err := tokenIssuer()
	if err != nil {
		return err
	}
	if tokens == nil {
		log.Warn("server.jwt_secret is not set, the API is open to anyone who can reach it")
	}
	if cfg.AXL.InsecureSkipVerify {
		log.Warn("AXL certificate verification is disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           axlproxy.New(client, cfg.AXL.Version, tokens).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Infof("Provisioning API listening on %s, forwarding to %s", srv.Addr, cfg.AXL.URL)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-cmd.Context().Done():
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("Shutting down")
	return srv.Shutdown(ctx)
}

func runAXLToken(cmd *cobra.Command, args []string) error {
	tokens, err := tokenIssuer()
	if err != nil {
		return err
	}
	if tokens == nil {
		return errors.New("server.jwt_secret is not set")
	}
	subject, _ := cmd.Flags().GetString("subject")
	token, ttl, err := tokens.Issue(subject)
	if err != nil {
		return err
	}
	fmt.Println(token)
	log.Infof("Issued a token for %s valid for %ds", subject, ttl)
	return nil
}
