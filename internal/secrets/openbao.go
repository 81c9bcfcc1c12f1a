// Package secrets exports OpenBao KV secrets (cookie keys, SMTP and database
// passwords) into the environment before configuration is loaded.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

var ErrOpenBaoSecretNotFound = errors.New("openbao secret path not found")

type OpenBaoConfig struct {
	Addr       string
	Token      string
	Mount      string
	SecretPath string
	Namespace  string
	// Override replaces variables already present in the environment.
	Override bool
}

func (c OpenBaoConfig) Enabled() bool {
	return c.Addr != "" && c.Token != "" && c.SecretPath != ""
}

// OpenBaoConfigFromEnv reads OPENBAO_* variables.
func OpenBaoConfigFromEnv() OpenBaoConfig {
	mount := strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_MOUNT")), "/")
	if mount == "" {
		mount = "secret"
	}
	return OpenBaoConfig{
		Addr:       strings.TrimRight(strings.TrimSpace(os.Getenv("OPENBAO_ADDR")), "/"),
		Token:      os.Getenv("OPENBAO_TOKEN"),
		Mount:      mount,
		SecretPath: strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_SECRET_PATH")), "/"),
		Namespace:  strings.TrimSpace(os.Getenv("OPENBAO_NAMESPACE")),
		Override:   os.Getenv("OPENBAO_OVERRIDE") == "true",
	}
}

// Bootstrap loads the KV secret and exports each key as an environment
// variable. It is a no-op when OpenBao is not configured.
func Bootstrap(ctx context.Context, cfg OpenBaoConfig) (int, error) {
	if !cfg.Enabled() {
		return 0, nil
	}
	values, err := readSecrets(ctx, cfg)
	if err != nil {
		return 0, err
	}
	exported := 0
	for k, v := range values {
		if _, set := os.LookupEnv(k); set && !cfg.Override {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return exported, fmt.Errorf("export %s: %w", k, err)
		}
		exported++
	}
	log.Printf("[Secrets] Exported %d of %d keys from %s/%s", exported, len(values), cfg.Mount, cfg.SecretPath)
	return exported, nil
}

func readSecrets(ctx context.Context, cfg OpenBaoConfig) (map[string]string, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/v1/%s/data/%s", cfg.Addr, cfg.Mount, cfg.SecretPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create OpenBao request: %w", err)
	}
	req.Header.Set("X-Vault-Token", cfg.Token)
	if cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", cfg.Namespace)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call OpenBao: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrOpenBaoSecretNotFound
	default:
		return nil, fmt.Errorf("openbao request failed: status=%d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Data map[string]json.RawMessage `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode OpenBao response: %w", err)
	}

	out := make(map[string]string, len(payload.Data.Data))
	for k, raw := range payload.Data.Data {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out[k] = s
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			out[k] = n.String()
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			out[k] = fmt.Sprint(b)
		}
		// nested values are skipped
	}
	return out, nil
}
