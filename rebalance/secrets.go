package rebalance

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/golang/glog"

	consul "github.com/hashicorp/consul/api"
)

// Secrets holds the values a slabmrcd daemon reads from a mounted secrets
// file rather than a flag, so they never end up in process listings or
// flag-dump logs.
type Secrets struct {
	ConsulToken string
}

type rawSecrets struct {
	ConsulToken string `json:"consul_token"`
}

var (
	secretsLock sync.Mutex
	secrets     = &Secrets{}

	// TokenRotated fires once per token change so a running daemon can swap
	// its consul client instead of running with a stale token until restart.
	// Buffered and non-blocking: a process that never reads it must not
	// stall the reload goroutine.
	TokenRotated = make(chan struct{}, 1)
)

// ReadSecretsEvery loads secrets from path immediately, then again every
// tick for the life of the process.
func ReadSecretsEvery(path string, tick time.Duration) error {
	err := readSecretsOnce(path)
	ticker := time.NewTicker(tick)
	go func() {
		for range ticker.C {
			if err := readSecretsOnce(path); err != nil {
				log.Errorf("<rebalance> reload secrets from %s failed: %v\n", path, err)
			}
		}
	}()
	return err
}

func readSecretsOnce(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}
	var r rawSecrets
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("unmarshal secrets: %w", err)
	}

	secretsLock.Lock()
	rotated := secrets.ConsulToken != "" && secrets.ConsulToken != r.ConsulToken
	secrets = &Secrets{ConsulToken: r.ConsulToken}
	secretsLock.Unlock()

	if rotated {
		log.Infof("<rebalance> consul token rotated\n")
		select {
		case TokenRotated <- struct{}{}:
		default:
		}
	}
	return nil
}

// CurrentSecrets returns the most recently loaded Secrets.
func CurrentSecrets() *Secrets {
	secretsLock.Lock()
	defer secretsLock.Unlock()
	return secrets
}

// NewConsulClient builds a consul client authenticated with the most
// recently loaded secrets.
func NewConsulClient() (*consul.Client, error) {
	config := consul.DefaultConfig()
	config.Token = CurrentSecrets().ConsulToken
	client, err := consul.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return client, nil
}
