package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

const (
	dialTimeout        = 5 * time.Second
	dialBackoff        = 250 * time.Millisecond
	dialBackoffMax     = 5 * time.Second
	namespaceWait      = 10 * time.Second
	namespaceRetainFor = 7 * 24 * time.Hour
)

// WorkflowName is the registered name of the job run workflow.
const WorkflowName = "job_run"

// WorkflowID is the deterministic workflow id for a ledger row, so a second
// start for the same job is rejected by the server.
func WorkflowID(jobID string) string { return "job-" + jobID }

// TaskQueue maps a logical queue ("analysis", "discovery") onto the Temporal
// task queue name.
func TaskQueue(cfg config.TemporalConfig, queue string) string {
	prefix := strings.TrimSpace(cfg.TaskQueuePrefix)
	if prefix == "" {
		return queue
	}
	return prefix + "-" + queue
}

// NewClient dials Temporal, retrying until DialMaxWait elapses. It returns
// nil, nil when no address is configured.
func NewClient(ctx context.Context, log *logger.Logger, cfg config.TemporalConfig) (temporalsdkclient.Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		if log != nil {
			log.Warn("temporal.address not set; Temporal disabled")
		}
		return nil, nil
	}

	opts := temporalsdkclient.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    log,
	}
	if hasTLS(cfg) {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}

	maxWait := cfg.DialMaxWait.Duration
	deadline := time.Now().Add(maxWait)
	for attempt := 1; ; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		c, err := temporalsdkclient.DialContext(dialCtx, opts)
		cancel()
		if err == nil {
			if log != nil && attempt > 1 {
				log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			}
			if cfg.AutoRegisterNamespace {
				if err := EnsureNamespace(ctx, log, cfg); err != nil {
					c.Close()
					return nil, err
				}
			}
			return c, nil
		}

		if maxWait <= 0 || time.Now().After(deadline) || ctx.Err() != nil {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
		}
		if log != nil {
			log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "attempt", attempt, "error", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(Backoff(dialBackoff, dialBackoffMax, attempt)):
		}
	}
}

// EnsureNamespace describes the namespace and registers it when missing.
// Temporal Cloud namespaces should be provisioned out of band.
func EnsureNamespace(ctx context.Context, log *logger.Logger, cfg config.TemporalConfig) error {
	namespace := strings.TrimSpace(cfg.Namespace)
	if namespace == "" || strings.TrimSpace(cfg.Address) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, namespaceWait)
	defer cancel()

	// The namespace client sends no namespace header, so it works before the
	// namespace exists.
	nsOpts := temporalsdkclient.Options{HostPort: cfg.Address, Logger: log}
	if hasTLS(cfg) {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return err
		}
		nsOpts.ConnectionOptions.TLS = tlsCfg
	}
	nsClient, err := temporalsdkclient.NewNamespaceClient(nsOpts)
	if err != nil {
		return fmt.Errorf("temporal namespace ensure: init namespace client: %w", err)
	}
	defer nsClient.Close()

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("temporal namespace ensure: timed out (namespace=%s): %w", namespace, ctx.Err())
		}
		_, err := nsClient.Describe(ctx, namespace)
		if err == nil {
			return nil
		}

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(err, &nfe) {
			regErr := nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
				Namespace:                        namespace,
				Description:                      "visiblee auto-registered namespace",
				WorkflowExecutionRetentionPeriod: durationpb.New(namespaceRetainFor),
			})
			if regErr == nil {
				if log != nil {
					log.Info("Registered Temporal namespace", "namespace", namespace)
				}
				return nil
			}
			var already *serviceerror.NamespaceAlreadyExists
			if errors.As(regErr, &already) {
				return nil
			}
			if !isRetryableRPC(regErr) {
				return fmt.Errorf("temporal namespace ensure: register namespace: %w", regErr)
			}
			err = regErr
		} else if !isRetryableRPC(err) {
			return fmt.Errorf("temporal namespace ensure: describe namespace: %w", err)
		}

		if log != nil {
			log.Warn("Temporal namespace ensure retrying", "namespace", namespace, "attempt", attempt, "error", err)
		}
		select {
		case <-ctx.Done():
		case <-time.After(Backoff(dialBackoff, dialBackoffMax, attempt)):
		}
	}
}

func hasTLS(cfg config.TemporalConfig) bool {
	return cfg.ClientCertPath != "" || cfg.ClientKeyPath != "" || cfg.ClientCAPath != ""
}

func loadTLSConfig(cfg config.TemporalConfig) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal tls: client_cert_path and client_key_path are both required for mTLS")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if cfg.ClientCAPath != "" {
		pem, err := os.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("temporal tls: read CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("temporal tls: invalid CA pem")
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

// Backoff doubles base per attempt, capped at max.
func Backoff(base time.Duration, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	if max > 0 && sleep > max {
		return max
	}
	return sleep
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
