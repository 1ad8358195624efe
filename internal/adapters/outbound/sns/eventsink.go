// Package sns implements the EventSink interface using AWS SNS.
//
// Every executed plan step is published as a JSON message to one topic so
// downstream consumers can follow deposits and withdrawals as they land.
//
// Message Attributes:
//   - kind: "deposit" or "withdraw"
//   - function: the contract function of the step, e.g. "approve"
//   - chainId: the chain id as a string
//   - success: "true" or "false"
//
// For FIFO topics (ARN ending in ".fifo") messages are grouped per vault and
// deduplicated per vault, step and transaction hash.
//
// For testing, use the memory.EventSink adapter instead.
package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/retry"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// Compile-time check that EventSink implements outbound.EventSink
var _ outbound.EventSink = (*EventSink)(nil)

// SNSPublisher defines the subset of SNS client methods used by EventSink.
// This interface allows for easy mocking in tests.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Config holds configuration for the SNS event sink.
type Config struct {
	// TopicARN is the topic plan steps are published to.
	TopicARN string

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int

	// InitialBackoff is the initial delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum delay between retries.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each retry.
	BackoffFactor float64

	// Logger is the structured logger for the sink.
	Logger *slog.Logger
}

// ConfigDefaults returns a config with default values.
func ConfigDefaults() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		Logger:         slog.Default(),
	}
}

// EventSink publishes plan step events to AWS SNS.
type EventSink struct {
	client    SNSPublisher
	config    Config
	fifo      bool
	policy    retry.Policy
	logger    *slog.Logger
	closeOnce sync.Once
	closed    bool
	mu        sync.RWMutex
}

// NewEventSink creates a new SNS event sink.
func NewEventSink(client SNSPublisher, config Config) (*EventSink, error) {
	if client == nil {
		return nil, errors.New("sns client is required")
	}
	if config.TopicARN == "" {
		return nil, errors.New("topic ARN is required")
	}

	defaults := ConfigDefaults()
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = defaults.BackoffFactor
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &EventSink{
		client: client,
		config: config,
		fifo:   strings.HasSuffix(config.TopicARN, ".fifo"),
		policy: retry.Policy{
			MaxAttempts:    config.MaxRetries + 1,
			InitialBackoff: config.InitialBackoff,
			MaxBackoff:     config.MaxBackoff,
			BackoffFactor:  config.BackoffFactor,
			Retryable:      isRetryableError,
		},
		logger: config.Logger.With("component", "sns-eventsink"),
	}, nil
}

// Publish publishes a plan step event to SNS.
func (s *EventSink) Publish(ctx context.Context, event entity.PlanStepEvent) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errors.New("event sink is closed")
	}
	s.mu.RUnlock()

	messageBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(s.config.TopicARN),
		Message:  aws.String(string(messageBytes)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Kind)),
			},
			"function": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Function),
			},
			"chainId": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(event.ChainID, 10)),
			},
			"success": {
				DataType:    aws.String("String"),
				StringValue: aws.String(strconv.FormatBool(event.Success)),
			},
		},
	}
	if s.fifo {
		input.MessageGroupId = aws.String(strings.ToLower(event.Vault))
		input.MessageDeduplicationId = aws.String(fmt.Sprintf("%s-%d-%s", strings.ToLower(event.Vault), event.StepIndex, event.TxHash))
	}

	onRetry := func(attempt int, err error, backoff time.Duration) {
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"maxRetries", s.config.MaxRetries,
			"backoff", backoff,
			"error", err,
			"function", event.Function,
			"txHash", event.TxHash,
		)
	}

	err = retry.DoVoid(ctx, s.policy, onRetry, func(ctx context.Context) error {
		_, err := s.client.Publish(ctx, input)
		return err
	})
	if err != nil {
		s.logger.Error("failed to publish plan step", "error", err, "function", event.Function, "txHash", event.TxHash)
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	return nil
}

// isRetryableError determines if an error should trigger a retry. Throttling
// and internal errors are transient, as are unknown (network) errors.
// Request errors such as a missing topic or bad parameters are not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var throttleErr *types.ThrottledException
	if errors.As(err, &throttleErr) {
		return true
	}
	var internalErr *types.InternalErrorException
	if errors.As(err, &internalErr) {
		return true
	}
	var kmsThrottleErr *types.KMSThrottlingException
	if errors.As(err, &kmsThrottleErr) {
		return true
	}

	var notFound *types.NotFoundException
	if errors.As(err, &notFound) {
		return false
	}
	var invalidParam *types.InvalidParameterException
	if errors.As(err, &invalidParam) {
		return false
	}
	var authErr *types.AuthorizationErrorException
	if errors.As(err, &authErr) {
		return false
	}

	// Errors without a modelled type still carry a code and a fault side.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestLimitExceeded":
			return true
		}
		return apiErr.ErrorFault() != smithy.FaultClient
	}

	return true
}

// Close marks the sink as closed and prevents further publishing.
func (s *EventSink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.logger.Info("SNS event sink closed")
	})
	return nil
}
