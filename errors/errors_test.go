package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if got := test.class.String(); got != test.expected {
				t.Errorf("expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"no connection", ErrNoConnection, true},
		{"backend failed", ErrBackendFailed, true},
		{"rate limited", ErrRateLimited, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"joined backend failure", Join(ErrBackendFailed, fmt.Errorf("status 502")), true},
		{"invalid config", ErrInvalidConfig, false},
		{"key not found", ErrKeyNotFound, false},
		{"timeout in message", fmt.Errorf("i/o timeout"), true},
		{"refused in message", fmt.Errorf("dial tcp: connection refused"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("timeout")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsTransient(test.err); got != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, got, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"config not found", ErrConfigNotFound, true},
		{"config unreadable", ErrConfigUnreadable, true},
		{"unsupported backend", ErrUnsupportedBackend, true},
		{"max retries", ErrMaxRetriesExceeded, true},
		{"invalid config", ErrInvalidConfig, false},
		{"connection lost", ErrConnectionLost, false},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: ErrConfigNotFound}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsFatal(test.err); got != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, got, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"invalid data", ErrInvalidData, true},
		{"key not found", ErrKeyNotFound, true},
		{"wrapped key not found", fmt.Errorf("lookup: %w", ErrKeyNotFound), true},
		{"backend failed", ErrBackendFailed, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: ErrInvalidData}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsInvalid(test.err); got != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, got, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil", nil, ErrorTransient},
		{"backend failure", ErrBackendFailed, ErrorTransient},
		{"missing file", ErrConfigNotFound, ErrorFatal},
		{"bad document", ErrInvalidConfig, ErrorInvalid},
		{"unknown", errors.New("something odd"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "C", "M", "a") != nil {
		t.Fatal("wrapping nil must return nil")
	}

	err := Wrap(ErrKeyNotFound, "Translator", "FromStandard", "lookup field")
	want := "Translator.FromStandard: lookup field failed: key not found"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if !errors.Is(err, ErrKeyNotFound) {
		t.Error("wrapped error must match its sentinel")
	}
}

func TestWrapClassified(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.wrap(nil, "C", "M", "a") != nil {
				t.Fatal("wrapping nil must return nil")
			}

			err := test.wrap(ErrNoConnection, "DBQuerier", "Query", "execute select")
			var ce *ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ClassifiedError, got %T", err)
			}
			if ce.Class != test.class {
				t.Errorf("expected class %v, got %v", test.class, ce.Class)
			}
			if ce.Component != "DBQuerier" || ce.Operation != "Query" {
				t.Errorf("unexpected context %s.%s", ce.Component, ce.Operation)
			}
			if !strings.HasPrefix(err.Error(), "DBQuerier.Query: execute select failed") {
				t.Errorf("unexpected message %q", err.Error())
			}
			if !errors.Is(err, ErrNoConnection) {
				t.Error("classified error must unwrap to the sentinel")
			}
		})
	}
}

func TestJoin(t *testing.T) {
	cause := errors.New("status 503")
	err := Join(ErrBackendFailed, cause)
	if !errors.Is(err, ErrBackendFailed) || !errors.Is(err, cause) {
		t.Errorf("joined error must match both sentinel and cause: %v", err)
	}
	if Join(ErrBackendFailed, nil) != ErrBackendFailed {
		t.Error("join with nil cause must return the sentinel")
	}
}

func TestRetryConfig_ShouldRetry(t *testing.T) {
	rc := DefaultRetryConfig()

	if !rc.ShouldRetry(ErrConnectionLost, 0) {
		t.Error("transient error must be retried on first attempt")
	}
	if rc.ShouldRetry(ErrConnectionLost, rc.MaxRetries) {
		t.Error("must not retry once MaxRetries reached")
	}
	if rc.ShouldRetry(ErrInvalidConfig, 0) {
		t.Error("invalid errors must not be retried")
	}

	rc.RetryableErrors = []error{ErrNoConnection}
	if rc.ShouldRetry(ErrBackendFailed, 0) {
		t.Error("only listed errors are retryable when the list is set")
	}
	if !rc.ShouldRetry(fmt.Errorf("dial: %w", ErrNoConnection), 0) {
		t.Error("listed error must be retryable")
	}
}

func TestRetryConfig_ToRetryConfig(t *testing.T) {
	rc := RetryConfig{MaxRetries: 4, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}

	cfg := rc.ToRetryConfig()
	if cfg.MaxAttempts != rc.MaxRetries+1 || !cfg.AddJitter {
		t.Errorf("unexpected retry config %+v", cfg)
	}
	if cfg.InitialDelay != rc.InitialDelay || cfg.MaxDelay != rc.MaxDelay || cfg.Multiplier != rc.BackoffFactor {
		t.Errorf("delays not carried over: %+v", cfg)
	}
}
