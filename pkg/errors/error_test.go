package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	. "ojcore/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{SubmissionNotFound, "Submission not found"},
		{InvalidParams, "Invalid parameters"},
		{DatabaseError, "Database operation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{UnsupportedTypeTag, 400},
		{LanguageNotSupported, 400},
		{NotFound, 404},
		{JudgeQueueFull, 503},
		{TooManyRequests, 429},
		{InternalServerError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestNew(t *testing.T) {
	err := New(SubmissionNotFound)

	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	if err.Code != SubmissionNotFound {
		t.Errorf("Code = %v, want %v", err.Code, SubmissionNotFound)
	}

	if err.Error() != SubmissionNotFound.Message() {
		t.Errorf("Error() = %v, want %v", err.Error(), SubmissionNotFound.Message())
	}
}

func TestNewf(t *testing.T) {
	submissionID := "s-123"
	err := Newf(SubmissionNotFound, "submission %s not found", submissionID)

	want := "submission s-123 not found"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrap(originalErr, DatabaseError)

	if wrappedErr.Code != DatabaseError {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, DatabaseError)
	}

	if wrappedErr.Unwrap() != originalErr {
		t.Error("Unwrap() should return original error")
	}
}

func TestError_WithDetail(t *testing.T) {
	err := New(ValidationFailed).
		WithDetail("field", "email").
		WithDetail("reason", "invalid format")

	if err.Details["field"] != "email" {
		t.Error("Field detail not set correctly")
	}

	if err.Details["reason"] != "invalid format" {
		t.Error("Reason detail not set correctly")
	}
}

func TestError_WithMessage(t *testing.T) {
	customMsg := "custom error message"
	err := New(InternalServerError).WithMessage(customMsg)

	if err.Error() != customMsg {
		t.Errorf("Error() = %v, want %v", err.Error(), customMsg)
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{
			name: "nil error",
			err:  nil,
			want: Success,
		},
		{
			name: "custom error",
			err:  New(SubmissionNotFound),
			want: SubmissionNotFound,
		},
		{
			name: "standard error",
			err:  errors.New("standard error"),
			want: InternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(SubmissionNotFound)

	if !Is(err, SubmissionNotFound) {
		t.Error("Is() should return true for matching code")
	}

	if Is(err, DatabaseError) {
		t.Error("Is() should return false for non-matching code")
	}

	if Is(nil, SubmissionNotFound) {
		t.Error("Is() should return false for nil error")
	}
}

func TestIs_WrappedChain(t *testing.T) {
	inner := New(SandboxError)
	outer := Wrapf(inner, JudgeSystemError, "run test failed")
	stdWrapped := fmt.Errorf("attempt 2: %w", outer)

	if !Is(stdWrapped, JudgeSystemError) {
		t.Error("Is() should find the outer code through fmt wrapping")
	}
	if !Is(stdWrapped, SandboxError) {
		t.Error("Is() should find the inner code through the chain")
	}
	if GetCode(stdWrapped) != JudgeSystemError {
		t.Errorf("GetCode() = %v, want %v", GetCode(stdWrapped), JudgeSystemError)
	}
}

func TestUnsupportedLanguageAlias(t *testing.T) {
	if UnsupportedLanguage != LanguageNotSupported {
		t.Fatalf("expected alias to match LanguageNotSupported")
	}
}

func TestWrapKeepsInnerCode(t *testing.T) {
	inner := New(SubmissionNotFound)
	outer := Wrap(inner, ServiceUnavailable)

	if outer.Code != ServiceUnavailable || inner.Code != SubmissionNotFound {
		t.Fatalf("Wrap must not rewrite the inner code: outer=%v inner=%v", outer.Code, inner.Code)
	}
	if !Is(outer, SubmissionNotFound) {
		t.Error("Is() should still see the inner code")
	}
}

func TestErrorFormatting(t *testing.T) {
	err := Wrapf(errors.New("disk full"), MQPublishFailed, "publish job")

	if got := fmt.Sprintf("%v", err); got != "publish job" {
		t.Errorf("%%v = %q", got)
	}
	want := fmt.Sprintf("[%d] publish job: disk full", MQPublishFailed)
	if got := fmt.Sprintf("%+v", err); got != want {
		t.Errorf("%%+v = %q, want %q", got, want)
	}
	if !strings.Contains(err.Stack(), "TestErrorFormatting") {
		t.Errorf("Stack() should include the caller, got %q", err.Stack())
	}
}

func TestCommonErrorConstructors(t *testing.T) {
	t.Run("BadRequest", func(t *testing.T) {
		err := BadRequest("invalid input")
		if err.Code != InvalidParams {
			t.Error("BadRequest should use InvalidParams code")
		}
		if err.Error() != "invalid input" {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError("email", "invalid format")
		if err.Code != ValidationFailed {
			t.Error("ValidationError should use ValidationFailed code")
		}
		if err.Details["field"] != "email" {
			t.Error("Field detail not set")
		}
	})
}
