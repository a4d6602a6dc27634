package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 12000-12999: Problem module errors
// 13000-13999: Submission & Judge module errors
// 14000-14999: Harness generation errors
// 15000-15999: Transport & Storage errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102
	TransactionFailed   ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError     ErrorCode = 10200
	CacheMiss      ErrorCode = 10201
	CacheSetFailed ErrorCode = 10202
	LockFailed     ErrorCode = 10203

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Problem Module Errors (12000-12999) ==========

	ProblemNotFound  ErrorCode = 12000
	TestCaseNotFound ErrorCode = 12100
	TestCaseInvalid  ErrorCode = 12102

	// ========== Submission & Judge Module Errors (13000-13999) ==========

	// Submission (13000-13099)
	SubmissionNotFound     ErrorCode = 13000
	SubmissionCreateFailed ErrorCode = 13001
	CodeTooLarge           ErrorCode = 13002
	LanguageNotSupported   ErrorCode = 13003
	SubmitTooFrequently    ErrorCode = 13004
	DuplicateSubmission    ErrorCode = 13006

	// Judge (13100-13199)
	JudgeQueueFull      ErrorCode = 13100
	JudgeSystemError    ErrorCode = 13101
	CompilationError    ErrorCode = 13102
	SandboxError        ErrorCode = 13107
	StaleJudgeAttempt   ErrorCode = 13108
	JudgeJobLocked      ErrorCode = 13109
	ArtifactCorrupted   ErrorCode = 13110
	ResultAlreadyLanded ErrorCode = 13111

	// ========== Harness Generation Errors (14000-14999) ==========

	UnsupportedTypeTag   ErrorCode = 14000
	InvalidSignature     ErrorCode = 14001
	CanonicalEncodeError ErrorCode = 14002
	CanonicalDecodeError ErrorCode = 14003

	// ========== Transport & Storage Errors (15000-15999) ==========

	MQPublishFailed ErrorCode = 15000
	MQConsumeFailed ErrorCode = 15001
	StorageError    ErrorCode = 15100
)

// UnsupportedLanguage is the harness-facing name of LanguageNotSupported.
const UnsupportedLanguage = LanguageNotSupported

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found in database",
	RecordAlreadyExists: "Record already exists",
	TransactionFailed:   "Database transaction failed",

	// Cache
	CacheError:     "Cache operation failed",
	CacheMiss:      "Cache miss",
	CacheSetFailed: "Failed to set cache",
	LockFailed:     "Failed to acquire lock",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Problem
	ProblemNotFound:  "Problem not found",
	TestCaseNotFound: "Test case not found",
	TestCaseInvalid:  "Invalid test case format",

	// Submission
	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to create submission",
	CodeTooLarge:           "Code is too large",
	LanguageNotSupported:   "Programming language not supported",
	SubmitTooFrequently:    "Submitting too frequently, please wait",
	DuplicateSubmission:    "Duplicate submission",

	// Judge
	JudgeQueueFull:      "Judge queue is full, please try again later",
	JudgeSystemError:    "Judge system error",
	CompilationError:    "Compilation error",
	SandboxError:        "Sandbox execution failed",
	StaleJudgeAttempt:   "Judge attempt has been superseded",
	JudgeJobLocked:      "Judge job is being processed by another worker",
	ArtifactCorrupted:   "Harness artifact checksum mismatch",
	ResultAlreadyLanded: "Judge result already applied",

	// Harness
	UnsupportedTypeTag:   "Type tag not supported",
	InvalidSignature:     "Invalid solution signature",
	CanonicalEncodeError: "Failed to encode value",
	CanonicalDecodeError: "Failed to decode value",

	// Transport & Storage
	MQPublishFailed: "Failed to publish message",
	MQConsumeFailed: "Failed to consume message",
	StorageError:    "Object storage operation failed",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == ProblemNotFound, c == SubmissionNotFound, c == RecordNotFound:
		return 404
	case c == TooManyRequests, c == SubmitTooFrequently:
		return 429
	case c == DuplicateSubmission:
		return 409
	case c == ServiceUnavailable, c == JudgeQueueFull:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c >= 14000 && c < 14100: // Harness configuration errors
		return 400
	case c == InvalidParams, c == LanguageNotSupported, c == CodeTooLarge:
		return 400
	default:
		return 500
	}
}
