package errors

import (
	"fmt"
	"strings"
)

// Suggestions contains default fix suggestions for each error code.
var Suggestions = map[string]string{
	ErrCodeAuthorization: "Only superadmins may request or list support access; approvals must come from the target user " +
		"or, for tenant-level requests, a member of the target tenant.",
	ErrCodeNotFound:      "Check the request ID, tenant ID and user email against the directory.",
	ErrCodeStateConflict: "The request was already approved. Run: supportaccess show --id <request-id>",
	ErrCodeValidation:    "Sign the consent again and submit the approval within five minutes of signing.",
	ErrCodeSSMAccessDenied: "Ensure your IAM policy includes: ssm:GetParameter on the directory parameter.",
	ErrCodeSSMParameterNotFound: "The SSM parameter does not exist. " +
		"Upload the directory with: aws ssm put-parameter --type SecureString --name <parameter> --value file://directory.yaml",
	ErrCodeSSMThrottled: "SSM API rate limit exceeded. Wait a moment and retry.",
	ErrCodeDynamoDBAccessDenied: "Ensure your IAM policy includes dynamodb:GetItem, PutItem, UpdateItem and Query " +
		"on the support access table and its indexes.",
	ErrCodeDynamoDBTableNotFound: "The DynamoDB table does not exist. " +
		"Create it with: supportaccess init-table --table <name>",
	ErrCodeDynamoDBThrottled:       "DynamoDB throughput exceeded. Wait a moment and retry, or increase table capacity.",
	ErrCodeDynamoDBConditionFailed: "The DynamoDB conditional check failed. The item may have been modified by another process.",
	ErrCodeSNSAccessDenied:         "Ensure your IAM policy includes: sns:Publish on the notification topic.",
	ErrCodeSNSTopicNotFound:        "The SNS topic does not exist. Check SUPPORTACCESS_TOPIC_ARN.",
	ErrCodeSNSThrottled:            "SNS API rate limit exceeded. Notifications will resume once throughput recovers.",
	ErrCodeConfigInvalid:           "Check the SUPPORTACCESS_* environment variables.",
	ErrCodeConfigDirectoryMissing: "Set SUPPORTACCESS_DIRECTORY_FILE to a local YAML file " +
		"or SUPPORTACCESS_DIRECTORY_PARAMETER to an SSM parameter name.",
}

// GetSuggestion returns the default suggestion for an error code.
// Returns empty string if no suggestion is defined.
func GetSuggestion(code string) string {
	return Suggestions[code]
}

// WrapSSMError examines an SSM error and returns an AccessError with context.
func WrapSSMError(err error, parameter string) AccessError {
	if err == nil {
		return nil
	}

	var code string
	var message string

	errStr := strings.ToLower(err.Error())

	switch {
	case isParameterNotFound(errStr):
		code = ErrCodeSSMParameterNotFound
		message = fmt.Sprintf("SSM parameter not found: %s", parameter)
	case isAccessDenied(errStr):
		code = ErrCodeSSMAccessDenied
		message = fmt.Sprintf("Access denied to SSM parameter: %s", parameter)
	case isThrottled(errStr):
		code = ErrCodeSSMThrottled
		message = fmt.Sprintf("SSM API throttled while accessing: %s", parameter)
	default:
		code = ErrCodeSSMAccessDenied
		message = fmt.Sprintf("SSM error for parameter %s: %v", parameter, err)
	}

	ae := New(code, message, Suggestions[code], err)
	return WithContext(ae, "parameter", parameter)
}

// WrapDynamoDBError examines a DynamoDB error and returns an AccessError.
func WrapDynamoDBError(err error, table, operation string) AccessError {
	if err == nil {
		return nil
	}

	var code string
	var message string
	var suggestion string

	errStr := strings.ToLower(err.Error())

	switch {
	case isResourceNotFound(errStr):
		code = ErrCodeDynamoDBTableNotFound
		message = fmt.Sprintf("DynamoDB table not found: %s", table)
		suggestion = Suggestions[ErrCodeDynamoDBTableNotFound]
	case isAccessDenied(errStr):
		code = ErrCodeDynamoDBAccessDenied
		message = fmt.Sprintf("Access denied to DynamoDB table: %s", table)
		suggestion = Suggestions[ErrCodeDynamoDBAccessDenied]
	case isThrottled(errStr) || isProvisionedThroughputExceeded(errStr):
		code = ErrCodeDynamoDBThrottled
		message = fmt.Sprintf("DynamoDB throughput exceeded for table: %s", table)
		suggestion = Suggestions[ErrCodeDynamoDBThrottled]
	case isConditionalCheckFailed(errStr):
		code = ErrCodeDynamoDBConditionFailed
		message = fmt.Sprintf("DynamoDB conditional check failed for table: %s", table)
		suggestion = Suggestions[ErrCodeDynamoDBConditionFailed]
	default:
		code = ErrCodeDynamoDBAccessDenied
		message = fmt.Sprintf("DynamoDB error for table %s during %s: %v", table, operation, err)
		suggestion = "Check your AWS credentials and DynamoDB permissions"
	}

	ae := New(code, message, suggestion, err)
	ae = WithContext(ae, "table", table)
	return WithContext(ae, "operation", operation)
}

// WrapSNSError examines an SNS publish error and returns an AccessError.
func WrapSNSError(err error, topicARN string) AccessError {
	if err == nil {
		return nil
	}

	var code string
	var message string

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "notfound") || strings.Contains(errStr, "does not exist"):
		code = ErrCodeSNSTopicNotFound
		message = fmt.Sprintf("SNS topic not found: %s", topicARN)
	case isAccessDenied(errStr):
		code = ErrCodeSNSAccessDenied
		message = fmt.Sprintf("Access denied publishing to SNS topic: %s", topicARN)
	case isThrottled(errStr):
		code = ErrCodeSNSThrottled
		message = fmt.Sprintf("SNS API throttled while publishing to: %s", topicARN)
	default:
		code = ErrCodeSNSAccessDenied
		message = fmt.Sprintf("SNS error for topic %s: %v", topicARN, err)
	}

	ae := New(code, message, Suggestions[code], err)
	return WithContext(ae, "topic_arn", topicARN)
}

// isAccessDenied checks if error contains access denied indicators.
func isAccessDenied(errStr string) bool {
	return strings.Contains(errStr, "accessdenied") ||
		strings.Contains(errStr, "access denied") ||
		strings.Contains(errStr, "authorizationerror") ||
		strings.Contains(errStr, "not authorized") ||
		strings.Contains(errStr, "403")
}

// isParameterNotFound checks if error indicates parameter not found.
func isParameterNotFound(errStr string) bool {
	return strings.Contains(errStr, "parameternotfound") ||
		strings.Contains(errStr, "parameter not found") ||
		strings.Contains(errStr, "parameterversionnotfound")
}

// isResourceNotFound checks if error indicates resource not found.
func isResourceNotFound(errStr string) bool {
	return strings.Contains(errStr, "resourcenotfound") ||
		strings.Contains(errStr, "resource not found") ||
		strings.Contains(errStr, "table not found") ||
		strings.Contains(errStr, "cannot do operations on a non-existent table")
}

// isThrottled checks if error indicates throttling.
func isThrottled(errStr string) bool {
	return strings.Contains(errStr, "throttl") ||
		strings.Contains(errStr, "rate exceeded") ||
		strings.Contains(errStr, "too many requests")
}

// isProvisionedThroughputExceeded checks if error indicates throughput exceeded.
func isProvisionedThroughputExceeded(errStr string) bool {
	return strings.Contains(errStr, "provisionedthroughputexceeded") ||
		strings.Contains(errStr, "throughput exceeded")
}

// isConditionalCheckFailed checks if error indicates conditional check failure.
func isConditionalCheckFailed(errStr string) bool {
	return strings.Contains(errStr, "conditionalcheckfailed") ||
		strings.Contains(errStr, "conditional check failed") ||
		strings.Contains(errStr, "condition expression")
}
