package orchestrator

import (
	"fmt"
	"strings"
)

// Retry signals are appended to the history so the next generation attempt can react.
// The router recognises them by prefix.
const (
	signalEmptyPrefix     = "No data was retrieved"
	signalOversizedPrefix = "The data retrieval process has exceeded the expected volume"
	signalErrorPrefix     = "I encountered an issue"

	SignalEmpty = signalEmptyPrefix + " from the query. The result set is empty. " +
		"The query syntax appears to be correct. However, the lack of results may be due to overly restrictive conditions or incorrect parameters. " +
		"Please review and provide the exact query for further analysis."

	SignalOversized = signalOversizedPrefix + ". Please verify that your query is correctly formulated, " +
		"utilizing precise entity references at each step. Additionally, consider implementing data retrieval limits within your query to optimize performance."
)

// SignalExecutionError embeds the store error so the generator can repair the query.
// It is never shown to the user.
func SignalExecutionError(err error) string {
	return fmt.Sprintf("%s while attempting to retrieve the data. It appears there is a syntax error in the query. "+
		"The following error was generated when executing the query:\n\n%v\n"+
		"Kindly revise the query to resolve this issue.", signalErrorPrefix, err)
}

// FailureKind picks the apology shown when a request cannot be answered
type FailureKind string

const (
	FailureEmpty      FailureKind = "empty"
	FailureOversized  FailureKind = "oversized"
	FailureExecution  FailureKind = "execution_error"
	FailureResolution FailureKind = "resolution_failed"
	FailureInternal   FailureKind = "internal"
)

var apologies = map[FailureKind]string{
	FailureEmpty: "I apologize, but I'm unable to find the relevant information to answer your question. " +
		"Could you please provide additional details or rephrase your question? " +
		"This will help me give you a more accurate and helpful response. Thank you for your understanding.",
	FailureOversized: "I apologize, but your question involves a larger amount of data than I can effectively process within my current limitations. " +
		"To provide you with an accurate and helpful response, would you mind breaking down your question into smaller parts or asking a more specific question? " +
		"This will help me better assist you. Thank you for your patience.",
	FailureExecution: "I apologize, but I wasn't able to properly process your question. " +
		"It seems there might have been an issue retrieving the necessary information. " +
		"Would you mind starting a new chat session and rephrasing your question with additional context? " +
		"This will help me provide you with a more accurate and helpful response. Thank you for your understanding.",
	FailureResolution: "I apologize, but I couldn't match some of the names or values in your question to the records I have. " +
		"Could you check the spelling or describe them differently? Thank you for your understanding.",
	FailureInternal: "I apologize, but something went wrong while working on your question. " +
		"Please try again in a moment. Thank you for your patience.",
}

func Apology(kind FailureKind) string {
	if text, ok := apologies[kind]; ok {
		return text
	}
	return apologies[FailureInternal]
}

// FailureForSignal maps a retrieval message to its failure kind by prefix
func FailureForSignal(message string) (FailureKind, bool) {
	switch {
	case strings.HasPrefix(message, signalEmptyPrefix):
		return FailureEmpty, true
	case strings.HasPrefix(message, signalOversizedPrefix):
		return FailureOversized, true
	case strings.HasPrefix(message, signalErrorPrefix):
		return FailureExecution, true
	}
	return "", false
}

// IsRetrySignal reports whether a retrieval message asks for regeneration
func IsRetrySignal(message string) bool {
	_, ok := FailureForSignal(message)
	return ok
}

const noPlanMarker = "no rational plan is required"

// VerdictFromText reads the planner's opaque output
func VerdictFromText(content string) PlanVerdict {
	return PlanVerdict{
		Content:        content,
		NeedsRetrieval: !strings.Contains(strings.ToLower(content), noPlanMarker),
	}
}
