package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessageComposition(t *testing.T) {
	cause := fmt.Errorf("yaml: line 3: mapping values are not allowed")
	err := NewDocumentError("received invalid workflow", cause, "ci.yml")

	msg := err.Error()
	if !strings.Contains(msg, "received invalid workflow") {
		t.Errorf("Message missing: %q", msg)
	}
	if !strings.Contains(msg, cause.Error()) {
		t.Errorf("Cause missing: %q", msg)
	}
	if !strings.Contains(msg, "ci.yml") {
		t.Errorf("Workflow detail missing: %q", msg)
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := NewIOError("failed to write workflow file", cause, "/out/ci.yml")
	if !stderrors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the cause")
	}
}

func TestIsMatchesOnType(t *testing.T) {
	docErr := NewDocumentError("bad document", nil, "ci.yml")
	exprErr := NewExpressionError("invalid expression", nil, "a ==")

	if !stderrors.Is(docErr, &AnalysisError{Type: ErrorTypeDocument}) {
		t.Error("Document error must match its own type")
	}
	if stderrors.Is(exprErr, &AnalysisError{Type: ErrorTypeDocument}) {
		t.Error("Expression error must not match the document type")
	}
}

func TestIsDocumentError(t *testing.T) {
	if !IsDocumentError(NewDocumentError("bad document", nil, "ci.yml")) {
		t.Error("Expected document error to be recognized")
	}
	if IsDocumentError(NewConfigError("bad config", nil)) {
		t.Error("Config error is not document-fatal")
	}
	if IsDocumentError(fmt.Errorf("plain error")) {
		t.Error("Plain errors are not document-fatal")
	}
}
