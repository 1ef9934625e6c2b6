package llm

import (
	"testing"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"score": -0.4, "reason": "complaint"}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["score"] != float64(-0.4) {
		t.Errorf("expected score=-0.4, got %v", result["score"])
	}
	if result["reason"] != "complaint" {
		t.Errorf("expected reason='complaint', got %v", result["reason"])
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	text := "```json\n{\"score\": 0.5}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["score"] != float64(0.5) {
		t.Errorf("expected score=0.5, got %v", result["score"])
	}
}

func TestParseJSONResponseWithPlainFence(t *testing.T) {
	text := "```\n{\"score\": 0}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	if result := ParseJSONResponse("not json at all"); result != nil {
		t.Error("expected nil for invalid JSON")
	}
}

func TestParseJSONResponseEmpty(t *testing.T) {
	if result := ParseJSONResponse(""); result != nil {
		t.Error("expected nil for empty string")
	}
}

func TestParseJSONResponseWhitespace(t *testing.T) {
	result := ParseJSONResponse("  \n  {\"score\": 1}  \n  ")
	if result == nil {
		t.Fatal("expected non-nil result")
	}
}
