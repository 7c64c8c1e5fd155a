package recognize

import (
	"reflect"
	"testing"
)

func TestFilterConfidence(t *testing.T) {
	spans := []Span{
		{Text: "keep", Confidence: 0.9},
		{Text: "drop", Confidence: 0.3},
		{Text: "edge", Confidence: 0.5},
	}
	got := FilterConfidence(spans, 0.5)
	want := []Span{spans[0], spans[2]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterConfidence = %v, want %v", got, want)
	}
	if len(FilterConfidence(nil, 0.5)) != 0 {
		t.Error("nil input should yield empty output")
	}
}

func TestJoinText(t *testing.T) {
	spans := []Span{{Text: "hello"}, {Text: "world"}}
	if got := JoinText(spans); got != "hello world" {
		t.Errorf("JoinText = %q", got)
	}
	if got := JoinText(nil); got != "" {
		t.Errorf("JoinText(nil) = %q", got)
	}
}
