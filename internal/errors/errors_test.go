package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Validation("bad width"), 400},
		// Origin failures are 500s even though they do not alert: the
		// request itself was well-formed.
		{OriginFetch("timeout", nil), 500},
		{Encoding("decode failed", nil), 500},
		{Storage("unreachable", nil), 500},
	}
	for _, tt := range tests {
		if got := tt.err.HTTPStatus(); got != tt.want {
			t.Errorf("%s: HTTPStatus = %d, want %d", tt.err.Kind, got, tt.want)
		}
	}
}

func TestServerFault(t *testing.T) {
	if Validation("x").ServerFault() || OriginFetch("x", nil).ServerFault() {
		t.Error("client-fault kinds reported as server faults")
	}
	if !Encoding("x", nil).ServerFault() || !Storage("x", nil).ServerFault() {
		t.Error("server-fault kinds not reported")
	}
}

func TestUnwrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Storage("backend down", inner)
	if !stderrors.Is(err, inner) {
		t.Error("wrapped error not reachable via errors.Is")
	}
}

func TestAsErrorThroughWrapping(t *testing.T) {
	err := fmt.Errorf("context: %w", Validation("bad input"))
	pe := AsError(err)
	if pe == nil {
		t.Fatal("AsError failed to find classified error")
	}
	if pe.Kind != KindValidation {
		t.Errorf("Kind = %s", pe.Kind)
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if got := KindOf(fmt.Errorf("mystery")); got != KindStorage {
		t.Errorf("unclassified errors must count as storage faults, got %s", got)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindValidation, "validation"},
		{KindOriginFetch, "origin_fetch"},
		{KindEncoding, "encoding"},
		{KindStorage, "storage"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
