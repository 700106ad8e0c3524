package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetKindThroughWrapping(t *testing.T) {
	base := Unavailable("storage offline", errors.New("dial tcp: refused")).WithOp("ingest.Ledger")
	wrapped := fmt.Errorf("load ledger: %w", base)

	if got := GetKind(wrapped); got != KindUnavailable {
		t.Fatalf("expected KindUnavailable, got %v", got)
	}
	if !Is(wrapped, KindUnavailable) {
		t.Fatalf("expected Is to match through fmt wrapping")
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatalf("expected KindUnknown for plain errors")
	}
}

func TestHTTPStatus(t *testing.T) {
	if s := Parse("bad row", nil).HTTPStatus(); s != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", s)
	}
	if s := Unavailable("model", nil).HTTPStatus(); s != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", s)
	}
	if s := Validation("from").HTTPStatus(); s != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", s)
	}
	if s := New(KindUnknown, "boom").HTTPStatus(); s != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unclassified errors, got %d", s)
	}
}

func TestErrorMessageIncludesOpAndCause(t *testing.T) {
	err := Wrap(KindParse, "invalid header", errors.New("eof")).WithOp("ingest.PriceList")
	want := "ingest.PriceList: invalid header: eof"
	if err.Error() != want {
		t.Fatalf("want %q, got %q", want, err.Error())
	}
}
