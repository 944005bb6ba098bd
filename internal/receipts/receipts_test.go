package receipts

import (
	"bytes"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"donation-service/internal/domain"
)

var receiptNumberRe = regexp.MustCompile(`^RCP-(\d{4})-\d{13}\d{4}$`)

func TestNewReceiptNumberFormat(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		n := NewReceiptNumber(now)
		m := receiptNumberRe.FindStringSubmatch(n)
		if m == nil {
			t.Fatalf("receipt number %q does not match expected format", n)
		}
		if m[1] != "2026" {
			t.Fatalf("receipt number %q does not carry the issue year", n)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{10000, "ILS 100.00"},
		{500, "ILS 5.00"},
		{9801, "ILS 98.01"},
		{7, "ILS 0.07"},
	}
	for _, c := range cases {
		if got := FormatAmount(c.amount, "ILS"); got != c.want {
			t.Errorf("FormatAmount(%d) = %q, want %q", c.amount, got, c.want)
		}
	}
}

func TestRenderPDF(t *testing.T) {
	d := &domain.Donation{
		ID:         "don-1",
		UserName:   sql.NullString{String: "Dana Levi", Valid: true},
		UserEmail:  sql.NullString{String: "dana@example.com", Valid: true},
		StoryTitle: "School supplies for Ofakim",
		NGOName:    "Hand in Hand",
		Amount:     10000,
		Currency:   "ILS",
	}

	data, err := RenderPDF(d, "RCP-2026-17000000000001234", time.Now())
	if err != nil {
		t.Fatalf("RenderPDF returned error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("rendered artifact is not a PDF (starts with %q)", data[:4])
	}
}

func TestRenderPDFAnonymous(t *testing.T) {
	d := &domain.Donation{
		ID:          "don-2",
		IsAnonymous: true,
		UserName:    sql.NullString{String: "Should Not Appear", Valid: true},
		StoryTitle:  "Warm meals",
		NGOName:     "Hand in Hand",
		Amount:      500,
		Currency:    "ILS",
	}

	data, err := RenderPDF(d, "RCP-2026-17000000000005678", time.Now())
	if err != nil {
		t.Fatalf("RenderPDF returned error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("rendered PDF is empty")
	}
}
