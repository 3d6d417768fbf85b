package pdfvalidation

import (
	"bytes"
	"strings"
	"testing"
)

func TestValidatePDFBytesRejectsOversized(t *testing.T) {
	limits := PDFLimits{MaxFileSizeMB: 1, MaxPages: 10, DocumentTypeName: "test"}
	content := make([]byte, 2*1024*1024)

	result, err := ValidatePDFBytes(content, limits)
	if err != nil {
		t.Fatalf("ValidatePDFBytes failed: %v", err)
	}
	if result.Valid {
		t.Error("expected oversized file to be rejected")
	}
	if !strings.Contains(result.Error, "exceeds maximum") {
		t.Errorf("unexpected error message: %s", result.Error)
	}
}

func TestValidatePDFBytesRejectsMissingHeader(t *testing.T) {
	result, err := ValidatePDFBytes([]byte("not a pdf at all"), ResourceLimits)
	if err != nil {
		t.Fatalf("ValidatePDFBytes failed: %v", err)
	}
	if result.Valid {
		t.Error("expected non-PDF content to be rejected")
	}
	if !strings.Contains(result.Error, "missing PDF header") {
		t.Errorf("unexpected error message: %s", result.Error)
	}
}

func TestValidatePDFBytesRejectsCorrupt(t *testing.T) {
	// Correct header but garbage body.
	content := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0xde, 0xad}, 100)...)

	result, err := ValidatePDFBytes(content, ResourceLimits)
	if err != nil {
		t.Fatalf("ValidatePDFBytes failed: %v", err)
	}
	if result.Valid {
		t.Error("expected corrupt PDF to be rejected")
	}
}

func TestSanitizePDFTrimsTrailingGarbage(t *testing.T) {
	content := []byte("%PDF-1.4\nbody\n%%EOF\ntrailing junk")
	cleaned := sanitizePDF(content)

	if !bytes.HasSuffix(cleaned, []byte("%%EOF\n")) {
		t.Errorf("expected trailing junk to be trimmed, got %q", cleaned)
	}
}

func TestSanitizePDFLeavesCleanContent(t *testing.T) {
	content := []byte("%PDF-1.4\nbody\n%%EOF")
	cleaned := sanitizePDF(content)

	if !bytes.Equal(cleaned, content) {
		t.Errorf("expected content unchanged, got %q", cleaned)
	}
}
