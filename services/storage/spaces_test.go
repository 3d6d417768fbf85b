package storage

import (
	"strings"
	"testing"
)

func TestResourceKeyLayout(t *testing.T) {
	key := ResourceKey(3, 14, "Physics Notes.pdf")

	if !strings.HasPrefix(key, "tenants/3/courses/14/resources/") {
		t.Errorf("unexpected key prefix: %s", key)
	}
	if !strings.HasSuffix(key, ".pdf") {
		t.Errorf("expected .pdf suffix: %s", key)
	}
	if strings.Contains(key, " ") {
		t.Errorf("expected spaces to be replaced: %s", key)
	}
}

func TestResourceKeyStripsPathComponents(t *testing.T) {
	key := ResourceKey(1, 2, "../../etc/passwd.pdf")

	if strings.Contains(key, "..") {
		t.Errorf("expected path traversal to be stripped: %s", key)
	}
}

func TestObjectURLPrefersCDN(t *testing.T) {
	withCDN := &SpacesClient{bucket: "lms-media", endpoint: "blr1.digitaloceanspaces.com", cdnURL: "https://cdn.example.com"}
	if got := withCDN.ObjectURL("a/b.pdf"); got != "https://cdn.example.com/a/b.pdf" {
		t.Errorf("unexpected CDN URL: %s", got)
	}

	without := &SpacesClient{bucket: "lms-media", endpoint: "blr1.digitaloceanspaces.com"}
	if got := without.ObjectURL("a/b.pdf"); got != "https://lms-media.blr1.digitaloceanspaces.com/a/b.pdf" {
		t.Errorf("unexpected direct URL: %s", got)
	}
}

func TestNewSpacesClientNormalizesEndpoint(t *testing.T) {
	// Endpoints are configured with a scheme; object URLs must not end up
	// with a doubled one.
	client, err := NewSpacesClient(SpacesConfig{
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "lms-media",
		Region:    "blr1",
		Endpoint:  "https://blr1.digitaloceanspaces.com",
		CDNURL:    "https://cdn.example.com/",
	})
	if err != nil {
		t.Fatalf("NewSpacesClient: %v", err)
	}

	if got := client.ObjectURL("a/b.pdf"); got != "https://cdn.example.com/a/b.pdf" {
		t.Errorf("unexpected CDN URL: %s", got)
	}

	client.cdnURL = ""
	if got := client.ObjectURL("a/b.pdf"); got != "https://lms-media.blr1.digitaloceanspaces.com/a/b.pdf" {
		t.Errorf("unexpected direct URL: %s", got)
	}
}
