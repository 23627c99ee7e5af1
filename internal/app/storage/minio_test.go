package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"bulletin.pdf": "application/pdf",
		"SCAN.JPEG":    "image/jpeg",
		"photo.jpg":    "image/jpeg",
		"rib.png":      "image/png",
		"mandat.webp":  "image/webp",
		"archive.zip":  "application/octet-stream",
		"no-extension": "application/octet-stream",
	}
	for name, want := range cases {
		assert.Equal(t, want, ContentTypeFor(name), name)
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("sub-1", "mandat_sepa", "Mandat SEPA.PDF")
	assert.True(t, strings.HasPrefix(key, "sub-1/mandat_sepa_"), key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), key)

	assert.NotEqual(t, key, ObjectKey("sub-1", "mandat_sepa", "Mandat SEPA.PDF"))
}
