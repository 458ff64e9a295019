// File: internal/api/xml_test.go
package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractXMLValue(t *testing.T) {
	body := `<?xml version="1.0"?><account><id> 13344 </id><customerId>12212</customerId><type>CHECKING</type></account>`

	tests := []struct {
		tag    string
		want   string
		wantOK bool
	}{
		{"id", "13344", true},
		{"customerid", "12212", true},
		{"TYPE", "CHECKING", true},
		{"balance", "", false},
		{"", "", false},
		{"a.b", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, ok := ExtractXMLValue(body, tt.tag)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, LooksLikeXML(body))
	assert.False(t, LooksLikeXML("plain text"))
}
