package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 20, Offset: 0}},
		{"?page=3&limit=10", Params{Page: 3, Limit: 10, Offset: 20}},
		{"?page=0&limit=0", Params{Page: 1, Limit: 20, Offset: 0}},
		{"?page=2&limit=500", Params{Page: 2, Limit: 100, Offset: 100}},
		{"?page=abc", Params{Page: 1, Limit: 20, Offset: 0}},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/api/transactions"+tc.query, nil)
		assert.Equal(t, tc.want, Parse(c), tc.query)
	}
}

func TestMetaFor(t *testing.T) {
	p := New(2, 10)
	assert.Equal(t, Meta{Page: 2, Limit: 10, Total: 21, TotalPages: 3}, p.MetaFor(21))
	assert.Equal(t, 0, p.MetaFor(0).TotalPages)
}
