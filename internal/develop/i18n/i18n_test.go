package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocale(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultLocale},
		{"ja", JaJP},
		{"ja_jp", JaJP},
		{"en-GB", EnUS},
		{"en_us", EnUS},
		{"zh-CN", ZhCN},
		{"fr-FR,ja;q=0.8", JaJP},
		{"!!", DefaultLocale},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Locale(tt.in))
		})
	}
}

func TestItemName(t *testing.T) {
	names := map[string]string{JaJP: "12cm単装砲", EnUS: "12cm Single Gun Mount"}

	assert.Equal(t, "12cm Single Gun Mount", ItemName(names, 1, EnUS))
	assert.Equal(t, "12cm単装砲", ItemName(names, 1, ZhCN), "falls back past missing zh_cn")
	assert.Equal(t, "item 7", ItemName(nil, 7, JaJP))
}
