package market

import "testing"

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// 上交所
		{"600519", "600519.SH"},
		{"601318", "601318.SH"},
		{"688981", "688981.SH"},
		// 深交所
		{"000001", "000001.SZ"},
		{"002594", "002594.SZ"},
		{"300750", "300750.SZ"},
		// 北交所
		{"830799", "830799.BJ"},
		{"430047", "430047.BJ"},
		// 已带后缀原样返回
		{"600519.SH", "600519.SH"},
		{"000001.SZ", "000001.SZ"},
		// 大小写与空白归一化
		{" 600519.sh ", "600519.SH"},
		{"  000001  ", "000001.SZ"},
		// 无法识别的前缀默认深交所
		{"999999", "999999.SZ"},
		// 币对原样返回
		{"BTC/USDT", "BTC/USDT"},
		{" eth/usdt ", "ETH/USDT"},
		// 空输入
		{"", ""},
	}

	for _, test := range tests {
		got := NormalizeCode(test.input)
		if got != test.expected {
			t.Errorf("NormalizeCode(%q): expected %q, got %q", test.input, test.expected, got)
		}
	}
}
