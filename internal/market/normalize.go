package market

import "strings"

// NormalizeCode 将用户输入的股票代码归一化为带交易所后缀的标准形式。
// 已带后缀的代码与BTC/USDT这类币对原样返回；6开头归上交所，0/3开头归
// 深交所，8/4开头归北交所，其余默认深交所。
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || strings.Contains(code, ".") || strings.Contains(code, "/") {
		return code
	}
	switch code[0] {
	case '6':
		return code + ".SH"
	case '0', '3':
		return code + ".SZ"
	case '8', '4':
		return code + ".BJ"
	default:
		return code + ".SZ"
	}
}
